package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tia/internal/config"
	"tia/internal/domain"
	"tia/internal/session"
	"tia/internal/ui"
)

// ListCommand handles the list command
type ListCommand struct {
	config    *config.Config
	formatter *ui.Formatter
}

// NewListCommand creates a new ListCommand
func NewListCommand(cfg *config.Config, formatter *ui.Formatter) *ListCommand {
	return &ListCommand{
		config:    cfg,
		formatter: formatter,
	}
}

// Execute prints every manifest test with the decision selection would
// take now. Nothing runs and nothing is saved.
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, err := openProject(lc.config, true)
	if err != nil {
		return err
	}
	defer p.Close()

	cases, err := p.cases(ctx)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		color.Yellow("No tests found")
		return nil
	}

	sess, err := session.Open(ctx, p.store, session.Options{
		Root:      p.root,
		Selection: !lc.config.NoSelection,
		Logger:    p.logger,
	})
	if err != nil {
		return err
	}

	ids := make([]domain.TestID, 0, len(cases))
	decisions := make(map[domain.TestID]domain.Decision, len(cases))
	for _, c := range cases {
		ids = append(ids, c.ID())
		decisions[c.ID()] = sess.BeforeTest(c.Candidate)
	}
	lc.formatter.PrintDecisions(ids, decisions)
	return nil
}
