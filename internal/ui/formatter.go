package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"tia/internal/domain"
	"tia/internal/parser"
)

// Formatter formats and displays output
type Formatter struct {
	out    io.Writer
	parser parser.Parser
}

// NewFormatter creates a new Formatter writing to stdout
func NewFormatter(p parser.Parser) *Formatter {
	return NewFormatterTo(os.Stdout, p)
}

// NewFormatterTo creates a new Formatter writing to w
func NewFormatterTo(w io.Writer, p parser.Parser) *Formatter {
	if p == nil {
		p = parser.NewTraceFileParser()
	}
	return &Formatter{out: w, parser: p}
}

// Summary holds the figures printed after a session.
type Summary struct {
	Total, Executed, Deselected, ExpectedFailures int
	Passed, Failed, Errors, Skipped, Untraced     int
}

// Summarize counts results by verdict and outcome.
func Summarize(results []domain.RunResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Verdict {
		case domain.VerdictSkip:
			s.Deselected++
			continue
		case domain.VerdictExpectedFailure:
			s.ExpectedFailures++
			continue
		}
		s.Executed++
		switch r.Outcome {
		case domain.OutcomePassed:
			s.Passed++
		case domain.OutcomeFailed:
			s.Failed++
		case domain.OutcomeError:
			s.Errors++
		case domain.OutcomeSkipped:
			s.Skipped++
		}
		if r.Outcome != domain.OutcomeError && !r.Traced {
			s.Untraced++
		}
	}
	return s
}

// PrintSummary prints session statistics followed by a tree of the tests
// that failed or errored.
func (f *Formatter) PrintSummary(results []domain.RunResult, duration time.Duration, sessionID, location string) {
	s := Summarize(results)
	cyan := color.New(color.FgCyan)

	fmt.Fprint(f.out, "\n")
	cyan.Fprintln(f.out, "╔═══════════════════════════════════════════════════════════════╗")
	cyan.Fprintln(f.out, "║                  Test Impact Analysis Summary                 ║")
	cyan.Fprintln(f.out, "╚═══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(f.out)

	rows := []struct {
		label string
		value string
		c     *color.Color
	}{
		{"Total Tests", fmt.Sprint(s.Total), color.New(color.FgWhite)},
		{"Executed", fmt.Sprint(s.Executed), color.New(color.FgWhite)},
		{"Deselected (unchanged)", fmt.Sprint(s.Deselected), color.New(color.FgYellow)},
		{"Expected Failures", fmt.Sprint(s.ExpectedFailures), color.New(color.FgRed)},
		{"Passed", fmt.Sprint(s.Passed), color.New(color.FgGreen)},
		{"Failed", fmt.Sprint(s.Failed), color.New(color.FgRed)},
		{"Errors", fmt.Sprint(s.Errors), color.New(color.FgRed)},
		{"Skipped", fmt.Sprint(s.Skipped), color.New(color.FgYellow)},
		{"Untraced", fmt.Sprint(s.Untraced), color.New(color.FgYellow)},
		{"Duration", fmt.Sprintf("%.2fs", duration.Seconds()), color.New(color.FgWhite)},
		{"Session", sessionID, color.New(color.FgWhite)},
		{"State", location, color.New(color.FgWhite)},
	}

	fmt.Fprintln(f.out, "┌─────────────────────────────────┬─────────────────────────────┐")
	for i, r := range rows {
		fmt.Fprintf(f.out, "│ %-31s │ ", r.label)
		r.c.Fprintf(f.out, "%-27s", r.value)
		fmt.Fprintln(f.out, " │")
		if i < len(rows)-1 {
			fmt.Fprintln(f.out, "├─────────────────────────────────┼─────────────────────────────┤")
		}
	}
	fmt.Fprintln(f.out, "└─────────────────────────────────┴─────────────────────────────┘")
	fmt.Fprintln(f.out)

	switch {
	case s.Failed+s.Errors > 0:
		color.New(color.FgRed).Fprintf(f.out, "✗ %d test(s) failed, %d errored\n", s.Failed, s.Errors)
		fmt.Fprintln(f.out)
		f.printFailedTestsTree(results)
	case s.ExpectedFailures > 0:
		color.New(color.FgRed).Fprintf(f.out, "✗ %d test(s) still failing from the last run\n", s.ExpectedFailures)
	default:
		color.New(color.FgGreen).Fprintln(f.out, "✓ All tests passed!")
	}
}

// TreeNode represents a node in the file tree structure
type TreeNode struct {
	Name     string
	Children map[string]*TreeNode
	Failures []domain.RunResult
	IsFile   bool
}

// printFailedTestsTree prints failed tests grouped by directory and file,
// each with the failure lines picked from its output
func (f *Formatter) printFailedTestsTree(results []domain.RunResult) {
	root := &TreeNode{Children: make(map[string]*TreeNode)}
	for _, r := range results {
		if r.Outcome != domain.OutcomeFailed && r.Outcome != domain.OutcomeError {
			continue
		}
		parts := strings.Split(r.ID.File, "/")
		current := root
		for i, part := range parts {
			if part == "" {
				continue
			}
			if current.Children[part] == nil {
				current.Children[part] = &TreeNode{
					Name:     part,
					Children: make(map[string]*TreeNode),
					IsFile:   i == len(parts)-1,
				}
			}
			current = current.Children[part]
		}
		current.Failures = append(current.Failures, r)
	}
	f.printTreeNode(root, "")
}

func (f *Formatter) printTreeNode(node *TreeNode, prefix string) {
	var keys []string
	for key := range node.Children {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for i, key := range keys {
		child := node.Children[key]
		last := i == len(keys)-1

		connector, childPrefix := "├── ", "│   "
		if last {
			connector, childPrefix = "└── ", "    "
		}

		if child.IsFile {
			color.New(color.FgYellow).Fprintf(f.out, "%s%s%s\n", prefix, connector, child.Name)
			for j, r := range child.Failures {
				caseConnector := "├── "
				if j == len(child.Failures)-1 {
					caseConnector = "└── "
				}
				color.New(color.FgRed).Fprintf(f.out, "%s%s%s%s [%s]\n", prefix, childPrefix, caseConnector, r.ID.Name, r.Outcome)
				for _, line := range f.failureLines(r) {
					fmt.Fprintf(f.out, "%s%s      %s\n", prefix, childPrefix, strings.TrimSpace(line))
				}
			}
		} else {
			color.New(color.FgCyan).Fprintf(f.out, "%s%s%s\n", prefix, connector, child.Name)
		}
		f.printTreeNode(child, prefix+childPrefix)
	}
}

func (f *Formatter) failureLines(r domain.RunResult) []string {
	lines := f.parser.ParseFailure(r.Output)
	if len(lines) == 0 && r.Error != nil {
		lines = []string{r.Error.Error()}
	}
	return lines
}

// PrintDecisions prints each test with the verdict selection would give it
// now, grouped by test file.
func (f *Formatter) PrintDecisions(ids []domain.TestID, decisions map[domain.TestID]domain.Decision) {
	counts := make(map[domain.Verdict]int)
	for _, id := range ids {
		counts[decisions[id].Verdict]++
	}
	color.New(color.FgGreen).Fprintf(f.out, "Found %d test(s): %d to run, %d deselected, %d expected to fail\n\n",
		len(ids), counts[domain.VerdictRun], counts[domain.VerdictSkip], counts[domain.VerdictExpectedFailure])

	byFile := make(map[string][]domain.TestID)
	var files []string
	for _, id := range ids {
		if _, ok := byFile[id.File]; !ok {
			files = append(files, id.File)
		}
		byFile[id.File] = append(byFile[id.File], id)
	}

	for i, file := range files {
		lastFile := i == len(files)-1
		connector, childPrefix := "├── ", "│   "
		if lastFile {
			connector, childPrefix = "└── ", "    "
		}
		color.New(color.FgCyan).Fprintf(f.out, "%s%s\n", connector, file)

		tests := byFile[file]
		for j, id := range tests {
			caseConnector := "├── "
			if j == len(tests)-1 {
				caseConnector = "└── "
			}
			d := decisions[id]
			fmt.Fprintf(f.out, "%s%s%s %s %s\n", childPrefix, caseConnector, id.Name,
				verdictColor(d.Verdict).Sprintf("[%s]", d.Verdict), color.New(color.FgHiBlack).Sprint(describeDecision(d)))
		}
	}
}

func describeDecision(d domain.Decision) string {
	if d.Changed != "" {
		return fmt.Sprintf("%s (%s)", d.Reason, d.Changed)
	}
	return d.Reason
}

func verdictColor(v domain.Verdict) *color.Color {
	switch v {
	case domain.VerdictSkip:
		return color.New(color.FgYellow)
	case domain.VerdictExpectedFailure:
		return color.New(color.FgRed)
	}
	return color.New(color.FgGreen)
}
