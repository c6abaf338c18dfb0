package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"tia/internal/domain"
)

// Viewer displays the dependency matrix
type Viewer interface {
	View(m *Matrix) error
}

// MatrixViewer displays the dependency matrix in an interactive TUI. It only
// reads the matrix; nothing is written back.
type MatrixViewer struct{}

// NewMatrixViewer creates a new MatrixViewer
func NewMatrixViewer() *MatrixViewer {
	return &MatrixViewer{}
}

// View lists tests on the left and the selected test's dependencies on the
// right. Tab switches to a per-file view listing each file's dependents.
func (mv *MatrixViewer) View(m *Matrix) error {
	if len(m.Rows) == 0 {
		color.Yellow("No tests recorded yet")
		return nil
	}

	app := tview.NewApplication()

	list := tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)
	for _, r := range m.Rows {
		list.AddItem(rowLabel(r), "", 0, nil)
	}
	list.SetMainTextColor(tview.Styles.PrimaryTextColor).
		SetSelectedTextColor(tcell.ColorWhite).
		SetSelectedBackgroundColor(tcell.ColorDarkCyan)

	statsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	detailsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true)

	rightSide := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(statsView, 3, 0, false).
		AddItem(detailsView, 0, 1, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(list, 0, 1, true).
		AddItem(rightSide, 0, 2, false)

	headerView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true)

	byFile := false
	updateDetails := func() {
		index := list.GetCurrentItem()
		if byFile {
			if index >= 0 && index < len(m.Files) {
				statsView.SetText(fmt.Sprintf("[cyan]file:[white] [yellow]%s[white]\n[cyan]digest:[white] %s", m.Files[index], m.Digests[m.Files[index]]))
				detailsView.SetText(formatDependents(m, index))
			}
			return
		}
		if index >= 0 && index < len(m.Rows) {
			r := m.Rows[index]
			statsView.SetText(fmt.Sprintf("[cyan]test:[white] [yellow]%s[white]\n[cyan]digest:[white] %s", r.Key, r.Digest))
			detailsView.SetText(formatDependencies(m, r))
		}
	}

	updateHeader := func() {
		mode := "tests"
		if byFile {
			mode = "files"
		}
		headerView.SetText(fmt.Sprintf(" Dependency matrix (%d tests, %d files) | viewing %s | [yellow]Tab[white] to switch, ↑↓ to navigate, Ctrl+C to exit ", len(m.Rows), len(m.Files), mode))
	}

	fill := func() {
		list.Clear()
		if byFile {
			for i, f := range m.Files {
				list.AddItem(fmt.Sprintf("%s [gray](%d)[white]", f, len(m.Dependents(i))), "", 0, nil)
			}
		} else {
			for _, r := range m.Rows {
				list.AddItem(rowLabel(r), "", 0, nil)
			}
		}
		updateHeader()
		updateDetails()
	}

	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyTab:
			byFile = !byFile
			fill()
			return nil
		case tcell.KeyCtrlC, tcell.KeyEsc:
			app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'q' {
				app.Stop()
				return nil
			}
		}
		return event
	})

	list.SetChangedFunc(func(int, string, string, rune) {
		updateDetails()
	})

	updateHeader()
	updateDetails()

	mainLayout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(headerView, 1, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(flex, 0, 1, true)

	if err := app.SetRoot(mainLayout, true).SetFocus(list).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func rowLabel(r MatrixRow) string {
	return fmt.Sprintf("%s%s[white]", outcomeTag(r.Outcome), r.Key)
}

// outcomeTag returns the tview color tag for an outcome.
func outcomeTag(o domain.Outcome) string {
	switch o {
	case domain.OutcomePassed:
		return "[green]"
	case domain.OutcomeFailed, domain.OutcomeError:
		return "[red]"
	case domain.OutcomeSkipped:
		return "[yellow]"
	}
	return "[gray]"
}

func formatDependencies(m *Matrix, r MatrixRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[yellow]Last outcome:[white] %s\n\n", outcomeLabel(r.Outcome))
	if len(r.Deps) == 0 {
		b.WriteString("[gray]No recorded dependencies; the test runs next time.[white]\n")
		return b.String()
	}
	fmt.Fprintf(&b, "[yellow]Dependencies (%d):[white]\n", len(r.Deps))
	for _, i := range r.Deps {
		f := m.Files[i]
		digest, ok := m.Digests[f]
		if !ok {
			digest = "[red]no digest[white]"
		}
		fmt.Fprintf(&b, "  %s  [gray]%s[white]\n", f, digest)
	}
	return b.String()
}

func formatDependents(m *Matrix, i int) string {
	keys := m.Dependents(i)
	var b strings.Builder
	fmt.Fprintf(&b, "[yellow]Tests depending on this file (%d):[white]\n", len(keys))
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s\n", k)
	}
	return b.String()
}
