package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"tia/internal/domain"
	"tia/internal/storage"
)

// MatrixRow is one test of the dependency matrix.
type MatrixRow struct {
	Key     string
	Outcome domain.Outcome // Empty when the test has never been classified
	Digest  string
	Deps    []int // Indexes into Matrix.Files
}

// Matrix is the test × dependency-file view of a persisted state.
type Matrix struct {
	Files   []string
	Digests map[string]string
	Rows    []MatrixRow
}

// BuildMatrix collects every test and every dependency file of state,
// both sorted.
func BuildMatrix(state *storage.State) *Matrix {
	m := &Matrix{Files: state.Files(), Digests: state.FileDigests}

	column := make(map[string]int, len(m.Files))
	for i, f := range m.Files {
		column[f] = i
	}

	for _, key := range state.Tests() {
		row := MatrixRow{
			Key:     key,
			Outcome: state.Outcomes[key],
			Digest:  state.TestDigests[key],
		}
		for _, d := range state.Dependencies[key] {
			row.Deps = append(row.Deps, column[d])
		}
		sort.Ints(row.Deps)
		m.Rows = append(m.Rows, row)
	}
	return m
}

// Filter keeps the rows whose key satisfies keep.
func (m *Matrix) Filter(keep func(key string) bool) *Matrix {
	out := &Matrix{Files: m.Files, Digests: m.Digests}
	for _, r := range m.Rows {
		if keep(r.Key) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Dependents returns the keys of the tests depending on file index i.
func (m *Matrix) Dependents(i int) []string {
	var keys []string
	for _, r := range m.Rows {
		if j := sort.SearchInts(r.Deps, i); j < len(r.Deps) && r.Deps[j] == i {
			keys = append(keys, r.Key)
		}
	}
	return keys
}

// WritePlain renders the matrix as text: a numbered file legend, then one
// line per test with an "x" under every file it depends on.
func WritePlain(w io.Writer, m *Matrix) error {
	if len(m.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No tests recorded yet")
		return err
	}

	width := 0
	for _, r := range m.Rows {
		width = max(width, len(r.Key))
	}

	var b strings.Builder
	fmt.Fprintln(&b, "Files:")
	for i, f := range m.Files {
		fmt.Fprintf(&b, "  %3d  %s\n", i+1, f)
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "%-*s  %-8s", width, "TEST", "OUTCOME")
	for i := range m.Files {
		fmt.Fprintf(&b, " %3d", i+1)
	}
	fmt.Fprintln(&b)

	for _, r := range m.Rows {
		fmt.Fprintf(&b, "%-*s  %s", width, r.Key, outcomeColor(r.Outcome).Sprintf("%-8s", outcomeLabel(r.Outcome)))
		next := 0
		for i := range m.Files {
			mark := "."
			if next < len(r.Deps) && r.Deps[next] == i {
				mark = "x"
				next++
			}
			fmt.Fprintf(&b, " %3s", mark)
		}
		fmt.Fprintln(&b)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func outcomeLabel(o domain.Outcome) string {
	if o == "" {
		return "-"
	}
	return string(o)
}

func outcomeColor(o domain.Outcome) *color.Color {
	switch o {
	case domain.OutcomePassed:
		return color.New(color.FgGreen)
	case domain.OutcomeFailed, domain.OutcomeError:
		return color.New(color.FgRed)
	case domain.OutcomeSkipped:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgWhite)
}
