package parser

import (
	"io"

	"tia/internal/domain"
)

// Parser reads what an external test process reported about itself.
type Parser interface {
	// ParseTrace reads a trace file written by an instrumented test process.
	ParseTrace(r io.Reader) ([]domain.Frame, error)
	// ParseFailure extracts the lines of a test's output that explain a
	// failure.
	ParseFailure(output string) []string
}
