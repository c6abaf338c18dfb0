package parser

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"tia/internal/domain"
)

// MaxFailureLines caps the excerpt returned by ParseFailure.
const MaxFailureLines = 20

var failureLine = regexp.MustCompile(`(?i)(^\s*(---\s+)?FAIL\b|^\s*E\s{2,}|Error\b|assert|panic:|Traceback|expected|_test\.go:\d+)`)

// TraceFileParser reads the line protocol test processes write to the file
// named by TIA_TRACE_FILE:
//
//	# comment
//	path/to/file.go<TAB>pkg.Function
//	path/to/other.py
//
// Blank lines and comments are ignored; a line without a tab names a file
// with no function.
type TraceFileParser struct{}

// NewTraceFileParser creates a new TraceFileParser
func NewTraceFileParser() *TraceFileParser {
	return &TraceFileParser{}
}

// ParseTrace returns one frame per reported line, in file order.
func (p *TraceFileParser) ParseTrace(r io.Reader) ([]domain.Frame, error) {
	var frames []domain.Frame
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if !utf8.ValidString(text) {
			return nil, fmt.Errorf("trace line %d: invalid UTF-8", line)
		}
		if strings.TrimSpace(text) == "" || strings.HasPrefix(strings.TrimSpace(text), "#") {
			continue
		}
		file, function, _ := strings.Cut(text, "\t")
		file = strings.TrimSpace(file)
		if file == "" {
			return nil, fmt.Errorf("trace line %d: empty file name", line)
		}
		frames = append(frames, domain.Frame{File: file, Function: strings.TrimSpace(function)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return frames, nil
}

// ParseFailure picks the lines of go test or pytest output that look like
// a failure report. At most MaxFailureLines are returned.
func (p *TraceFileParser) ParseFailure(output string) []string {
	var lines []string
	for _, l := range strings.Split(output, "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" || !failureLine.MatchString(l) {
			continue
		}
		lines = append(lines, l)
		if len(lines) == MaxFailureLines {
			break
		}
	}
	return lines
}
