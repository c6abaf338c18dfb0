package execution

import (
	"fmt"
	"os"

	"tia/internal/domain"
	"tia/internal/parser"
	"tia/internal/tracer"
)

// TraceFile is implemented by captures that collect frames from a file
// written by the test process.
type TraceFile interface {
	TracePath() string
}

// TracePath returns the trace file path of rec, or "" when rec has none.
func TracePath(rec tracer.Recorder) string {
	if tf, ok := rec.(TraceFile); ok {
		return tf.TracePath()
	}
	return ""
}

// TraceFileCapturer hands every test a fresh temporary trace file and reads
// it back when the test ends. Frames reported in-process are merged in.
type TraceFileCapturer struct {
	dir    string
	parser parser.Parser
}

// NewTraceFileCapturer creates trace files in dir, or the system temporary
// directory when dir is empty.
func NewTraceFileCapturer(dir string, p parser.Parser) *TraceFileCapturer {
	if p == nil {
		p = parser.NewTraceFileParser()
	}
	return &TraceFileCapturer{dir: dir, parser: p}
}

func (c *TraceFileCapturer) Start(id domain.TestID) (tracer.Capture, error) {
	f, err := os.CreateTemp(c.dir, "tia-trace-*.txt")
	if err != nil {
		return nil, fmt.Errorf("create trace file for %s: %w", id, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("create trace file for %s: %w", id, err)
	}
	return &fileCapture{FrameSet: tracer.NewFrameSet(), path: f.Name(), parser: c.parser}, nil
}

type fileCapture struct {
	*tracer.FrameSet
	path   string
	parser parser.Parser
}

func (c *fileCapture) TracePath() string {
	return c.path
}

func (c *fileCapture) Stop() ([]domain.Frame, error) {
	defer os.Remove(c.path)

	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	frames, err := c.parser.ParseTrace(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.path, err)
	}
	for _, fr := range frames {
		c.Call(fr.File, fr.Function)
	}
	return c.Frames(), nil
}
