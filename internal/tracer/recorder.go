package tracer

import (
	"runtime"

	"tia/internal/domain"
)

// Recorder receives the raw call trace of a running test body.
type Recorder interface {
	// Call records that function in file was invoked.
	Call(file, function string)
	// CaptureStack records every frame of the calling goroutine's stack,
	// skipping the given number of callers above CaptureStack itself.
	CaptureStack(skip int)
}

// FrameSet is a Recorder that keeps distinct frames in first-seen order.
type FrameSet struct {
	seen   map[domain.Frame]struct{}
	frames []domain.Frame
}

// NewFrameSet creates an empty FrameSet.
func NewFrameSet() *FrameSet {
	return &FrameSet{seen: make(map[domain.Frame]struct{})}
}

func (s *FrameSet) Call(file, function string) {
	f := domain.Frame{File: file, Function: function}
	if _, ok := s.seen[f]; ok {
		return
	}
	s.seen[f] = struct{}{}
	s.frames = append(s.frames, f)
}

func (s *FrameSet) CaptureStack(skip int) {
	for _, f := range StackFrames(skip + 1) {
		s.Call(f.File, f.Function)
	}
}

// Frames returns the distinct frames recorded so far.
func (s *FrameSet) Frames() []domain.Frame {
	out := make([]domain.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// StackFrames returns the frames of the calling goroutine, skipping skip
// callers above StackFrames.
func StackFrames(skip int) []domain.Frame {
	pcs := make([]uintptr, 64)
	for {
		n := runtime.Callers(skip+2, pcs)
		if n < len(pcs) {
			pcs = pcs[:n]
			break
		}
		pcs = make([]uintptr, len(pcs)*2)
	}

	var out []domain.Frame
	frames := runtime.CallersFrames(pcs)
	for {
		f, more := frames.Next()
		if f.File != "" || f.Function != "" {
			out = append(out, domain.Frame{File: f.File, Function: f.Function})
		}
		if !more {
			break
		}
	}
	return out
}

type discard struct{}

func (discard) Call(string, string) {}
func (discard) CaptureStack(int)    {}
