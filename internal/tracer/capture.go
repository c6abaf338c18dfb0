package tracer

import "tia/internal/domain"

// Capture is an in-progress recording for one test body.
type Capture interface {
	Recorder
	// Stop ends the recording and returns every frame observed.
	Stop() ([]domain.Frame, error)
}

// Capturer starts captures. Hosts that run tests out of process supply their
// own, e.g. one that collects a trace file written by the test process.
type Capturer interface {
	Start(id domain.TestID) (Capture, error)
}

// MemoryCapturer records frames reported in-process.
type MemoryCapturer struct{}

func (MemoryCapturer) Start(domain.TestID) (Capture, error) {
	return &memoryCapture{FrameSet: NewFrameSet()}, nil
}

type memoryCapture struct {
	*FrameSet
}

func (c *memoryCapture) Stop() ([]domain.Frame, error) {
	return c.Frames(), nil
}
