package infer

import "github.com/visiona/camflow"

// StubDetector returns a fixed raw detection list on every call, run
// through the same standardization path as the real backends. It backs
// pipeline tests and bench rigs that must not depend on model artifacts.
type StubDetector struct {
	raws  []Raw
	cfg   Config
	calls int
}

// NewStub creates a detector that always reports the given raw
// detections, standardized with cfg.
func NewStub(raws []Raw, cfg Config) *StubDetector {
	return &StubDetector{raws: raws, cfg: cfg}
}

func (s *StubDetector) Detect(img *camflow.Image) ([]camflow.Detection, error) {
	s.calls++
	return Standardize(s.raws, img.Width, img.Height, s.cfg), nil
}

// Calls reports how many times Detect ran.
func (s *StubDetector) Calls() int { return s.calls }

func (s *StubDetector) Close() error { return nil }
