package camflow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSourceExhausted is returned by FrameSource.Next when a finite replay
// source has no more images. It is an expected end-of-input for replay
// sources, not an operator-visible failure; live sources never return it.
var ErrSourceExhausted = errors.New("source exhausted")

// SourceUnavailableError reports that the underlying capture device could
// not be opened. Implementations must raise it at construction time, never
// defer it to the first Next call.
type SourceUnavailableError struct {
	Backend string
	Device  string
	Err     error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("%s source unavailable (device %s): %v", e.Backend, e.Device, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// FrameSource produces raw frames regardless of deployment target. It is
// the one capability every capture backend exposes: the next raw image
// plus its capture timestamp.
//
// Next may block waiting for hardware. Implementations are consumed from a
// single goroutine (the Runner's capture loop).
type FrameSource interface {
	// Next returns the next raw image and its capture instant.
	// Returns ErrSourceExhausted when a finite source is drained.
	Next(ctx context.Context) (*Image, time.Time, error)
	Close() error
}
