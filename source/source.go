// Package source provides capture backends behind one capability: produce
// the next raw image plus its capture timestamp.
//
// Variants: desktop webcam (OpenCV), file replay (deterministic, for
// tests), embedded CSI camera bus (GStreamer), frame-journal replay, and a
// synthetic generator. Open selects a backend from an env.Descriptor;
// explicit configuration always wins over the probe.
package source

import (
	"fmt"

	"github.com/visiona/camflow"
	"github.com/visiona/camflow/env"
)

// Kind names a capture backend.
type Kind string

const (
	// KindAuto picks by environment: CSI on embedded, webcam on desktop.
	KindAuto      Kind = "auto"
	KindWebcam    Kind = "webcam"
	KindReplay    Kind = "replay"
	KindCSI       Kind = "csi"
	KindJournal   Kind = "journal"
	KindSynthetic Kind = "synthetic"
)

// Config selects and parameterizes a capture backend.
type Config struct {
	Kind Kind

	// Device is the webcam index (desktop).
	Device int
	// Directory is the replay image directory.
	Directory string
	// Loop makes a replay source restart instead of exhausting.
	Loop bool
	// JournalPath is the frame journal to replay.
	JournalPath string

	// Width/Height/FPS parameterize live backends (CSI, synthetic).
	Width  int
	Height int
	FPS    float64
}

// Open constructs the capture backend for the given environment.
//
// Selection order: an explicit Kind in cfg, else the environment
// descriptor (embedded with a CSI bus → CSI capture, otherwise webcam).
// Construction fails with *camflow.SourceUnavailableError when the chosen
// device cannot be opened; the error is never deferred to the first read.
func Open(d env.Descriptor, cfg Config) (camflow.FrameSource, error) {
	kind := cfg.Kind
	if kind == "" || kind == KindAuto {
		if d.IsEmbedded() && d.HasCSI {
			kind = KindCSI
		} else {
			kind = KindWebcam
		}
	}

	switch kind {
	case KindWebcam:
		return OpenWebcam(cfg.Device)
	case KindReplay:
		return OpenReplay(cfg.Directory, cfg.Loop)
	case KindCSI:
		return OpenCSI(CSIConfig{Width: cfg.Width, Height: cfg.Height, FPS: cfg.FPS})
	case KindJournal:
		return OpenJournal(cfg.JournalPath)
	case KindSynthetic:
		return NewSynthetic(cfg.Width, cfg.Height, cfg.FPS), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}
