// Package env describes the execution environment a pipeline runs in.
//
// Backend selection (capture, inference, display) is driven by an explicit
// Descriptor value passed at construction time, never by runtime type
// inspection. Probe() builds one from the running host; tests and
// deployments inject their own.
package env

import (
	"os"
	"runtime"
	"strings"
)

// Platform is the deployment target class.
type Platform string

const (
	// Desktop is a development machine: webcam or file replay capture,
	// full-precision model runtime.
	Desktop Platform = "desktop"
	// Embedded is a single-board edge device: camera-bus capture,
	// quantized interpreter runtime.
	Embedded Platform = "embedded"
)

// Accelerator is the available inference accelerator, if any.
type Accelerator string

const (
	AccelNone    Accelerator = "none"
	AccelCUDA    Accelerator = "cuda"
	AccelEdgeTPU Accelerator = "edgetpu"
)

// Descriptor captures everything backend selection needs to know about
// the host. It is a plain value: construct fakes freely in tests.
type Descriptor struct {
	Platform    Platform
	Arch        string
	HasCSI      bool
	Accelerator Accelerator
}

// IsEmbedded reports whether the descriptor targets an edge device.
func (d Descriptor) IsEmbedded() bool { return d.Platform == Embedded }

const deviceTreeModel = "/proc/device-tree/model"

// Probe inspects the running host and returns its descriptor.
//
// Detection is deliberately coarse: a Raspberry Pi (or other ARM board
// exposing a device-tree model) counts as embedded with a CSI camera bus,
// everything else as desktop. Explicit configuration overrides the probe;
// see config.Environment.
func Probe() Descriptor {
	d := Descriptor{
		Platform:    Desktop,
		Arch:        runtime.GOARCH,
		Accelerator: AccelNone,
	}

	if model, err := os.ReadFile(deviceTreeModel); err == nil {
		if strings.Contains(string(model), "Raspberry Pi") {
			d.Platform = Embedded
			d.HasCSI = true
		}
	}

	if _, err := os.Stat("/dev/apex_0"); err == nil {
		d.Accelerator = AccelEdgeTPU
	} else if _, err := os.Stat("/dev/nvidia0"); err == nil {
		d.Accelerator = AccelCUDA
	}

	return d
}
