// Package infer resolves logical model names to detection backends.
//
// A pipeline names models logically ("plates", "wildlife"); the provider
// resolves the artifact and execution runtime for the current environment:
//
//   - desktop: <name>.onnx, full-precision, OpenCV DNN (CUDA when present)
//   - embedded: <name>_int8.tflite, quantized, TFLite interpreter
//
// Every backend's raw output is normalized to an ordered detection list in
// the pipeline's single coordinate convention. Backends never leak their
// native output layout past this package.
package infer

import (
	"fmt"
	"path/filepath"

	"github.com/visiona/camflow"
	"github.com/visiona/camflow/env"
)

// Detector maps an image (or image region) to a standardized detection
// list. Implementations are not safe for concurrent use; the pipeline
// runs nodes sequentially.
type Detector interface {
	Detect(img *camflow.Image) ([]camflow.Detection, error)
	Close() error
}

// Raw is one backend-native detection before standardization. Box is
// normalized [0,1] x1,y1,x2,y2 regardless of what the runtime produced;
// the backend converts its layout into this one.
type Raw struct {
	Box     [4]float32
	Score   float32
	ClassID int
}

// ModelArtifactMissingError reports that the artifact variant required by
// the current target does not exist. The message names the exact expected
// path and the remediation step; it is a configuration error for the
// operator, not a generic file-not-found.
type ModelArtifactMissingError struct {
	Model     string
	Path      string
	Quantized bool
}

func (e *ModelArtifactMissingError) Error() string {
	if e.Quantized {
		return fmt.Sprintf(
			"model %q: quantized artifact missing at %s; export it with `camflow-export --model %s` before deploying to the embedded target",
			e.Model, e.Path, e.Model)
	}
	return fmt.Sprintf(
		"model %q: full-precision artifact missing at %s; place the ONNX export there",
		e.Model, e.Path)
}

// Config parameterizes a Provider.
type Config struct {
	// ModelDir holds the model artifacts, two siblings per logical name.
	ModelDir string
	// Convention fixes the coordinate convention of every detection the
	// provider's detectors emit. Set once per pipeline, never mixed.
	Convention camflow.CoordConvention
	// MinConfidence filters detections below the threshold. Zero keeps all.
	MinConfidence float64
	// Labels maps class IDs to human-readable labels (optional).
	Labels map[int]string
}

// Provider selects the model-execution backend for an environment.
type Provider struct {
	desc env.Descriptor
	cfg  Config
}

// NewProvider creates a provider for the given environment descriptor.
func NewProvider(desc env.Descriptor, cfg Config) *Provider {
	return &Provider{desc: desc, cfg: cfg}
}

// Convention returns the provider's fixed coordinate convention.
func (p *Provider) Convention() camflow.CoordConvention { return p.cfg.Convention }

// ArtifactPath returns the artifact the current target resolves the
// logical name to, without loading it.
func (p *Provider) ArtifactPath(name string) string {
	if p.desc.IsEmbedded() {
		return filepath.Join(p.cfg.ModelDir, name+"_int8.tflite")
	}
	return filepath.Join(p.cfg.ModelDir, name+".onnx")
}

// Detector loads the model behind a logical name with the backend for the
// current environment. Missing artifacts fail here, at construction, with
// *ModelArtifactMissingError.
func (p *Provider) Detector(name string) (Detector, error) {
	path := p.ArtifactPath(name)
	if p.desc.IsEmbedded() {
		return newTFLiteDetector(name, path, p.cfg)
	}
	return newDNNDetector(name, path, p.cfg, p.desc.Accelerator == env.AccelCUDA)
}

// Standardize converts backend-native detections into the pipeline's
// detection records: confidence clamped into [0,1], boxes expressed in the
// configured convention, order and count preserved (K raw in, K out,
// minus any below the confidence threshold).
func Standardize(raws []Raw, imgWidth, imgHeight int, cfg Config) []camflow.Detection {
	out := make([]camflow.Detection, 0, len(raws))
	for _, r := range raws {
		conf := float64(r.Score)
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		if cfg.MinConfidence > 0 && conf < cfg.MinConfidence {
			continue
		}

		box := camflow.Rect{
			X1: clamp01(float64(r.Box[0])),
			Y1: clamp01(float64(r.Box[1])),
			X2: clamp01(float64(r.Box[2])),
			Y2: clamp01(float64(r.Box[3])),
		}
		if cfg.Convention == camflow.CoordPixel {
			box = box.ToPixels(imgWidth, imgHeight)
		}

		out = append(out, camflow.Detection{
			Box:        box,
			Confidence: conf,
			ClassID:    r.ClassID,
			Label:      cfg.Labels[r.ClassID],
		})
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
