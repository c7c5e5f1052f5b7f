package infer_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visiona/camflow"
	"github.com/visiona/camflow/env"
	"github.com/visiona/camflow/infer"
)

func testImage(w, h int) *camflow.Image {
	return &camflow.Image{Data: make([]byte, w*h*3), Width: w, Height: h, Stride: w * 3}
}

// TestStandardizePreservesCountAndOrder validates the backend contract:
// K raw detections standardize to K records in the same order.
func TestStandardizePreservesCountAndOrder(t *testing.T) {
	raws := []infer.Raw{
		{Box: [4]float32{0.1, 0.1, 0.2, 0.2}, Score: 0.9, ClassID: 3},
		{Box: [4]float32{0.5, 0.5, 0.8, 0.9}, Score: 0.6, ClassID: 1},
		{Box: [4]float32{0, 0, 1, 1}, Score: 0.3, ClassID: 0},
	}
	cfg := infer.Config{
		Convention: camflow.CoordNormalized,
		Labels:     map[int]string{3: "plate"},
	}

	dets := infer.Standardize(raws, 640, 480, cfg)
	require.Len(t, dets, 3)
	require.Equal(t, 3, dets[0].ClassID)
	require.Equal(t, "plate", dets[0].Label)
	require.Equal(t, 1, dets[1].ClassID)
	require.InDelta(t, 0.9, dets[0].Confidence, 1e-6)
}

// TestStandardizeClampsConfidenceAndBoxes validates clamping: confidence
// lands in [0,1] and boxes stay inside the frame.
func TestStandardizeClampsConfidenceAndBoxes(t *testing.T) {
	raws := []infer.Raw{
		{Box: [4]float32{-0.2, -0.1, 1.4, 1.1}, Score: 1.7},
		{Box: [4]float32{0.2, 0.2, 0.4, 0.4}, Score: -0.5},
	}
	cfg := infer.Config{Convention: camflow.CoordPixel}

	dets := infer.Standardize(raws, 100, 100, cfg)
	require.Len(t, dets, 2)

	require.Equal(t, 1.0, dets[0].Confidence)
	require.Equal(t, 0.0, dets[1].Confidence)
	require.Equal(t, camflow.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}, dets[0].Box)
}

// TestStandardizeAppliesThresholdAndConvention validates filtering plus
// pixel conversion.
func TestStandardizeAppliesThresholdAndConvention(t *testing.T) {
	raws := []infer.Raw{
		{Box: [4]float32{0.25, 0.5, 0.75, 1}, Score: 0.8},
		{Box: [4]float32{0, 0, 0.1, 0.1}, Score: 0.2},
	}
	cfg := infer.Config{Convention: camflow.CoordPixel, MinConfidence: 0.5}

	dets := infer.Standardize(raws, 640, 480, cfg)
	require.Len(t, dets, 1)
	require.Equal(t, camflow.Rect{X1: 160, Y1: 240, X2: 480, Y2: 480}, dets[0].Box)
}

// TestMissingQuantizedArtifact validates the embedded failure mode: a
// logical model without its int8 artifact fails at construction with an
// error naming the exact expected path.
func TestMissingQuantizedArtifact(t *testing.T) {
	dir := t.TempDir()
	p := infer.NewProvider(env.Descriptor{Platform: env.Embedded}, infer.Config{ModelDir: dir})

	_, err := p.Detector("wildlife")
	var missing *infer.ModelArtifactMissingError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "wildlife", missing.Model)
	require.True(t, missing.Quantized)
	require.Equal(t, filepath.Join(dir, "wildlife_int8.tflite"), missing.Path)
	require.Contains(t, err.Error(), missing.Path)
}

// TestArtifactPathPerPlatform validates logical-name resolution.
func TestArtifactPathPerPlatform(t *testing.T) {
	cfg := infer.Config{ModelDir: "/models"}

	desktop := infer.NewProvider(env.Descriptor{Platform: env.Desktop}, cfg)
	require.Equal(t, filepath.Join("/models", "plates.onnx"), desktop.ArtifactPath("plates"))

	embedded := infer.NewProvider(env.Descriptor{Platform: env.Embedded}, cfg)
	require.Equal(t, filepath.Join("/models", "plates_int8.tflite"), embedded.ArtifactPath("plates"))
}

// TestStubDetectorRunsStandardization validates that the stub goes
// through the same standardization path as real backends.
func TestStubDetectorRunsStandardization(t *testing.T) {
	stub := infer.NewStub([]infer.Raw{
		{Box: [4]float32{0.1, 0.2, 0.3, 0.4}, Score: 0.7, ClassID: 2},
	}, infer.Config{Convention: camflow.CoordPixel, Labels: map[int]string{2: "cat"}})

	dets, err := stub.Detect(testImage(100, 200))
	require.NoError(t, err)
	require.Len(t, dets, 1)
	require.Equal(t, "cat", dets[0].Label)
	require.InDelta(t, 10, dets[0].Box.X1, 1e-6)
	require.InDelta(t, 40, dets[0].Box.Y1, 1e-6)
	require.Equal(t, 1, stub.Calls())
}
