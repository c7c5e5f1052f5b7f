package nodes_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visiona/camflow"
	"github.com/visiona/camflow/nodes"
)

func packetWithDetections(dets ...camflow.Detection) *camflow.FramePacket {
	w, h := 32, 32
	return &camflow.FramePacket{
		ID:         1,
		Image:      &camflow.Image{Data: make([]byte, w*h*3), Width: w, Height: h, Stride: w * 3},
		Detections: dets,
	}
}

// TestCropExtractsOneRegionPerDetection validates the region contract:
// each region points back at its detection by index.
func TestCropExtractsOneRegionPerDetection(t *testing.T) {
	pkt := packetWithDetections(
		camflow.Detection{Box: camflow.Rect{X1: 0, Y1: 0, X2: 8, Y2: 8}},
		camflow.Detection{Box: camflow.Rect{X1: 16, Y1: 16, X2: 24, Y2: 28}},
	)

	crop := nodes.NewCrop(nodes.CropConfig{Convention: camflow.CoordPixel})
	require.NoError(t, crop.Process(pkt))

	require.Len(t, pkt.Regions, 2)
	require.Equal(t, 0, pkt.Regions[0].DetectionIndex)
	require.Equal(t, 1, pkt.Regions[1].DetectionIndex)
	require.Equal(t, 8, pkt.Regions[0].Image.Width)
	require.Equal(t, 12, pkt.Regions[1].Image.Height)
}

// TestCropConvertsNormalizedBoxes validates convention handling.
func TestCropConvertsNormalizedBoxes(t *testing.T) {
	pkt := packetWithDetections(
		camflow.Detection{Box: camflow.Rect{X1: 0.25, Y1: 0.25, X2: 0.75, Y2: 0.75}},
	)

	crop := nodes.NewCrop(nodes.CropConfig{Convention: camflow.CoordNormalized})
	require.NoError(t, crop.Process(pkt))

	require.Len(t, pkt.Regions, 1)
	require.Equal(t, 16, pkt.Regions[0].Image.Width)
	require.Equal(t, 16, pkt.Regions[0].Image.Height)
}

// TestCropSkipsDegenerateBoxes validates that zero-area boxes produce no
// region instead of an empty image.
func TestCropSkipsDegenerateBoxes(t *testing.T) {
	pkt := packetWithDetections(
		camflow.Detection{Box: camflow.Rect{X1: 5, Y1: 5, X2: 5, Y2: 5}},
		camflow.Detection{Box: camflow.Rect{X1: 0, Y1: 0, X2: 4, Y2: 4}},
	)

	crop := nodes.NewCrop(nodes.CropConfig{Convention: camflow.CoordPixel})
	require.NoError(t, crop.Process(pkt))

	require.Len(t, pkt.Regions, 1)
	require.Equal(t, 1, pkt.Regions[0].DetectionIndex)
}

// TestCropPadding validates box expansion with clamping at the frame
// border.
func TestCropPadding(t *testing.T) {
	pkt := packetWithDetections(
		camflow.Detection{Box: camflow.Rect{X1: 10, Y1: 10, X2: 20, Y2: 20}},
	)

	crop := nodes.NewCrop(nodes.CropConfig{Convention: camflow.CoordPixel, Pad: 0.1})
	require.NoError(t, crop.Process(pkt))

	require.Len(t, pkt.Regions, 1)
	require.Equal(t, 12, pkt.Regions[0].Image.Width)
	require.Equal(t, 12, pkt.Regions[0].Image.Height)
}
