package infer

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"github.com/visiona/camflow"
)

const dnnInputSize = 300

// dnnDetector runs a full-precision ONNX model through the OpenCV DNN
// module. Used on desktop targets; the CUDA backend is selected when the
// environment probe found an NVIDIA device.
type dnnDetector struct {
	name string
	net  gocv.Net
	cfg  Config
}

func newDNNDetector(name, path string, cfg Config, cuda bool) (Detector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &ModelArtifactMissingError{Model: name, Path: path}
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("model %q: failed to load network from %s", name, path)
	}

	backend, target := gocv.NetBackendDefault, gocv.NetTargetCPU
	if cuda {
		backend, target = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	}
	if err := net.SetPreferableBackend(backend); err != nil {
		net.Close()
		return nil, fmt.Errorf("model %q: set backend: %w", name, err)
	}
	if err := net.SetPreferableTarget(target); err != nil {
		net.Close()
		return nil, fmt.Errorf("model %q: set target: %w", name, err)
	}

	return &dnnDetector{name: name, net: net, cfg: cfg}, nil
}

func (d *dnnDetector) Detect(img *camflow.Image) ([]camflow.Detection, error) {
	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Data)
	if err != nil {
		return nil, fmt.Errorf("model %q: wrap frame: %w", d.name, err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0,
		image.Pt(dnnInputSize, dnnInputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// SSD-style output: rows of [batch, class, score, x1, y1, x2, y2]
	// with coordinates normalized to the input image.
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	raws := make([]Raw, 0, rows.Rows())
	for i := 0; i < rows.Rows(); i++ {
		raws = append(raws, Raw{
			ClassID: int(rows.GetFloatAt(i, 1)),
			Score:   rows.GetFloatAt(i, 2),
			Box: [4]float32{
				rows.GetFloatAt(i, 3),
				rows.GetFloatAt(i, 4),
				rows.GetFloatAt(i, 5),
				rows.GetFloatAt(i, 6),
			},
		})
	}

	return Standardize(raws, img.Width, img.Height, d.cfg), nil
}

func (d *dnnDetector) Close() error {
	return d.net.Close()
}
