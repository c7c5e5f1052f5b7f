package infer

import (
	"fmt"
	"os"

	"github.com/mattn/go-tflite"
	"github.com/mattn/go-tflite/delegates/xnnpack"

	"github.com/visiona/camflow"
)

// tfliteDetector runs a quantized int8 model through the TFLite
// interpreter. Used on embedded targets where full-precision ONNX
// inference does not fit the compute budget.
//
// TODO: add the libedgetpu delegate once the deploy image ships the
// runtime, so Coral accelerators are used instead of XNNPack.
type tfliteDetector struct {
	name    string
	model   *tflite.Model
	interp  *tflite.Interpreter
	options *tflite.InterpreterOptions
	cfg     Config
}

func newTFLiteDetector(name, path string, cfg Config) (Detector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &ModelArtifactMissingError{Model: name, Path: path, Quantized: true}
	}

	model := tflite.NewModelFromFile(path)
	if model == nil {
		return nil, fmt.Errorf("model %q: failed to load %s", name, path)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(2)
	options.AddDelegate(xnnpack.New(xnnpack.DelegateOptions{NumThreads: 2}))

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("model %q: failed to create interpreter", name)
	}
	if interp.AllocateTensors() != tflite.OK {
		interp.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("model %q: tensor allocation failed", name)
	}

	return &tfliteDetector{name: name, model: model, interp: interp, options: options, cfg: cfg}, nil
}

func (d *tfliteDetector) Detect(img *camflow.Image) ([]camflow.Detection, error) {
	input := d.interp.GetInputTensor(0)
	inH, inW := input.Dim(1), input.Dim(2)

	copy(input.UInt8s(), resizeRGB(img, inW, inH))

	if d.interp.Invoke() != tflite.OK {
		return nil, fmt.Errorf("model %q: invoke failed", d.name)
	}

	// SSD postprocess layout: boxes [N][ymin,xmin,ymax,xmax], classes,
	// scores, then a single-element count tensor.
	boxes := d.interp.GetOutputTensor(0).Float32s()
	classes := d.interp.GetOutputTensor(1).Float32s()
	scores := d.interp.GetOutputTensor(2).Float32s()
	count := int(d.interp.GetOutputTensor(3).Float32s()[0])
	if count > len(scores) {
		count = len(scores)
	}

	raws := make([]Raw, 0, count)
	for i := 0; i < count; i++ {
		raws = append(raws, Raw{
			ClassID: int(classes[i]),
			Score:   scores[i],
			Box: [4]float32{
				boxes[i*4+1],
				boxes[i*4+0],
				boxes[i*4+3],
				boxes[i*4+2],
			},
		})
	}

	return Standardize(raws, img.Width, img.Height, d.cfg), nil
}

func (d *tfliteDetector) Close() error {
	d.interp.Delete()
	d.options.Delete()
	d.model.Delete()
	return nil
}

// resizeRGB nearest-neighbor resizes a BGR frame into a tightly packed
// RGB uint8 buffer of the interpreter's input shape.
func resizeRGB(img *camflow.Image, w, h int) []uint8 {
	out := make([]uint8, w*h*3)
	for y := 0; y < h; y++ {
		sy := y * img.Height / h
		row := img.Data[sy*img.Stride:]
		for x := 0; x < w; x++ {
			sx := x * img.Width / w
			di := (y*w + x) * 3
			out[di+0] = row[sx*3+2]
			out[di+1] = row[sx*3+1]
			out[di+2] = row[sx*3+0]
		}
	}
	return out
}
