// Package imgcodec converts between the pipeline's raw BGR24 buffers and
// encoded images. It is pure Go (stdlib image codecs) so replay sources,
// the web sink and the journal work on headless hosts without OpenCV.
package imgcodec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/visiona/camflow"
)

// DefaultJPEGQuality is used wherever a caller passes quality <= 0.
const DefaultJPEGQuality = 85

// Decode reads any registered image format into a BGR24 buffer.
func Decode(r io.Reader) (*camflow.Image, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return FromImage(src), nil
}

// DecodeFile reads an image file into a BGR24 buffer.
func DecodeFile(path string) (*camflow.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// DecodeBytes decodes an encoded image held in memory.
func DecodeBytes(data []byte) (*camflow.Image, error) {
	return Decode(bytes.NewReader(data))
}

// FromImage converts a decoded stdlib image to BGR24.
func FromImage(src image.Image) *camflow.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	stride := w * 3
	data := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		off := y * stride
		for x := 0; x < w; x++ {
			r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			data[off] = byte(bl >> 8)
			data[off+1] = byte(g >> 8)
			data[off+2] = byte(r >> 8)
			off += 3
		}
	}
	return &camflow.Image{Data: data, Width: w, Height: h, Stride: stride}
}

// ToImage wraps a BGR24 buffer as a stdlib RGBA image (copying).
func ToImage(img *camflow.Image) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		src := y * img.Stride
		dst := y * out.Stride
		for x := 0; x < img.Width; x++ {
			out.Pix[dst] = img.Data[src+2]
			out.Pix[dst+1] = img.Data[src+1]
			out.Pix[dst+2] = img.Data[src]
			out.Pix[dst+3] = 0xff
			src += 3
			dst += 4
		}
	}
	return out
}

// EncodeJPEG encodes a BGR24 buffer as JPEG.
func EncodeJPEG(img *camflow.Image, quality int) ([]byte, error) {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, ToImage(img), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes a BGR24 buffer as PNG. Lossless, used where encoded
// regions feed further recognition.
func EncodePNG(img *camflow.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, ToImage(img)); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
