package camflow

import "time"

// CoordConvention selects how bounding-box coordinates are expressed.
// It is fixed once at pipeline-configuration time and never mixed across
// nodes within one pipeline.
type CoordConvention int

const (
	// CoordPixel expresses boxes in absolute pixel coordinates.
	CoordPixel CoordConvention = iota
	// CoordNormalized expresses boxes in [0,1] relative to frame size.
	CoordNormalized
)

func (c CoordConvention) String() string {
	if c == CoordNormalized {
		return "normalized"
	}
	return "pixel"
}

// Image is a raw frame buffer in BGR24 layout.
//
// IMMUTABILITY CONTRACT: once an Image is attached to a FramePacket the
// buffer is shared by reference across nodes and sinks for the duration of
// one graph traversal. Nodes MUST NOT write into Data; a node that needs
// to annotate must Clone() first (copy-on-demand, not copy-by-default).
type Image struct {
	// Data holds pixels row-major, 3 bytes per pixel (B, G, R).
	Data []byte
	// Width in pixels.
	Width int
	// Height in pixels.
	Height int
	// Stride is the byte distance between rows (>= Width*3).
	Stride int
}

// Clone returns a deep copy of the image. The copy is exclusively owned by
// the caller and safe to draw on.
func (im *Image) Clone() *Image {
	data := make([]byte, len(im.Data))
	copy(data, im.Data)
	return &Image{Data: data, Width: im.Width, Height: im.Height, Stride: im.Stride}
}

// Crop returns a deep copy of the sub-image described by r, clamped to the
// image bounds. The rectangle must be in pixel coordinates.
func (im *Image) Crop(r Rect) *Image {
	x1, y1, x2, y2 := int(r.X1), int(r.Y1), int(r.X2), int(r.Y2)
	if x1 < 0 {
		x1 = 0
	}
	if y1 < 0 {
		y1 = 0
	}
	if x2 > im.Width {
		x2 = im.Width
	}
	if y2 > im.Height {
		y2 = im.Height
	}
	if x2 <= x1 || y2 <= y1 {
		return &Image{Width: 0, Height: 0, Stride: 0, Data: nil}
	}

	w, h := x2-x1, y2-y1
	stride := w * 3
	data := make([]byte, stride*h)
	for row := 0; row < h; row++ {
		srcOff := (y1+row)*im.Stride + x1*3
		copy(data[row*stride:(row+1)*stride], im.Data[srcOff:srcOff+stride])
	}
	return &Image{Data: data, Width: w, Height: h, Stride: stride}
}

// Rect is a bounding box [x1, y1, x2, y2]. Whether the values are pixels
// or normalized fractions is decided by the pipeline's CoordConvention.
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns X2-X1.
func (r Rect) Width() float64 { return r.X2 - r.X1 }

// Height returns Y2-Y1.
func (r Rect) Height() float64 { return r.Y2 - r.Y1 }

// ToPixels converts a normalized rect to pixel coordinates for the given
// frame size. A rect already in pixels must not be converted again.
func (r Rect) ToPixels(frameWidth, frameHeight int) Rect {
	return Rect{
		X1: r.X1 * float64(frameWidth),
		Y1: r.Y1 * float64(frameHeight),
		X2: r.X2 * float64(frameWidth),
		Y2: r.Y2 * float64(frameHeight),
	}
}

// Detection is one standardized detection record.
type Detection struct {
	Box        Rect    `json:"box"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
	Label      string  `json:"label,omitempty"`
}

// Region is a sub-image derived from a detection (e.g. a cropped plate).
// DetectionIndex points back into FramePacket.Detections.
type Region struct {
	Image          *Image
	DetectionIndex int
}

// FramePacket is the per-frame state aggregate threaded through the graph.
//
// A packet is created once per captured frame by the Runner and discarded
// after one traversal; there is no packet caching or replay. Fields are
// append-only: Detections keeps insertion order and is never reordered,
// OCRTexts is index-aligned with Regions.
type FramePacket struct {
	// ID is strictly increasing within one source's lifetime, never reused.
	ID uint64
	// Timestamp is the capture instant. time.Time carries a monotonic
	// reading, so interval math is safe against wall-clock jumps.
	Timestamp time.Time
	// TraceID correlates this packet across logs, sinks and emitted events.
	TraceID string

	// Image is the capture buffer. See Image for the sharing contract.
	Image *Image
	// Annotated is an optional display copy with boxes/labels drawn on it.
	// Produced by a drawing node; nil when no drawing node ran.
	Annotated *Image

	Detections []Detection
	Regions    []Region
	OCRTexts   []string

	// Motion reports whether a motion node saw activity on this frame.
	Motion bool

	// Drop marks the packet void for sinks. Once set it is never cleared.
	// Remaining nodes on a requested path still execute; the flag is a
	// sink-visible contract, not an early-exit guarantee.
	Drop bool
}
