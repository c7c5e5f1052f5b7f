// Package journal reads and writes the frame journal: an append-only
// msgpack stream of per-frame records (metadata, detections, OCR text and
// a JPEG copy of the image). A journal written by one pipeline run can be
// replayed deterministically as a frame source in another, which makes
// soak testing possible without camera hardware.
package journal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// DetectionRecord is the persisted form of one detection.
type DetectionRecord struct {
	X1         float64 `msgpack:"x1"`
	Y1         float64 `msgpack:"y1"`
	X2         float64 `msgpack:"x2"`
	Y2         float64 `msgpack:"y2"`
	Confidence float64 `msgpack:"confidence"`
	ClassID    int     `msgpack:"class_id"`
	Label      string  `msgpack:"label,omitempty"`
}

// Record is one journal entry. JPEG holds the encoded frame; Width/Height
// are the decoded dimensions for consumers that skip decoding.
type Record struct {
	FrameID    uint64            `msgpack:"frame_id"`
	Timestamp  time.Time         `msgpack:"timestamp"`
	TraceID    string            `msgpack:"trace_id,omitempty"`
	Width      int               `msgpack:"width"`
	Height     int               `msgpack:"height"`
	Motion     bool              `msgpack:"motion"`
	Detections []DetectionRecord `msgpack:"detections,omitempty"`
	OCRTexts   []string          `msgpack:"ocr_texts,omitempty"`
	JPEG       []byte            `msgpack:"jpeg,omitempty"`
}

// Writer appends records to a journal file.
type Writer struct {
	f   *os.File
	buf *bufio.Writer
	enc *msgpack.Encoder
}

// NewWriter creates (or truncates) a journal at path.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create journal: %w", err)
	}
	buf := bufio.NewWriter(f)
	return &Writer{f: f, buf: buf, enc: msgpack.NewEncoder(buf)}, nil
}

// Append writes one record.
func (w *Writer) Append(rec *Record) error {
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode journal record: %w", err)
	}
	return nil
}

// Close flushes and closes the journal.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Reader iterates a journal file in write order.
type Reader struct {
	f   *os.File
	dec *msgpack.Decoder
}

// NewReader opens a journal for reading.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Reader{f: f, dec: msgpack.NewDecoder(bufio.NewReader(f))}, nil
}

// Next returns the next record, or io.EOF when the journal is drained.
func (r *Reader) Next() (*Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode journal record: %w", err)
	}
	return &rec, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }
