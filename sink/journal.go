package sink

import (
	"fmt"

	"github.com/visiona/camflow"
	"github.com/visiona/camflow/internal/imgcodec"
	"github.com/visiona/camflow/internal/journal"
)

// JournalConfig parameterizes the journal sink.
type JournalConfig struct {
	Path string
	// Fields lists the packet fields the sink requests from the graph.
	// Request only fields the enabled nodes provide.
	Fields []camflow.Field
	// SaveJPEG embeds the encoded frame in each record, which lets the
	// journal be replayed as a source later.
	SaveJPEG    bool
	JPEGQuality int
	// SkipStill skips frames without motion.
	SkipStill bool
}

// Journal appends one msgpack record per completed frame. Journals with
// embedded JPEG frames can be replayed through the journal source for
// offline pipeline runs.
type Journal struct {
	cfg JournalConfig
	w   *journal.Writer
}

// NewJournal creates the journal file, truncating any existing one.
func NewJournal(cfg JournalConfig) (*Journal, error) {
	w, err := journal.NewWriter(cfg.Path)
	if err != nil {
		return nil, err
	}
	return &Journal{cfg: cfg, w: w}, nil
}

func (j *Journal) Name() string { return "journal" }

func (j *Journal) Requests() []camflow.Field { return j.cfg.Fields }

func (j *Journal) Consume(pkt *camflow.FramePacket) error {
	if pkt.Drop {
		return nil
	}
	if j.cfg.SkipStill && !pkt.Motion {
		return nil
	}

	rec := journal.Record{
		FrameID:   pkt.ID,
		Timestamp: pkt.Timestamp,
		TraceID:   pkt.TraceID,
		Width:     pkt.Image.Width,
		Height:    pkt.Image.Height,
		Motion:    pkt.Motion,
		OCRTexts:  pkt.OCRTexts,
	}
	for _, det := range pkt.Detections {
		rec.Detections = append(rec.Detections, journal.DetectionRecord{
			ClassID:    det.ClassID,
			Label:      det.Label,
			Confidence: det.Confidence,
			X1:         det.Box.X1,
			Y1:         det.Box.Y1,
			X2:         det.Box.X2,
			Y2:         det.Box.Y2,
		})
	}
	if j.cfg.SaveJPEG {
		jpeg, err := imgcodec.EncodeJPEG(pkt.Image, j.cfg.JPEGQuality)
		if err != nil {
			return fmt.Errorf("encode frame %d: %w", pkt.ID, err)
		}
		rec.JPEG = jpeg
	}

	return j.w.Append(&rec)
}

func (j *Journal) Close() error { return j.w.Close() }
