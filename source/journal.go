package source

import (
	"context"
	"io"
	"time"

	"github.com/visiona/camflow"
	"github.com/visiona/camflow/internal/imgcodec"
	"github.com/visiona/camflow/internal/journal"
)

func decodeJPEG(data []byte) (*camflow.Image, error) {
	return imgcodec.DecodeBytes(data)
}

// Journal replays frames recorded by a JournalSink. Like Replay it is
// finite and deterministic: the recorded frames in write order, then
// camflow.ErrSourceExhausted. Reset restarts from the beginning.
type Journal struct {
	path   string
	reader *journal.Reader
	decode func([]byte) (*camflow.Image, error)
}

// OpenJournal opens a recorded frame journal for replay. An unreadable
// journal is a *camflow.SourceUnavailableError at construction time.
func OpenJournal(path string) (*Journal, error) {
	r, err := journal.NewReader(path)
	if err != nil {
		return nil, &camflow.SourceUnavailableError{Backend: "journal", Device: path, Err: err}
	}
	return &Journal{path: path, reader: r, decode: decodeJPEG}, nil
}

// Next returns the next recorded frame with its recorded capture
// timestamp, so downstream interval math sees the original pacing.
// Records without an image payload are skipped.
func (j *Journal) Next(ctx context.Context) (*camflow.Image, time.Time, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, time.Time{}, err
		}
		rec, err := j.reader.Next()
		if err == io.EOF {
			return nil, time.Time{}, camflow.ErrSourceExhausted
		}
		if err != nil {
			return nil, time.Time{}, err
		}
		if len(rec.JPEG) == 0 {
			continue
		}
		img, err := j.decode(rec.JPEG)
		if err != nil {
			return nil, time.Time{}, err
		}
		return img, rec.Timestamp, nil
	}
}

// Reset reopens the journal from the first record.
func (j *Journal) Reset() error {
	if err := j.reader.Close(); err != nil {
		return err
	}
	r, err := journal.NewReader(j.path)
	if err != nil {
		return err
	}
	j.reader = r
	return nil
}

// Close closes the journal file.
func (j *Journal) Close() error { return j.reader.Close() }
