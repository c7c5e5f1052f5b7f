package source_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/visiona/camflow"
	"github.com/visiona/camflow/internal/imgcodec"
	"github.com/visiona/camflow/internal/journal"
	"github.com/visiona/camflow/source"
)

// TestJournalReplayKeepsRecordedTimestamps validates that replayed
// frames carry the capture timestamps from the recording, not the read
// instant, and that records without an image payload are skipped.
func TestJournalReplayKeepsRecordedTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.journal")
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	img := &camflow.Image{Data: make([]byte, 4*4*3), Width: 4, Height: 4, Stride: 12}
	jpeg, err := imgcodec.EncodeJPEG(img, 0)
	require.NoError(t, err)

	w, err := journal.NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(&journal.Record{FrameID: 1, Timestamp: base, JPEG: jpeg}))
	// Metadata-only record, no image: replay must skip it.
	require.NoError(t, w.Append(&journal.Record{FrameID: 2, Timestamp: base.Add(time.Second)}))
	require.NoError(t, w.Append(&journal.Record{FrameID: 3, Timestamp: base.Add(2 * time.Second), JPEG: jpeg}))
	require.NoError(t, w.Close())

	src, err := source.OpenJournal(path)
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()

	frame, ts, err := src.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, frame.Width)
	require.True(t, base.Equal(ts))

	_, ts, err = src.Next(ctx)
	require.NoError(t, err)
	require.True(t, base.Add(2*time.Second).Equal(ts))

	_, _, err = src.Next(ctx)
	require.ErrorIs(t, err, camflow.ErrSourceExhausted)

	// Reset replays from the start.
	require.NoError(t, src.Reset())
	_, ts, err = src.Next(ctx)
	require.NoError(t, err)
	require.True(t, base.Equal(ts))
}

// TestJournalUnavailableFailsAtOpen validates construction-time failure
// for a missing journal.
func TestJournalUnavailableFailsAtOpen(t *testing.T) {
	_, err := source.OpenJournal(filepath.Join(t.TempDir(), "missing.journal"))
	var unavailable *camflow.SourceUnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Equal(t, "journal", unavailable.Backend)
}
