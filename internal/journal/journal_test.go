package journal_test

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/visiona/camflow/internal/journal"
)

// TestJournalRoundTrip validates that records come back complete and in
// write order, then io.EOF.
func TestJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.journal")

	w, err := journal.NewWriter(path)
	require.NoError(t, err)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, w.Append(&journal.Record{
			FrameID:   i,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			TraceID:   "trace",
			Width:     640,
			Height:    480,
			Motion:    i%2 == 1,
			Detections: []journal.DetectionRecord{
				{X1: 1, Y1: 2, X2: 3, Y2: 4, Confidence: 0.5, ClassID: int(i), Label: "cat"},
			},
			OCRTexts: []string{"AB123"},
			JPEG:     []byte{0xff, 0xd8, byte(i)},
		}))
	}
	require.NoError(t, w.Close())

	r, err := journal.NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	for i := uint64(1); i <= 3; i++ {
		rec, err := r.Next()
		require.NoError(t, err)
		require.Equal(t, i, rec.FrameID)
		require.True(t, base.Add(time.Duration(i)*time.Second).Equal(rec.Timestamp))
		require.Equal(t, 640, rec.Width)
		require.Len(t, rec.Detections, 1)
		require.Equal(t, int(i), rec.Detections[0].ClassID)
		require.Equal(t, []string{"AB123"}, rec.OCRTexts)
		require.Equal(t, []byte{0xff, 0xd8, byte(i)}, rec.JPEG)
	}

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

// TestJournalEmptyFile validates that a journal with no records reads as
// immediate EOF.
func TestJournalEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.journal")

	w, err := journal.NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := journal.NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}
