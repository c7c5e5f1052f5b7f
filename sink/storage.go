package sink

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/visiona/camflow"
	"github.com/visiona/camflow/internal/imgcodec"
)

const storageSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS frames (
	session_id  TEXT NOT NULL REFERENCES sessions(id),
	frame_id    INTEGER NOT NULL,
	trace_id    TEXT NOT NULL,
	captured_at TIMESTAMP NOT NULL,
	motion      INTEGER NOT NULL,
	jpeg        BLOB,
	PRIMARY KEY (session_id, frame_id)
);
CREATE TABLE IF NOT EXISTS detections (
	session_id TEXT NOT NULL,
	frame_id   INTEGER NOT NULL,
	idx        INTEGER NOT NULL,
	class_id   INTEGER NOT NULL,
	label      TEXT NOT NULL,
	confidence REAL NOT NULL,
	x1 REAL NOT NULL, y1 REAL NOT NULL, x2 REAL NOT NULL, y2 REAL NOT NULL,
	ocr_text   TEXT,
	PRIMARY KEY (session_id, frame_id, idx),
	FOREIGN KEY (session_id, frame_id) REFERENCES frames(session_id, frame_id)
);
`

// StorageConfig parameterizes the sqlite sink.
type StorageConfig struct {
	// Path is the sqlite database file.
	Path string
	// Fields lists the packet fields the sink requests from the graph.
	// Request only fields the enabled nodes provide; Compile rejects a
	// request nothing can satisfy. Nil requests nothing: frames are
	// still persisted, with whatever the traversal attached.
	Fields []camflow.Field
	// QueueSize bounds the write queue. When full the oldest queued
	// frame is evicted so Consume never blocks. Zero means 64.
	QueueSize int
	// SaveJPEG stores the encoded frame alongside the metadata.
	SaveJPEG bool
	// JPEGQuality for stored frames, <= 0 uses the codec default.
	JPEGQuality int
	// SkipStill skips frames without motion.
	SkipStill bool
}

// Storage persists frames and their detections to sqlite. Writes happen
// on a dedicated goroutine behind a bounded queue; under disk pressure
// the oldest queued frame is evicted, never the newest.
type Storage struct {
	cfg     StorageConfig
	db      *sql.DB
	session string
	logger  *slog.Logger

	mu         sync.Mutex
	queue      []*camflow.FramePacket
	cond       *sync.Cond
	closed     bool
	overflowed uint64
	written    uint64
	errors     uint64

	// beforeWrite, when set, runs on the writer goroutine ahead of each
	// write. Test seam for stalling the writer.
	beforeWrite func()

	done chan struct{}
}

// StorageStats is a snapshot of the sink counters.
type StorageStats struct {
	Pending    int
	Written    uint64
	Overflowed uint64
	Errors     uint64
}

// NewStorage opens the database, applies the schema, starts a session
// row and the writer goroutine.
func NewStorage(cfg StorageConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage %s: %w", cfg.Path, err)
	}
	if _, err := db.Exec(storageSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply storage schema: %w", err)
	}

	session := uuid.NewString()
	if _, err := db.Exec(`INSERT INTO sessions (id, started_at) VALUES (?, ?)`, session, time.Now().UTC()); err != nil {
		db.Close()
		return nil, fmt.Errorf("start storage session: %w", err)
	}

	s := &Storage{
		cfg:     cfg,
		db:      db,
		session: session,
		logger:  logger,
		done:    make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.writer()

	logger.Info("storage session started", "path", cfg.Path, "session", session)
	return s, nil
}

// Session returns the session ID rows are written under.
func (s *Storage) Session() string { return s.session }

func (s *Storage) Name() string { return "storage" }

func (s *Storage) Requests() []camflow.Field { return s.cfg.Fields }

// Consume enqueues the packet and returns immediately. The packet is
// exclusively owned once the traversal finished, so JPEG encoding is
// deferred to the writer goroutine, off the delivery path.
func (s *Storage) Consume(pkt *camflow.FramePacket) error {
	if pkt.Drop {
		return nil
	}
	if s.cfg.SkipStill && !pkt.Motion {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("storage closed")
	}
	if len(s.queue) >= s.cfg.QueueSize {
		s.queue = s.queue[1:]
		s.overflowed++
	}
	s.queue = append(s.queue, pkt)
	s.cond.Signal()
	return nil
}

func (s *Storage) writer() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		pkt := s.queue[0]
		s.queue = s.queue[1:]
		hook := s.beforeWrite
		s.mu.Unlock()

		if hook != nil {
			hook()
		}
		if err := s.write(pkt); err != nil {
			s.mu.Lock()
			s.errors++
			s.mu.Unlock()
			s.logger.Error("storage write failed", "frame_id", pkt.ID, "error", err)
			continue
		}
		s.mu.Lock()
		s.written++
		s.mu.Unlock()
	}
}

func (s *Storage) write(pkt *camflow.FramePacket) error {
	var jpeg []byte
	if s.cfg.SaveJPEG {
		var err error
		jpeg, err = imgcodec.EncodeJPEG(pkt.Image, s.cfg.JPEGQuality)
		if err != nil {
			return fmt.Errorf("encode frame %d: %w", pkt.ID, err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO frames (session_id, frame_id, trace_id, captured_at, motion, jpeg) VALUES (?, ?, ?, ?, ?, ?)`,
		s.session, pkt.ID, pkt.TraceID, pkt.Timestamp.UTC(), boolInt(pkt.Motion), jpeg,
	); err != nil {
		return fmt.Errorf("insert frame: %w", err)
	}

	// OCR texts align with regions; regions carry their detection index.
	ocrByDet := make(map[int]string, len(pkt.OCRTexts))
	for i, region := range pkt.Regions {
		if i < len(pkt.OCRTexts) {
			ocrByDet[region.DetectionIndex] = pkt.OCRTexts[i]
		}
	}

	for i, det := range pkt.Detections {
		var ocr any
		if text, ok := ocrByDet[i]; ok {
			ocr = text
		}
		if _, err := tx.Exec(
			`INSERT INTO detections (session_id, frame_id, idx, class_id, label, confidence, x1, y1, x2, y2, ocr_text)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.session, pkt.ID, i, det.ClassID, det.Label, det.Confidence,
			det.Box.X1, det.Box.Y1, det.Box.X2, det.Box.Y2, ocr,
		); err != nil {
			return fmt.Errorf("insert detection %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Close drains the queue and closes the database.
func (s *Storage) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	<-s.done
	return s.db.Close()
}

// Stats returns a snapshot of the sink counters.
func (s *Storage) Stats() StorageStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StorageStats{
		Pending:    len(s.queue),
		Written:    s.written,
		Overflowed: s.overflowed,
		Errors:     s.errors,
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
