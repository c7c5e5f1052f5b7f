package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/visiona/camflow"
	"github.com/visiona/camflow/internal/imgcodec"
)

const webIndex = `<!DOCTYPE html>
<html>
<head><title>camflow</title></head>
<body style="background:#111;color:#ddd;font-family:monospace">
<h3>camflow live</h3>
<img src="/stream" style="max-width:100%">
<pre id="meta"></pre>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (e) => { document.getElementById("meta").textContent = e.data; };
</script>
</body>
</html>`

// WebConfig parameterizes the web preview sink.
type WebConfig struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string
	// Annotated streams the drawn overlay when present instead of the
	// raw frame. Implies a request for the annotated field.
	Annotated   bool
	JPEGQuality int
	// Fields lists the packet fields the sink requests from the graph.
	// Request only fields the enabled nodes provide.
	Fields []camflow.Field
}

// Web serves the latest frame as an MJPEG stream plus a websocket feed
// of per-frame metadata. A latest-wins slot decouples browsers from the
// pipeline: slow clients miss frames and never cause queueing.
type Web struct {
	cfg    WebConfig
	server *http.Server
	addr   string
	logger *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending *camflow.FramePacket // newest unencoded packet, latest wins
	latest  []byte
	seq     uint64
	closed  bool
	done    chan struct{}

	wsMu    sync.Mutex
	wsConns map[*websocket.Conn]struct{}

	upgrader websocket.Upgrader
}

// NewWeb binds the listen address and starts serving. Binding failures
// surface here, not on first frame.
func NewWeb(cfg WebConfig, logger *slog.Logger) (*Web, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w := &Web{
		cfg:     cfg,
		logger:  logger,
		done:    make(chan struct{}),
		wsConns: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	w.cond = sync.NewCond(&w.mu)

	mux := http.NewServeMux()
	mux.HandleFunc("/", w.handleIndex)
	mux.HandleFunc("/stream", w.handleStream)
	mux.HandleFunc("/ws", w.handleWS)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("web sink listen %s: %w", cfg.Addr, err)
	}

	w.server = &http.Server{Handler: mux}
	w.addr = ln.Addr().String()
	go func() {
		if err := w.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("web sink server stopped", "error", err)
		}
	}()
	go w.encoder()

	logger.Info("web sink listening", "addr", w.addr)
	return w, nil
}

// Addr returns the bound listen address, useful when Addr was ":0".
func (w *Web) Addr() string { return w.addr }

func (w *Web) Name() string { return "web" }

func (w *Web) Requests() []camflow.Field {
	fields := w.cfg.Fields
	if w.cfg.Annotated {
		for _, f := range fields {
			if f == camflow.FieldAnnotated {
				return fields
			}
		}
		fields = append(append([]camflow.Field(nil), fields...), camflow.FieldAnnotated)
	}
	return fields
}

// Consume publishes the packet into the encoder's latest-wins slot and
// returns immediately. JPEG encoding and websocket fan-out run on the
// encoder goroutine, off the delivery path; when encoding falls behind
// the frame rate, intermediate frames are skipped, never queued.
func (w *Web) Consume(pkt *camflow.FramePacket) error {
	if pkt.Drop {
		return nil
	}

	w.mu.Lock()
	if !w.closed {
		w.pending = pkt
		w.cond.Broadcast()
	}
	w.mu.Unlock()
	return nil
}

func (w *Web) encoder() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for w.pending == nil && !w.closed {
			w.cond.Wait()
		}
		if w.pending == nil && w.closed {
			w.mu.Unlock()
			return
		}
		pkt := w.pending
		w.pending = nil
		w.mu.Unlock()

		img := pkt.Image
		if w.cfg.Annotated && pkt.Annotated != nil {
			img = pkt.Annotated
		}
		jpeg, err := imgcodec.EncodeJPEG(img, w.cfg.JPEGQuality)
		if err != nil {
			w.logger.Error("web sink encode failed", "frame_id", pkt.ID, "error", err)
			continue
		}

		w.mu.Lock()
		w.latest = jpeg
		w.seq++
		w.cond.Broadcast()
		w.mu.Unlock()

		w.broadcastMeta(pkt)
	}
}

func (w *Web) broadcastMeta(pkt *camflow.FramePacket) {
	payload, err := json.Marshal(event{
		FrameID:    pkt.ID,
		TraceID:    pkt.TraceID,
		Timestamp:  pkt.Timestamp,
		Motion:     pkt.Motion,
		Detections: pkt.Detections,
		OCRTexts:   pkt.OCRTexts,
	})
	if err != nil {
		return
	}

	w.wsMu.Lock()
	defer w.wsMu.Unlock()
	for conn := range w.wsConns {
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(w.wsConns, conn)
		}
	}
}

func (w *Web) handleIndex(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(rw, r)
		return
	}
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(rw, webIndex)
}

func (w *Web) handleStream(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	var seen uint64
	for {
		w.mu.Lock()
		for w.seq == seen && !w.closed {
			w.cond.Wait()
		}
		if w.closed {
			w.mu.Unlock()
			return
		}
		frame := w.latest
		seen = w.seq
		w.mu.Unlock()

		if _, err := fmt.Fprintf(rw, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
			return
		}
		if _, err := rw.Write(frame); err != nil {
			return
		}
		if _, err := fmt.Fprint(rw, "\r\n"); err != nil {
			return
		}
		if f, ok := rw.(http.Flusher); ok {
			f.Flush()
		}

		select {
		case <-r.Context().Done():
			return
		default:
		}
	}
}

func (w *Web) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	w.wsMu.Lock()
	w.wsConns[conn] = struct{}{}
	w.wsMu.Unlock()

	// Drain control frames; the feed is one-way.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				w.wsMu.Lock()
				delete(w.wsConns, conn)
				w.wsMu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// Close wakes the encoder and stream handlers and shuts the server down.
func (w *Web) Close() error {
	w.mu.Lock()
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()
	<-w.done

	w.wsMu.Lock()
	for conn := range w.wsConns {
		conn.Close()
	}
	w.wsConns = map[*websocket.Conn]struct{}{}
	w.wsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return w.server.Shutdown(ctx)
}
