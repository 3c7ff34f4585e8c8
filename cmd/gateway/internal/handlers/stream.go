package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/epion-news/epion/internal/annotate"
	"github.com/epion-news/epion/internal/citations"
	"github.com/epion-news/epion/internal/metrics"
	"github.com/epion-news/epion/internal/sources"
)

const (
	streamReadLimit = 64 << 10
	pongWait        = 60 * time.Second
	pingPeriod      = 20 * time.Second
	writeWait       = 10 * time.Second
)

// StreamHandler annotates a chat reply while it is being streamed to the
// client. Each connection accumulates one reply.
type StreamHandler struct {
	svc      *annotate.Service
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewStreamHandler creates a stream handler accepting the given origins.
// "*" or an empty list accepts any origin.
func NewStreamHandler(svc *annotate.Service, allowedOrigins []string, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[u.Scheme+"://"+u.Host]
	}
}

// Client messages.
const (
	msgChunk    = "chunk"
	msgReset    = "reset"
	msgSources  = "sources"
	msgActivate = "activate"
)

type streamRequest struct {
	Type    string           `json:"type"`
	Text    string           `json:"text,omitempty"`
	Source  int              `json:"source,omitempty"`
	Sources []sources.Source `json:"sources,omitempty"`
}

type streamReady struct {
	Type      string `json:"type"`
	StreamID  string `json:"stream_id"`
	Highlight bool   `json:"highlight"`
}

type streamUpdate struct {
	Type       string                    `json:"type"`
	Seq        int                       `json:"seq"`
	Segments   []sources.ResolvedSegment `json:"segments"`
	Tokens     []citations.Token         `json:"tokens"`
	Unresolved []int                     `json:"unresolved"`
}

type streamSource struct {
	Type   string          `json:"type"`
	Source int             `json:"source"`
	Found  bool            `json:"found"`
	Detail *sources.Source `json:"detail,omitempty"`
}

type streamError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// streamSession is owned by the connection's read loop.
type streamSession struct {
	id        string
	highlight bool
	buf       annotate.Buffer
	list      []sources.Source
	tokens    []citations.Token
	seq       int
	out       chan interface{}
	done      <-chan struct{}
}

// Stream handles GET /api/v1/citations/stream (WebSocket). Query parameter
// highlight=false renders static references.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	highlight := true
	if q := r.URL.Query().Get("highlight"); q != "" {
		v, err := strconv.ParseBool(q)
		if err != nil {
			sendError(w, "highlight must be a boolean", http.StatusBadRequest)
			return
		}
		highlight = v
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	metrics.StreamConnections.Inc()
	defer metrics.StreamConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := &streamSession{
		id:        uuid.New().String(),
		highlight: highlight,
		out:       make(chan interface{}, 32),
		done:      ctx.Done(),
	}
	logger := h.logger.With(zap.String("stream_id", sess.id))
	logger.Debug("Stream opened", zap.Bool("highlight", highlight))

	conn.SetReadLimit(streamReadLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	sess.send(streamReady{Type: "ready", StreamID: sess.id, Highlight: highlight})

	// Reader pump
	go func() {
		defer cancel()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("Stream read failed", zap.Error(err))
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(pongWait))

			var req streamRequest
			if err := json.Unmarshal(data, &req); err != nil {
				sess.send(streamError{Type: "error", Error: "Invalid message"})
				continue
			}
			h.handleMessage(ctx, sess, req)
		}
	}()

	// Writer pump
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg := <-sess.out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("Stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) handleMessage(ctx context.Context, sess *streamSession, req streamRequest) {
	switch req.Type {
	case msgChunk:
		metrics.StreamChunks.Inc()
		segments := sess.buf.Append(req.Text)
		ann := h.svc.AnnotateSegments(ctx, segments, sess.list)
		sess.tokens = h.svc.Inline(ctx, sess.buf.Text(), sess.highlight, sess.activate)
		sess.seq++
		sess.send(streamUpdate{
			Type:       "segments",
			Seq:        sess.seq,
			Segments:   ann.Segments,
			Tokens:     sess.tokens,
			Unresolved: ann.Unresolved,
		})

	case msgReset:
		sess.buf.Reset()
		sess.tokens = nil
		sess.seq = 0
		sess.send(map[string]string{"type": "reset"})

	case msgSources:
		sess.list = h.svc.PrepareSources(req.Sources)
		sess.send(map[string]interface{}{"type": "sources", "count": len(sess.list)})

	case msgActivate:
		for _, ref := range citations.References(sess.tokens) {
			if ref.Source == req.Source && ref.Activate() {
				return
			}
		}
		sess.send(streamError{Type: "error", Error: fmt.Sprintf("no interactive reference to source %d", req.Source)})

	default:
		sess.send(streamError{Type: "error", Error: fmt.Sprintf("unknown message type %q", req.Type)})
	}
}

// activate is the click callback bound to interactive references.
func (s *streamSession) activate(source int) {
	metrics.SourceActivations.Inc()
	msg := streamSource{Type: "source", Source: source}
	if src, ok := sources.Lookup(s.list, source); ok {
		msg.Found = true
		msg.Detail = &src
	}
	s.send(msg)
}

func (s *streamSession) send(msg interface{}) {
	select {
	case s.out <- msg:
	case <-s.done:
	}
}
