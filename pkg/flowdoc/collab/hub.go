package collab

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/observability"
)

// Hub defaults.
const (
	DefaultBacklog     = 1024
	DefaultPresenceTTL = 5 * time.Second
)

// Hub is the relay collaboration clients talk to. It serves the websocket
// endpoint for push clients and the polling endpoints for pull clients,
// keyed by collaboration session. Messages are stamped with a per-room
// sequence and kept in a bounded backlog.
type Hub struct {
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	backlog  int
	ttl      time.Duration
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	now      func() time.Time

	mu     sync.Mutex
	rooms  map[string]*room
	closed bool
	wg     sync.WaitGroup
}

type room struct {
	seq     int64
	log     []Message
	peers   map[*peer]struct{}
	seen    map[string]time.Time
	invalid map[string]bool
}

type peer struct {
	session string
	conn    *websocket.Conn
	send    chan Message
	done    chan struct{}
	once    sync.Once
}

func (p *peer) stop() {
	p.once.Do(func() { close(p.done) })
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBacklog bounds the messages kept per room for pollers.
func WithBacklog(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.backlog = n
		}
	}
}

// WithPresenceTTL sets how long a session counts as present after it
// was last heard from.
func WithPresenceTTL(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.ttl = d
		}
	}
}

// WithHubLogger sets the hub logger.
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// WithHubMetrics sets the metrics recorder.
func WithHubMetrics(m observability.MetricsRecorder) HubOption {
	return func(h *Hub) {
		if m != nil {
			h.metrics = m
		}
	}
}

// NewHub creates a hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		backlog: DefaultBacklog,
		ttl:     DefaultPresenceTTL,
		metrics: observability.NoopMetrics{},
		now:     time.Now,
		rooms:   make(map[string]*room),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	h.mux = http.NewServeMux()
	h.mux.HandleFunc("/elsaData", h.handleSocket)
	h.mux.HandleFunc("/get_topics", h.handleTopics)
	h.mux.HandleFunc("/post_topic", h.handlePost)
	h.mux.HandleFunc("/get_presence", h.handlePresence)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// roomLocked returns the room for id, creating it. h.mu must be held.
func (h *Hub) roomLocked(id string) *room {
	rm, ok := h.rooms[id]
	if !ok {
		rm = &room{
			peers:   make(map[*peer]struct{}),
			seen:    make(map[string]time.Time),
			invalid: make(map[string]bool),
		}
		h.rooms[id] = rm
	}
	return rm
}

func (h *Hub) touch(roomID, session string) {
	h.mu.Lock()
	h.roomLocked(roomID).seen[session] = h.now()
	h.mu.Unlock()
}

// Post stamps m with the next sequence of its room, keeps it in the
// backlog and forwards it to every socket peer except the sender.
func (h *Hub) Post(m Message) int64 {
	h.mu.Lock()
	rm := h.roomLocked(m.Session)
	rm.seq++
	m.Sequence = rm.seq
	m.ID = ""
	rm.log = append(rm.log, m)
	if over := len(rm.log) - h.backlog; over > 0 {
		rm.log = slices.Delete(rm.log, 0, over)
	}
	var targets []*peer
	for p := range rm.peers {
		if p.session != m.From {
			targets = append(targets, p)
		}
	}
	h.mu.Unlock()

	h.metrics.RecordCollabMessage(context.Background(), "in", m.Topic)
	for _, p := range targets {
		h.sendTo(p, m)
	}
	return m.Sequence
}

// sendTo queues m for p. A peer that cannot keep up is dropped.
func (h *Hub) sendTo(p *peer, m Message) {
	select {
	case p.send <- m:
	case <-p.done:
	default:
		h.logger.Warn("dropping slow collaboration peer", "session", p.session)
		p.stop()
	}
}

// Since returns the messages of room after seq, skipping those sent by
// session.
func (h *Hub) Since(roomID, session string, seq int64) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	var out []Message
	for _, m := range rm.log {
		if m.Sequence > seq && m.From != session {
			out = append(out, m)
		}
	}
	return out
}

// Presence returns the sessions of room heard from within the TTL.
func (h *Hub) Presence(roomID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	cutoff := h.now().Add(-h.ttl)
	var out []string
	for s, at := range rm.seen {
		if at.After(cutoff) {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

// Invalidate ends every session of room. Socket peers get a
// session-invalid message and are disconnected; pollers get code 3000
// on their next poll.
func (h *Hub) Invalidate(roomID string) {
	h.mu.Lock()
	rm := h.roomLocked(roomID)
	for s := range rm.seen {
		rm.invalid[s] = true
	}
	var peers []*peer
	for p := range rm.peers {
		peers = append(peers, p)
		delete(rm.peers, p)
		delete(rm.invalid, p.session)
	}
	clear(rm.seen)
	h.mu.Unlock()

	for _, p := range peers {
		h.sendTo(p, Message{Topic: topicSessionEnded, Session: roomID, Code: CodeSessionInvalid})
	}
}

// Close disconnects every socket peer and waits for them.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	var peers []*peer
	for _, rm := range h.rooms {
		for p := range rm.peers {
			peers = append(peers, p)
		}
	}
	h.mu.Unlock()

	for _, p := range peers {
		p.stop()
	}
	h.wg.Wait()
	return nil
}

func (h *Hub) handleSocket(w http.ResponseWriter, r *http.Request) {
	session, roomID, ok := sessionParams(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	p := &peer{session: session, conn: conn, send: make(chan Message, 256), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	rm := h.roomLocked(roomID)
	rm.peers[p] = struct{}{}
	rm.seen[session] = h.now()
	h.wg.Add(2)
	h.mu.Unlock()

	go h.writePeer(p)
	go h.readPeer(roomID, p)
}

func (h *Hub) writePeer(p *peer) {
	defer h.wg.Done()
	defer p.conn.Close()
	for {
		select {
		case <-p.done:
			return
		case m := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(m); err != nil || m.Code == CodeSessionInvalid {
				p.stop()
				return
			}
		}
	}
}

func (h *Hub) readPeer(roomID string, p *peer) {
	defer h.wg.Done()
	defer func() {
		p.stop()
		h.mu.Lock()
		if rm, ok := h.rooms[roomID]; ok {
			delete(rm.peers, p)
		}
		h.mu.Unlock()
	}()

	p.conn.SetPingHandler(func(data string) error {
		h.touch(roomID, p.session)
		return p.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	go func() {
		<-p.done
		_ = p.conn.SetReadDeadline(time.Now())
	}()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			h.logger.Debug("bad collaboration message", "session", p.session, "error", err)
			continue
		}
		h.touch(roomID, p.session)
		id := m.ID
		m.Session, m.From = roomID, p.session
		seq := h.Post(m)
		if id != "" {
			h.sendTo(p, Message{Topic: topicAck, Session: roomID, ID: id, Sequence: seq})
		}
	}
}

func (h *Hub) handleTopics(w http.ResponseWriter, r *http.Request) {
	session, roomID, ok := sessionParams(w, r)
	if !ok {
		return
	}
	var seq int64
	if v := r.URL.Query().Get("sequence"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad sequence")
			return
		}
		seq = n
	}

	h.mu.Lock()
	rm := h.roomLocked(roomID)
	if rm.invalid[session] {
		delete(rm.invalid, session)
		h.mu.Unlock()
		writeResponse(w, Response{Code: CodeSessionInvalid, Msg: "session invalid"})
		return
	}
	rm.seen[session] = h.now()
	h.mu.Unlock()

	msgs := h.Since(roomID, session, seq)
	if msgs == nil {
		msgs = []Message{}
	}
	writeData(w, msgs)
}

func (h *Hub) handlePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	session, roomID, ok := sessionParams(w, r)
	if !ok {
		return
	}
	var m Message
	if err := json.NewDecoder(io.LimitReader(r.Body, 8<<20)).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "bad message: "+err.Error())
		return
	}
	h.touch(roomID, session)
	m.Session, m.From = roomID, session
	writeData(w, Posted{Sequence: h.Post(m)})
}

func (h *Hub) handlePresence(w http.ResponseWriter, r *http.Request) {
	_, roomID, ok := sessionParams(w, r)
	if !ok {
		return
	}
	present := h.Presence(roomID)
	if present == nil {
		present = []string{}
	}
	writeData(w, present)
}

func sessionParams(w http.ResponseWriter, r *http.Request) (session, roomID string, ok bool) {
	q := r.URL.Query()
	session, roomID = q.Get("session"), q.Get("collaborationSession")
	if session == "" || roomID == "" {
		writeError(w, http.StatusBadRequest, "session and collaborationSession are required")
		return "", "", false
	}
	return session, roomID, true
}

func writeData(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeResponse(w, Response{Data: data})
}

func writeResponse(w http.ResponseWriter, r Response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(r)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}
