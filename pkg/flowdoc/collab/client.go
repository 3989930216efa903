package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc"
	fderrors "github.com/randalmurphal/flowdoc/pkg/flowdoc/errors"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/event"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/ident"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/observability"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// State is the connection state of a Client.
type State string

const (
	StateRunning State = "running"
	StateClosed  State = "closed"
)

// Sentinel errors.
var (
	ErrClosed       = errors.New("collaboration client closed")
	ErrNotConnected = errors.New("collaboration client not connected")
)

// Invocation is a change to share with the other sessions.
type Invocation struct {
	// Method is the wire method, e.g. MethodNewShape.
	Method string
	Page   string
	Shape  string
	// Value is encoded as JSON; shapes and pages encode as stored.
	Value any
}

// Client shares changes of one graph with the other sessions of a
// collaboration session. Remote changes are applied to the graph on
// receipt, last write wins.
type Client struct {
	cfg  config
	base *url.URL

	mu       sync.Mutex
	graph    *flowdoc.Graph
	state    State
	cur      *session
	seq      int64
	presence []string
	pending  map[string]func(Reply)
	subs     map[string][]*subscriber
	nextSub  int
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type subscriber struct {
	id int
	fn func(Message)
}

// session is one connection incarnation. Reconnecting replaces it.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	out    chan Message
	once   sync.Once
}

// New creates a client for g talking to the hub at baseURL
// (http or https).
func New(baseURL string, g *flowdoc.Graph, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("collab: base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("collab: base url %q: scheme must be http or https", baseURL)
	}
	if g == nil {
		return nil, errors.New("collab: nil graph")
	}

	cfg := config{
		mode:          ModePush,
		pollInterval:  DefaultPollInterval,
		pingInterval:  DefaultPingInterval,
		maxReconnects: DefaultMaxReconnects,
		backoffMin:    DefaultBackoffMin,
		backoffMax:    DefaultBackoffMax,
		queueSize:     DefaultQueueSize,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		dialer:        &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		emitter:       event.Discard,
		metrics:       observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.mode != ModePush && cfg.mode != ModePull {
		return nil, fmt.Errorf("collab: unknown mode %q", cfg.mode)
	}
	if cfg.session == "" {
		cfg.session = ident.Session()
	}
	if cfg.collab == "" {
		cfg.collab = g.ID
	}

	return &Client{
		cfg:     cfg,
		base:    base,
		graph:   g,
		state:   StateClosed,
		pending: make(map[string]func(Reply)),
		subs:    make(map[string][]*subscriber),
	}, nil
}

// Session returns this client's session id.
func (c *Client) Session() string { return c.cfg.session }

// CollaborationSession returns the shared session id.
func (c *Client) CollaborationSession() string { return c.cfg.collab }

// Mode returns the transport mode.
func (c *Client) Mode() Mode { return c.cfg.mode }

// State returns the connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Sequence returns the highest sequence received.
func (c *Client) Sequence() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Presence returns the sessions last reported present. Push mode only.
func (c *Client) Presence() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.presence)
}

// Connect starts the transport and returns without waiting for it. Push
// mode dials in the background; pull mode starts polling. Values of ctx
// are kept; its cancellation is not, use Close.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.ctx != nil {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Unlock()

	s := c.newSession()
	switch c.cfg.mode {
	case ModePush:
		c.spawn(s, func() {
			conn, err := c.dial(s.ctx)
			if err != nil {
				c.lost(s, err)
				return
			}
			c.runPush(s, conn)
		})
	case ModePull:
		c.runPull(s)
	}
	return nil
}

func (c *Client) newSession() *session {
	s := &session{out: make(chan Message, c.cfg.queueSize)}
	s.ctx, s.cancel = context.WithCancel(c.ctx)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		s.cancel()
		return s
	}
	c.cur = s
	c.mu.Unlock()
	c.setState(StateRunning)
	return s
}

// spawn runs fn as a goroutine owned by both the client and s.
func (c *Client) spawn(s *session, fn func()) {
	c.wg.Add(1)
	s.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer s.wg.Done()
		fn()
	}()
}

func (c *Client) setState(st State) {
	c.mu.Lock()
	if c.state == st {
		c.mu.Unlock()
		return
	}
	c.state = st
	c.mu.Unlock()

	observability.LogCollabState(c.cfg.logger, c.cfg.session, string(c.cfg.mode), string(st))
	c.publish(event.New(event.TypeCollabState, "collab", c.cfg.collab, event.StatePayload{
		Session: c.cfg.session,
		Mode:    string(c.cfg.mode),
		State:   string(st),
	}))
}

// Subscribe registers fn for messages on a local topic, or on the raw
// topic of unmapped remote messages. fn runs synchronously.
func (c *Client) Subscribe(topic string, fn func(Message)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[topic] = append(c.subs[topic], &subscriber{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		c.subs[topic] = slices.DeleteFunc(c.subs[topic], func(s *subscriber) bool { return s.id == id })
		c.mu.Unlock()
	}
}

func (c *Client) deliver(topic string, m Message) {
	c.mu.Lock()
	subs := slices.Clone(c.subs[topic])
	c.mu.Unlock()
	for _, s := range subs {
		s.fn(m)
	}
}

// Invoke shares a change. Page-scoped changes with a mapped method are
// delivered to local subscribers before anything is sent. Sending is
// fire-and-forget; cb, when given, is called exactly once with the
// hub's sequence or the error.
func (c *Client) Invoke(ctx context.Context, inv Invocation, cb func(Reply)) error {
	m := Message{
		Topic:   inv.Method,
		Session: c.cfg.collab,
		From:    c.cfg.session,
		Page:    inv.Page,
		Shape:   inv.Shape,
	}
	if inv.Value != nil {
		raw, err := json.Marshal(inv.Value)
		if err != nil {
			return fmt.Errorf("invoke %s: %w", inv.Method, err)
		}
		m.Value = raw
	}

	if topic, ok := LocalTopic(inv.Method); ok && inv.Page != "" {
		c.deliver(topic, m)
		c.publishChange(topic, m, false)
	}

	c.mu.Lock()
	closed, s := c.closed, c.cur
	c.mu.Unlock()
	var err error
	switch {
	case closed:
		err = ErrClosed
	case s == nil:
		err = ErrNotConnected
	}
	if err != nil {
		if cb != nil {
			cb(Reply{Err: err})
		}
		return err
	}

	c.cfg.metrics.RecordCollabMessage(ctx, "out", m.Topic)
	if c.cfg.mode == ModePull {
		c.post(s, m, cb)
		return nil
	}
	return c.enqueue(s, m, cb)
}

// receive handles a message from the hub.
func (c *Client) receive(ctx context.Context, m Message) {
	if m.From == c.cfg.session {
		return
	}
	c.mu.Lock()
	if m.Sequence > c.seq {
		c.seq = m.Sequence
	}
	g := c.graph
	c.mu.Unlock()

	c.cfg.metrics.RecordCollabMessage(ctx, "in", m.Topic)
	if g != nil {
		if err := apply(g, m); err != nil {
			c.reportError(ctx, "apply", err)
		}
	}
	topic, mapped := LocalTopic(m.Topic)
	if !mapped {
		topic = m.Topic
	}
	c.deliver(topic, m)
	if mapped {
		c.publishChange(topic, m, true)
	}
}

// apply writes a remote change into g. The newest message wins.
func apply(g *flowdoc.Graph, m Message) error {
	switch m.Topic {
	case MethodNewPage:
		if g.Page(m.Page) != nil {
			return nil
		}
		p := g.NewPage(m.Page)
		if len(m.Value) > 0 {
			if err := p.Deserialize(m.Value); err != nil {
				return err
			}
		}
		return g.InsertPage(p, -1)
	case MethodPageRemoved:
		if err := g.RemovePage(m.Page); err != nil && !errors.Is(err, flowdoc.ErrPageNotFound) {
			return err
		}
		return nil
	case MethodPageUpdated:
		p := g.Page(m.Page)
		if p == nil {
			return fmt.Errorf("page %s: %w", m.Page, flowdoc.ErrPageNotFound)
		}
		return p.Deserialize(m.Value)
	case MethodNewShape, MethodShapeUpdated:
		p := g.Page(m.Page)
		if p == nil {
			return fmt.Errorf("page %s: %w", m.Page, flowdoc.ErrPageNotFound)
		}
		var s shape.Shape
		if err := json.Unmarshal(m.Value, &s); err != nil {
			return fmt.Errorf("decode shape: %w", err)
		}
		if p.ShapeByID(s.ID) != nil {
			return p.Replace(&s)
		}
		return p.Insert(&s, -1)
	case MethodShapeRemoved:
		p := g.Page(m.Page)
		if p == nil {
			return nil
		}
		if _, _, err := p.Remove(m.Shape); err != nil && !errors.Is(err, flowdoc.ErrShapeNotFound) {
			return err
		}
		return nil
	}
	return nil
}

func (c *Client) publishChange(topic string, m Message, remote bool) {
	typ := topicEvents[topic]
	var evt event.Event
	if m.Shape != "" || topic == TopicShapeAdded || topic == TopicShapeUpdated {
		evt = event.New(typ, "collab", c.cfg.collab, event.ShapePayload{PageID: m.Page, ShapeID: m.Shape, Remote: remote})
	} else {
		evt = event.New(typ, "collab", c.cfg.collab, event.PagePayload{PageID: m.Page, Remote: remote})
	}
	c.publish(evt)
}

func (c *Client) publish(evt event.Event) {
	_ = c.cfg.emitter.Publish(context.Background(), evt)
}

// reportError logs err and publishes it as error.occurred.
func (c *Client) reportError(ctx context.Context, op string, err error) {
	observability.LogCollabError(c.cfg.logger, c.cfg.session, op, err)
	code := 0
	var te *fderrors.TransportError
	if errors.As(err, &te) {
		code = te.Code
	}
	var he *fderrors.HTTPError
	if errors.As(err, &he) {
		code = he.StatusCode
	}
	_ = c.cfg.emitter.Publish(ctx, event.New(event.TypeErrorOccurred, "collab", c.cfg.collab, event.ErrorPayload{
		Op:       "collab." + op,
		Category: fderrors.Categorize(err).String(),
		Code:     code,
		Message:  err.Error(),
	}))
}

func (c *Client) settle(id string, r Reply) {
	c.mu.Lock()
	cb, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ok {
		cb(r)
	}
}

func (c *Client) failPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]func(Reply))
	c.mu.Unlock()
	for _, cb := range pending {
		cb(Reply{Err: err})
	}
}

// Close stops every loop, closes the socket, fails outstanding callbacks
// and drops the graph. It is safe to call twice.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	c.cur = nil
	c.graph = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	c.failPending(ErrClosed)
	c.setState(StateClosed)
	return nil
}
