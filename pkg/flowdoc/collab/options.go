package collab

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/event"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/observability"
)

// Mode selects the transport.
type Mode string

const (
	// ModePush keeps a websocket open to the hub.
	ModePush Mode = "push"
	// ModePull polls the hub over HTTP.
	ModePull Mode = "pull"
)

// Defaults for Client.
const (
	DefaultPollInterval  = time.Second
	DefaultPingInterval  = time.Second
	DefaultMaxReconnects = 6
	DefaultBackoffMin    = 3 * time.Second
	DefaultBackoffMax    = 13 * time.Second
	DefaultQueueSize     = 256
)

type config struct {
	mode          Mode
	session       string
	collab        string
	cookie        string
	pollInterval  time.Duration
	pingInterval  time.Duration
	maxReconnects int
	backoffMin    time.Duration
	backoffMax    time.Duration
	queueSize     int

	httpClient *http.Client
	dialer     *websocket.Dialer

	logger  *slog.Logger
	emitter event.Emitter
	metrics observability.MetricsRecorder
}

// Option configures a Client.
type Option func(*config)

// WithMode selects push or pull. Default: ModePush.
func WithMode(m Mode) Option {
	return func(c *config) { c.mode = m }
}

// WithSession sets this client's session id. Default: a fresh id.
func WithSession(id string) Option {
	return func(c *config) { c.session = id }
}

// WithCollaborationSession sets the shared session. Default: the graph id.
func WithCollaborationSession(id string) Option {
	return func(c *config) { c.collab = id }
}

// WithCookie is passed to the hub on the websocket URL.
func WithCookie(cookie string) Option {
	return func(c *config) { c.cookie = cookie }
}

// WithPollInterval sets the pull interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithPingInterval sets the push liveness interval.
func WithPingInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

// WithReconnect bounds reconnection: at most attempts tries, each after a
// uniformly random wait in [lo, hi).
func WithReconnect(attempts int, lo, hi time.Duration) Option {
	return func(c *config) {
		c.maxReconnects = attempts
		c.backoffMin, c.backoffMax = lo, hi
	}
}

// WithQueueSize bounds the push send queue.
func WithQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithHTTPClient sets the client for pull and presence requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *config) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithEmitter publishes state changes, remote changes and transport
// errors to e.
func WithEmitter(e event.Emitter) Option {
	return func(c *config) {
		if e != nil {
			c.emitter = e
		}
	}
}

// WithMetrics counts messages in and out.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}
