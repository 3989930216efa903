package event

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Bus fans events out to subscribers.
type Bus interface {
	Emitter

	// Subscribe delivers events whose type is in types. Types ending in
	// ".*" match a whole category, e.g. "shape.*". No types means every
	// event.
	Subscribe(types []string, handler Handler) Subscription

	// SubscribeAll delivers every event.
	SubscribeAll(handler Handler) Subscription

	// SubscribeFilter delivers events matching f.
	SubscribeFilter(f Filter, handler Handler) Subscription

	// Close stops every subscription.
	Close() error
}

// Subscription is a registered handler.
type Subscription interface {
	Unsubscribe()
	Pause()
	Resume()
	IsPaused() bool
}

// Filter selects events for a subscription. Zero fields match anything.
type Filter struct {
	// Types are exact event types or "category.*" patterns.
	Types []string
	// DocID limits delivery to one document.
	DocID string
	// Source limits delivery to one publishing component, e.g. "collab".
	Source string
}

// Match reports whether evt passes the filter.
func (f Filter) Match(evt Event) bool {
	if f.DocID != "" && evt.DocID() != f.DocID {
		return false
	}
	if f.Source != "" && evt.Source() != f.Source {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	typ := evt.Type()
	return slices.ContainsFunc(f.Types, func(want string) bool {
		if category, ok := strings.CutSuffix(want, ".*"); ok {
			return strings.HasPrefix(typ, category+".")
		}
		return want == typ
	})
}

// BusConfig configures a LocalBus.
type BusConfig struct {
	// BufferSize is the queue length per subscription. Default: 256.
	BufferSize int

	// NonBlocking makes Publish drop events for full subscribers instead of
	// waiting. Collaboration read loops use this.
	NonBlocking bool

	// OnDrop is called when an event is dropped in non-blocking mode.
	OnDrop func(evt Event, subscriberID string)

	// OnError is called when a handler returns an error.
	OnError func(evt Event, subscriberID string, err error)
}

// DefaultBusConfig is a blocking bus with 256-event queues.
var DefaultBusConfig = BusConfig{
	BufferSize: 256,
}

// LocalBus is an in-process Bus. Each subscription drains its own queue in
// a goroutine, so handlers run in publish order per subscriber.
type LocalBus struct {
	config BusConfig

	mu     sync.RWMutex
	subs   map[string]*subscription
	nextID int64
	closed bool

	closeCh chan struct{}
	wg      sync.WaitGroup
}

var _ Bus = (*LocalBus)(nil)

// NewBus returns an open LocalBus.
func NewBus(config BusConfig) *LocalBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig.BufferSize
	}
	return &LocalBus{
		config:  config,
		subs:    make(map[string]*subscription),
		closeCh: make(chan struct{}),
	}
}

type subscription struct {
	id      string
	filter  Filter
	handler Handler
	queue   chan Event
	paused  atomic.Bool
	done    chan struct{}
	once    sync.Once
	bus     *LocalBus
}

// Publish queues evt for every matching subscriber. A blocking bus waits
// for queue space until ctx ends or the bus closes.
func (b *LocalBus) Publish(ctx context.Context, evt Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return &EventError{Event: evt, Message: "publish", Err: ErrBusClosed}
	}
	var targets []*subscription
	for _, s := range b.subs {
		if !s.paused.Load() && s.filter.Match(evt) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if err := b.enqueue(ctx, s, evt); err != nil {
			return err
		}
	}
	return nil
}

func (b *LocalBus) enqueue(ctx context.Context, s *subscription, evt Event) error {
	if b.config.NonBlocking {
		select {
		case s.queue <- evt:
		default:
			if b.config.OnDrop != nil {
				b.config.OnDrop(evt, s.id)
			}
		}
		return nil
	}
	select {
	case s.queue <- evt:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.closeCh:
		return &EventError{Event: evt, Message: "publish interrupted", Err: ErrBusClosed}
	}
}

// Subscribe implements Bus. It returns nil once the bus is closed.
func (b *LocalBus) Subscribe(types []string, handler Handler) Subscription {
	return b.SubscribeFilter(Filter{Types: types}, handler)
}

// SubscribeAll implements Bus.
func (b *LocalBus) SubscribeAll(handler Handler) Subscription {
	return b.SubscribeFilter(Filter{}, handler)
}

// SubscribeFilter implements Bus. It returns nil once the bus is closed.
func (b *LocalBus) SubscribeFilter(f Filter, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.nextID++
	s := &subscription{
		id:      strconv.FormatInt(b.nextID, 10),
		filter:  Filter{Types: slices.Clone(f.Types), DocID: f.DocID, Source: f.Source},
		handler: handler,
		queue:   make(chan Event, b.config.BufferSize),
		done:    make(chan struct{}),
		bus:     b,
	}
	b.subs[s.id] = s
	b.wg.Add(1)
	go s.drain()
	return s
}

// Close stops every subscription and waits for their goroutines. Queued
// events are discarded.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	for _, s := range b.subs {
		s.stop()
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscription) drain() {
	defer s.bus.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case evt := <-s.queue:
			if s.paused.Load() {
				continue
			}
			err := s.handler.Handle(context.Background(), evt)
			if err != nil && s.bus.config.OnError != nil {
				s.bus.config.OnError(evt, s.id, err)
			}
		}
	}
}

func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	s.stop()
}

func (s *subscription) Pause()         { s.paused.Store(true) }
func (s *subscription) Resume()        { s.paused.Store(false) }
func (s *subscription) IsPaused() bool { return s.paused.Load() }
