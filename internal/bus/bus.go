// Package bus implements the in-process typed pub/sub event bus (C1).
//
// A watermill gochannel instance backs the bus as plumbing infrastructure
// (kept available via PubSub for middleware/routing use cases), while the
// public Subscribe/Emit surface keeps direct Go callbacks so handlers retain
// full type information and can be invoked in strict priority order.
package bus

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/agentx/agentx/pkg/apitypes"
)

// Handler receives one Event. A Handler that panics is recovered and logged;
// it never prevents later handlers in the same Emit from firing.
type Handler func(apitypes.Event)

// Options configures a subscription.
type Options struct {
	// Filter, when non-nil, is consulted before invoking Handler; a false
	// result skips the handler for that event.
	Filter func(apitypes.Event) bool
	// Priority orders handlers within one event's fan-out. Handlers run in
	// strictly descending priority order; ties resolve in subscription order.
	Priority int
	// Once unsubscribes the handler after its first matching invocation.
	Once bool
}

// Subscription is returned by On/OnAny/Once and unsubscribes that single
// registration when closed.
type Subscription struct {
	bus *Bus
	id  uint64
	typ string // "" means onAny
}

// Close unsubscribes the handler. Safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.bus.unsubscribe(s.typ, s.id)
}

type subscriberEntry struct {
	id       uint64
	priority int
	seq      uint64
	handler  Handler
	opts     Options
	// scope is the eventType the entry was registered under, or "" for an
	// OnAny registration; dispatch uses it to unsubscribe Once handlers
	// from the right list without re-deriving membership.
	scope string
}

// Bus is a synchronous-on-emit, lock-free-on-the-hot-path typed event bus.
// The subscriber list is copy-on-write: Emit reads a snapshot under RLock,
// then calls handlers outside any lock.
type Bus struct {
	log zerolog.Logger

	mu          sync.RWMutex
	byType      map[string][]subscriberEntry
	any         []subscriberEntry
	destroyed   bool
	nextID      uint64
	nextSeq     uint64

	// emitMu serializes Emit/EmitBatch so a handler that re-emits during its
	// own invocation is queued (FIFO) instead of re-entrantly recursing.
	emitMu   sync.Mutex
	emitting bool
	queue    []apitypes.Event

	pubsub *gochannel.GoChannel
}

// New constructs an empty Bus. log may be the zero value (discarding logger).
func New(log zerolog.Logger) *Bus {
	return &Bus{
		log:    log,
		byType: make(map[string][]subscriberEntry),
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, watermill.NopLogger{}),
	}
}

func (b *Bus) newID() uint64  { return atomic.AddUint64(&b.nextID, 1) }
func (b *Bus) newSeq() uint64 { return atomic.AddUint64(&b.nextSeq, 1) }

// On subscribes handler to a single event type.
func (b *Bus) On(eventType string, handler Handler, opts ...Options) *Subscription {
	return b.subscribe(eventType, handler, mergeOpts(opts))
}

// OnTypes subscribes handler to several event types at once, returning one
// Subscription per type (closing all of them tears down the whole group).
func (b *Bus) OnTypes(eventTypes []string, handler Handler, opts ...Options) []*Subscription {
	subs := make([]*Subscription, len(eventTypes))
	for i, t := range eventTypes {
		subs[i] = b.On(t, handler, opts...)
	}
	return subs
}

// OnAny subscribes handler to every event emitted on the bus.
func (b *Bus) OnAny(handler Handler, opts ...Options) *Subscription {
	o := mergeOpts(opts)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return &Subscription{bus: b}
	}
	id := b.newID()
	entry := subscriberEntry{id: id, priority: o.Priority, seq: b.newSeq(), handler: handler, opts: o, scope: ""}
	b.any = insertSorted(b.any, entry)
	return &Subscription{bus: b, id: id, typ: ""}
}

// Once subscribes handler to eventType for exactly one invocation.
func (b *Bus) Once(eventType string, handler Handler, opts ...Options) *Subscription {
	o := mergeOpts(opts)
	o.Once = true
	return b.subscribe(eventType, handler, o)
}

func mergeOpts(opts []Options) Options {
	if len(opts) == 0 {
		return Options{}
	}
	return opts[0]
}

func (b *Bus) subscribe(eventType string, handler Handler, o Options) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return &Subscription{bus: b}
	}
	id := b.newID()
	entry := subscriberEntry{id: id, priority: o.Priority, seq: b.newSeq(), handler: handler, opts: o, scope: eventType}
	b.byType[eventType] = insertSorted(b.byType[eventType], entry)
	return &Subscription{bus: b, id: id, typ: eventType}
}

// insertSorted inserts entry keeping the slice ordered by descending
// priority, ties broken by ascending subscription sequence (FIFO).
func insertSorted(entries []subscriberEntry, entry subscriberEntry) []subscriberEntry {
	entries = append(entries, entry)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority > entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})
	return entries
}

func (b *Bus) unsubscribe(eventType string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if eventType == "" {
		b.any = removeID(b.any, id)
		return
	}
	b.byType[eventType] = removeID(b.byType[eventType], id)
}

func removeID(entries []subscriberEntry, id uint64) []subscriberEntry {
	for i, e := range entries {
		if e.id == id {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}

// Emit publishes event to every matching subscriber in strictly descending
// priority order, synchronously with respect to the caller: fan-out
// completes before Emit returns. A handler that re-emits while being
// invoked has its event queued and drained FIFO after the current fan-out
// finishes, so Emit never recurses into itself for the same event chain.
// The queue is shared by all goroutines: an Emit called from another
// goroutine while a fan-out is in progress is queued the same way and
// returns before its event is delivered, by the goroutine already emitting.
func (b *Bus) Emit(event apitypes.Event) {
	b.emitMu.Lock()
	if b.emitting {
		b.queue = append(b.queue, event)
		b.emitMu.Unlock()
		return
	}
	b.emitting = true
	b.emitMu.Unlock()

	b.dispatch(event)

	for {
		b.emitMu.Lock()
		if len(b.queue) == 0 {
			b.emitting = false
			b.emitMu.Unlock()
			break
		}
		next := b.queue[0]
		b.queue = b.queue[1:]
		b.emitMu.Unlock()
		b.dispatch(next)
	}
}

// EmitBatch emits each event in order via Emit.
func (b *Bus) EmitBatch(events []apitypes.Event) {
	for _, e := range events {
		b.Emit(e)
	}
}

func (b *Bus) dispatch(event apitypes.Event) {
	b.mu.RLock()
	if b.destroyed {
		b.mu.RUnlock()
		return
	}
	typed := append([]subscriberEntry(nil), b.byType[event.Type]...)
	any := append([]subscriberEntry(nil), b.any...)
	b.mu.RUnlock()

	merged := mergeByPriority(typed, any)
	type onceKey struct {
		scope string
		id    uint64
	}
	var onces []onceKey
	for _, entry := range merged {
		if entry.opts.Filter != nil && !entry.opts.Filter(event) {
			continue
		}
		b.invokeSafely(entry.handler, event)
		if entry.opts.Once {
			onces = append(onces, onceKey{entry.scope, entry.id})
		}
	}
	for _, o := range onces {
		b.unsubscribe(o.scope, o.id)
	}

	if msg := newWatermillMessage(event); msg != nil {
		_ = b.pubsub.Publish("events", msg)
	}
}

// mergeByPriority merges two already-sorted (by priority desc, seq asc)
// slices into one overall order. Filters are applied later, by dispatch.
func mergeByPriority(a, b []subscriberEntry) []subscriberEntry {
	out := make([]subscriberEntry, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority > out[j].priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}

func (b *Bus) invokeSafely(h Handler, event apitypes.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Str("eventType", event.Type).Msg("bus handler panicked")
		}
	}()
	h(event)
}

// Destroy drops every subscription; subsequent Emit calls are a no-op.
func (b *Bus) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyed = true
	b.byType = make(map[string][]subscriberEntry)
	b.any = nil
	_ = b.pubsub.Close()
}

// PubSub exposes the underlying watermill gochannel for advanced use cases
// (middleware, routing, or swapping in a distributed backend later).
func (b *Bus) PubSub() *gochannel.GoChannel { return b.pubsub }

// newWatermillMessage encodes event as a watermill message.Message so the
// underlying gochannel PubSub carries the same event stream for consumers
// that prefer watermill's Subscribe/Handler/router idioms over the direct
// callback API above. Encoding failures are dropped without logging: the
// callback-based Emit path above is the source of truth.
func newWatermillMessage(event apitypes.Event) *message.Message {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil
	}
	return message.NewMessage(event.UUID, payload)
}
