// Package eventbus is the typed publish/subscribe mechanism used by the
// engine to notify collaborators of lifecycle changes.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Event is the closed set of lifecycle notifications the bus carries. Only
// one of the payload fields is populated, matching the event's Type.
type Event struct {
	Type string

	StateLoaded      *StateLoaded
	EnabledChanged   *EnabledChanged
	ModeChanged      *ModeChanged
	KBAdded          *KBAdded
	KBRemoved        *KBRemoved
	KBSwitched       *KBSwitched
	SystemKBsLoaded  *SystemKBsLoaded
}

// Event type names.
const (
	TypeStateLoaded     = "engine.state_loaded"
	TypeEnabledChanged  = "engine.enabled_changed"
	TypeModeChanged     = "engine.mode_changed"
	TypeKBAdded         = "kb.added"
	TypeKBRemoved       = "kb.removed"
	TypeKBSwitched      = "kb.switched"
	TypeSystemKBsLoaded = "system_kbs.loaded"
)

type StateLoaded struct {
	Enabled    bool
	Mode       string
	ActiveName string
}

type EnabledChanged struct{ Old, New bool }

type ModeChanged struct{ Old, New string }

type KBAdded struct {
	Name       string
	Path       string
	ChunkCount int
	Origin     string
}

type KBRemoved struct{ Name string }

type KBSwitched struct{ Name, Path string }

type SystemKBsLoaded struct{ Count int }

// Listener receives events published on the bus.
type Listener func(Event)

// Bus delivers events to listeners synchronously, in registration order.
// A panicking or erroring listener is logged and does not block the rest
// of the chain. The engine owns the Bus; subscribers hold only a
// cancellation handle, which avoids a reference cycle back into the
// engine.
type Bus struct {
	mu        sync.Mutex
	listeners map[string]Listener
	order     []string
	log       *slog.Logger
}

// New constructs an empty Bus. log may be nil, in which case slog.Default()
// is used.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{listeners: make(map[string]Listener), log: log}
}

// Subscribe registers l and returns a cancellation handle. Calling the
// returned func more than once is a no-op.
func (b *Bus) Subscribe(l Listener) (cancel func()) {
	b.mu.Lock()
	id := uuid.NewString()
	b.listeners[id] = l
	b.order = append(b.order, id)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.listeners[id]; !ok {
			return
		}
		delete(b.listeners, id)
		for i, oid := range b.order {
			if oid == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers evt to every currently-subscribed listener, in
// registration order, synchronously. A listener that panics is recovered,
// logged, and does not prevent later listeners from running.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	ids := append([]string(nil), b.order...)
	snapshot := make(map[string]Listener, len(b.listeners))
	for k, v := range b.listeners {
		snapshot[k] = v
	}
	b.mu.Unlock()

	for _, id := range ids {
		l, ok := snapshot[id]
		if !ok {
			continue
		}
		b.invoke(l, evt)
	}
}

func (b *Bus) invoke(l Listener, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event listener panicked", "event_type", evt.Type, "recovered", r)
		}
	}()
	l(evt)
}
