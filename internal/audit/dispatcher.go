package audit

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls buffering. With DropIfFull, Emit never blocks the caller.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher relays events to a Sink from one goroutine, in emit order.
type Dispatcher struct {
	cfg     Config
	sink    Sink
	dropped atomic.Uint64

	// mu makes Close wait for in-progress sends before closing events.
	mu     sync.RWMutex
	closed bool
	events chan Event
	done   chan struct{}
}

// NewDispatcher starts the relay goroutine. It returns nil when cfg is
// disabled; a nil *Dispatcher accepts and discards every call.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		events: make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}
	go d.relay()
	return d
}

func (d *Dispatcher) relay() {
	defer close(d.done)
	for ev := range d.events {
		d.sink.Emit(context.Background(), ev)
	}
}

// Emit queues ev after stripping secret-looking metadata. Without DropIfFull
// it waits for buffer space or ctx.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev.Metadata = redact(ev.Metadata)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.events <- ev:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.events <- ev:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events and returns once every queued event has
// reached the sink. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	<-d.done
}

// Dropped counts events lost to a full buffer or a cancelled blocking emit.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

var secretMarkers = []string{"token", "password", "secret", "authorization"}

// redact drops metadata whose key names a credential. The input map is not
// modified.
func redact(md map[string]string) map[string]string {
	if len(md) == 0 {
		return md
	}
	var out map[string]string
	for k := range md {
		lk := strings.ToLower(k)
		for _, marker := range secretMarkers {
			if strings.Contains(lk, marker) {
				if out == nil {
					out = make(map[string]string, len(md))
					for kk, vv := range md {
						out[kk] = vv
					}
				}
				delete(out, k)
				break
			}
		}
	}
	if out == nil {
		return md
	}
	return out
}
