// Package bus implements the in-process message bus that connects the
// pipeline agents: a registry of named endpoints with synchronous addressed
// delivery plus a queued publish/consume path for fan-out subscribers.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logx "awardbot/pkg/logx"
)

// ErrDuplicateAgent is returned by Register when the name is already bound.
var ErrDuplicateAgent = errors.New("agent name already registered")

// Endpoint is anything addressable on the bus.
type Endpoint interface {
	Name() string
	Receive(ctx context.Context, env Envelope)
}

// Callback observes queued envelopes addressed to a subscribed name.
type Callback func(ctx context.Context, env Envelope)

// Bus routes envelopes between named endpoints.
//
// Two delivery paths:
//   - SendDirect: synchronous, handler runs before the call returns. This is
//     the primary path used by the coordinators.
//   - Publish + Run: envelopes go onto an unbounded queue and are drained by a
//     single consumer goroutine, which performs direct delivery and then
//     invokes subscriber callbacks.
//
// The registry and the queue are mutex-guarded; endpoints may send from any
// goroutine.
type Bus struct {
	log logx.Logger

	mu     sync.RWMutex
	agents map[string]Endpoint
	subs   map[string][]Callback

	qmu   sync.Mutex
	queue []Envelope
	wake  chan struct{}
}

func New(log logx.Logger) *Bus {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Bus{
		log:    log,
		agents: map[string]Endpoint{},
		subs:   map[string][]Callback{},
		wake:   make(chan struct{}, 1),
	}
}

// Register binds an endpoint's name to it. A duplicate name is rejected.
func (b *Bus) Register(ep Endpoint) error {
	if ep == nil || ep.Name() == "" {
		return errors.New("endpoint must have a name")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.agents[ep.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, ep.Name())
	}
	b.agents[ep.Name()] = ep
	b.log.Debug("agent registered", logx.String("agent", ep.Name()))
	return nil
}

// Subscribe adds a callback invoked whenever a queued envelope addressed to
// name is drained. Callbacks run in registration order; a panic in one is
// logged and does not block the rest.
func (b *Bus) Subscribe(name string, cb Callback) {
	if cb == nil {
		return
	}
	b.mu.Lock()
	b.subs[name] = append(b.subs[name], cb)
	b.mu.Unlock()
}

// Publish enqueues the envelope and returns immediately. The queue is
// unbounded; there is no backpressure on publishers.
func (b *Bus) Publish(env Envelope) {
	env = env.withDefaults()
	b.qmu.Lock()
	b.queue = append(b.queue, env)
	b.qmu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	b.log.Debug("envelope queued",
		logx.String("from", env.Sender), logx.String("to", env.Receiver), logx.String("type", string(env.Type)))
}

// SendDirect delivers synchronously to the target endpoint. The receiver's
// handler completes before SendDirect returns. An unknown receiver is a
// routing error: logged, dropped, never retried.
func (b *Bus) SendDirect(ctx context.Context, env Envelope) {
	env = env.withDefaults()

	b.mu.RLock()
	ep := b.agents[env.Receiver]
	b.mu.RUnlock()

	if ep == nil {
		b.log.Warn("unknown receiver; dropping envelope",
			logx.String("from", env.Sender), logx.String("to", env.Receiver), logx.String("type", string(env.Type)))
		return
	}
	ep.Receive(ctx, env)
}

// Run drains the queue until ctx is canceled, processing one envelope per
// iteration. An idle queue is polled with a bounded wait so cancellation is
// always observed promptly.
func (b *Bus) Run(ctx context.Context) error {
	b.log.Info("message bus started")
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		env, ok := b.pop()
		if ok {
			b.process(ctx, env)
			continue
		}
		select {
		case <-ctx.Done():
			b.log.Info("message bus stopped")
			return nil
		case <-b.wake:
		case <-ticker.C:
		}
	}
}

func (b *Bus) pop() (Envelope, bool) {
	b.qmu.Lock()
	defer b.qmu.Unlock()
	if len(b.queue) == 0 {
		return Envelope{}, false
	}
	env := b.queue[0]
	b.queue = b.queue[1:]
	return env, true
}

func (b *Bus) process(ctx context.Context, env Envelope) {
	b.SendDirect(ctx, env)

	b.mu.RLock()
	cbs := append([]Callback(nil), b.subs[env.Receiver]...)
	b.mu.RUnlock()

	for _, cb := range cbs {
		b.invoke(ctx, cb, env)
	}
}

// invoke isolates a single callback: a panic is converted to a log line so
// one bad subscriber cannot take down the consume loop.
func (b *Bus) invoke(ctx context.Context, cb Callback, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("subscriber callback panicked",
				logx.String("to", env.Receiver), logx.String("type", string(env.Type)), logx.Any("panic", r))
		}
	}()
	cb(ctx, env)
}

// QueueLen reports the current queue depth (operational signal only).
func (b *Bus) QueueLen() int {
	b.qmu.Lock()
	defer b.qmu.Unlock()
	return len(b.queue)
}
