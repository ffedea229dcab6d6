// Package agent provides the addressable unit the pipeline is built from:
// a named bus endpoint with per-message-type handler dispatch, plus the
// orchestrator that owns agent lifecycle and the bus consume loop.
package agent

import (
	"context"
	"sync"

	"awardbot/internal/bus"
	logx "awardbot/pkg/logx"
)

// Handler processes one envelope of a registered type.
type Handler func(ctx context.Context, env bus.Envelope)

// Base gives a concrete agent a name, an inbox and typed dispatch. Concrete
// agents embed Base and differ only in which handlers they register and what
// collaborator they call inside them.
type Base struct {
	name string
	bus  *bus.Bus
	log  logx.Logger

	mu       sync.RWMutex
	handlers map[bus.MessageType]Handler
	fallback Handler
}

func NewBase(name string, b *bus.Bus, log logx.Logger) *Base {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Base{
		name:     name,
		bus:      b,
		log:      log.With(logx.String("agent", name)),
		handlers: map[bus.MessageType]Handler{},
	}
}

func (a *Base) Name() string     { return a.name }
func (a *Base) Log() logx.Logger { return a.log }
func (a *Base) Bus() *bus.Bus    { return a.bus }

// Handle registers a handler for one message type. Last registration wins.
func (a *Base) Handle(t bus.MessageType, h Handler) {
	a.mu.Lock()
	a.handlers[t] = h
	a.mu.Unlock()
}

// SetFallback installs the handler for envelope types without a registered
// handler.
func (a *Base) SetFallback(h Handler) {
	a.mu.Lock()
	a.fallback = h
	a.mu.Unlock()
}

// Receive dispatches the envelope by type, or to the fallback handler.
func (a *Base) Receive(ctx context.Context, env bus.Envelope) {
	a.mu.RLock()
	h := a.handlers[env.Type]
	fb := a.fallback
	a.mu.RUnlock()

	if h != nil {
		h(ctx, env)
		return
	}
	if fb != nil {
		fb(ctx, env)
		return
	}
	a.log.Debug("unhandled envelope",
		logx.String("type", string(env.Type)), logx.String("from", env.Sender))
}

// Send constructs an envelope from this agent and delivers it directly.
func (a *Base) Send(ctx context.Context, receiver string, t bus.MessageType, payload any) {
	a.bus.SendDirect(ctx, bus.NewEnvelope(t, a.name, receiver, payload))
}
