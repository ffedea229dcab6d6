package agent

import (
	"context"
	"testing"

	"awardbot/internal/bus"
	logx "awardbot/pkg/logx"
)

func TestDispatchByType(t *testing.T) {
	t.Parallel()

	b := bus.New(logx.Nop())
	a := NewBase("content", b, logx.Nop())

	var gotAssignment, gotFallback bool
	a.Handle(bus.TaskAssignment, func(context.Context, bus.Envelope) { gotAssignment = true })
	a.SetFallback(func(context.Context, bus.Envelope) { gotFallback = true })

	a.Receive(context.Background(), bus.NewEnvelope(bus.TaskAssignment, "mother", "content", nil))
	if !gotAssignment || gotFallback {
		t.Fatalf("typed handler not used: assignment=%v fallback=%v", gotAssignment, gotFallback)
	}

	gotAssignment, gotFallback = false, false
	a.Receive(context.Background(), bus.NewEnvelope(bus.StatusUpdate, "mother", "content", nil))
	if gotAssignment || !gotFallback {
		t.Fatalf("fallback not used: assignment=%v fallback=%v", gotAssignment, gotFallback)
	}
}

func TestLastHandlerWins(t *testing.T) {
	t.Parallel()

	b := bus.New(logx.Nop())
	a := NewBase("x", b, logx.Nop())

	var which string
	a.Handle(bus.PostResult, func(context.Context, bus.Envelope) { which = "first" })
	a.Handle(bus.PostResult, func(context.Context, bus.Envelope) { which = "second" })

	a.Receive(context.Background(), bus.NewEnvelope(bus.PostResult, "t", "x", nil))
	if which != "second" {
		t.Fatalf("expected last handler to win, ran %q", which)
	}
}

func TestSendRoutesThroughBus(t *testing.T) {
	t.Parallel()

	b := bus.New(logx.Nop())
	sender := NewBase("father", b, logx.Nop())
	receiver := NewBase("mother", b, logx.Nop())

	var got bus.Envelope
	receiver.Handle(bus.TaskAssignment, func(_ context.Context, env bus.Envelope) { got = env })

	if err := b.Register(receiver); err != nil {
		t.Fatal(err)
	}
	sender.Send(context.Background(), "mother", bus.TaskAssignment, "work")

	if got.Sender != "father" || got.Payload != "work" {
		t.Fatalf("unexpected envelope: %+v", got)
	}
}

func TestOrchestratorAddRejectsDuplicates(t *testing.T) {
	t.Parallel()

	b := bus.New(logx.Nop())
	o := NewOrchestrator(b, logx.Nop())

	if err := o.Add(NewBase("a", b, logx.Nop())); err != nil {
		t.Fatal(err)
	}
	if err := o.Add(NewBase("a", b, logx.Nop())); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}
