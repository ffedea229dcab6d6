package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "awardbot/pkg/logx"
)

type recordingEndpoint struct {
	name string

	mu   sync.Mutex
	seen []Envelope
}

func (r *recordingEndpoint) Name() string { return r.name }

func (r *recordingEndpoint) Receive(_ context.Context, env Envelope) {
	r.mu.Lock()
	r.seen = append(r.seen, env)
	r.mu.Unlock()
}

func (r *recordingEndpoint) envelopes() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.seen...)
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	t.Parallel()

	b := New(logx.Nop())
	if err := b.Register(&recordingEndpoint{name: "father"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := b.Register(&recordingEndpoint{name: "father"})
	if !errors.Is(err, ErrDuplicateAgent) {
		t.Fatalf("expected ErrDuplicateAgent, got %v", err)
	}
}

func TestSendDirectDeliversSynchronously(t *testing.T) {
	t.Parallel()

	b := New(logx.Nop())
	ep := &recordingEndpoint{name: "mother"}
	if err := b.Register(ep); err != nil {
		t.Fatal(err)
	}

	b.SendDirect(context.Background(), NewEnvelope(TaskAssignment, "father", "mother", "payload"))

	got := ep.envelopes()
	if len(got) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(got))
	}
	if got[0].Type != TaskAssignment || got[0].Sender != "father" {
		t.Fatalf("unexpected envelope: %+v", got[0])
	}
	if got[0].ID == "" || got[0].Time.IsZero() {
		t.Fatal("envelope defaults not filled")
	}
}

func TestSendDirectUnknownReceiverDropsSilently(t *testing.T) {
	t.Parallel()

	b := New(logx.Nop())
	// Must not panic or block.
	b.SendDirect(context.Background(), NewEnvelope(StatusUpdate, "x", "nobody", nil))
}

func TestRunDrainsQueueInOrder(t *testing.T) {
	t.Parallel()

	b := New(logx.Nop())
	ep := &recordingEndpoint{name: "sink"}
	if err := b.Register(ep); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()

	for i := 0; i < 5; i++ {
		env := NewEnvelope(PostRequest, "mother", "sink", i)
		b.Publish(env)
	}

	deadline := time.After(2 * time.Second)
	for len(ep.envelopes()) < 5 {
		select {
		case <-deadline:
			t.Fatalf("timed out; delivered %d of 5", len(ep.envelopes()))
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	for i, env := range ep.envelopes() {
		if env.Payload.(int) != i {
			t.Fatalf("out of order at %d: %+v", i, env)
		}
	}
}

func TestSubscriberPanicIsIsolated(t *testing.T) {
	t.Parallel()

	b := New(logx.Nop())
	ep := &recordingEndpoint{name: "sink"}
	if err := b.Register(ep); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var order []string
	b.Subscribe("sink", func(context.Context, Envelope) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
		panic("boom")
	})
	b.Subscribe("sink", func(context.Context, Envelope) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()

	b.Publish(NewEnvelope(StatusUpdate, "task", "sink", nil))

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("second subscriber never ran; order=%v", order)
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if order[0] != "first" || order[1] != "second" {
		t.Fatalf("subscribers ran out of order: %v", order)
	}
}
