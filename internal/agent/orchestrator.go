package agent

import (
	"context"
	"fmt"

	"awardbot/internal/bus"
	sup "awardbot/internal/runtime/supervisor"
	logx "awardbot/pkg/logx"
)

// Orchestrator owns agent registration and runs the bus consume loop as a
// supervised background goroutine.
type Orchestrator struct {
	bus *bus.Bus
	log logx.Logger

	names []string
	sup   *sup.Supervisor
}

func NewOrchestrator(b *bus.Bus, log logx.Logger) *Orchestrator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Orchestrator{bus: b, log: log.With(logx.String("comp", "orchestrator"))}
}

// Add registers each agent on the bus. Registration failures abort startup
// rather than silently shadowing a live agent.
func (o *Orchestrator) Add(agents ...bus.Endpoint) error {
	for _, a := range agents {
		if err := o.bus.Register(a); err != nil {
			return fmt.Errorf("add agent: %w", err)
		}
		o.names = append(o.names, a.Name())
	}
	return nil
}

// Start launches the bus consume loop. The loop stops when ctx is canceled
// or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.sup != nil {
		return nil
	}
	o.sup = sup.New(ctx, sup.WithLogger(o.log), sup.WithCancelOnError(true))
	o.sup.Go("bus.consume", o.bus.Run)
	o.log.Info("agents started", logx.Int("count", len(o.names)), logx.Any("agents", o.names))
	return nil
}

// Stop cancels the consume loop and waits, bounded by ctx.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if o.sup == nil {
		return nil
	}
	o.sup.Cancel()
	err := o.sup.Wait(ctx)
	o.sup = nil
	o.log.Info("agents stopped")
	return err
}
