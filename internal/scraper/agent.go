package scraper

import (
	"context"

	"awardbot/internal/agent"
	"awardbot/internal/bus"
	"awardbot/internal/coordinator"
	"awardbot/internal/store"
	logx "awardbot/pkg/logx"
)

// AgentName is the information agent's bus name.
const AgentName = "information"

// Information is the agent wrapper around the scanner: it runs scans and
// hands each new announcement to the intake coordinator, marking it
// processed once it has been forwarded.
type Information struct {
	*agent.Base
	scanner   *Scanner
	processed store.ProcessedSet
}

func NewInformation(b *bus.Bus, log logx.Logger, sc *Scanner, processed store.ProcessedSet) *Information {
	a := &Information{
		Base:      agent.NewBase(AgentName, b, log),
		scanner:   sc,
		processed: processed,
	}
	a.Handle(bus.StatusUpdate, a.onStatus)
	return a
}

func (a *Information) onStatus(ctx context.Context, env bus.Envelope) {
	a.Log().Debug("status update received", logx.Any("payload", env.Payload))
}

// ScanAndReport runs one scan and forwards every new announcement. The
// announcements go through the queued publish path, so a slow pipeline never
// blocks the scan. Returns the number forwarded.
func (a *Information) ScanAndReport(ctx context.Context) int {
	found := a.scanner.Scan(ctx)
	for _, ann := range found {
		a.Bus().Publish(bus.NewEnvelope(bus.NewAnnouncement, a.Name(), coordinator.IntakeName, ann))
		if a.processed != nil {
			if err := a.processed.MarkProcessed(ctx, ann.ID); err != nil {
				a.Log().Warn("mark processed failed", logx.String("id", ann.ID), logx.Err(err))
			}
		}
	}
	return len(found)
}
