package enrich

import (
	"context"

	"awardbot/internal/agent"
	"awardbot/internal/bus"
	"awardbot/internal/coordinator"
	"awardbot/internal/pipeline"
	logx "awardbot/pkg/logx"
)

// AgentName is the content agent's bus name.
const AgentName = "content"

// Content is the agent wrapper around the engine: every task assignment gets
// an enrichment reply, fallback content included, so the task coordinator
// never waits forever on a broken model.
type Content struct {
	*agent.Base
	engine *Engine
}

func NewContent(b *bus.Bus, log logx.Logger, engine *Engine) *Content {
	a := &Content{
		Base:   agent.NewBase(AgentName, b, log),
		engine: engine,
	}
	a.Handle(bus.TaskAssignment, a.onAssignment)
	return a
}

func (a *Content) onAssignment(ctx context.Context, env bus.Envelope) {
	order, ok := env.Payload.(pipeline.TaskOrder)
	if !ok || order.Announcement.ID == "" {
		a.Log().Warn("dropping malformed enrichment request", logx.String("sender", env.Sender))
		return
	}

	// Generation can take minutes against a cold model; run it off the
	// caller's goroutine so the coordinator is not blocked.
	go a.generate(ctx, order)
}

func (a *Content) generate(ctx context.Context, order pipeline.TaskOrder) {
	a.Log().Info("generating content",
		logx.String("id", order.Announcement.ID),
		logx.String("title", order.Announcement.Title))

	content, fallback := a.engine.Generate(ctx, order.Announcement)

	a.Send(ctx, coordinator.TasksName, bus.ContentGenerated, pipeline.EnrichmentResult{
		TaskID:   order.Announcement.ID,
		Content:  content,
		Fallback: fallback,
	})
}
