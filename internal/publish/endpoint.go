// Package publish fans announcements out to the social platforms. Each
// platform is an Endpoint wrapped by a generic bus agent; platform errors
// never escape as anything but a failed PublishResult.
package publish

import (
	"context"

	"awardbot/internal/agent"
	"awardbot/internal/bus"
	"awardbot/internal/coordinator"
	"awardbot/internal/pipeline"
	logx "awardbot/pkg/logx"
)

// Endpoint is one social platform. Post blocks until the attempt is over and
// must not panic; failures come back as PublishResult{Success: false}.
type Endpoint interface {
	Platform() string
	Post(ctx context.Context, post pipeline.SocialPost) pipeline.PublishResult
}

// Publisher adapts an Endpoint to the bus: every post_request is answered
// with exactly one post_result echoing the request's task ID.
type Publisher struct {
	*agent.Base
	endpoint Endpoint
}

func NewPublisher(b *bus.Bus, log logx.Logger, ep Endpoint) *Publisher {
	p := &Publisher{
		Base:     agent.NewBase(ep.Platform(), b, log),
		endpoint: ep,
	}
	p.Handle(bus.PostRequest, p.onRequest)
	return p
}

func (p *Publisher) onRequest(ctx context.Context, env bus.Envelope) {
	order, ok := env.Payload.(pipeline.PostOrder)
	if !ok || order.TaskID == "" {
		p.Log().Warn("dropping malformed post request", logx.String("sender", env.Sender))
		return
	}
	// Platform calls are slow; answer from our own goroutine.
	go p.publish(ctx, order)
}

func (p *Publisher) publish(ctx context.Context, order pipeline.PostOrder) {
	res := p.endpoint.Post(ctx, order.Post)
	res.Platform = p.endpoint.Platform()

	if res.Success {
		p.Log().Info("post published",
			logx.String("task", order.TaskID),
			logx.String("url", res.URL))
	} else {
		p.Log().Warn("post failed",
			logx.String("task", order.TaskID),
			logx.String("reason", res.Err))
	}

	p.Send(ctx, coordinator.TasksName, bus.PostResult, pipeline.PostReport{
		TaskID: order.TaskID,
		Result: res,
	})
}
