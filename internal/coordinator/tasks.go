package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"awardbot/internal/agent"
	"awardbot/internal/bus"
	"awardbot/internal/pipeline"
	logx "awardbot/pkg/logx"
)

var (
	// ErrDuplicateTask marks an assignment for an announcement that already
	// has an open task record.
	ErrDuplicateTask = errors.New("coordinator: task already open for this announcement")

	// ErrUnknownTask marks a message whose task ID has no open record.
	ErrUnknownTask = errors.New("coordinator: no open task for this id")
)

// Task lifecycle states.
const (
	stateEnriching  = "enriching"
	statePublishing = "publishing"
)

type taskRecord struct {
	ann       pipeline.Announcement
	priority  int
	status    string
	startedAt time.Time
	enriched  *pipeline.EnrichedContent
	results   map[string]pipeline.PublishResult
	expected  map[string]struct{}
}

// Reporter is called once per finalized task, after the status update has been
// sent. Used for operator notifications.
type Reporter func(ctx context.Context, st pipeline.TaskStatus)

// Tasks is the task coordinator. It owns one record per in-flight announcement
// and walks it through enrichment and per-platform publishing, aggregating the
// results into a single status update.
//
// Records are keyed by announcement ID. At most one record per ID is open at
// any time; a second assignment for the same ID is rejected while the first is
// in flight. Results are correlated strictly by the task ID echoed in each
// post_result, so several tasks can sit in publishing concurrently.
type Tasks struct {
	*agent.Base

	contentAgent string
	platforms    []string
	limiter      *rate.Limiter
	reporter     Reporter

	mu      sync.Mutex
	records map[string]*taskRecord
}

// TasksOption tweaks the task coordinator.
type TasksOption func(*Tasks)

// WithPacer sets the rate limiter applied between per-platform sends.
func WithPacer(l *rate.Limiter) TasksOption {
	return func(t *Tasks) { t.limiter = l }
}

// WithReporter installs a hook fired after every finalized task.
func WithReporter(r Reporter) TasksOption {
	return func(t *Tasks) { t.reporter = r }
}

// NewTasks builds the task coordinator. contentAgent is the bus name of the
// enrichment agent; platforms are the bus names of the publishing endpoints,
// which double as the platform keys in the aggregated results.
func NewTasks(b *bus.Bus, log logx.Logger, contentAgent string, platforms []string, opts ...TasksOption) *Tasks {
	t := &Tasks{
		Base:         agent.NewBase(TasksName, b, log),
		contentAgent: contentAgent,
		platforms:    append([]string(nil), platforms...),
		limiter:      rate.NewLimiter(rate.Inf, 1),
		records:      make(map[string]*taskRecord),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.Handle(bus.TaskAssignment, t.onAssignment)
	t.Handle(bus.ContentGenerated, t.onContent)
	t.Handle(bus.PostResult, t.onResult)
	return t
}

// Open returns the number of in-flight task records.
func (t *Tasks) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

func (t *Tasks) onAssignment(ctx context.Context, env bus.Envelope) {
	order, ok := env.Payload.(pipeline.TaskOrder)
	if !ok || order.Announcement.ID == "" {
		t.Log().Warn("dropping malformed task assignment", logx.String("sender", env.Sender))
		return
	}
	if err := t.open(order); err != nil {
		t.Log().Warn("rejecting task assignment",
			logx.String("id", order.Announcement.ID),
			logx.Err(err))
		return
	}

	t.Log().Info("task opened, requesting enrichment",
		logx.String("id", order.Announcement.ID),
		logx.Int("priority", order.Priority))

	t.Send(ctx, t.contentAgent, bus.TaskAssignment, order)
}

// open creates the record for an assignment. The existing record stays
// untouched when the ID is already in flight.
func (t *Tasks) open(order pipeline.TaskOrder) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.records[order.Announcement.ID]; exists {
		return ErrDuplicateTask
	}
	expected := make(map[string]struct{}, len(t.platforms))
	for _, p := range t.platforms {
		expected[p] = struct{}{}
	}
	t.records[order.Announcement.ID] = &taskRecord{
		ann:       order.Announcement,
		priority:  order.Priority,
		status:    stateEnriching,
		startedAt: time.Now(),
		results:   make(map[string]pipeline.PublishResult, len(t.platforms)),
		expected:  expected,
	}
	return nil
}

func (t *Tasks) onContent(ctx context.Context, env bus.Envelope) {
	res, ok := env.Payload.(pipeline.EnrichmentResult)
	if !ok || res.TaskID == "" || res.Content == nil {
		t.Log().Warn("dropping malformed enrichment result", logx.String("sender", env.Sender))
		return
	}

	t.mu.Lock()
	rec, exists := t.records[res.TaskID]
	if !exists {
		t.mu.Unlock()
		t.Log().Warn("enrichment result for unknown task",
			logx.String("id", res.TaskID), logx.Err(ErrUnknownTask))
		return
	}
	if rec.status != stateEnriching {
		t.mu.Unlock()
		t.Log().Warn("duplicate enrichment result, task already publishing",
			logx.String("id", res.TaskID))
		return
	}
	rec.status = statePublishing
	rec.enriched = res.Content
	post := t.buildPost(rec)
	platforms := make([]string, 0, len(rec.expected))
	for _, p := range t.platforms {
		if _, ok := rec.expected[p]; ok {
			platforms = append(platforms, p)
		}
	}
	t.mu.Unlock()

	t.Log().Info("content ready, fanning out",
		logx.String("id", res.TaskID),
		logx.Bool("fallback", res.Fallback),
		logx.Int("platforms", len(platforms)))

	// Paced fan-out. The lock is not held across sends: a synchronous
	// endpoint may reply with post_result before this loop finishes.
	for _, platform := range platforms {
		if err := t.limiter.Wait(ctx); err != nil {
			t.Log().Warn("fan-out interrupted",
				logx.String("id", res.TaskID),
				logx.String("platform", platform),
				logx.Err(err))
			return
		}
		t.Send(ctx, platform, bus.PostRequest, pipeline.PostOrder{
			TaskID: res.TaskID,
			Post:   post,
		})
	}
}

func (t *Tasks) buildPost(rec *taskRecord) pipeline.SocialPost {
	return pipeline.SocialPost{
		Title:    rec.ann.Title,
		Body:     rec.ann.Body,
		Hashtags: rec.enriched.Hashtags(),
		URL:      rec.ann.URL,
		ImageURL: rec.ann.ImageURL,
		Enriched: rec.enriched,
	}
}

func (t *Tasks) onResult(ctx context.Context, env bus.Envelope) {
	rep, ok := env.Payload.(pipeline.PostReport)
	if !ok || rep.TaskID == "" {
		t.Log().Warn("dropping malformed post result", logx.String("sender", env.Sender))
		return
	}
	platform := rep.Result.Platform
	if platform == "" {
		platform = env.Sender
		rep.Result.Platform = platform
	}

	t.mu.Lock()
	rec, exists := t.records[rep.TaskID]
	if !exists {
		t.mu.Unlock()
		t.Log().Warn("post result for unknown or closed task",
			logx.String("id", rep.TaskID),
			logx.String("platform", platform),
			logx.Err(ErrUnknownTask))
		return
	}
	if _, expected := rec.expected[platform]; !expected {
		t.mu.Unlock()
		t.Log().Warn("post result from unexpected platform",
			logx.String("id", rep.TaskID),
			logx.String("platform", platform))
		return
	}
	if _, dup := rec.results[platform]; dup {
		t.mu.Unlock()
		t.Log().Warn("duplicate post result",
			logx.String("id", rep.TaskID),
			logx.String("platform", platform))
		return
	}
	rec.results[platform] = rep.Result
	done := len(rec.results) == len(rec.expected)
	var st pipeline.TaskStatus
	if done {
		st = t.finalizeLocked(rep.TaskID, rec)
	}
	t.mu.Unlock()

	if !done {
		return
	}

	t.Log().Info("task finalized",
		logx.String("id", st.TaskID),
		logx.String("status", st.Status),
		logx.Int("ok", st.Succeeded()),
		logx.Int("total", len(st.Results)))

	t.Send(ctx, IntakeName, bus.StatusUpdate, st)
	if t.reporter != nil {
		t.reporter(ctx, st)
	}
}

// finalizeLocked closes the record and builds the status report. The task is
// completed when at least one platform succeeded. Called with t.mu held; runs
// at most once per record because deletion makes later results unknown.
func (t *Tasks) finalizeLocked(id string, rec *taskRecord) pipeline.TaskStatus {
	delete(t.records, id)

	results := make(map[string]pipeline.PublishResult, len(rec.results))
	for k, v := range rec.results {
		results[k] = v
	}
	status := pipeline.StatusFailed
	for _, r := range results {
		if r.Success {
			status = pipeline.StatusCompleted
			break
		}
	}
	return pipeline.TaskStatus{
		TaskID:   id,
		Title:    rec.ann.Title,
		Status:   status,
		Results:  results,
		Duration: time.Since(rec.startedAt),
	}
}
