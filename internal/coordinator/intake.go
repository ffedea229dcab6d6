// Package coordinator implements the two agents that drive the pipeline: the
// intake coordinator receives scraped announcements, prioritizes them and hands
// them to the task coordinator, which owns the per-task state machine from
// enrichment through fan-out to the final aggregated status.
package coordinator

import (
	"context"
	"strings"
	"sync"
	"time"

	"awardbot/internal/agent"
	"awardbot/internal/bus"
	"awardbot/internal/pipeline"
	logx "awardbot/pkg/logx"
)

// Well-known agent names on the bus.
const (
	IntakeName = "father"
	TasksName  = "mother"
)

// priorityKeywords raise an announcement above the base priority when they
// appear in its title.
var priorityKeywords = []string{"國際", "世界", "冠軍", "第一", "最佳", "傑出"}

const (
	basePriority = 5
	maxPriority  = 10
)

// Priority scores a title: base 5, +1 per matched keyword, capped at 10.
func Priority(title string) int {
	p := basePriority
	for _, kw := range priorityKeywords {
		if strings.Contains(title, kw) {
			p++
		}
	}
	if p > maxPriority {
		p = maxPriority
	}
	return p
}

// IntakeStats is a snapshot of the intake coordinator's counters.
type IntakeStats struct {
	Received  int
	Forwarded int
	Completed int
	Failed    int
	Pending   int
}

// Intake is the entry coordinator. It accepts new announcements from the
// scraper, assigns a priority and forwards each one as a task, then tracks
// completion reports coming back from the task coordinator.
type Intake struct {
	*agent.Base

	mu        sync.Mutex
	received  int
	forwarded int
	completed int
	failed    int
	pending   map[string]time.Time
}

// NewIntake builds the intake coordinator bound to b.
func NewIntake(b *bus.Bus, log logx.Logger) *Intake {
	f := &Intake{
		Base:    agent.NewBase(IntakeName, b, log),
		pending: make(map[string]time.Time),
	}
	f.Handle(bus.NewAnnouncement, f.onAnnouncement)
	f.Handle(bus.StatusUpdate, f.onStatus)
	return f
}

func (f *Intake) onAnnouncement(ctx context.Context, env bus.Envelope) {
	ann, ok := env.Payload.(pipeline.Announcement)
	if !ok || ann.ID == "" {
		f.Log().Warn("dropping announcement with empty or malformed payload",
			logx.String("sender", env.Sender))
		return
	}

	prio := Priority(ann.Title)

	f.mu.Lock()
	f.received++
	f.forwarded++
	f.pending[ann.ID] = time.Now()
	f.mu.Unlock()

	f.Log().Info("forwarding announcement as task",
		logx.String("id", ann.ID),
		logx.String("title", ann.Title),
		logx.Int("priority", prio))

	f.Send(ctx, TasksName, bus.TaskAssignment, pipeline.TaskOrder{
		Announcement: ann,
		Priority:     prio,
		AssignedAt:   time.Now(),
	})
}

func (f *Intake) onStatus(ctx context.Context, env bus.Envelope) {
	st, ok := env.Payload.(pipeline.TaskStatus)
	if !ok {
		f.Log().Warn("dropping malformed status update", logx.String("sender", env.Sender))
		return
	}

	f.mu.Lock()
	delete(f.pending, st.TaskID)
	if st.Status == pipeline.StatusCompleted {
		f.completed++
	} else {
		f.failed++
	}
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.Log().Info("task finished",
		logx.String("id", st.TaskID),
		logx.String("status", st.Status),
		logx.Int("platforms_ok", st.Succeeded()),
		logx.Int("platforms_total", len(st.Results)),
		logx.Duration("took", st.Duration),
		logx.Int("completed", snap.Completed),
		logx.Int("failed", snap.Failed),
		logx.Int("pending", snap.Pending))
}

// Stats returns a snapshot of the counters.
func (f *Intake) Stats() IntakeStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Intake) snapshotLocked() IntakeStats {
	return IntakeStats{
		Received:  f.received,
		Forwarded: f.forwarded,
		Completed: f.completed,
		Failed:    f.failed,
		Pending:   len(f.pending),
	}
}

// Idle reports whether no forwarded task is still awaiting its status update.
func (f *Intake) Idle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending) == 0
}
