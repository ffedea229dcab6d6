package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"awardbot/internal/agent"
	"awardbot/internal/bus"
	"awardbot/internal/pipeline"
	logx "awardbot/pkg/logx"
)

func TestPriority(t *testing.T) {
	t.Parallel()

	cases := []struct {
		title string
		want  int
	}{
		{"資工系學生獲獎", 5},
		{"國際冠軍隊伍出爐", 7},
		{"世界第一", 7},
		{"國際世界冠軍第一最佳傑出", 10},
	}
	for _, tc := range cases {
		if got := Priority(tc.title); got != tc.want {
			t.Errorf("Priority(%q) = %d, want %d", tc.title, got, tc.want)
		}
	}
}

func sampleAnnouncement(n int) pipeline.Announcement {
	a := pipeline.Announcement{
		Title:       fmt.Sprintf("學生團隊榮獲國際大獎 %d", n),
		Body:        fmt.Sprintf("恭喜獲獎 %d", n),
		URL:         "https://example.edu/news/1",
		PublishedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	a.ID = a.Fingerprint()
	return a
}

// echoContent replies to every enrichment request with canned content,
// synchronously, the way a real content agent does from its own goroutine.
func echoContent(t *testing.T, b *bus.Bus) {
	t.Helper()
	c := agent.NewBase("content", b, logx.Nop())
	c.Handle(bus.TaskAssignment, func(ctx context.Context, env bus.Envelope) {
		order := env.Payload.(pipeline.TaskOrder)
		c.Send(ctx, TasksName, bus.ContentGenerated, pipeline.EnrichmentResult{
			TaskID: order.Announcement.ID,
			Content: &pipeline.EnrichedContent{
				TitleZH:    order.Announcement.Title,
				HashtagsZH: []string{"#得獎"},
			},
		})
	})
	if err := b.Register(c); err != nil {
		t.Fatal(err)
	}
}

// capturingPublisher records post orders instead of replying, so tests can
// control when and in what order results come back.
type capturingPublisher struct {
	*agent.Base
	mu     sync.Mutex
	orders []pipeline.PostOrder
}

func newCapturingPublisher(t *testing.T, b *bus.Bus, name string) *capturingPublisher {
	t.Helper()
	p := &capturingPublisher{Base: agent.NewBase(name, b, logx.Nop())}
	p.Handle(bus.PostRequest, func(_ context.Context, env bus.Envelope) {
		p.mu.Lock()
		p.orders = append(p.orders, env.Payload.(pipeline.PostOrder))
		p.mu.Unlock()
	})
	if err := b.Register(p); err != nil {
		t.Fatal(err)
	}
	return p
}

func (p *capturingPublisher) taken() []pipeline.PostOrder {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pipeline.PostOrder(nil), p.orders...)
}

func (p *capturingPublisher) reply(ctx context.Context, taskID string, success bool) {
	res := pipeline.PublishResult{Success: success, Platform: p.Name()}
	if !success {
		res.Err = "boom"
	}
	p.Send(ctx, TasksName, bus.PostResult, pipeline.PostReport{TaskID: taskID, Result: res})
}

func TestDuplicateAssignmentRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := bus.New(logx.Nop())
	// Content agent that never answers, keeping the first task in enriching.
	silent := agent.NewBase("content", b, logx.Nop())
	silent.Handle(bus.TaskAssignment, func(context.Context, bus.Envelope) {})
	if err := b.Register(silent); err != nil {
		t.Fatal(err)
	}
	tasks := NewTasks(b, logx.Nop(), "content", []string{"twitter"})
	if err := b.Register(tasks); err != nil {
		t.Fatal(err)
	}

	ann := sampleAnnouncement(1)
	order := pipeline.TaskOrder{Announcement: ann, Priority: 7, AssignedAt: time.Now()}
	tasks.Receive(ctx, bus.NewEnvelope(bus.TaskAssignment, IntakeName, TasksName, order))
	tasks.Receive(ctx, bus.NewEnvelope(bus.TaskAssignment, IntakeName, TasksName, order))

	if got := tasks.Open(); got != 1 {
		t.Fatalf("open records = %d, want exactly 1", got)
	}
}

func TestConcurrentDuplicateAssignmentsOpenOneRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := bus.New(logx.Nop())
	silent := agent.NewBase("content", b, logx.Nop())
	silent.Handle(bus.TaskAssignment, func(context.Context, bus.Envelope) {})
	if err := b.Register(silent); err != nil {
		t.Fatal(err)
	}
	tasks := NewTasks(b, logx.Nop(), "content", []string{"twitter"})
	if err := b.Register(tasks); err != nil {
		t.Fatal(err)
	}

	ann := sampleAnnouncement(1)
	order := pipeline.TaskOrder{Announcement: ann, Priority: 7, AssignedAt: time.Now()}

	// Racing assignments for the same announcement must never leave two
	// live records, whichever one wins.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tasks.Receive(ctx, bus.NewEnvelope(bus.TaskAssignment, IntakeName, TasksName, order))
		}()
	}
	wg.Wait()

	if got := tasks.Open(); got != 1 {
		t.Fatalf("open records = %d, want exactly 1", got)
	}
}

func TestResultCorrelationByTaskID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := bus.New(logx.Nop())
	echoContent(t, b)
	tw := newCapturingPublisher(t, b, "twitter")

	var (
		mu      sync.Mutex
		reports []pipeline.TaskStatus
	)
	tasks := NewTasks(b, logx.Nop(), "content", []string{"twitter"},
		WithReporter(func(_ context.Context, st pipeline.TaskStatus) {
			mu.Lock()
			reports = append(reports, st)
			mu.Unlock()
		}))
	if err := b.Register(tasks); err != nil {
		t.Fatal(err)
	}
	intake := NewIntake(b, logx.Nop())
	if err := b.Register(intake); err != nil {
		t.Fatal(err)
	}

	a1, a2 := sampleAnnouncement(1), sampleAnnouncement(2)
	for _, a := range []pipeline.Announcement{a1, a2} {
		tasks.Receive(ctx, bus.NewEnvelope(bus.TaskAssignment, IntakeName, TasksName,
			pipeline.TaskOrder{Announcement: a, AssignedAt: time.Now()}))
	}
	if got := tasks.Open(); got != 2 {
		t.Fatalf("open records = %d, want 2 tasks publishing concurrently", got)
	}
	if got := len(tw.taken()); got != 2 {
		t.Fatalf("post orders = %d, want 2", got)
	}

	// Answer in reverse order of assignment: attribution must follow the
	// echoed task ID, not arrival order.
	tw.reply(ctx, a2.ID, false)
	tw.reply(ctx, a1.ID, true)

	mu.Lock()
	defer mu.Unlock()
	if len(reports) != 2 {
		t.Fatalf("finalized %d tasks, want 2", len(reports))
	}
	if reports[0].TaskID != a2.ID || reports[0].Status != pipeline.StatusFailed {
		t.Fatalf("first report misattributed: %+v", reports[0])
	}
	if reports[1].TaskID != a1.ID || reports[1].Status != pipeline.StatusCompleted {
		t.Fatalf("second report misattributed: %+v", reports[1])
	}
}

func TestFinalizeOnceAndResubmit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := bus.New(logx.Nop())
	echoContent(t, b)
	tw := newCapturingPublisher(t, b, "twitter")

	var finalized int
	tasks := NewTasks(b, logx.Nop(), "content", []string{"twitter"},
		WithReporter(func(context.Context, pipeline.TaskStatus) { finalized++ }))
	if err := b.Register(tasks); err != nil {
		t.Fatal(err)
	}
	intake := NewIntake(b, logx.Nop())
	if err := b.Register(intake); err != nil {
		t.Fatal(err)
	}

	ann := sampleAnnouncement(1)
	assign := func() {
		tasks.Receive(ctx, bus.NewEnvelope(bus.TaskAssignment, IntakeName, TasksName,
			pipeline.TaskOrder{Announcement: ann, AssignedAt: time.Now()}))
	}

	assign()
	tw.reply(ctx, ann.ID, true)
	tw.reply(ctx, ann.ID, true) // late duplicate, task already closed

	if finalized != 1 {
		t.Fatalf("finalized %d times, want exactly once", finalized)
	}
	if tasks.Open() != 0 {
		t.Fatalf("record not removed after finalize")
	}

	// Same ID again: a closed task must not block a fresh run.
	assign()
	if tasks.Open() != 1 {
		t.Fatalf("resubmission after close did not open a new task")
	}
	tw.reply(ctx, ann.ID, true)
	if finalized != 2 {
		t.Fatalf("resubmitted task not finalized, count = %d", finalized)
	}
}

func TestPartialFailureStillCompletes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	platforms := []string{"twitter", "facebook", "instagram", "linkedin", "reddit"}

	b := bus.New(logx.Nop())
	echoContent(t, b)
	pubs := make(map[string]*capturingPublisher, len(platforms))
	for _, name := range platforms {
		pubs[name] = newCapturingPublisher(t, b, name)
	}

	var report pipeline.TaskStatus
	tasks := NewTasks(b, logx.Nop(), "content", platforms,
		WithReporter(func(_ context.Context, st pipeline.TaskStatus) { report = st }))
	if err := b.Register(tasks); err != nil {
		t.Fatal(err)
	}
	intake := NewIntake(b, logx.Nop())
	if err := b.Register(intake); err != nil {
		t.Fatal(err)
	}

	ann := sampleAnnouncement(1)
	tasks.Receive(ctx, bus.NewEnvelope(bus.TaskAssignment, IntakeName, TasksName,
		pipeline.TaskOrder{Announcement: ann, AssignedAt: time.Now()}))

	for _, name := range platforms {
		pubs[name].reply(ctx, ann.ID, name != "instagram")
	}

	if report.Status != pipeline.StatusCompleted {
		t.Fatalf("status = %q, want completed despite one failure", report.Status)
	}
	if got := report.Succeeded(); got != 4 {
		t.Fatalf("succeeded = %d, want 4", got)
	}
	if r := report.Results["instagram"]; r.Success || r.Err == "" {
		t.Fatalf("failed platform result not preserved: %+v", r)
	}
	if st := intake.Stats(); st.Completed != 1 || st.Pending != 0 {
		t.Fatalf("intake stats after completion: %+v", st)
	}
}

func TestAllFailuresReportFailed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := bus.New(logx.Nop())
	echoContent(t, b)
	tw := newCapturingPublisher(t, b, "twitter")

	var report pipeline.TaskStatus
	tasks := NewTasks(b, logx.Nop(), "content", []string{"twitter"},
		WithReporter(func(_ context.Context, st pipeline.TaskStatus) { report = st }))
	if err := b.Register(tasks); err != nil {
		t.Fatal(err)
	}
	intake := NewIntake(b, logx.Nop())
	if err := b.Register(intake); err != nil {
		t.Fatal(err)
	}

	ann := sampleAnnouncement(1)
	tasks.Receive(ctx, bus.NewEnvelope(bus.TaskAssignment, IntakeName, TasksName,
		pipeline.TaskOrder{Announcement: ann, AssignedAt: time.Now()}))
	tw.reply(ctx, ann.ID, false)

	if report.Status != pipeline.StatusFailed {
		t.Fatalf("status = %q, want failed", report.Status)
	}
	if st := intake.Stats(); st.Failed != 1 {
		t.Fatalf("intake failed counter = %d, want 1", st.Failed)
	}
}

func TestUnknownTaskResultDropped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := bus.New(logx.Nop())
	tasks := NewTasks(b, logx.Nop(), "content", []string{"twitter"})
	if err := b.Register(tasks); err != nil {
		t.Fatal(err)
	}

	tasks.Receive(ctx, bus.NewEnvelope(bus.PostResult, "twitter", TasksName,
		pipeline.PostReport{TaskID: "award_20260101_deadbeef",
			Result: pipeline.PublishResult{Success: true, Platform: "twitter"}}))

	if tasks.Open() != 0 {
		t.Fatalf("stray result must not create state")
	}
}

func TestFanOutIsPaced(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	platforms := []string{"twitter", "facebook", "instagram"}
	b := bus.New(logx.Nop())
	echoContent(t, b)
	for _, name := range platforms {
		newCapturingPublisher(t, b, name)
	}

	// Burst of one permit every 50ms: the third send waits at least ~100ms.
	tasks := NewTasks(b, logx.Nop(), "content", platforms,
		WithPacer(rate.NewLimiter(rate.Every(50*time.Millisecond), 1)))
	if err := b.Register(tasks); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	tasks.Receive(ctx, bus.NewEnvelope(bus.TaskAssignment, IntakeName, TasksName,
		pipeline.TaskOrder{Announcement: sampleAnnouncement(1), AssignedAt: time.Now()}))

	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("fan-out of 3 finished in %v, pacing not applied", elapsed)
	}
}

func TestIntakeDropsMalformedAnnouncement(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := bus.New(logx.Nop())
	intake := NewIntake(b, logx.Nop())
	if err := b.Register(intake); err != nil {
		t.Fatal(err)
	}

	intake.Receive(ctx, bus.NewEnvelope(bus.NewAnnouncement, "information", IntakeName, nil))
	intake.Receive(ctx, bus.NewEnvelope(bus.NewAnnouncement, "information", IntakeName, "not an announcement"))

	if st := intake.Stats(); st.Received != 0 || st.Forwarded != 0 {
		t.Fatalf("malformed payloads were counted: %+v", st)
	}
}
