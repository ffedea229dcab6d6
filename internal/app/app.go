// Package app wires the configuration, the bus, and all agents into the
// runnable pipeline, and owns the run modes exposed by the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"awardbot/internal/agent"
	"awardbot/internal/bus"
	"awardbot/internal/config"
	"awardbot/internal/coordinator"
	"awardbot/internal/enrich"
	"awardbot/internal/notify"
	"awardbot/internal/pipeline"
	"awardbot/internal/publish"
	"awardbot/internal/runtime/supervisor"
	"awardbot/internal/scraper"
	"awardbot/internal/store"
	logx "awardbot/pkg/logx"
)

// App holds the wired pipeline. Construct with New, run with one of the run
// modes, always Close.
type App struct {
	cfg     *config.Config
	manager *config.Manager

	logSvc *logx.Service
	log    logx.Logger

	bus       *bus.Bus
	orch      *agent.Orchestrator
	intake    *coordinator.Intake
	tasks     *coordinator.Tasks
	info      *scraper.Information
	scanner   *scraper.Scanner
	engine    *enrich.Engine
	processed store.ProcessedSet
	notifier  *notify.Telegram
}

func New(configPath string) (*App, error) {
	manager := config.NewManager(configPath)
	cfg, err := manager.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logConfig(cfg.Logging))
	manager.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{cfg: cfg, manager: manager, logSvc: logSvc, log: log}
	if err := a.wire(); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func logConfig(cfg config.LoggingConfig) logx.Config {
	console := true
	if cfg.Console != nil {
		console = *cfg.Console
	}
	return logx.Config{
		Level:   cfg.Level,
		Console: console,
		File:    logx.FileConfig{Enabled: cfg.File != "", Path: cfg.File},
	}
}

func (a *App) wire() error {
	cfg := a.cfg
	a.bus = bus.New(a.log.With(logx.String("comp", "bus")))

	if cfg.Storage != nil {
		set, err := store.Open(store.Config{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path},
			a.log.With(logx.String("comp", "store")))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		a.processed = set
	}

	if cfg.Notify != nil && cfg.Notify.Telegram != nil {
		n, err := notify.NewTelegram(*cfg.Notify.Telegram, a.log.With(logx.String("comp", "notify")))
		if err != nil {
			// notification is optional, a bad token must not kill the pipeline
			a.log.Warn("operator notify disabled", logx.Err(err))
		} else {
			a.notifier = n
		}
	}

	// All five endpoints are always registered; one without credentials
	// reports a failed result instead of silently narrowing the fan-out.
	endpoints := []publish.Endpoint{
		publish.NewTwitter(deref(cfg.Publish.Twitter)),
		publish.NewFacebook(deref(cfg.Publish.Facebook)),
		publish.NewInstagram(deref(cfg.Publish.Instagram)),
		publish.NewLinkedIn(deref(cfg.Publish.LinkedIn)),
		publish.NewReddit(deref(cfg.Publish.Reddit)),
	}
	platforms := make([]string, 0, len(endpoints))
	publishers := make([]bus.Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		platforms = append(platforms, ep.Platform())
		publishers = append(publishers, publish.NewPublisher(a.bus,
			a.log.With(logx.String("comp", "publish")), ep))
	}

	var chat enrich.Chatter
	if !cfg.Ollama.Disabled {
		chat = enrich.NewClient(cfg.Ollama)
	}
	a.engine = enrich.NewEngine(chat, a.log.With(logx.String("comp", "enrich")))
	content := enrich.NewContent(a.bus, a.log.With(logx.String("comp", "enrich")), a.engine)

	opts := []coordinator.TasksOption{coordinator.WithPacer(pacer(cfg.Publish.Pace()))}
	if a.notifier != nil {
		opts = append(opts, coordinator.WithReporter(a.notifier.Report))
	}
	a.tasks = coordinator.NewTasks(a.bus, a.log.With(logx.String("comp", "tasks")),
		enrich.AgentName, platforms, opts...)
	a.intake = coordinator.NewIntake(a.bus, a.log.With(logx.String("comp", "intake")))

	a.scanner = scraper.NewScanner(cfg.Source, a.processed, a.log.With(logx.String("comp", "scraper")))
	a.info = scraper.NewInformation(a.bus, a.log.With(logx.String("comp", "scraper")), a.scanner, a.processed)

	a.orch = agent.NewOrchestrator(a.bus, a.log)
	if err := a.orch.Add(a.intake, a.tasks, content, a.info); err != nil {
		return err
	}
	return a.orch.Add(publishers...)
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func pacer(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

// RunOnce runs a single scan cycle and waits, bounded by the settle timeout,
// for every forwarded announcement to finish publishing.
func (a *App) RunOnce(ctx context.Context) error {
	if err := a.orch.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.orch.Stop(stopCtx)
	}()

	n := a.info.ScanAndReport(ctx)
	if n == 0 {
		a.log.Info("nothing new found")
		return nil
	}

	if !a.settle(ctx, n, a.cfg.Schedule.Settle()) {
		return fmt.Errorf("cycle did not settle within %s", a.cfg.Schedule.Settle())
	}
	st := a.intake.Stats()
	a.log.Info("cycle finished",
		logx.Int("forwarded", st.Forwarded),
		logx.Int("completed", st.Completed),
		logx.Int("failed", st.Failed))
	return nil
}

// settle waits until at least want announcements went through intake and
// nothing is queued or in flight any more.
func (a *App) settle(ctx context.Context, want int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		st := a.intake.Stats()
		if st.Received >= want && st.Pending == 0 && a.tasks.Open() == 0 && a.bus.QueueLen() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
		}
	}
}

// RunContinuous keeps the agents running and rescans on the configured
// interval until ctx is canceled. Systemd gets a readiness notification when
// running under a unit.
func (a *App) RunContinuous(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = a.cfg.Schedule.Interval()
	}
	if err := a.orch.Start(ctx); err != nil {
		return err
	}

	// hot reload for logging knobs, both loops supervised so a watcher
	// panic or error restarts the loop instead of taking the process down
	s := supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "app"))))
	updates := a.manager.Subscribe(1)
	defer a.manager.Unsubscribe(updates)
	s.GoRestart("config.watch", a.manager.Watch)
	s.Go0("config.reload", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.logSvc.Apply(logConfig(cfg.Logging))
				a.log.Info("logging config applied")
			}
		}
	})

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("systemd readiness notified")
	}

	a.log.Info("continuous monitoring started", logx.Duration("interval", interval))
	a.info.ScanAndReport(ctx)

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		a.info.ScanAndReport(ctx)
	}); err != nil {
		return fmt.Errorf("schedule scan: %w", err)
	}
	c.Start()

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	cronCtx := c.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(5 * time.Second):
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		a.log.Warn("background loops stop", logx.Err(err))
	}
	return a.orch.Stop(stopCtx)
}

// TestScan runs one scan without touching the pipeline.
func (a *App) TestScan(ctx context.Context) []pipeline.Announcement {
	return a.scanner.Scan(ctx)
}

// TestEnrich enriches a built-in sample announcement.
func (a *App) TestEnrich(ctx context.Context) (*pipeline.EnrichedContent, bool) {
	sample := pipeline.Announcement{
		Title:       "賀！本系團隊榮獲國際程式設計競賽冠軍",
		Body:        "恭喜資訊工程學系團隊於國際程式設計競賽中脫穎而出，榮獲冠軍殊榮。",
		URL:         "https://example.edu/news/sample",
		PublishedAt: time.Now(),
	}
	sample.ID = sample.Fingerprint()
	return a.engine.Generate(ctx, sample)
}

// Close releases the store and the log sinks.
func (a *App) Close() error {
	if a.processed != nil {
		if err := a.processed.Close(); err != nil {
			a.log.Warn("store close failed", logx.Err(err))
		}
	}
	return a.logSvc.Close()
}
