package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"flap/internal/content"
	"flap/internal/logging"
)

// Pipeline is the slice of the orchestrator the scheduler drives.
type Pipeline interface {
	GenerateAndSend(ctx context.Context, genCtx content.GenerationContext) (*content.GeneratedContent, error)
	RedecorateCached(ctx context.Context, ts time.Time) (bool, error)
}

// Config holds scheduler configuration.
type Config struct {
	Enabled bool

	// MajorSchedule is the cron expression for full regenerations.
	MajorSchedule string

	// MinorUpdates enables the minute-aligned clock refresh loop.
	MinorUpdates bool

	UseToolGeneration bool
	CycleTimeout      time.Duration
	ConcurrencyPolicy string
}

const (
	DefaultMajorSchedule = "0 * * * *"
	DefaultCycleTimeout  = 2 * time.Minute
	minorTickTimeout     = 30 * time.Second
)

// Scheduler drives the content pipeline: cron-scheduled major updates and a
// minute-aligned loop of minor updates that refresh the on-board clock.
type Scheduler struct {
	cron     *cron.Cron
	pipeline Pipeline
	config   Config
	logger   logging.Logger

	mu          sync.Mutex
	cancelMinor context.CancelFunc
	wg          sync.WaitGroup
	stopped     chan struct{}
	stopOnce    sync.Once
}

// New creates a scheduler around the pipeline.
func New(cfg Config, pipeline Pipeline, logger logging.Logger) *Scheduler {
	if cfg.MajorSchedule == "" {
		cfg.MajorSchedule = DefaultMajorSchedule
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = DefaultCycleTimeout
	}
	logger = logging.OrNop(logger)
	return &Scheduler{
		cron:     newCron(cfg, logger),
		pipeline: pipeline,
		config:   cfg,
		logger:   logger,
		stopped:  make(chan struct{}),
	}
}

func newCron(cfg Config, logger logging.Logger) *cron.Cron {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	options := []cron.Option{cron.WithParser(parser)}
	policy := strings.ToLower(strings.TrimSpace(cfg.ConcurrencyPolicy))
	var wrapper cron.JobWrapper
	switch policy {
	case "delay":
		wrapper = cron.DelayIfStillRunning(cron.DefaultLogger)
	case "skip", "":
		wrapper = cron.SkipIfStillRunning(cron.DefaultLogger)
	default:
		logger.Warn("scheduler: unknown concurrency policy %q, defaulting to skip", policy)
		wrapper = cron.SkipIfStillRunning(cron.DefaultLogger)
	}
	options = append(options, cron.WithChain(wrapper))
	return cron.New(options...)
}

// Start registers the major update job and launches the minor update loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("scheduler disabled by config")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.config.MajorSchedule, func() { s.runMajor(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started, major updates on %q", s.config.MajorSchedule)

	if s.config.MinorUpdates {
		minorCtx, cancel := context.WithCancel(context.Background())
		s.cancelMinor = cancel
		s.wg.Add(1)
		go s.minorLoop(minorCtx)
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop gracefully stops both loops. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("scheduler stopping...")
		s.mu.Lock()
		if s.cancelMinor != nil {
			s.cancelMinor()
		}
		s.mu.Unlock()

		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
		s.wg.Wait()
		close(s.stopped)
		s.logger.Info("scheduler stopped")
	})
}

// Done returns a channel that is closed when the scheduler has fully stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}

// RunMajorNow triggers a full regeneration outside the cron schedule.
func (s *Scheduler) RunMajorNow(ctx context.Context) {
	s.runMajor(ctx)
}

func (s *Scheduler) runMajor(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.CycleTimeout)
	defer cancel()

	genCtx := content.GenerationContext{
		UpdateType:        content.UpdateMajor,
		Timestamp:         time.Now(),
		UseToolGeneration: s.config.UseToolGeneration,
	}
	if _, err := s.pipeline.GenerateAndSend(ctx, genCtx); err != nil {
		if errors.Is(err, content.ErrDisabled) {
			s.logger.Info("major update skipped: %v", err)
			return
		}
		s.logger.Error("major update failed: %v", err)
		return
	}
	s.logger.Info("major update completed")
}

// minorLoop fires a minor update aligned to every minute boundary, so the
// displayed clock flips exactly when the minute does.
func (s *Scheduler) minorLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		timer := time.NewTimer(AlignDelay(time.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.tickMinor(ctx)
	}
}

func (s *Scheduler) tickMinor(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, minorTickTimeout)
	defer cancel()

	now := time.Now()
	skipped, err := s.pipeline.RedecorateCached(ctx, now)
	if err != nil {
		s.logger.Warn("minor update failed: %v", err)
		return
	}
	if skipped {
		s.logger.Debug("minor update skipped, nothing to refresh")
		return
	}
	s.logger.Debug("minor update at %s", now.Format("15:04:05"))
}

// AlignDelay returns how long to sleep from now so the next tick lands on the
// upcoming minute boundary.
func AlignDelay(now time.Time) time.Duration {
	ms := (60-now.Second())*1000 - now.Nanosecond()/int(time.Millisecond)
	return time.Duration(ms) * time.Millisecond
}
