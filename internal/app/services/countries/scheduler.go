package countries

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/country_service/internal/app/system"
	"github.com/R3E-Network/country_service/pkg/logger"
)

var _ system.Service = (*Scheduler)(nil)

// Scheduler runs Refresh on a cron schedule and optionally once at startup.
type Scheduler struct {
	service    *Service
	log        *logger.Logger
	schedule   cron.Schedule
	spec       string
	runOnStart bool
	timeout    time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a lifecycle-managed refresh scheduler. An empty spec
// disables periodic runs; runOnStart still triggers one refresh on Start.
func NewScheduler(service *Service, spec string, runOnStart bool, log *logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.NewDefault("countries-scheduler")
	}
	s := &Scheduler{
		service:    service,
		log:        log,
		spec:       strings.TrimSpace(spec),
		runOnStart: runOnStart,
		timeout:    5 * time.Minute,
	}
	if s.spec != "" {
		schedule, err := cron.ParseStandard(s.spec)
		if err != nil {
			return nil, fmt.Errorf("parse refresh schedule %q: %w", s.spec, err)
		}
		s.schedule = schedule
	}
	return s, nil
}

// Spec returns the configured cron expression, or "" when disabled.
func (s *Scheduler) Spec() string { return s.spec }

func (s *Scheduler) Name() string { return "countries-refresh-scheduler" }

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.running = true

	if s.schedule != nil {
		cronLog := cronLogger{log: s.log}
		s.cron = cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)))
		s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.tick(runCtx, "schedule") }))
		s.cron.Start()
	}

	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tick(runCtx, "startup")
		}()
	}

	s.log.WithField("schedule", s.spec).WithField("on_start", s.runOnStart).Info("country refresh scheduler started")
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	c := s.cron
	s.running = false
	s.cancel = nil
	s.cron = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if c != nil {
			<-c.Stop().Done()
		}
		s.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("country refresh scheduler stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context, trigger string) {
	if s.service == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.service.Refresh(ctx)
	if err != nil {
		s.log.WithError(err).WithField("trigger", trigger).Warn("scheduled refresh failed")
		return
	}
	s.log.WithField("trigger", trigger).
		WithField("countries_processed", result.CountriesProcessed).
		Info("scheduled refresh completed")
}

// cronLogger routes cron's internal logging through logrus.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
