package schedule

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Dispatcher calls a registered handler by name.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, user map[string]any) (any, error)
}

// EntryID identifies a scheduled entry.
type EntryID = cron.EntryID

// Entry describes a scheduled handler.
type Entry struct {
	ID      EntryID
	Handler string
	Next    time.Time
	Prev    time.Time
}

// Scheduler dispatches handlers on their schedules.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher Dispatcher
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	handlers map[EntryID]string
}

// Option configures a Scheduler.
type Option interface {
	apply(*Scheduler)
}

type optionFunc func(*Scheduler)

func (f optionFunc) apply(s *Scheduler) { f(s) }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(s *Scheduler) {
		s.logger = l
	})
}

// New creates a stopped Scheduler that dispatches through d.
func New(d Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		dispatcher: d,
		logger:     slog.Default(),
		handlers:   make(map[EntryID]string),
	}
	for _, opt := range opts {
		opt.apply(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s
}

// Add schedules handler using a cron expression or descriptor. user is
// passed to every dispatch.
func (s *Scheduler) Add(spec, handler string, user map[string]any) (EntryID, error) {
	sched, err := Parse(spec)
	if err != nil {
		return 0, err
	}
	return s.AddSchedule(sched, handler, user), nil
}

// AddSchedule schedules handler on sched.
func (s *Scheduler) AddSchedule(sched Schedule, handler string, user map[string]any) EntryID {
	user = maps.Clone(user)

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.cron.Schedule(sched, cron.FuncJob(func() {
		s.run(handler, user)
	}))
	s.handlers[id] = handler
	return id
}

// Remove unschedules an entry.
func (s *Scheduler) Remove(id EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cron.Remove(id)
	delete(s.handlers, id)
}

// Entries returns the scheduled entries ordered by next activation.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, e := range s.cron.Entries() {
		out = append(out, Entry{
			ID:      e.ID,
			Handler: s.handlers[e.ID],
			Next:    e.Next,
			Prev:    e.Prev,
		})
	}
	return out
}

// Trigger runs an entry immediately, outside its schedule.
func (s *Scheduler) Trigger(id EntryID) bool {
	e := s.cron.Entry(id)
	if !e.Valid() {
		return false
	}
	e.WrappedJob.Run()
	return true
}

// Start begins running entries in the background.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", "entries", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop stops the scheduler and waits for running dispatches to finish or
// ctx to be done. In-flight dispatches see their context cancelled once
// Stop returns.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(handler string, user map[string]any) {
	if _, err := s.dispatcher.Dispatch(s.ctx, handler, maps.Clone(user)); err != nil {
		s.logger.Error("scheduled dispatch failed", "handler", handler, "error", err)
	}
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
