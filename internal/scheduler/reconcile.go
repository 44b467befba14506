// Package scheduler runs reconciliation passes on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work. It either runs a pass inline or hands it
// to the task queue.
type Job func(ctx context.Context) error

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("schedule is empty")
	}
	_, err := parser.Parse(schedule)
	return err
}

// NextRun returns the next activation of schedule after from.
func NextRun(schedule string, from time.Time) (time.Time, error) {
	s, err := parser.Parse(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(from), nil
}

// ReconcileScheduler fires a Job on a cron schedule. Overlapping activations
// are skipped while the previous run is still going.
type ReconcileScheduler struct {
	schedule string
	job      Job

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc

	lastRun time.Time
	lastErr error
}

func NewReconcileScheduler(schedule string, job Job) *ReconcileScheduler {
	return &ReconcileScheduler{
		schedule: schedule,
		job:      job,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}
}

// Start registers the job and starts the cron loop. The scheduler stops when
// ctx is cancelled.
func (s *ReconcileScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, s.runJob)
	if err != nil {
		return fmt.Errorf("failed to schedule reconcile job: %w", err)
	}
	s.entryID = entryID
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	next, _ := NextRun(s.schedule, time.Now())
	log.Printf("Reconcile scheduler: started with schedule '%s'. Next run: %v", s.schedule, next)

	go func(done <-chan struct{}) {
		<-done
		s.Stop()
	}(s.ctx.Done())
	return nil
}

// Stop waits for a running job to finish and stops the cron loop.
func (s *ReconcileScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel, entryID := s.cancel, s.entryID
	s.mu.Unlock()

	// the lock is released first: a running job takes it when it finishes
	cancel()
	<-s.cron.Stop().Done()
	s.cron.Remove(entryID)
	log.Printf("Reconcile scheduler: stopped")
}

// RunNow runs the job once, synchronously.
func (s *ReconcileScheduler) RunNow(ctx context.Context) error {
	return s.execute(ctx)
}

func (s *ReconcileScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next pass fires, or nil when stopped.
func (s *ReconcileScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return nil
	}
	e := s.cron.Entry(s.entryID)
	if !e.Valid() {
		return nil
	}
	t := e.Next
	return &t
}

// LastRun reports when the job last finished and its error.
func (s *ReconcileScheduler) LastRun() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun, s.lastErr
}

func (s *ReconcileScheduler) runJob() {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if err := s.execute(ctx); err != nil {
		log.Printf("Reconcile scheduler: run failed: %v", err)
	}
}

func (s *ReconcileScheduler) execute(ctx context.Context) error {
	err := s.job(ctx)
	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()
	return err
}
