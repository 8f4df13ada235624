// Package schedule runs background jobs on five-field cron expressions.
//
// Jobs run on their own goroutine and never share the request path of the
// service that owns them.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

// ErrInvalidExpression indicates a cron expression gronx cannot parse.
var ErrInvalidExpression = errors.New("invalid cron expression")

// Job is one scheduled unit of work.
type Job struct {
	Name string
	Expr string
	Run  func(context.Context)
}

// Scheduler owns a set of jobs and drives them until its context ends.
type Scheduler struct {
	jobs  []Job
	clock func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New validates jobs and returns a scheduler for them.
func New(jobs ...Job) (*Scheduler, error) {
	gron := gronx.New()
	for _, job := range jobs {
		if strings.TrimSpace(job.Name) == "" {
			return nil, errors.New("job name is required")
		}
		if job.Run == nil {
			return nil, fmt.Errorf("job %s: run function is required", job.Name)
		}
		if !gron.IsValid(job.Expr) {
			return nil, fmt.Errorf("job %s: %w: %q", job.Name, ErrInvalidExpression, job.Expr)
		}
	}
	return &Scheduler{
		jobs:  jobs,
		clock: time.Now,
		after: time.After,
	}, nil
}

// NextRun returns the first tick of expr strictly after ref.
func NextRun(expr string, ref time.Time) (time.Time, error) {
	if !gronx.New().IsValid(expr) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExpression, expr)
	}
	next, err := gronx.NextTickAfter(expr, ref, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("compute next run: %w", err)
	}
	return next, nil
}

// Run blocks until ctx ends, running each job at its scheduled ticks.
func (s *Scheduler) Run(ctx context.Context) {
	if s == nil {
		return
	}
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	for {
		now := s.clock()
		next, err := NextRun(job.Expr, now)
		if err != nil {
			log.Printf("schedule: job %s stopped: %v", job.Name, err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-s.after(next.Sub(now)):
		}
		if ctx.Err() != nil {
			return
		}
		job.Run(ctx)
	}
}
