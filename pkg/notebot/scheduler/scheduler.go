// Package scheduler runs fire-once-per-day jobs at fixed wall-clock times.
// Uses robfig/cron in a fixed-offset zone so schedules do not depend on the
// host's time zone database.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler manages daily jobs.
type Scheduler struct {
	// jobs stores registered jobs indexed by ID.
	jobs map[string]*Job

	cron     *cron.Cron
	location *time.Location

	// cronIDs maps job IDs to their cron entry IDs for removal.
	cronIDs map[string]cron.EntryID

	// runningJobs prevents a job from overlapping with its previous run.
	runningJobs map[string]bool

	handler JobHandler

	// jobTimeout bounds a single execution.
	jobTimeout time.Duration

	logger *slog.Logger
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// Job is a task that fires once per day at At.
type Job struct {
	// ID is the unique job identifier.
	ID string `json:"id"`

	// At is the local fire time, "HH:MM".
	At string `json:"at"`

	Description string `json:"description,omitempty"`

	LastRunAt       *time.Time    `json:"last_run_at,omitempty"`
	LastError       string        `json:"last_error,omitempty"`
	LastRunDuration time.Duration `json:"last_run_duration,omitempty"`
	RunCount        int           `json:"run_count"`

	schedule cron.Schedule
}

// JobHandler is called when a job fires.
type JobHandler func(ctx context.Context, job *Job) error

// DefaultJobTimeout bounds a job run when none is configured.
const DefaultJobTimeout = 2 * time.Minute

// minJobInterval is the minimum time between consecutive executions of the
// same job.
const minJobInterval = 2 * time.Second

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(at string) (hour, minute int, err error) {
	m := clockPattern.FindStringSubmatch(at)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", at)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q out of range", at)
	}
	return hour, minute, nil
}

// DailySpec converts "HH:MM" to a five-field cron expression.
func DailySpec(at string) (string, error) {
	h, m, err := ParseClock(at)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

// New creates a Scheduler evaluating times in loc. A nil loc means UTC.
func New(loc *time.Location, handler JobHandler, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		jobs:        make(map[string]*Job),
		cronIDs:     make(map[string]cron.EntryID),
		runningJobs: make(map[string]bool),
		location:    loc,
		handler:     handler,
		jobTimeout:  DefaultJobTimeout,
		logger:      logger.With("component", "scheduler"),
	}
}

// SetJobTimeout overrides the per-run timeout.
func (s *Scheduler) SetJobTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.jobTimeout = d
	}
}

// Location returns the zone schedules are evaluated in.
func (s *Scheduler) Location() *time.Location { return s.location }

// Add registers a job. It may be called before or after Start.
func (s *Scheduler) Add(job *Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	spec, err := DailySpec(job.At)
	if err != nil {
		return fmt.Errorf("job %q: %w", job.ID, err)
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("job %q: %w", job.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %q already exists", job.ID)
	}
	job.schedule = schedule

	if s.cron != nil {
		if err := s.scheduleCronJob(job); err != nil {
			return err
		}
	}
	s.jobs[job.ID] = job

	s.logger.Info("job added", "id", job.ID, "at", job.At, "zone", s.location.String())
	return nil
}

// Remove deletes a job by ID.
func (s *Scheduler) Remove(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[jobID]; !exists {
		return fmt.Errorf("job %q not found", jobID)
	}
	if entryID, ok := s.cronIDs[jobID]; ok {
		s.cron.Remove(entryID)
		delete(s.cronIDs, jobID)
	}
	delete(s.jobs, jobID)

	s.logger.Info("job removed", "id", jobID)
	return nil
}

// List returns all jobs ordered by fire time.
func (s *Scheduler) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		result = append(result, j)
	}
	sort.Slice(result, func(a, b int) bool {
		if result[a].At != result[b].At {
			return clockMinutes(result[a].At) < clockMinutes(result[b].At)
		}
		return result[a].ID < result[b].ID
	})
	return result
}

// Get returns a job by ID.
func (s *Scheduler) Get(jobID string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[jobID]
	return j, ok
}

// Next returns the earliest fire time after now across all jobs, and the
// job that fires then. ok is false when no jobs are registered.
func (s *Scheduler) Next(now time.Time) (at time.Time, job *Job, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	local := now.In(s.location)
	for _, j := range s.jobs {
		next := j.schedule.Next(local)
		if !ok || next.Before(at) || (next.Equal(at) && j.ID < job.ID) {
			at, job, ok = next, j, true
		}
	}
	return at, job, ok
}

// Start begins firing jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New(cron.WithLocation(s.location))

	for _, job := range s.jobs {
		if err := s.scheduleCronJob(job); err != nil {
			s.logger.Warn("skipping job with invalid schedule", "id", job.ID, "at", job.At, "error", err)
		}
	}
	s.cron.Start()

	s.logger.Info("scheduler started", "jobs", len(s.jobs), "zone", s.location.String())
	return nil
}

// Stop shuts the scheduler down, waiting briefly for running jobs.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	c := s.cron
	s.mu.RUnlock()

	if c != nil {
		ctx := c.Stop()
		select {
		case <-ctx.Done():
		case <-time.After(10 * time.Second):
			s.logger.Warn("scheduler stop timed out")
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("scheduler stopped")
}

// RunNow executes a job immediately with the same guards as a scheduled
// fire.
func (s *Scheduler) RunNow(jobID string) error {
	job, ok := s.Get(jobID)
	if !ok {
		return fmt.Errorf("job %q not found", jobID)
	}
	s.executeJob(job)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if job.LastError != "" {
		return fmt.Errorf("job %q: %s", jobID, job.LastError)
	}
	return nil
}

// ---------- Internal ----------

// scheduleCronJob registers a job with cron. Caller holds s.mu.
func (s *Scheduler) scheduleCronJob(job *Job) error {
	entryID := s.cron.Schedule(job.schedule, cron.FuncJob(func() {
		s.executeJob(job)
	}))
	s.cronIDs[job.ID] = entryID
	return nil
}

// executeJob runs a job through the handler with safety guards:
// - a job already running is not started again
// - a job that ran within minJobInterval is skipped
// - panics are recovered and recorded as the job's error
// - the run is bounded by the job timeout
func (s *Scheduler) executeJob(job *Job) {
	s.mu.Lock()
	if s.runningJobs[job.ID] {
		s.mu.Unlock()
		s.logger.Warn("skipping job (already running)", "id", job.ID)
		return
	}
	if job.LastRunAt != nil && time.Since(*job.LastRunAt) < minJobInterval {
		s.mu.Unlock()
		s.logger.Debug("skipping job (ran too recently)", "id", job.ID,
			"last_run_at", job.LastRunAt.Format(time.RFC3339))
		return
	}
	s.runningJobs[job.ID] = true
	now := time.Now()
	job.LastRunAt = &now
	job.RunCount++
	timeout := s.jobTimeout
	parent := s.ctx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.runningJobs, job.ID)
		s.mu.Unlock()

		if r := recover(); r != nil {
			s.mu.Lock()
			job.LastError = fmt.Sprintf("panic: %v", r)
			s.mu.Unlock()
			s.logger.Error("scheduled job panicked", "id", job.ID, "panic", r)
		}
	}()

	if s.handler == nil {
		s.mu.Lock()
		job.LastError = "no handler configured"
		s.mu.Unlock()
		return
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	s.logger.Info("executing scheduled job", "id", job.ID, "at", job.At)
	runStart := time.Now()
	err := s.handler(ctx, job)
	runDuration := time.Since(runStart)

	s.mu.Lock()
	job.LastRunDuration = runDuration
	if err != nil {
		job.LastError = err.Error()
	} else {
		job.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled job failed", "id", job.ID, "error", err, "duration", runDuration)
		return
	}
	s.logger.Info("scheduled job completed", "id", job.ID, "duration", runDuration)
}

func clockMinutes(at string) int {
	h, m, err := ParseClock(at)
	if err != nil {
		return -1
	}
	return h*60 + m
}
