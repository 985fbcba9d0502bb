package job

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Entry is one scheduled job in the schedule file.
type Entry struct {
	Job    string         `yaml:"job"`
	Cron   string         `yaml:"cron"`
	Params map[string]any `yaml:"params"`
}

// scheduleFile is the on-disk schedule format.
type scheduleFile struct {
	Jobs []Entry `yaml:"jobs"`
}

// LoadSchedule reads schedule entries from a YAML file.
func LoadSchedule(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule %s: %w", path, err)
	}

	var file scheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schedule %s: %w", path, err)
	}
	if len(file.Jobs) == 0 {
		return nil, fmt.Errorf("schedule %s has no jobs", path)
	}

	return file.Jobs, nil
}

// Scheduler runs jobs on cron schedules. An entry whose previous run is still
// going when its next trigger fires is skipped for that trigger. Two entries
// for the same job run independently.
type Scheduler struct {
	runner *Runner
	cron   *cron.Cron

	mu      sync.Mutex
	entries int
	running map[int]bool
}

// NewScheduler creates a scheduler that executes jobs with the given runner.
func NewScheduler(runner *Runner) *Scheduler {
	return &Scheduler{
		runner:  runner,
		cron:    cron.New(),
		running: make(map[int]bool),
	}
}

// Add registers a schedule entry. The job must exist in the runner's registry
// before the first trigger fires.
func (s *Scheduler) Add(ctx context.Context, entry Entry) error {
	if entry.Job == "" {
		return fmt.Errorf("schedule entry without job name")
	}

	s.mu.Lock()
	id := s.entries
	s.entries++
	s.mu.Unlock()

	_, err := s.cron.AddFunc(entry.Cron, func() {
		s.trigger(ctx, id, entry)
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", entry.Job, entry.Cron, err)
	}
	return nil
}

func (s *Scheduler) trigger(ctx context.Context, id int, entry Entry) {
	s.mu.Lock()
	if s.running[id] {
		s.mu.Unlock()
		log.Printf("job %s still running, skipping trigger", entry.Job)
		return
	}
	s.running[id] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[id] = false
		s.mu.Unlock()
	}()

	if _, err := s.runner.Run(ctx, entry.Job, Params(entry.Params)); err != nil {
		log.Printf("scheduled job %s failed: %v", entry.Job, err)
	}
}

// Run starts the scheduler and blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()

	// Let in-flight jobs finish.
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}
