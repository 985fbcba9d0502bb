package job

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&Definition{
		Name: "noop",
		Run:  func(ctx context.Context, params Params) (any, error) { return nil, nil },
	})

	if _, ok := r.Get("noop"); !ok {
		t.Error("registered job not found")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("unexpected job found")
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()

	r := NewRegistry()
	def := &Definition{
		Name: "dup",
		Run:  func(ctx context.Context, params Params) (any, error) { return nil, nil },
	}
	r.Register(def)
	r.Register(def)
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zulu", "alfa", "mike"} {
		r.Register(&Definition{
			Name: name,
			Run:  func(ctx context.Context, params Params) (any, error) { return nil, nil },
		})
	}

	var names []string
	for _, def := range r.List() {
		names = append(names, def.Name)
	}
	if got := strings.Join(names, ","); got != "alfa,mike,zulu" {
		t.Errorf("List order = %s", got)
	}
}

func TestParamsTypedGetters(t *testing.T) {
	p := Params{"name": "anne", "count": "3", "night": "true", "ratio": 2.0}

	if s, err := p.String("name"); err != nil || s != "anne" {
		t.Errorf("String = %q, %v", s, err)
	}
	if _, err := p.String("missing"); err == nil {
		t.Error("expected error for missing string")
	}
	if n, err := p.Int("count"); err != nil || n != 3 {
		t.Errorf("Int = %d, %v", n, err)
	}
	if n, err := p.Int("ratio"); err != nil || n != 2 {
		t.Errorf("Int from float = %d, %v", n, err)
	}
	if b, err := p.Bool("night"); err != nil || !b {
		t.Errorf("Bool = %v, %v", b, err)
	}
	if b, err := p.Bool("absent"); err != nil || b {
		t.Errorf("Bool for absent key = %v, %v", b, err)
	}
	if n, err := p.IntOr("absent", 7); err != nil || n != 7 {
		t.Errorf("IntOr = %d, %v", n, err)
	}
}

func TestParseArgs(t *testing.T) {
	params, err := ParseArgs([]string{"cpr=0101805566", "night=true"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if params["cpr"] != "0101805566" || params["night"] != "true" {
		t.Errorf("params = %v", params)
	}

	if _, err := ParseArgs([]string{"broken"}); err == nil {
		t.Error("expected error for malformed argument")
	}
}

func TestRunnerPadModeEmitsResultLine(t *testing.T) {
	r := NewRegistry()
	r.Register(&Definition{
		Name: "greet",
		Run: func(ctx context.Context, params Params) (any, error) {
			name, err := params.String("name")
			if err != nil {
				return nil, err
			}
			return map[string]string{"greeting": "hej " + name}, nil
		},
	})

	var out bytes.Buffer
	runner := NewRunner(r, &out)
	runner.PadMode = true

	if _, err := runner.Run(context.Background(), "greet", Params{"name": "anne"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	line := strings.TrimSpace(out.String())
	want := `{"result":{"greeting":"hej anne"}}`
	if line != want {
		t.Errorf("stdout line = %s, want %s", line, want)
	}
}

func TestRunnerPadModeEmitsErrorLine(t *testing.T) {
	r := NewRegistry()
	r.Register(&Definition{
		Name: "fail",
		Run: func(ctx context.Context, params Params) (any, error) {
			return nil, fmt.Errorf("boom")
		},
	})

	var out bytes.Buffer
	runner := NewRunner(r, &out)
	runner.PadMode = true

	if _, err := runner.Run(context.Background(), "fail", nil); err == nil {
		t.Fatal("expected error")
	}

	if got := strings.TrimSpace(out.String()); got != `{"error":"boom"}` {
		t.Errorf("stdout line = %s", got)
	}
}

func TestLoadSchedule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	content := `jobs:
  - job: license-monitor
    cron: "0 7 * * MON"
  - job: nexus-backup
    cron: "30 5 * * *"
    params:
      night: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadSchedule(path)
	if err != nil {
		t.Fatalf("LoadSchedule failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Job != "license-monitor" || entries[0].Cron != "0 7 * * MON" {
		t.Errorf("entry[0] = %+v", entries[0])
	}
	if entries[1].Params["night"] != true {
		t.Errorf("entry[1].Params = %v", entries[1].Params)
	}
}

// slowScheduler wires a scheduler around a job that blocks until release is
// closed, reporting each start on the started channel.
func slowScheduler() (s *Scheduler, started chan struct{}, release chan struct{}) {
	started = make(chan struct{}, 4)
	release = make(chan struct{})

	r := NewRegistry()
	r.Register(&Definition{
		Name: "slow",
		Run: func(ctx context.Context, params Params) (any, error) {
			started <- struct{}{}
			<-release
			return nil, nil
		},
	})
	return NewScheduler(NewRunner(r, io.Discard)), started, release
}

func TestSchedulerSkipsOverlappingEntry(t *testing.T) {
	s, started, release := slowScheduler()
	entry := Entry{Job: "slow", Cron: "@every 1h"}

	done := make(chan struct{})
	go func() {
		s.trigger(context.Background(), 0, entry)
		close(done)
	}()
	<-started

	// A trigger for the same entry while the first run is in flight returns
	// without starting the job again.
	s.trigger(context.Background(), 0, entry)
	select {
	case <-started:
		t.Fatal("overlapping trigger started a second run")
	default:
	}

	close(release)
	<-done
}

func TestSchedulerEntriesSameJobRunIndependently(t *testing.T) {
	s, started, release := slowScheduler()
	entry := Entry{Job: "slow", Cron: "@every 1h"}

	var done [2]chan struct{}
	for i := range done {
		done[i] = make(chan struct{})
	}

	go func() {
		s.trigger(context.Background(), 0, entry)
		close(done[0])
	}()
	<-started

	// A second schedule entry invoking the same job has its own guard and
	// runs even while the first entry is busy.
	go func() {
		s.trigger(context.Background(), 1, entry)
		close(done[1])
	}()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("second entry was blocked by the first")
	}

	close(release)
	<-done[0]
	<-done[1]
}
