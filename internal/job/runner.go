package job

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
)

// Runner executes registered jobs. Logs always go to stderr so that stdout
// stays reserved for the machine-readable result in desktop-flow mode, where
// Power Automate Desktop reads a single JSON line from stdout.
type Runner struct {
	registry *Registry

	// Stdout receives the result line in desktop-flow mode.
	Stdout io.Writer

	// PadMode prints the result as one JSON line on stdout.
	PadMode bool
}

// NewRunner creates a runner backed by the given registry.
func NewRunner(registry *Registry, stdout io.Writer) *Runner {
	return &Runner{registry: registry, Stdout: stdout}
}

// padResult is the stdout envelope consumed by desktop flows.
type padResult struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Run executes a job by name and returns its result. In desktop-flow mode
// the result, or the error, is also written to stdout as JSON.
func (r *Runner) Run(ctx context.Context, name string, params Params) (any, error) {
	def, ok := r.registry.Get(name)
	if !ok {
		err := fmt.Errorf("unknown job: %s", name)
		r.emit(nil, err)
		return nil, err
	}

	runID := uuid.New().String()
	log.Printf("job %s starting run=%s params=%v", name, runID, params)

	start := time.Now()
	result, err := def.Run(ctx, params)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		log.Printf("job %s failed run=%s after %s: %v", name, runID, elapsed, err)
		r.emit(nil, err)
		return nil, err
	}

	log.Printf("job %s finished run=%s in %s", name, runID, elapsed)
	r.emit(result, nil)
	return result, nil
}

func (r *Runner) emit(result any, runErr error) {
	if !r.PadMode || r.Stdout == nil {
		return
	}

	envelope := padResult{Result: result}
	if runErr != nil {
		envelope.Error = runErr.Error()
	}

	line, err := json.Marshal(envelope)
	if err != nil {
		line, _ = json.Marshal(padResult{Error: fmt.Sprintf("marshal result: %v", err)})
	}
	fmt.Fprintln(r.Stdout, string(line))
}
