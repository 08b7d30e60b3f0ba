package clean

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sigreer/diskclean/internal/logging"
)

// RunStatus is the state of a run or of one step within it
type RunStatus string

const (
	StatusRunning         RunStatus = "running"
	StatusSucceeded       RunStatus = "succeeded"
	StatusFailed          RunStatus = "failed"
	StatusAborted         RunStatus = "aborted"
	StatusRebootRequested RunStatus = "reboot_requested"
)

// RunInfo describes a run when it starts
type RunInfo struct {
	ID        string
	Node      string
	Managers  string
	Steps     int
	StartedAt time.Time
}

// StepResult is the outcome of one executed step
type StepResult struct {
	Step      string        `json:"step"`
	Priority  int           `json:"priority"`
	Status    RunStatus     `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Report summarizes a run
type Report struct {
	ID      string       `json:"id"`
	Node    string       `json:"node"`
	Status  RunStatus    `json:"status"`
	Results []StepResult `json:"results"`
}

// Recorder persists run history. Recording failures are logged and never
// fail the run.
type Recorder interface {
	StartRun(ctx context.Context, run RunInfo) error
	RecordStep(ctx context.Context, runID string, result StepResult) error
	FinishRun(ctx context.Context, runID string, status RunStatus, errMsg string) error
}

type nopRecorder struct{}

func (nopRecorder) StartRun(context.Context, RunInfo) error { return nil }

func (nopRecorder) RecordStep(context.Context, string, StepResult) error { return nil }

func (nopRecorder) FinishRun(context.Context, string, RunStatus, string) error { return nil }

// Runner executes ordered steps one at a time
type Runner struct {
	// Managers is stored with each run as name:version pairs
	Managers map[string]string

	steps    []Step
	recorder Recorder
	log      *zap.SugaredLogger
	now      func() time.Time
	newID    func() string
}

// NewRunner runs steps in the given order. recorder may be nil.
func NewRunner(steps []Step, recorder Recorder) *Runner {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Runner{
		steps:    steps,
		recorder: recorder,
		log:      logging.Logger(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Run executes every step
func (r *Runner) Run(ctx context.Context, node *Node, ports []Port) (*Report, error) {
	return r.run(ctx, node, ports, r.steps)
}

// Resume executes the steps that come after the named one, typically the
// step that requested a reboot
func (r *Runner) Resume(ctx context.Context, node *Node, ports []Port, after string) (*Report, error) {
	idx := slices.IndexFunc(r.steps, func(s Step) bool { return s.Name() == after })
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, after)
	}
	return r.run(ctx, node, ports, r.steps[idx+1:])
}

func (r *Runner) run(ctx context.Context, node *Node, ports []Port, steps []Step) (*Report, error) {
	report := &Report{
		ID:     r.newID(),
		Node:   node.Name,
		Status: StatusRunning,
	}
	log := r.log.With("run", report.ID, "node", node.Name)

	r.warn(log, r.recorder.StartRun(ctx, RunInfo{
		ID:        report.ID,
		Node:      node.Name,
		Managers:  formatManagers(r.Managers),
		Steps:     len(steps),
		StartedAt: r.now(),
	}))

	finish := func(status RunStatus, err error) (*Report, error) {
		report.Status = status
		var msg string
		if err != nil {
			msg = err.Error()
		}
		// the run context may already be cancelled
		r.warn(log, r.recorder.FinishRun(context.WithoutCancel(ctx), report.ID, status, msg))
		return report, err
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			log.Warnw("cleaning aborted", "before", step.Name())
			return finish(StatusAborted, err)
		}

		stepCtx := ctx
		if !step.Abortable() {
			stepCtx = context.WithoutCancel(ctx)
		}

		log.Infow("running clean step", "step", step.Name(), "priority", step.Priority())
		started := r.now()
		err := step.Execute(stepCtx, node, ports)

		result := StepResult{
			Step:      step.Name(),
			Priority:  step.Priority(),
			Status:    StatusSucceeded,
			StartedAt: started,
			Duration:  r.now().Sub(started),
		}
		if err != nil {
			result.Status = StatusFailed
			result.Error = err.Error()
		}
		report.Results = append(report.Results, result)
		r.warn(log, r.recorder.RecordStep(context.WithoutCancel(ctx), report.ID, result))

		if err != nil {
			log.Errorw("clean step failed", "step", step.Name(), "error", err)
			return finish(StatusFailed, &StepError{Step: step.Name(), Err: err})
		}

		if step.RebootRequested() {
			log.Infow("clean step requested a reboot", "step", step.Name())
			return finish(StatusRebootRequested, fmt.Errorf("%w: %s", ErrRebootRequested, step.Name()))
		}
	}

	log.Infow("cleaning finished", "steps", len(report.Results))
	return finish(StatusSucceeded, nil)
}

func (r *Runner) warn(log *zap.SugaredLogger, err error) {
	if err != nil {
		log.Warnw("failed to record cleaning history", "error", err)
	}
}

func formatManagers(versions map[string]string) string {
	parts := make([]string, 0, len(versions))
	for _, name := range slices.Sorted(maps.Keys(versions)) {
		parts = append(parts, name+":"+versions[name])
	}
	return strings.Join(parts, ",")
}
