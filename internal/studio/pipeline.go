package studio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"poster-studio/internal/apperr"
)

// StageStatus is the outcome of one pipeline stage.
type StageStatus string

const (
	StagePending StageStatus = "pending"
	StageOK      StageStatus = "ok"
	StageFailed  StageStatus = "failed"
	StageSkipped StageStatus = "skipped"
)

// Stage is one named step. Run sees the outputs of every stage that has
// succeeded so far. A stage whose Needs did not all succeed is skipped.
type Stage struct {
	Name  string
	Needs []string
	Run   func(ctx context.Context, outputs map[string]string) (string, error)
}

// Report is what a stage produced.
type Report struct {
	Name   string      `json:"name"`
	Status StageStatus `json:"status"`
	Output string      `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
	Err    error       `json:"-"`
}

// Pipeline runs stages in order. Each stage fails on its own; earlier
// results survive a later failure and any stage can be retried.
type Pipeline struct {
	stages  []Stage
	reports map[string]*Report
	timeout time.Duration
	logger  *slog.Logger
}

func NewPipeline(timeout time.Duration, logger *slog.Logger, stages ...Stage) *Pipeline {
	p := &Pipeline{
		stages:  stages,
		reports: make(map[string]*Report, len(stages)),
		timeout: timeout,
		logger:  logger,
	}
	for _, st := range stages {
		p.reports[st.Name] = &Report{Name: st.Name, Status: StagePending}
	}
	return p
}

// Run executes every stage once, in order.
func (p *Pipeline) Run(ctx context.Context) []Report {
	for _, st := range p.stages {
		p.runStage(ctx, st)
	}
	return p.Reports()
}

// Retry re-runs one stage with the current outputs.
func (p *Pipeline) Retry(ctx context.Context, name string) (Report, error) {
	for _, st := range p.stages {
		if st.Name == name {
			p.runStage(ctx, st)
			return *p.reports[name], nil
		}
	}
	return Report{}, apperr.New(apperr.CodeNotFound, "unknown stage %q", name)
}

func (p *Pipeline) runStage(ctx context.Context, st Stage) {
	rep := p.reports[st.Name]
	for _, need := range st.Needs {
		if r, ok := p.reports[need]; !ok || r.Status != StageOK {
			*rep = Report{Name: st.Name, Status: StageSkipped, Error: fmt.Sprintf("needs %s", need)}
			return
		}
	}

	stageCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := st.Run(stageCtx, p.Outputs())
	if err != nil {
		err = classify(stageCtx, err)
		*rep = Report{Name: st.Name, Status: StageFailed, Error: apperr.UserMessage(err), Err: err}
		if p.logger != nil {
			p.logger.Warn("pipeline stage failed", "stage", st.Name, "err", err)
		}
		return
	}
	*rep = Report{Name: st.Name, Status: StageOK, Output: out}
	if p.logger != nil {
		p.logger.Debug("pipeline stage done", "stage", st.Name, "dur_ms", time.Since(start).Milliseconds())
	}
}

// Outputs returns the outputs of the stages that succeeded.
func (p *Pipeline) Outputs() map[string]string {
	out := make(map[string]string)
	for name, r := range p.reports {
		if r.Status == StageOK {
			out[name] = r.Output
		}
	}
	return out
}

// Reports returns one report per stage in stage order.
func (p *Pipeline) Reports() []Report {
	out := make([]Report, 0, len(p.stages))
	for _, st := range p.stages {
		out = append(out, *p.reports[st.Name])
	}
	return out
}
