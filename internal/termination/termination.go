// Package termination decides, after each iteration, whether a run stops
// and why.
package termination

import (
	"github.com/charmbracelet/log"

	"github.com/shanewwarren/fresher-sub000/internal/agents"
	"github.com/shanewwarren/fresher-sub000/internal/plan"
	"github.com/shanewwarren/fresher-sub000/internal/state"
)

// Input is everything the oracle looks at. It is built fresh for every
// decision.
type Input struct {
	Interrupted      bool
	Iteration        uint
	MaxIterations    uint
	SmartTermination bool
	PlanPath         string
	ImplDir          string
	Outcome          agents.Outcome
}

// Verdict is the oracle's answer. Reason is empty unless Stop is set.
type Verdict struct {
	Stop   bool
	Reason state.FinishReason
}

// PlanProbe reads the implementation plan.
type PlanProbe interface {
	HasPendingTasks(planPath, implDir string) bool
	Progress(planPath, implDir string) (plan.Counts, error)
}

type filePlan struct{}

func (filePlan) HasPendingTasks(planPath, implDir string) bool {
	return plan.HasPendingTasks(planPath, implDir)
}

func (filePlan) Progress(planPath, implDir string) (plan.Counts, error) {
	return plan.Progress(planPath, implDir)
}

// Oracle applies the stop conditions in a fixed priority order.
type Oracle struct {
	Plan   PlanProbe
	Logger *log.Logger
}

// New returns an oracle backed by the plan files on disk.
func New(logger *log.Logger) *Oracle {
	return &Oracle{Plan: filePlan{}, Logger: logger}
}

// Decide returns the first matching condition of: manual interrupt,
// iteration cap, plan complete, no changes. Otherwise the run continues.
func (o *Oracle) Decide(in Input) Verdict {
	if in.Interrupted {
		return stop(state.FinishManual)
	}
	if in.MaxIterations > 0 && in.Iteration >= in.MaxIterations {
		return stop(state.FinishMaxIterations)
	}
	if !in.SmartTermination {
		return Verdict{}
	}
	if o.planComplete(in) {
		return stop(state.FinishComplete)
	}
	if in.Iteration > 1 && !in.Outcome.WorkHappened {
		return stop(state.FinishNoChanges)
	}
	return Verdict{}
}

// planComplete requires at least one completed task so that an empty or
// missing plan never ends the run.
func (o *Oracle) planComplete(in Input) bool {
	probe := o.Plan
	if probe == nil {
		probe = filePlan{}
	}
	if probe.HasPendingTasks(in.PlanPath, in.ImplDir) {
		return false
	}
	counts, err := probe.Progress(in.PlanPath, in.ImplDir)
	if err != nil {
		if o.Logger != nil {
			o.Logger.Warn("reading plan progress", "plan", in.PlanPath, "err", err)
		}
		return false
	}
	return counts.Completed >= 1
}

func stop(reason state.FinishReason) Verdict {
	return Verdict{Stop: true, Reason: reason}
}
