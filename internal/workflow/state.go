package workflow

import "fmt"

// Step is a position in the five step guided workflow.
type Step int

const (
	StepResumeAnalysis Step = iota + 1
	StepJobRecommendation
	StepJobSelection
	StepAIConsult
	StepFinalEdit
)

const (
	FirstStep = StepResumeAnalysis
	LastStep  = StepFinalEdit
)

func (s Step) String() string {
	switch s {
	case StepResumeAnalysis:
		return "resume_analysis"
	case StepJobRecommendation:
		return "job_recommendation"
	case StepJobSelection:
		return "job_selection"
	case StepAIConsult:
		return "ai_consult"
	case StepFinalEdit:
		return "final_edit"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Valid reports whether s is within [FirstStep, LastStep].
func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

// View is what the surrounding interface shows.
type View int

const (
	ViewDashboard View = iota
	ViewWorkflow
)

func (v View) String() string {
	if v == ViewWorkflow {
		return "workflow"
	}
	return "dashboard"
}

// State is the step position and per-step completion of a session.
// The zero value is not usable; use NewState.
type State struct {
	current   Step
	completed [LastStep + 1]bool
}

func NewState() State {
	return State{current: FirstStep}
}

func (s State) Current() Step { return s.current }

// Completed reports whether step has been marked complete.
func (s State) Completed(step Step) bool {
	if !step.Valid() {
		return false
	}
	return s.completed[step]
}

func (s *State) complete(step Step) {
	if step.Valid() {
		s.completed[step] = true
	}
}

// advance moves forward one step, marking the step left complete.
func (s *State) advance() bool {
	if s.current >= LastStep {
		return false
	}
	s.completed[s.current] = true
	s.current++
	return true
}

// retreat moves back one step. Completion flags are left as they are.
func (s *State) retreat() bool {
	if s.current <= FirstStep {
		return false
	}
	s.current--
	return true
}

// Progress is 100 once the final step is complete, else (current-1)/4*100.
func (s State) Progress() float64 {
	if s.completed[LastStep] {
		return 100
	}
	return float64(s.current-FirstStep) / float64(LastStep-FirstStep) * 100
}
