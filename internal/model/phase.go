package model

// Phase represents the orchestrator life cycle state.
// A run moves through the phases in one direction only:
//
//	Init -> Authenticating -> Crawling -> Draining -> Done
//
// with Authenticating -> Failed as the single fatal branch. Every run ends
// in Done or Failed.
type Phase int

const (
	// PhaseInit is the initial state: configuration validated, nothing started.
	PhaseInit Phase = iota

	// PhaseAuthenticating means the session manager is establishing the login.
	PhaseAuthenticating

	// PhaseCrawling means workers are rendering pages from the frontier.
	PhaseCrawling

	// PhaseDraining means no new tasks are dispatched and in-flight tasks are
	// finishing, bounded by the grace period. Entered on cancellation or when
	// the frontier runs dry.
	PhaseDraining

	// PhaseDone is the successful terminal state.
	PhaseDone

	// PhaseFailed is the terminal state for a fatal authentication failure.
	PhaseFailed
)

// String returns a human-readable representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "INIT"
	case PhaseAuthenticating:
		return "AUTHENTICATING"
	case PhaseCrawling:
		return "CRAWLING"
	case PhaseDraining:
		return "DRAINING"
	case PhaseDone:
		return "DONE"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// phaseTransitions maps each phase to the phases it may legally move to.
var phaseTransitions = map[Phase][]Phase{
	PhaseInit:           {PhaseAuthenticating},
	PhaseAuthenticating: {PhaseCrawling, PhaseFailed},
	PhaseCrawling:       {PhaseDraining},
	PhaseDraining:       {PhaseDone},
	PhaseDone:           nil,
	PhaseFailed:         nil,
}

// CanTransition reports whether moving from p to next is a legal
// life cycle transition.
func (p Phase) CanTransition(next Phase) bool {
	for _, allowed := range phaseTransitions[p] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Terminal reports whether the phase is an end state.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}
