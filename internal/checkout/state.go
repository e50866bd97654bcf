package checkout

import (
	"time"

	"github.com/bitcoinuniversity/invest/internal/submit"
)

// Phase is where an identity's checkout currently stands.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSettled    Phase = "settled"
)

// Outcome qualifies a settled checkout.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// State is a snapshot of one identity's checkout machine. Outcome, Result and
// Error are only set when Phase is PhaseSettled.
type State struct {
	Phase     Phase          `json:"phase"`
	Outcome   Outcome        `json:"outcome,omitempty"`
	Result    *submit.Result `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	StartedAt time.Time      `json:"startedAt,omitzero"`
	SettledAt time.Time      `json:"settledAt,omitzero"`
}

func (s State) canStart() bool {
	return s.Phase != PhaseSubmitting
}

func submitting(at time.Time) State {
	return State{Phase: PhaseSubmitting, StartedAt: at}
}

func succeeded(prev State, res submit.Result, at time.Time) State {
	return State{Phase: PhaseSettled, Outcome: OutcomeSucceeded, Result: &res, StartedAt: prev.StartedAt, SettledAt: at}
}

func failed(prev State, err error, at time.Time) State {
	return State{Phase: PhaseSettled, Outcome: OutcomeFailed, Error: err.Error(), StartedAt: prev.StartedAt, SettledAt: at}
}
