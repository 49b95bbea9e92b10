// Package delivery drives the load lifecycle of one rendered media element:
// a direct attempt, at most one relay attempt, and a terminal state.
package delivery

import "time"

// Phase is the position of a media instance in its lifecycle.
type Phase string

const (
	PhaseUnresolved    Phase = "unresolved"
	PhaseLoadingDirect Phase = "loading_direct"
	PhaseLoadingRelay  Phase = "loading_relay"
	PhaseReady         Phase = "ready"
	PhaseFailed        Phase = "failed"
)

// Terminal reports whether the phase absorbs all further events.
func (p Phase) Terminal() bool {
	return p == PhaseReady || p == PhaseFailed
}

// Status is the user-facing condition shown next to the media.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	// StatusRetryHint means a fetch was tried and failed; a manual retry or
	// download may still work.
	StatusRetryHint Status = "error-with-retry-hint"
	// StatusFinal means nothing can be fetched for this reference.
	StatusFinal Status = "error-final"
)

// Origin tells whether an attempt went to the media host or to a relay.
type Origin string

const (
	OriginDirect Origin = "direct"
	OriginRelay  Origin = "relay"
)

// Outcome of one attempt.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Attempt is one load try against a specific URL.
type Attempt struct {
	Target  string    `json:"target"`
	Origin  Origin    `json:"origin"`
	Outcome Outcome   `json:"outcome"`
	At      time.Time `json:"at"`
}

// maxAttempts is one direct attempt followed by one relay attempt.
const maxAttempts = 2

// State is the observable state of one media instance. It is a value: every
// transition produces a new State and never mutates the previous one.
type State struct {
	Phase  Phase
	Target string
	Status Status
	Reason string
	// RelayUsed is set the moment the relay attempt is issued and never
	// cleared. It is what bounds an instance to a single relay attempt.
	RelayUsed bool

	attempts [maxAttempts]Attempt
	n        int
}

// Initial returns the state every instance starts in.
func Initial() State {
	return State{Phase: PhaseUnresolved, Status: StatusIdle}
}

// Attempts returns a copy of the attempt history in issue order.
func (s State) Attempts() []Attempt {
	out := make([]Attempt, s.n)
	copy(out, s.attempts[:s.n])
	return out
}

// RelayAttempts counts relay attempts issued so far.
func (s State) RelayAttempts() int {
	count := 0
	for _, a := range s.attempts[:s.n] {
		if a.Origin == OriginRelay {
			count++
		}
	}
	return count
}

// LastAttempt returns the most recent attempt, if any.
func (s State) LastAttempt() (Attempt, bool) {
	if s.n == 0 {
		return Attempt{}, false
	}
	return s.attempts[s.n-1], true
}

// withAttempt appends an attempt. The array bound makes a third attempt
// impossible; the reducer never asks for one.
func (s State) withAttempt(a Attempt) State {
	if s.n < maxAttempts {
		s.attempts[s.n] = a
		s.n++
	}
	return s
}

// settle records the outcome of the pending attempt.
func (s State) settle(o Outcome) State {
	if s.n > 0 && s.attempts[s.n-1].Outcome == OutcomePending {
		s.attempts[s.n-1].Outcome = o
	}
	return s
}

// View is the wire form of a State.
type View struct {
	Phase     Phase     `json:"phase"`
	Target    string    `json:"target,omitempty"`
	Status    Status    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	RelayUsed bool      `json:"relay_used"`
	Attempts  []Attempt `json:"attempts"`
}

// View renders the state for clients.
func (s State) View() View {
	return View{
		Phase:     s.Phase,
		Target:    s.Target,
		Status:    s.Status,
		Reason:    s.Reason,
		RelayUsed: s.RelayUsed,
		Attempts:  s.Attempts(),
	}
}
