package delivery

import (
	"time"

	"github.com/princekumarofficial/chat-media-service/internal/media"
)

// EventType is a load-lifecycle signal from the rendering surface.
type EventType string

const (
	EventStart   EventType = "start"
	EventSuccess EventType = "success"
	EventError   EventType = "error"
)

// Event is one lifecycle signal. Target, when set, is the URL the surface
// was loading; events for any other URL are stale and ignored.
type Event struct {
	Type   EventType
	Target string
	Err    TransportError
	At     time.Time
}

// RouteBuilder builds relay URLs. *relay.Router implements it.
type RouteBuilder interface {
	RouteFor(res media.Resolution, instance string, at time.Time) (string, bool)
}

const reasonUnavailable = "This attachment is no longer available."

// Reducer holds everything a transition depends on besides the state
// itself. Reduce has no side effects.
type Reducer struct {
	Resolution media.Resolution
	Instance   string
	Routes     RouteBuilder
	// PreferRelay skips the direct attempt when the relay is already known
	// to be needed for this URL.
	PreferRelay bool
}

// Reduce returns the state that follows s after ev.
func (r Reducer) Reduce(s State, ev Event) State {
	if s.Phase.Terminal() {
		return s
	}
	if ev.Target != "" && s.Target != "" && ev.Target != s.Target {
		return s
	}

	switch s.Phase {
	case PhaseUnresolved:
		if ev.Type != EventStart {
			return s
		}
		return r.start(s, ev.At)

	case PhaseLoadingDirect:
		switch ev.Type {
		case EventSuccess:
			return ready(s.settle(OutcomeSuccess))
		case EventError:
			s = s.settle(OutcomeError)
			if s.RelayUsed {
				return failed(s, StatusRetryHint, ev.Err.Reason())
			}
			if next, ok := r.toRelay(s, ev.At); ok {
				return next
			}
			return failed(s, StatusRetryHint, ev.Err.Reason())
		}

	case PhaseLoadingRelay:
		switch ev.Type {
		case EventSuccess:
			return ready(s.settle(OutcomeSuccess))
		case EventError:
			return failed(s.settle(OutcomeError), StatusRetryHint, ev.Err.Reason())
		}
	}
	return s
}

func (r Reducer) start(s State, at time.Time) State {
	res := r.Resolution
	if !res.Valid() {
		return failed(s, StatusFinal, reasonUnavailable)
	}
	if res.Transport == media.TransportEncryptedSource || r.PreferRelay {
		if next, ok := r.toRelay(s, at); ok {
			return next
		}
		if res.Transport == media.TransportEncryptedSource {
			return failed(s, StatusFinal, reasonUnavailable)
		}
	}
	s.Phase = PhaseLoadingDirect
	s.Target = res.Normalized
	s.Status = StatusLoading
	s.Reason = ""
	return s.withAttempt(Attempt{Target: res.Normalized, Origin: OriginDirect, Outcome: OutcomePending, At: at})
}

// toRelay issues the one relay attempt. It refuses once RelayUsed is set.
func (r Reducer) toRelay(s State, at time.Time) (State, bool) {
	if s.RelayUsed || r.Routes == nil {
		return s, false
	}
	target, ok := r.Routes.RouteFor(r.Resolution, r.Instance, at)
	if !ok {
		return s, false
	}
	s.Phase = PhaseLoadingRelay
	s.Target = target
	s.Status = StatusLoading
	s.Reason = ""
	s.RelayUsed = true
	return s.withAttempt(Attempt{Target: target, Origin: OriginRelay, Outcome: OutcomePending, At: at}), true
}

func ready(s State) State {
	s.Phase = PhaseReady
	s.Status = StatusReady
	s.Reason = ""
	return s
}

func failed(s State, status Status, reason string) State {
	s.Phase = PhaseFailed
	s.Status = status
	s.Reason = reason
	return s
}
