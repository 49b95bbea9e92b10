package delivery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/princekumarofficial/chat-media-service/internal/media"
)

var (
	ErrUnknownInstance = errors.New("unknown media instance")
	ErrNotTerminal     = errors.New("media instance is still loading")
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_delivery_transitions_total",
		Help: "Delivery state transitions by transport and resulting phase.",
	}, []string{"transport", "phase"})

	relayAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_delivery_relay_attempts_total",
		Help: "Relay attempts issued by media instances.",
	}, []string{"transport"})
)

// Routes is what the tracker needs from the relay router.
type Routes interface {
	RouteBuilder
	HasRoute(t media.Transport) bool
}

// Memo remembers normalized URLs whose direct load failed but whose relay
// load worked, so later renders can go straight to the relay.
type Memo interface {
	Prefers(ctx context.Context, normalized string) bool
	Remember(ctx context.Context, normalized string)
	Forget(ctx context.Context, normalized string)
}

// Sink receives every state an instance enters.
type Sink interface {
	Publish(instanceID string, m media.Media, s State)
}

// Instance is one rendered media element.
type Instance struct {
	ID    string
	Media media.Media

	reducer   Reducer
	state     State
	discarded bool
}

// State returns the current state.
func (i *Instance) State() State {
	return i.state
}

// dispatch applies ev. A discarded instance ignores everything.
func (i *Instance) dispatch(ev Event) (prev, next State, changed bool) {
	prev = i.state
	if i.discarded {
		return prev, prev, false
	}
	next = i.reducer.Reduce(prev, ev)
	i.state = next
	return prev, next, next != prev
}

// Tracker owns the media instances of one rendering surface. It is not safe
// for concurrent use: the surface delivers events from a single goroutine.
type Tracker struct {
	inspector *media.Inspector
	routes    Routes
	memo      Memo
	sink      Sink
	now       func() time.Time
	logger    *slog.Logger

	instances map[string]*Instance
}

type Option func(*Tracker)

func WithMemo(m Memo) Option { return func(t *Tracker) { t.memo = m } }

func WithSink(s Sink) Option { return func(t *Tracker) { t.sink = s } }

func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

func WithLogger(l *slog.Logger) Option { return func(t *Tracker) { t.logger = l } }

// NewTracker creates an empty tracker.
func NewTracker(inspector *media.Inspector, routes Routes, opts ...Option) *Tracker {
	t := &Tracker{
		inspector: inspector,
		routes:    routes,
		now:       time.Now,
		logger:    slog.Default(),
		instances: make(map[string]*Instance),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Mount registers a media instance. Mounting the same attachment under the
// same ID again keeps the existing instance; a changed attachment discards
// it and starts over.
func (t *Tracker) Mount(ctx context.Context, id string, att media.Attachment) *Instance {
	if existing, ok := t.instances[id]; ok {
		if existing.Media.Attachment == att {
			return existing
		}
		existing.discarded = true
	}
	inst := t.newInstance(ctx, id, att)
	t.instances[id] = inst
	t.publish(inst)
	return inst
}

func (t *Tracker) newInstance(ctx context.Context, id string, att media.Attachment) *Instance {
	m := t.inspector.Inspect(att)
	prefer := false
	res := m.Resolution
	if t.memo != nil && res.Valid() && t.routes.HasRoute(res.Transport) && res.Transport != media.TransportEncryptedSource {
		prefer = t.memo.Prefers(ctx, res.Normalized)
	}
	return &Instance{
		ID:    id,
		Media: m,
		reducer: Reducer{
			Resolution:  res,
			Instance:    att.Instance,
			Routes:      t.routes,
			PreferRelay: prefer,
		},
		state: Initial(),
	}
}

// Get returns a mounted instance.
func (t *Tracker) Get(id string) (*Instance, bool) {
	inst, ok := t.instances[id]
	return inst, ok
}

// Dispatch delivers a lifecycle event to an instance.
func (t *Tracker) Dispatch(ctx context.Context, id string, ev Event) (State, error) {
	inst, ok := t.instances[id]
	if !ok {
		return State{}, ErrUnknownInstance
	}
	if ev.At.IsZero() {
		ev.At = t.now()
	}
	prev, next, changed := inst.dispatch(ev)
	if changed {
		t.observe(ctx, inst, prev, next)
	} else {
		t.logger.Debug("media event suppressed",
			slog.String("instance_id", id),
			slog.String("event", string(ev.Type)),
			slog.String("phase", string(prev.Phase)),
		)
	}
	return next, nil
}

// Retry replaces a terminal instance with a fresh lifecycle for the same
// attachment. The old instance's history is dropped.
func (t *Tracker) Retry(ctx context.Context, id string) (*Instance, error) {
	old, ok := t.instances[id]
	if !ok {
		return nil, ErrUnknownInstance
	}
	if !old.state.Phase.Terminal() {
		return nil, ErrNotTerminal
	}
	old.discarded = true
	inst := t.newInstance(ctx, id, old.Media.Attachment)
	t.instances[id] = inst
	t.publish(inst)
	return inst, nil
}

// Unmount discards an instance; late events for it are ignored.
func (t *Tracker) Unmount(id string) {
	if inst, ok := t.instances[id]; ok {
		inst.discarded = true
		delete(t.instances, id)
	}
}

// Len returns the number of mounted instances.
func (t *Tracker) Len() int {
	return len(t.instances)
}

// Close discards every instance.
func (t *Tracker) Close() {
	for id := range t.instances {
		t.Unmount(id)
	}
}

func (t *Tracker) observe(ctx context.Context, inst *Instance, prev, next State) {
	transport := string(inst.Media.Resolution.Transport)
	transitionsTotal.WithLabelValues(transport, string(next.Phase)).Inc()
	if next.RelayUsed && !prev.RelayUsed {
		relayAttemptsTotal.WithLabelValues(transport).Inc()
	}

	t.logger.Debug("media state changed",
		slog.String("instance_id", inst.ID),
		slog.String("transport", transport),
		slog.String("from", string(prev.Phase)),
		slog.String("to", string(next.Phase)),
		slog.String("target", next.Target),
	)

	if t.memo != nil {
		t.learn(ctx, inst, next)
	}
	t.publish(inst)
}

// learn updates the memo once an instance settles.
func (t *Tracker) learn(ctx context.Context, inst *Instance, s State) {
	normalized := inst.Media.Resolution.Normalized
	attempts := s.Attempts()
	switch s.Phase {
	case PhaseReady:
		if len(attempts) == 2 && attempts[0].Outcome == OutcomeError && attempts[1].Origin == OriginRelay {
			t.memo.Remember(ctx, normalized)
		}
	case PhaseFailed:
		if inst.reducer.PreferRelay {
			t.memo.Forget(ctx, normalized)
		}
	}
}

func (t *Tracker) publish(inst *Instance) {
	if t.sink != nil {
		t.sink.Publish(inst.ID, inst.Media, inst.state)
	}
}
