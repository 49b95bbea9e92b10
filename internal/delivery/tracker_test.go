package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/princekumarofficial/chat-media-service/internal/media"
)

type fakeMemo struct {
	preferred  map[string]bool
	remembered []string
	forgotten  []string
}

func newFakeMemo() *fakeMemo {
	return &fakeMemo{preferred: make(map[string]bool)}
}

func (m *fakeMemo) Prefers(_ context.Context, normalized string) bool {
	return m.preferred[normalized]
}

func (m *fakeMemo) Remember(_ context.Context, normalized string) {
	m.preferred[normalized] = true
	m.remembered = append(m.remembered, normalized)
}

func (m *fakeMemo) Forget(_ context.Context, normalized string) {
	delete(m.preferred, normalized)
	m.forgotten = append(m.forgotten, normalized)
}

type published struct {
	id    string
	state State
}

type fakeSink struct {
	events []published
}

func (s *fakeSink) Publish(id string, _ media.Media, st State) {
	s.events = append(s.events, published{id: id, state: st})
}

func newTestTracker(opts ...Option) *Tracker {
	return NewTracker(media.NewInspector(testHosts, testRouter), testRouter, opts...)
}

func TestTrackerLifecycle(t *testing.T) {
	sink := &fakeSink{}
	tr := newTestTracker(WithSink(sink), WithClock(func() time.Time { return epoch }))
	ctx := context.Background()

	inst := tr.Mount(ctx, "m1", media.Attachment{Descriptor: primaryURL})
	if inst.Media.Kind != media.KindImage || inst.State().Phase != PhaseUnresolved {
		t.Fatalf("unexpected mounted instance %+v", inst)
	}

	if _, err := tr.Dispatch(ctx, "m1", Event{Type: EventStart}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	s, err := tr.Dispatch(ctx, "m1", Event{Type: EventSuccess})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if s.Phase != PhaseReady {
		t.Fatalf("expected ready, got %s", s.Phase)
	}
	if last, _ := s.LastAttempt(); !last.At.Equal(epoch) {
		t.Fatalf("expected clock to stamp events, got %v", last.At)
	}

	// suppressed events are not published
	tr.Dispatch(ctx, "m1", Event{Type: EventError})
	if len(sink.events) != 3 {
		t.Fatalf("expected 3 published states, got %d", len(sink.events))
	}

	if _, err := tr.Dispatch(ctx, "ghost", Event{Type: EventStart}); !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("expected ErrUnknownInstance, got %v", err)
	}
}

func TestTrackerRemount(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	first := tr.Mount(ctx, "m1", media.Attachment{Descriptor: primaryURL})
	tr.Dispatch(ctx, "m1", Event{Type: EventStart})

	same := tr.Mount(ctx, "m1", media.Attachment{Descriptor: primaryURL})
	if same != first || same.State().Phase != PhaseLoadingDirect {
		t.Fatal("remounting the same attachment must keep the instance")
	}

	changed := tr.Mount(ctx, "m1", media.Attachment{Descriptor: genericURL})
	if changed == first || changed.State().Phase != PhaseUnresolved {
		t.Fatal("a changed attachment must start a fresh instance")
	}

	// the discarded instance ignores everything
	if _, _, ok := first.dispatch(Event{Type: EventSuccess}); ok {
		t.Fatal("discarded instance accepted an event")
	}
	if tr.Len() != 1 {
		t.Fatalf("expected one instance, got %d", tr.Len())
	}
}

func TestTrackerRetry(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	tr.Mount(ctx, "m1", media.Attachment{Descriptor: primaryURL})
	tr.Dispatch(ctx, "m1", Event{Type: EventStart})

	if _, err := tr.Retry(ctx, "m1"); !errors.Is(err, ErrNotTerminal) {
		t.Fatalf("expected ErrNotTerminal, got %v", err)
	}

	tr.Dispatch(ctx, "m1", Event{Type: EventError, Err: TransportError{Cause: CauseCORS}})
	tr.Dispatch(ctx, "m1", Event{Type: EventError, Err: TransportError{Cause: CauseNetwork}})

	inst, err := tr.Retry(ctx, "m1")
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if inst.State() != Initial() {
		t.Fatalf("expected a fresh state, got %+v", inst.State())
	}

	if _, err := tr.Retry(ctx, "ghost"); !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("expected ErrUnknownInstance, got %v", err)
	}
}

func TestTrackerUnmount(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	inst := tr.Mount(ctx, "m1", media.Attachment{Descriptor: primaryURL})
	tr.Unmount("m1")

	if _, err := tr.Dispatch(ctx, "m1", Event{Type: EventStart}); !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("expected ErrUnknownInstance after unmount, got %v", err)
	}
	if _, _, ok := inst.dispatch(Event{Type: EventStart}); ok {
		t.Fatal("unmounted instance accepted an event")
	}

	tr.Mount(ctx, "a", media.Attachment{Descriptor: primaryURL})
	tr.Mount(ctx, "b", media.Attachment{Descriptor: genericURL})
	tr.Close()
	if tr.Len() != 0 {
		t.Fatalf("expected close to discard all instances, got %d", tr.Len())
	}
}

func TestTrackerMemo(t *testing.T) {
	memo := newFakeMemo()
	tr := newTestTracker(WithMemo(memo))
	ctx := context.Background()

	// direct fails, relay works: remembered
	tr.Mount(ctx, "m1", media.Attachment{Descriptor: primaryURL})
	tr.Dispatch(ctx, "m1", Event{Type: EventStart})
	tr.Dispatch(ctx, "m1", Event{Type: EventError, Err: TransportError{Cause: CauseCORS}})
	tr.Dispatch(ctx, "m1", Event{Type: EventSuccess})
	if len(memo.remembered) != 1 || memo.remembered[0] != primaryURL {
		t.Fatalf("expected %s to be remembered, got %v", primaryURL, memo.remembered)
	}

	// the same URL elsewhere goes straight to the relay
	inst := tr.Mount(ctx, "m2", media.Attachment{Descriptor: primaryURL})
	s, _ := tr.Dispatch(ctx, "m2", Event{Type: EventStart})
	if !inst.reducer.PreferRelay || s.Phase != PhaseLoadingRelay {
		t.Fatalf("expected relay-first load, got %+v", s)
	}

	// a failing preferred relay is forgotten, still with one relay attempt
	s, _ = tr.Dispatch(ctx, "m2", Event{Type: EventError, Err: TransportError{Cause: CauseNetwork}})
	if s.Phase != PhaseFailed || s.RelayAttempts() != 1 {
		t.Fatalf("expected failure after one relay attempt, got %+v", s)
	}
	if len(memo.forgotten) != 1 {
		t.Fatalf("expected the memo entry to be forgotten, got %v", memo.forgotten)
	}

	// generic URLs have no relay and never consult the memo
	memo.preferred[genericURL] = true
	inst = tr.Mount(ctx, "m3", media.Attachment{Descriptor: genericURL})
	if inst.reducer.PreferRelay {
		t.Fatal("generic http must not prefer the relay")
	}
}
