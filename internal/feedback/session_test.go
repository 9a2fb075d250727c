package feedback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/importcheck/internal/core"
)

// funcChecker adapts a function to Checker and counts calls.
type funcChecker struct {
	calls atomic.Int32
	fn    func(ctx context.Context, value string) (*core.ValidationError, error)
}

func (f *funcChecker) CheckCell(ctx context.Context, _ string, value string) (*core.ValidationError, error) {
	f.calls.Add(1)
	return f.fn(ctx, value)
}

// recorder collects every snapshot passed to OnChange.
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) add(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.snaps))
	for i, s := range r.snaps {
		out[i] = s.State
	}
	return out
}

func waitFor(t *testing.T, s *Session, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap := s.Current(); cond(snap) {
			return snap
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached; last state %+v", s.Current())
	return Snapshot{}
}

func settled(s Snapshot) bool {
	return s.State == Resolved || s.State == Failed
}

func TestSession_BlankFailsWithoutRequest(t *testing.T) {
	c := &funcChecker{fn: func(context.Context, string) (*core.ValidationError, error) { return nil, nil }}
	s := NewSession(c, "Age", Options{Debounce: 5 * time.Millisecond})

	s.Edit("   ")
	snap := s.Current()
	if snap.State != Failed || snap.Message != MessageValueRequired {
		t.Errorf("after blank edit = %+v, want Failed(%q)", snap, MessageValueRequired)
	}

	time.Sleep(30 * time.Millisecond)
	if n := c.calls.Load(); n != 0 {
		t.Errorf("checker called %d times, want 0", n)
	}
}

func TestSession_DebounceCoalescesEdits(t *testing.T) {
	var got atomic.Value
	c := &funcChecker{fn: func(_ context.Context, value string) (*core.ValidationError, error) {
		got.Store(value)
		return nil, nil
	}}
	rec := &recorder{}
	s := NewSession(c, "Age", Options{Debounce: 40 * time.Millisecond, OnChange: rec.add})

	s.Edit("1")
	s.Edit("12")
	s.Edit("123")
	if st := s.Current().State; st != Pending {
		t.Fatalf("state after edits = %v, want pending", st)
	}

	snap := waitFor(t, s, settled)
	if snap.State != Resolved || snap.Message != MessageNoIssues || snap.Issue != nil {
		t.Errorf("final = %+v, want Resolved(no issues)", snap)
	}
	if n := c.calls.Load(); n != 1 {
		t.Errorf("checker called %d times, want 1", n)
	}
	if v, _ := got.Load().(string); v != "123" {
		t.Errorf("checked value = %q, want 123", v)
	}

	want := []State{Pending, Pending, Pending, Fetching, Resolved}
	states := rec.states()
	if len(states) != len(want) {
		t.Fatalf("transitions = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("transition[%d] = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestSession_ResolvedWithIssue(t *testing.T) {
	c := &funcChecker{fn: func(_ context.Context, value string) (*core.ValidationError, error) {
		e := core.NewValidationError("Age", "Age must be a number")
		return &e, nil
	}}
	s := NewSession(c, "Age", Options{Debounce: time.Millisecond})

	s.Edit("abc")
	snap := waitFor(t, s, settled)
	if snap.State != Resolved || snap.Issue == nil || snap.Message != "Age must be a number" {
		t.Errorf("final = %+v, want Resolved with issue", snap)
	}
}

func TestSession_StaleResponseIgnored(t *testing.T) {
	firstStarted := make(chan struct{})
	firstCtxErr := make(chan error, 1)

	c := &funcChecker{fn: func(ctx context.Context, value string) (*core.ValidationError, error) {
		if value == "old" {
			close(firstStarted)
			<-ctx.Done()
			firstCtxErr <- ctx.Err()
			return nil, nil
		}
		e := core.NewValidationError("Age", "fresh answer")
		return &e, nil
	}}
	s := NewSession(c, "Age", Options{Debounce: time.Millisecond})

	s.Edit("old")
	select {
	case <-firstStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never started")
	}

	s.Edit("new")
	select {
	case err := <-firstCtxErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("superseded request ctx error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded request was not cancelled")
	}

	snap := waitFor(t, s, func(s Snapshot) bool { return settled(s) && s.Value == "new" })
	if snap.Message != "fresh answer" {
		t.Errorf("final message = %q, want fresh answer", snap.Message)
	}

	time.Sleep(20 * time.Millisecond)
	if cur := s.Current(); cur.Value != "new" || cur.Message != "fresh answer" {
		t.Errorf("stale response overwrote state: %+v", cur)
	}
}

func TestSession_Timeout(t *testing.T) {
	c := &funcChecker{fn: func(ctx context.Context, _ string) (*core.ValidationError, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	s := NewSession(c, "Age", Options{Debounce: time.Millisecond, Timeout: 20 * time.Millisecond})

	s.Edit("slow")
	snap := waitFor(t, s, settled)
	if snap.State != Failed || !strings.Contains(snap.Message, "timed out") {
		t.Errorf("final = %+v, want Failed with timeout message", snap)
	}
}

func TestSession_CheckerError(t *testing.T) {
	c := &funcChecker{fn: func(context.Context, string) (*core.ValidationError, error) {
		return nil, errors.New("template not found")
	}}
	s := NewSession(c, "Age", Options{Debounce: time.Millisecond})

	s.Edit("1")
	snap := waitFor(t, s, settled)
	if snap.State != Failed || snap.Message != "template not found" {
		t.Errorf("final = %+v, want Failed(template not found)", snap)
	}
}

func TestSession_Reset(t *testing.T) {
	c := &funcChecker{fn: func(context.Context, string) (*core.ValidationError, error) { return nil, nil }}
	s := NewSession(c, "Age", Options{Debounce: 50 * time.Millisecond})

	s.Edit("1")
	s.Reset()
	if st := s.Current().State; st != Idle {
		t.Errorf("state after Reset = %v, want idle", st)
	}

	time.Sleep(80 * time.Millisecond)
	if n := c.calls.Load(); n != 0 {
		t.Errorf("checker called %d times after Reset, want 0", n)
	}
	if st := s.Current().State; st != Idle {
		t.Errorf("state = %v, want idle", st)
	}
}

func TestSession_SequenceIncreases(t *testing.T) {
	c := &funcChecker{fn: func(context.Context, string) (*core.ValidationError, error) { return nil, nil }}
	s := NewSession(c, "Age", Options{Debounce: time.Hour})

	var last uint64
	for _, v := range []string{"a", "", "b", "c"} {
		s.Edit(v)
		seq := s.Current().Seq
		if seq <= last {
			t.Errorf("Seq after Edit(%q) = %d, want > %d", v, seq, last)
		}
		last = seq
	}
	s.Reset()
}

func TestStateString(t *testing.T) {
	tests := map[State]string{Idle: "idle", Pending: "pending", Fetching: "fetching", Resolved: "resolved", Failed: "failed", State(9): "state(9)"}
	for st, want := range tests {
		if got := st.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(st), got, want)
		}
	}
}
