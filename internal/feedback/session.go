// Package feedback drives per-cell validation while a user types.
//
// A Session debounces edits, sends at most one validation request per
// quiet period and applies a response only if it answers the newest
// request. Older in-flight requests are cancelled as soon as a newer edit
// arrives, so a slow stale answer can never overwrite a fresh one.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/importcheck/internal/core"
)

// State is the lifecycle position of a Session.
type State int

const (
	Idle State = iota
	Pending
	Fetching
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Fetching:
		return "fetching"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	DefaultDebounce = 300 * time.Millisecond
	DefaultTimeout  = 10 * time.Second

	MessageNoIssues      = "no issues"
	MessageValueRequired = "value required"
)

// Checker validates one cell value remotely. A nil issue means the value
// passed.
type Checker interface {
	CheckCell(ctx context.Context, label, value string) (*core.ValidationError, error)
}

// Snapshot is the observable state of a Session.
type Snapshot struct {
	State   State
	Value   string
	Issue   *core.ValidationError // set when Resolved with a failing value
	Message string
	Seq     uint64 // sequence number of the edit the state belongs to
}

// Options tunes a Session. Zero values fall back to the defaults.
type Options struct {
	Debounce time.Duration
	Timeout  time.Duration

	// OnChange receives every state transition, in order. It must not
	// call back into the Session.
	OnChange func(Snapshot)
}

// Session validates the value of one column as it is edited. It is safe
// for concurrent use.
type Session struct {
	checker  Checker
	label    string
	debounce time.Duration
	timeout  time.Duration
	onChange func(Snapshot)

	mu     sync.Mutex
	seq    uint64
	snap   Snapshot
	timer  *time.Timer
	cancel context.CancelFunc

	// notifyMu orders OnChange calls; it is taken before mu is released.
	notifyMu sync.Mutex
}

// NewSession returns an Idle session checking values of label.
func NewSession(checker Checker, label string, opts Options) *Session {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Session{
		checker:  checker,
		label:    label,
		debounce: opts.Debounce,
		timeout:  opts.Timeout,
		onChange: opts.OnChange,
		snap:     Snapshot{State: Idle},
	}
}

// Current returns the current state.
func (s *Session) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Edit records a new value. A blank value fails immediately without a
// request; any other value (re)arms the debounce timer.
func (s *Session) Edit(value string) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.stopLocked()

	if strings.TrimSpace(value) == "" {
		s.setLocked(Snapshot{State: Failed, Value: value, Message: MessageValueRequired, Seq: seq})
		return
	}

	s.timer = time.AfterFunc(s.debounce, func() { s.fire(seq) })
	s.setLocked(Snapshot{State: Pending, Value: value, Seq: seq})
}

// Reset cancels any pending or in-flight check and returns to Idle.
func (s *Session) Reset() {
	s.mu.Lock()
	s.seq++
	s.stopLocked()
	s.setLocked(Snapshot{State: Idle, Seq: s.seq})
}

// fire sends the request for edit seq once its debounce period elapsed.
func (s *Session) fire(seq uint64) {
	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	s.cancel = cancel
	s.timer = nil
	value := s.snap.Value
	s.setLocked(Snapshot{State: Fetching, Value: value, Seq: seq})

	issue, err := s.checker.CheckCell(ctx, s.label, value)
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
	cancel()

	s.mu.Lock()
	if seq != s.seq {
		// Superseded while in flight.
		s.mu.Unlock()
		return
	}
	s.cancel = nil

	next := Snapshot{Value: value, Seq: seq}
	switch {
	case timedOut || errors.Is(err, core.ErrTimeout):
		next.State = Failed
		next.Message = fmt.Sprintf("validation timed out after %s", s.timeout)
	case err != nil:
		next.State = Failed
		next.Message = err.Error()
	case issue != nil:
		next.State = Resolved
		next.Issue = issue
		next.Message = issue.Reason()
	default:
		next.State = Resolved
		next.Message = MessageNoIssues
	}
	s.setLocked(next)
}

// stopLocked disarms the timer and cancels the in-flight request.
func (s *Session) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// setLocked stores snap, releases mu and notifies the observer. Callers
// hold mu; it is released on return.
func (s *Session) setLocked(snap Snapshot) {
	s.snap = snap
	if s.onChange == nil {
		s.mu.Unlock()
		return
	}
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	s.onChange(snap)
}
