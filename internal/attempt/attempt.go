package attempt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matuc/lti-exercise-composer/internal/exercise"
)

var (
	ErrInvalidState      = errors.New("attempt: action not allowed in current state")
	ErrTimeUp            = errors.New("attempt: time is up")
	ErrUnknownQuestion   = errors.New("attempt: unknown question")
	ErrNotConfirmed      = errors.New("attempt: submission was not confirmed")
	ErrSubmitInFlight    = errors.New("attempt: submission already in progress")
	ErrDuplicateSubmit   = errors.New("attempt: already submitted")
	ErrFreeNavigationOff = errors.New("attempt: free navigation is disabled for this exercise")
)

type State int

const (
	NotStarted State = iota
	InProgress
	Submitted
	Abandoned
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Submitted:
		return "submitted"
	case Abandoned:
		return "abandoned"
	}
	return "unknown"
}

const (
	DefaultTickInterval = time.Second
	DefaultIdleTTL      = 30 * time.Minute
)

// Snapshot is an immutable view of an attempt, pushed to subscribers.
type Snapshot struct {
	ID         string            `json:"id"`
	SetID      string            `json:"exerciseSetId"`
	State      string            `json:"state"`
	Index      int               `json:"index"`
	Total      int               `json:"total"`
	QuestionID string            `json:"questionId"`
	Responses  map[string]string `json:"responses"`
	Elapsed    int               `json:"elapsed"`   // seconds
	Remaining  int               `json:"remaining"` // seconds, 0 without a limit
	HasLimit   bool              `json:"hasLimit"`
	TimeUp     bool              `json:"timeUp"`
	Submitting bool              `json:"submitting"`
	StartedAt  time.Time         `json:"startedAt"`
}

type Options struct {
	Clock        Clock
	Submitter    Submitter
	Guard        Guard
	GuardTTL     time.Duration
	TickInterval time.Duration
	IdleTTL      time.Duration // Manager abandons attempts unseen for this long
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
	if o.Submitter == nil {
		o.Submitter = SubmitterFunc(func(context.Context, Submission) error { return nil })
	}
	if o.Guard == nil {
		o.Guard = NewMemoryGuard(o.Clock)
	}
	if o.GuardTTL <= 0 {
		o.GuardTTL = 24 * time.Hour
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.IdleTTL <= 0 {
		o.IdleTTL = DefaultIdleTTL
	}
	return o
}

// Attempt is one student's pass through an exercise set. It owns its ticker:
// every exit path (submit, time-up, Close) stops it, and no tick is applied after that.
type Attempt struct {
	id    string
	owner string
	key   string // idempotency key sent with the submission
	set   exercise.ExerciseSet
	limit int // seconds; 0 = no limit
	opts  Options

	mu         sync.Mutex
	state      State
	index      int
	responses  map[string]string
	startedAt  time.Time
	elapsed    int
	timeUp     bool
	submitting bool
	closed     bool
	lastSeen   time.Time
	stop       func()
	subs       map[int]chan Snapshot
	nextSub    int
}

func New(id, owner, key string, set exercise.ExerciseSet, opts Options) *Attempt {
	a := &Attempt{
		id:        id,
		owner:     owner,
		key:       key,
		set:       set,
		opts:      opts.withDefaults(),
		responses: map[string]string{},
		subs:      map[int]chan Snapshot{},
	}
	if d, ok := set.Configuration.TimeLimit(); ok {
		a.limit = int(d / time.Second)
	}
	a.lastSeen = a.opts.Clock.Now()
	return a
}

func (a *Attempt) ID() string                { return a.id }
func (a *Attempt) Owner() string             { return a.owner }
func (a *Attempt) Key() string               { return a.key }
func (a *Attempt) Set() exercise.ExerciseSet { return a.set }

// Start moves NotStarted to InProgress, zeroes elapsed time and starts ticking.
func (a *Attempt) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != NotStarted || a.closed {
		return ErrInvalidState
	}
	a.state = InProgress
	a.elapsed = 0
	a.startedAt = a.opts.Clock.Now()
	a.lastSeen = a.startedAt
	a.startTickerLocked()
	a.publishLocked()
	return nil
}

func (a *Attempt) Next() (int, error)     { return a.move(1) }
func (a *Attempt) Previous() (int, error) { return a.move(-1) }

// Jump goes straight to question i when the set allows free navigation.
func (a *Attempt) Jump(i int) (int, error) {
	if !a.set.Configuration.FreeNavigation {
		return a.Index(), ErrFreeNavigationOff
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.activeLocked(); err != nil {
		return a.index, err
	}
	a.index = clamp(i, len(a.set.Questions))
	a.lastSeen = a.opts.Clock.Now()
	a.publishLocked()
	return a.index, nil
}

func (a *Attempt) move(delta int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.activeLocked(); err != nil {
		return a.index, err
	}
	a.index = clamp(a.index+delta, len(a.set.Questions))
	a.lastSeen = a.opts.Clock.Now()
	a.publishLocked()
	return a.index, nil
}

func clamp(i, n int) int {
	if i > n-1 {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Answer records value for questionID. The value's shape is not checked.
func (a *Attempt) Answer(questionID, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.activeLocked(); err != nil {
		return err
	}
	if !a.hasQuestion(questionID) {
		return ErrUnknownQuestion
	}
	a.responses[questionID] = value
	a.lastSeen = a.opts.Clock.Now()
	a.publishLocked()
	return nil
}

func (a *Attempt) activeLocked() error {
	if a.state != InProgress || a.closed {
		return ErrInvalidState
	}
	if a.timeUp {
		return ErrTimeUp
	}
	return nil
}

func (a *Attempt) hasQuestion(id string) bool {
	for _, q := range a.set.Questions {
		if q.ID == id {
			return true
		}
	}
	return false
}

// Submit sends the responses once. It needs explicit confirmation and refuses
// to overlap with a submission already in flight. The ticker is stopped for the
// duration of the call and restarted if the submitter fails.
func (a *Attempt) Submit(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	a.mu.Lock()
	switch {
	case a.state == Submitted:
		a.mu.Unlock()
		return ErrDuplicateSubmit
	case a.state != InProgress || a.closed:
		a.mu.Unlock()
		return ErrInvalidState
	case a.submitting:
		a.mu.Unlock()
		return ErrSubmitInFlight
	}
	a.submitting = true
	a.lastSeen = a.opts.Clock.Now()
	a.stopTickerLocked()
	sub := Submission{
		AttemptID:      a.id,
		ExerciseSetID:  a.set.ID,
		Owner:          a.owner,
		IdempotencyKey: a.key,
		Responses:      copyResponses(a.responses),
		ElapsedSeconds: a.elapsed,
		TimeUp:         a.timeUp,
		StartedAt:      a.startedAt,
		SubmittedAt:    a.opts.Clock.Now(),
	}
	a.publishLocked()
	a.mu.Unlock()

	acquired, err := a.opts.Guard.Acquire(ctx, a.key, a.opts.GuardTTL)
	if err == nil && !acquired {
		err = ErrDuplicateSubmit
	}
	if err == nil {
		if err = a.opts.Submitter.Submit(ctx, sub); err != nil {
			_ = a.opts.Guard.Release(context.WithoutCancel(ctx), a.key)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.submitting = false
	switch {
	case err == nil || errors.Is(err, ErrDuplicateSubmit):
		if a.state == InProgress {
			a.state = Submitted
		}
	case a.state == InProgress && !a.timeUp && !a.closed:
		a.startTickerLocked()
	}
	a.publishLocked()
	return err
}

// Close tears the attempt down. Safe to call more than once.
func (a *Attempt) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.stopTickerLocked()
	if a.state == NotStarted || a.state == InProgress {
		a.state = Abandoned
	}
	a.publishLocked()
	a.closed = true
	for id, ch := range a.subs {
		close(ch)
		delete(a.subs, id)
	}
}

// Subscribe returns a channel that always holds the latest snapshot.
// The channel is closed by Close or by calling cancel.
func (a *Attempt) Subscribe() (<-chan Snapshot, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch := make(chan Snapshot, 1)
	if a.closed {
		ch <- a.snapshotLocked()
		close(ch)
		return ch, func() {}
	}
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	a.lastSeen = a.opts.Clock.Now()
	ch <- a.snapshotLocked()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if c, ok := a.subs[id]; ok {
				close(c)
				delete(a.subs, id)
				a.lastSeen = a.opts.Clock.Now()
			}
		})
	}
}

// Touch records activity that does not change the attempt, such as a page view.
func (a *Attempt) Touch() {
	a.mu.Lock()
	a.lastSeen = a.opts.Clock.Now()
	a.mu.Unlock()
}

// idleSince returns when the attempt was last seen. ok is false while a
// subscriber is attached or a submission is in flight.
func (a *Attempt) idleSince() (seen time.Time, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.subs) > 0 || a.submitting {
		return time.Time{}, false
	}
	return a.lastSeen, true
}

func (a *Attempt) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Attempt) Index() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.index
}

// Current returns the question at the current index.
func (a *Attempt) Current() (exercise.Question, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.index < 0 || a.index >= len(a.set.Questions) {
		return exercise.Question{}, false
	}
	return a.set.Questions[a.index], true
}

func (a *Attempt) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:         a.id,
		SetID:      a.set.ID,
		State:      a.state.String(),
		Index:      a.index,
		Total:      len(a.set.Questions),
		Responses:  copyResponses(a.responses),
		Elapsed:    a.elapsed,
		HasLimit:   a.limit > 0,
		TimeUp:     a.timeUp,
		Submitting: a.submitting,
		StartedAt:  a.startedAt,
	}
	if a.index < len(a.set.Questions) {
		s.QuestionID = a.set.Questions[a.index].ID
	}
	if a.limit > 0 {
		s.Remaining = a.remainingLocked()
	}
	return s
}

func (a *Attempt) remainingLocked() int {
	if r := a.limit - a.elapsed; r > 0 {
		return r
	}
	return 0
}

// publishLocked replaces whatever each subscriber has not read yet.
func (a *Attempt) publishLocked() {
	if len(a.subs) == 0 {
		return
	}
	s := a.snapshotLocked()
	for _, ch := range a.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// ---- ticker ----

func (a *Attempt) startTickerLocked() {
	a.stopTickerLocked()
	t := a.opts.Clock.NewTicker(a.opts.TickInterval)
	done := make(chan struct{})
	var once sync.Once
	a.stop = func() {
		once.Do(func() {
			close(done)
			t.Stop()
		})
	}
	go a.run(t, done)
}

func (a *Attempt) stopTickerLocked() {
	if a.stop != nil {
		a.stop()
		a.stop = nil
	}
}

func (a *Attempt) run(t Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-t.C():
			a.tick(done)
		}
	}
}

func (a *Attempt) tick(done <-chan struct{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	select {
	case <-done:
		return // stopped while waiting for the lock
	default:
	}
	if a.state != InProgress || a.submitting {
		return
	}
	a.elapsed++
	if a.limit > 0 && a.remainingLocked() == 0 {
		a.timeUp = true
		a.stopTickerLocked()
	}
	a.publishLocked()
}

func copyResponses(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
