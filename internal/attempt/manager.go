package attempt

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matuc/lti-exercise-composer/internal/exercise"
	syncx "github.com/matuc/lti-exercise-composer/internal/sync"
)

var (
	ErrNotFound    = errors.New("attempt: not found")
	ErrForbidden   = errors.New("attempt: belongs to another user")
	ErrUnavailable = errors.New("attempt: exercise is not available")
	ErrNoQuestions = errors.New("attempt: exercise has no questions yet")
)

const DefaultRedirectDelay = 2 * time.Second

// Manager keeps the live attempts of this process.
type Manager struct {
	opts          Options
	events        Recorder
	redirectDelay time.Duration
	quit          chan struct{}
	quitOnce      sync.Once

	mu       sync.Mutex
	attempts map[string]*Attempt
	timers   map[string]*time.Timer
}

// NewManager builds a manager. events may be nil; redirectDelay <= 0 uses the default.
// Attempts left without activity or a subscriber for opts.IdleTTL are abandoned
// until Shutdown.
func NewManager(opts Options, events Recorder, redirectDelay time.Duration) *Manager {
	if redirectDelay <= 0 {
		redirectDelay = DefaultRedirectDelay
	}
	opts = opts.withDefaults()
	m := &Manager{
		opts:          opts,
		events:        events,
		redirectDelay: redirectDelay,
		quit:          make(chan struct{}),
		attempts:      map[string]*Attempt{},
		timers:        map[string]*time.Timer{},
	}
	go m.reapLoop(opts.IdleTTL / 2)
	return m
}

// Open creates a NotStarted attempt for owner. Only published sets with at
// least one question can be attempted.
func (m *Manager) Open(owner string, set exercise.ExerciseSet) (*Attempt, error) {
	if !set.Status.Visible() {
		return nil, ErrUnavailable
	}
	if len(set.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	a := New(uuid.NewString(), owner, uuid.NewString(), set, m.opts)
	m.mu.Lock()
	m.attempts[a.ID()] = a
	m.mu.Unlock()
	return a, nil
}

// Get returns the attempt if owner holds it.
func (m *Manager) Get(owner, id string) (*Attempt, error) {
	m.mu.Lock()
	a, ok := m.attempts[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	if a.Owner() != owner {
		return nil, ErrForbidden
	}
	return a, nil
}

func (m *Manager) Start(ctx context.Context, owner, id string) (*Attempt, error) {
	a, err := m.Get(owner, id)
	if err != nil {
		return nil, err
	}
	if err := a.Start(); err != nil {
		return a, err
	}
	m.record(ctx, syncx.AttemptStarted, a)
	return a, nil
}

// Submit submits and schedules the attempt for removal after the redirect delay.
func (m *Manager) Submit(ctx context.Context, owner, id string, confirmed bool) (*Attempt, error) {
	a, err := m.Get(owner, id)
	if err != nil {
		return nil, err
	}
	err = a.Submit(ctx, confirmed)
	// a refused guard still ends Submitted
	if a.State() == Submitted {
		m.mu.Lock()
		if _, scheduled := m.timers[id]; !scheduled {
			m.timers[id] = time.AfterFunc(m.redirectDelay, func() { m.remove(id) })
		}
		m.mu.Unlock()
	}
	return a, err
}

// Abandon closes the attempt (navigation away) and forgets it.
func (m *Manager) Abandon(ctx context.Context, owner, id string) error {
	a, err := m.Get(owner, id)
	if err != nil {
		return err
	}
	m.abandon(ctx, a)
	return nil
}

func (m *Manager) abandon(ctx context.Context, a *Attempt) bool {
	wasLive := a.State() == InProgress
	removed := m.remove(a.ID())
	if removed && wasLive {
		m.record(ctx, syncx.AttemptAbandoned, a)
	}
	return removed
}

// ReapIdle abandons every attempt that has had no activity and no subscriber
// for IdleTTL. It returns how many were removed.
func (m *Manager) ReapIdle(ctx context.Context) int {
	now := m.opts.Clock.Now()
	m.mu.Lock()
	all := make([]*Attempt, 0, len(m.attempts))
	for _, a := range m.attempts {
		all = append(all, a)
	}
	m.mu.Unlock()

	n := 0
	for _, a := range all {
		if seen, ok := a.idleSince(); ok && now.Sub(seen) >= m.opts.IdleTTL && m.abandon(ctx, a) {
			n++
		}
	}
	return n
}

func (m *Manager) reapLoop(every time.Duration) {
	if every < time.Millisecond {
		every = time.Millisecond
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-m.quit:
			return
		case <-t.C:
			if n := m.ReapIdle(context.Background()); n > 0 {
				log.Printf("attempt: abandoned %d idle attempts", n)
			}
		}
	}
}

// Len reports how many attempts are registered.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

// Shutdown stops the reaper and closes every attempt.
func (m *Manager) Shutdown() {
	m.quitOnce.Do(func() { close(m.quit) })
	m.mu.Lock()
	all := m.attempts
	m.attempts = map[string]*Attempt{}
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	m.mu.Unlock()
	for _, a := range all {
		a.Close()
	}
}

// remove forgets and closes the attempt, reporting whether it was registered.
func (m *Manager) remove(id string) bool {
	m.mu.Lock()
	a, ok := m.attempts[id]
	delete(m.attempts, id)
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
	m.mu.Unlock()
	if ok {
		a.Close()
	}
	return ok
}

func (m *Manager) record(ctx context.Context, typ string, a *Attempt) {
	if m.events == nil {
		return
	}
	s := a.Snapshot()
	payload := map[string]any{
		"exerciseSetId": s.SetID,
		"owner":         a.Owner(),
		"elapsed":       s.Elapsed,
		"answered":      len(s.Responses),
	}
	if err := m.events.Record(ctx, typ, a.ID(), payload); err != nil {
		log.Printf("attempt %s: record %s: %v", a.ID(), typ, err)
	}
}
