package attempt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matuc/lti-exercise-composer/internal/exercise"
)

// ---- fakes ----

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	t := &fakeTicker{c: make(chan time.Time), stopped: make(chan struct{})}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

// Tick hands one tick to every live ticker, blocking until it is taken.
func (c *fakeClock) Tick(n int) {
	for i := 0; i < n; i++ {
		c.Advance(time.Second)
		c.mu.Lock()
		ts := append([]*fakeTicker(nil), c.tickers...)
		now := c.now
		c.mu.Unlock()
		for _, t := range ts {
			select {
			case t.c <- now:
			case <-t.stopped:
			}
		}
	}
}

type fakeTicker struct {
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               { t.once.Do(func() { close(t.stopped) }) }

type fakeRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *fakeRecorder) Record(_ context.Context, typ, key string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, typ+":"+key)
	return nil
}

func (r *fakeRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// ---- helpers ----

func testSet(n int, limitMinutes int) exercise.ExerciseSet {
	cfg := exercise.DefaultConfiguration()
	cfg.TimeLimitMinutes = nil
	if limitMinutes > 0 {
		cfg.TimeLimitMinutes = &limitMinutes
	}
	set := exercise.ExerciseSet{ID: "es-1", Title: "Set", Configuration: cfg, Status: exercise.StatusPublished}
	for i := 0; i < n; i++ {
		set.Questions = append(set.Questions, exercise.Question{ID: string(rune('a' + i)), Position: i + 1})
	}
	return set
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitElapsed(t *testing.T, a *Attempt, n int) {
	t.Helper()
	waitFor(t, "elapsed", func() bool { return a.Snapshot().Elapsed == n })
}

// ---- tests ----

func TestNavigation_Clamps(t *testing.T) {
	a := New("att", "stu", "key", testSet(3, 0), Options{Clock: newFakeClock()})
	defer a.Close()

	if _, err := a.Next(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("navigation before start: %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	if i, _ := a.Previous(); i != 0 {
		t.Fatalf("previous at 0 = %d", i)
	}
	for k := 0; k < 5; k++ {
		a.Next()
	}
	if i := a.Index(); i != 2 {
		t.Fatalf("next past end = %d", i)
	}
	if i, _ := a.Previous(); i != 1 {
		t.Fatalf("previous = %d", i)
	}
	if err := a.Start(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double start: %v", err)
	}
}

func TestJump_RespectsFreeNavigation(t *testing.T) {
	set := testSet(4, 0)
	a := New("att", "stu", "key", set, Options{Clock: newFakeClock()})
	defer a.Close()
	_ = a.Start()
	if i, err := a.Jump(9); err != nil || i != 3 {
		t.Fatalf("jump = %d, %v", i, err)
	}

	set.Configuration.FreeNavigation = false
	b := New("att2", "stu", "key2", set, Options{Clock: newFakeClock()})
	defer b.Close()
	_ = b.Start()
	if _, err := b.Jump(2); !errors.Is(err, ErrFreeNavigationOff) {
		t.Fatalf("got %v", err)
	}
}

func TestAnswer_MergesAndRejectsUnknown(t *testing.T) {
	a := New("att", "stu", "key", testSet(2, 0), Options{Clock: newFakeClock()})
	defer a.Close()
	_ = a.Start()
	if err := a.Answer("a", "42"); err != nil {
		t.Fatal(err)
	}
	if err := a.Answer("a", "43"); err != nil {
		t.Fatal(err)
	}
	if err := a.Answer("zz", "1"); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("got %v", err)
	}
	if got := a.Snapshot().Responses; len(got) != 1 || got["a"] != "43" {
		t.Fatalf("responses = %v", got)
	}
}

func TestTimer_OneMinuteLimitReachesTimeUp(t *testing.T) {
	clk := newFakeClock()
	var submitted Submission
	a := New("att", "stu", "key", testSet(2, 1), Options{
		Clock: clk,
		Submitter: SubmitterFunc(func(_ context.Context, s Submission) error {
			submitted = s
			return nil
		}),
	})
	defer a.Close()
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	clk.Tick(60)
	waitElapsed(t, a, 60)

	s := a.Snapshot()
	if s.Remaining != 0 || !s.TimeUp || !s.HasLimit {
		t.Fatalf("snapshot = %+v", s)
	}
	if s.State != InProgress.String() {
		t.Fatalf("time-up must not auto-submit, state = %s", s.State)
	}
	if _, err := a.Next(); !errors.Is(err, ErrTimeUp) {
		t.Fatalf("navigation after time-up: %v", err)
	}
	if err := a.Answer("a", "x"); !errors.Is(err, ErrTimeUp) {
		t.Fatalf("answer after time-up: %v", err)
	}

	clk.Tick(5)
	if got := a.Snapshot().Elapsed; got != 60 {
		t.Fatalf("ticker kept running after time-up: %d", got)
	}

	if err := a.Submit(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if !submitted.TimeUp || submitted.ElapsedSeconds != 60 {
		t.Fatalf("submission = %+v", submitted)
	}
}

func TestTimer_RemainingCountsDown(t *testing.T) {
	clk := newFakeClock()
	a := New("att", "stu", "key", testSet(1, 2), Options{Clock: clk})
	defer a.Close()
	_ = a.Start()
	clk.Tick(30)
	waitElapsed(t, a, 30)
	if s := a.Snapshot(); s.Remaining != 90 || s.TimeUp {
		t.Fatalf("snapshot = %+v", s)
	}
}

func TestSubmit_NoTickAfterSubmission(t *testing.T) {
	clk := newFakeClock()
	a := New("att", "stu", "key", testSet(2, 0), Options{Clock: clk})
	defer a.Close()
	_ = a.Start()
	clk.Tick(3)
	waitElapsed(t, a, 3)

	if err := a.Submit(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	clk.Tick(10)
	time.Sleep(5 * time.Millisecond)
	if s := a.Snapshot(); s.Elapsed != 3 || s.State != Submitted.String() {
		t.Fatalf("snapshot = %+v", s)
	}
	if err := a.Submit(context.Background(), true); !errors.Is(err, ErrDuplicateSubmit) {
		t.Fatalf("resubmit: %v", err)
	}
}

func TestSubmit_RequiresConfirmation(t *testing.T) {
	a := New("att", "stu", "key", testSet(1, 0), Options{Clock: newFakeClock()})
	defer a.Close()
	_ = a.Start()
	if err := a.Submit(context.Background(), false); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("got %v", err)
	}
	if a.State() != InProgress {
		t.Fatalf("state = %v", a.State())
	}
}

func TestSubmit_RejectsConcurrentCall(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	a := New("att", "stu", "key", testSet(1, 0), Options{
		Clock: newFakeClock(),
		Submitter: SubmitterFunc(func(context.Context, Submission) error {
			close(entered)
			<-release
			return nil
		}),
	})
	defer a.Close()
	_ = a.Start()

	first := make(chan error, 1)
	go func() { first <- a.Submit(context.Background(), true) }()
	<-entered

	if !a.Snapshot().Submitting {
		t.Fatalf("submitting flag not set")
	}
	if err := a.Submit(context.Background(), true); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("second submit: %v", err)
	}
	close(release)
	if err := <-first; err != nil {
		t.Fatal(err)
	}
	if a.State() != Submitted {
		t.Fatalf("state = %v", a.State())
	}
}

func TestSubmit_FailureRestartsTicker(t *testing.T) {
	clk := newFakeClock()
	fail := true
	var mu sync.Mutex
	a := New("att", "stu", "key", testSet(1, 0), Options{
		Clock: clk,
		Submitter: SubmitterFunc(func(context.Context, Submission) error {
			mu.Lock()
			defer mu.Unlock()
			if fail {
				return errors.New("backend down")
			}
			return nil
		}),
	})
	defer a.Close()
	_ = a.Start()
	clk.Tick(2)
	waitElapsed(t, a, 2)

	if err := a.Submit(context.Background(), true); err == nil {
		t.Fatal("expected failure")
	}
	if a.State() != InProgress {
		t.Fatalf("state = %v", a.State())
	}
	clk.Tick(1)
	waitElapsed(t, a, 3)

	mu.Lock()
	fail = false
	mu.Unlock()
	if err := a.Submit(context.Background(), true); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestClose_CancelsTickerAndSubscribers(t *testing.T) {
	clk := newFakeClock()
	a := New("att", "stu", "key", testSet(2, 5), Options{Clock: clk})
	_ = a.Start()
	ch, cancel := a.Subscribe()
	defer cancel()

	a.Close()
	a.Close()
	clk.Tick(3)

	var last Snapshot
	for s := range ch {
		last = s
	}
	if last.State != Abandoned.String() || last.Elapsed != 0 {
		t.Fatalf("last = %+v", last)
	}
	if _, err := a.Next(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("next after close: %v", err)
	}
}

func TestSubscribe_DeliversLatest(t *testing.T) {
	clk := newFakeClock()
	a := New("att", "stu", "key", testSet(3, 0), Options{Clock: clk})
	defer a.Close()
	ch, cancel := a.Subscribe()
	if s := <-ch; s.State != NotStarted.String() {
		t.Fatalf("initial = %+v", s)
	}
	_ = a.Start()
	a.Next()
	a.Next()
	s := <-ch
	if s.Index != 2 {
		t.Fatalf("latest index = %d", s.Index)
	}
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("channel open after cancel")
	}
}

func TestMemoryGuard(t *testing.T) {
	clk := newFakeClock()
	g := NewMemoryGuard(clk)
	ctx := context.Background()
	if ok, _ := g.Acquire(ctx, "k", time.Minute); !ok {
		t.Fatal("first acquire")
	}
	if ok, _ := g.Acquire(ctx, "k", time.Minute); ok {
		t.Fatal("second acquire within ttl")
	}
	clk.Advance(2 * time.Minute)
	if ok, _ := g.Acquire(ctx, "k", time.Minute); !ok {
		t.Fatal("acquire after expiry")
	}
	_ = g.Release(ctx, "k")
	if ok, _ := g.Acquire(ctx, "k", time.Minute); !ok {
		t.Fatal("acquire after release")
	}
}

func TestSubmit_GuardBlocksSecondAttemptWithSameKey(t *testing.T) {
	clk := newFakeClock()
	guard := NewMemoryGuard(clk)
	calls := 0
	opts := Options{Clock: clk, Guard: guard, Submitter: SubmitterFunc(func(context.Context, Submission) error {
		calls++
		return nil
	})}
	a := New("att-1", "stu", "same-key", testSet(1, 0), opts)
	b := New("att-2", "stu", "same-key", testSet(1, 0), opts)
	defer a.Close()
	defer b.Close()
	_ = a.Start()
	_ = b.Start()

	if err := a.Submit(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if err := b.Submit(context.Background(), true); !errors.Is(err, ErrDuplicateSubmit) {
		t.Fatalf("got %v", err)
	}
	if calls != 1 {
		t.Fatalf("submitter called %d times", calls)
	}
}
