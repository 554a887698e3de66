package attempt

import (
	"context"
	"time"

	syncx "github.com/matuc/lti-exercise-composer/internal/sync"
)

// Submission is what leaves the composer when a student submits.
type Submission struct {
	AttemptID      string            `json:"attemptId"`
	ExerciseSetID  string            `json:"exerciseSetId"`
	Owner          string            `json:"owner"`
	IdempotencyKey string            `json:"idempotencyKey"`
	Responses      map[string]string `json:"responses"`
	ElapsedSeconds int               `json:"elapsed"`
	TimeUp         bool              `json:"timeUp"`
	StartedAt      time.Time         `json:"startedAt"`
	SubmittedAt    time.Time         `json:"submittedAt"`
}

type Submitter interface {
	Submit(ctx context.Context, s Submission) error
}

type SubmitterFunc func(ctx context.Context, s Submission) error

func (f SubmitterFunc) Submit(ctx context.Context, s Submission) error { return f(ctx, s) }

// Recorder appends a typed JSON event. *syncx.EventRepo implements it.
type Recorder interface {
	Record(ctx context.Context, typ, key string, payload any) error
}

// LogSubmitter keeps submissions in the local event log. The exercise API has
// no attempt endpoint, so this is the default.
type LogSubmitter struct {
	Events Recorder
}

func (l LogSubmitter) Submit(ctx context.Context, s Submission) error {
	return l.Events.Record(ctx, syncx.AttemptSubmitted, s.AttemptID, s)
}
