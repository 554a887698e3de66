package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written by the attempt flow.
const (
	AttemptStarted   = "AttemptStarted"
	AttemptSubmitted = "AttemptSubmitted"
	AttemptAbandoned = "AttemptAbandoned"
)

const defaultSite = "local"

type Event struct {
	Offset    int64
	SiteID    string
	Type      string
	Key       string
	DataJSON  string
	CreatedAt int64
}

type EventRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db, now: time.Now}
}

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = defaultSite
	}
	if e.DataJSON == "" {
		e.DataJSON = "{}"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, r.now().Unix())
	return err
}

// Record marshals payload and appends it under key.
func (r *EventRepo) Record(ctx context.Context, typ, key string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("event %s: %w", typ, err)
	}
	return r.Append(ctx, Event{Type: typ, Key: key, DataJSON: string(b)})
}

// List returns the events recorded for key in append order.
func (r *EventRepo) List(ctx context.Context, key string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT "offset", site_id, typ, key, data, created_at
		   FROM event_log WHERE key = $1 ORDER BY "offset"`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
