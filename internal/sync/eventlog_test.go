package syncx

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/matuc/lti-exercise-composer/internal/db"
)

func TestEventRepo_RecordAndList(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file:eventlog_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	repo := NewEventRepo(conn)
	if err := repo.Record(ctx, AttemptStarted, "att-1", map[string]string{"set": "es-1"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Record(ctx, AttemptStarted, "att-2", nil); err != nil {
		t.Fatal(err)
	}
	if err := repo.Record(ctx, AttemptSubmitted, "att-1", map[string]int{"elapsed": 42}); err != nil {
		t.Fatal(err)
	}

	got, err := repo.List(ctx, "att-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].Type != AttemptStarted || got[1].Type != AttemptSubmitted {
		t.Fatalf("order = %s, %s", got[0].Type, got[1].Type)
	}
	if got[0].Offset >= got[1].Offset || got[0].SiteID != "local" {
		t.Fatalf("event = %+v", got[0])
	}
	var payload map[string]int
	if err := json.Unmarshal([]byte(got[1].DataJSON), &payload); err != nil || payload["elapsed"] != 42 {
		t.Fatalf("payload = %s", got[1].DataJSON)
	}
}
