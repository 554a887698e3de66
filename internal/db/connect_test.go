package db

import (
	"context"
	"testing"
	"time"
)

func TestOpen_SQLiteMemory(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dbh, err := Open(ctx, DriverSQLite, "file:connect_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer dbh.Close()

	for _, table := range []string{"preferences", "event_log"} {
		var name string
		err := dbh.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type='table' AND name=$1`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}

	// schema is idempotent
	if err := ensureSchema(ctx, dbh, DriverSQLite); err != nil {
		t.Fatalf("second ensureSchema: %v", err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Driver("mysql"), ""); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
