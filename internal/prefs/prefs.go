package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

func ParseTheme(s string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light, true
	case Dark:
		return Dark, true
	}
	return "", false
}

func (t Theme) Toggle() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

var ErrNotSet = errors.New("prefs: no preference stored")

// Store persists one theme per subject.
type Store interface {
	GetTheme(ctx context.Context, subject string) (Theme, error)
	PutTheme(ctx context.Context, subject string, t Theme) error
}

type SQLStore struct{ db *sql.DB }

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) GetTheme(ctx context.Context, subject string) (Theme, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT theme FROM preferences WHERE subject=$1`, subject).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotSet
		}
		return "", err
	}
	t, ok := ParseTheme(raw)
	if !ok {
		return "", ErrNotSet
	}
	return t, nil
}

func (s *SQLStore) PutTheme(ctx context.Context, subject string, t Theme) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO preferences (subject, theme, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (subject) DO UPDATE SET theme=EXCLUDED.theme, updated_at=EXCLUDED.updated_at`,
		subject, string(t), time.Now().Unix())
	return err
}

// Service is created once at startup and lives for the whole process.
// SetTheme is the only way a preference changes.
type Service struct {
	store    Store
	fallback Theme
}

func NewService(store Store, fallback Theme) *Service {
	if fallback != Dark {
		fallback = Light
	}
	return &Service{store: store, fallback: fallback}
}

func (s *Service) Default() Theme { return s.fallback }

// Theme returns the stored preference, or the default for anonymous or unknown subjects.
func (s *Service) Theme(ctx context.Context, subject string) Theme {
	if subject == "" {
		return s.fallback
	}
	t, err := s.store.GetTheme(ctx, subject)
	if err != nil {
		return s.fallback
	}
	return t
}

func (s *Service) SetTheme(ctx context.Context, subject string, t Theme) error {
	if subject == "" {
		return errors.New("prefs: subject required")
	}
	if _, ok := ParseTheme(string(t)); !ok {
		return fmt.Errorf("prefs: unknown theme %q", t)
	}
	return s.store.PutTheme(ctx, subject, t)
}

// Toggle flips the subject's theme and returns the new value.
func (s *Service) Toggle(ctx context.Context, subject string) (Theme, error) {
	next := s.Theme(ctx, subject).Toggle()
	if err := s.SetTheme(ctx, subject, next); err != nil {
		return s.Theme(ctx, subject), err
	}
	return next, nil
}
