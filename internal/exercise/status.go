package exercise

import "strings"

// Status is the single publication state of an exercise set.
// The API still sends the (estado, publicado) pair; it is collapsed on decode.
type Status int

const (
	StatusDraft Status = iota
	StatusPublished
	StatusArchived
)

// Wire values of the estado field.
const (
	EstadoDraft     = "draft"
	EstadoPublished = "published"
	EstadoArchived  = "archived"
)

// StatusFromWire collapses the redundant estado/publicado pair.
// A set is Published only when both fields agree.
func StatusFromWire(estado string, publicado bool) Status {
	switch strings.ToLower(strings.TrimSpace(estado)) {
	case EstadoPublished:
		if publicado {
			return StatusPublished
		}
		return StatusDraft
	case EstadoArchived:
		return StatusArchived
	default:
		return StatusDraft
	}
}

// ParseStatus parses a filter value; ok is false for "", "all" or unknown values.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case EstadoDraft:
		return StatusDraft, true
	case EstadoPublished:
		return StatusPublished, true
	case EstadoArchived:
		return StatusArchived, true
	}
	return StatusDraft, false
}

// Wire returns the canonical (estado, publicado) pair.
func (s Status) Wire() (estado string, publicado bool) {
	switch s {
	case StatusPublished:
		return EstadoPublished, true
	case StatusArchived:
		return EstadoArchived, false
	default:
		return EstadoDraft, false
	}
}

func (s Status) String() string {
	e, _ := s.Wire()
	return e
}

// Visible reports whether students may see and take the set.
func (s Status) Visible() bool { return s == StatusPublished }

func (s Status) Label() string {
	switch s {
	case StatusPublished:
		return "Published"
	case StatusArchived:
		return "Archived"
	default:
		return "Draft"
	}
}
