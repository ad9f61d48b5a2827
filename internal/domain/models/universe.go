package models

import "time"

// MaxUniverseSize bounds the number of actively traded symbols.
const MaxUniverseSize = 10

// Universe is an immutable ranked symbol set with a validity window.
type Universe struct {
	Symbols    []string  `json:"symbols"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`
	Version    uint64    `json:"version"`
}

// Contains reports membership.
func (u *Universe) Contains(symbol string) bool {
	if u == nil {
		return false
	}
	for _, s := range u.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// Expired reports whether now is past the validity window.
func (u *Universe) Expired(now time.Time) bool {
	return u == nil || !now.Before(u.ValidUntil)
}

// RankedSymbols is what the external ranking job publishes.
type RankedSymbols struct {
	Symbols     []string  `json:"symbols"`
	GeneratedAt time.Time `json:"generated_at"`
}
