package universe

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"VoltX/internal/domain/models"
)

// Manager publishes the tradable universe as a copy-on-write snapshot and tracks
// legacy symbols: held symbols that dropped out of the universe but still need
// their exits managed.
type Manager struct {
	current   atomic.Pointer[models.Universe]
	validity  time.Duration
	blacklist map[string]struct{}

	mu   sync.RWMutex
	held map[string]int // symbol -> open position count
}

// NewManager creates an empty, already expired universe.
func NewManager(validity time.Duration, blacklist []string) *Manager {
	if validity <= 0 {
		validity = time.Hour
	}
	bl := make(map[string]struct{}, len(blacklist))
	for _, s := range blacklist {
		bl[normalize(s)] = struct{}{}
	}
	m := &Manager{validity: validity, blacklist: bl, held: make(map[string]int)}
	m.current.Store(&models.Universe{})
	return m
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Current returns the active snapshot. Callers must not modify it.
func (m *Manager) Current() *models.Universe {
	return m.current.Load()
}

// Replace publishes a new snapshot from a ranked list. Symbols are normalized,
// deduplicated, blacklisted ones dropped and the list truncated to MaxUniverseSize.
// Replacing the universe never touches positions in dropped symbols.
func (m *Manager) Replace(symbols []string, validFrom time.Time) *models.Universe {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, models.MaxUniverseSize)
	for _, s := range symbols {
		s = normalize(s)
		if s == "" {
			continue
		}
		if _, ok := m.blacklist[s]; ok {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == models.MaxUniverseSize {
			break
		}
	}
	for {
		prev := m.current.Load()
		next := &models.Universe{
			Symbols:    out,
			ValidFrom:  validFrom,
			ValidUntil: validFrom.Add(m.validity),
			Version:    prev.Version + 1,
		}
		if m.current.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// Expired reports whether the active snapshot is past its validity window.
func (m *Manager) Expired(now time.Time) bool {
	return m.Current().Expired(now)
}

// MarkOpen records a non-terminal position in symbol.
func (m *Manager) MarkOpen(symbol string) {
	m.mu.Lock()
	m.held[symbol]++
	m.mu.Unlock()
}

// MarkFlat records that a position in symbol reached a terminal state.
func (m *Manager) MarkFlat(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := m.held[symbol]; n <= 1 {
		delete(m.held, symbol)
	} else {
		m.held[symbol] = n - 1
	}
}

// Legacy lists held symbols absent from the given snapshot.
func (m *Manager) Legacy(u *models.Universe) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0)
	for s := range m.held {
		if !u.Contains(s) {
			out = append(out, s)
		}
	}
	return out
}

// Held reports whether symbol has a non-terminal position.
func (m *Manager) Held(symbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.held[symbol] > 0
}

// Eligible reports whether new entries are allowed for symbol under snapshot u.
func Eligible(u *models.Universe, symbol string) bool {
	return u.Contains(symbol)
}

// Managed reports whether symbol still needs processing: in the universe or held.
func (m *Manager) Managed(u *models.Universe, symbol string) bool {
	return u.Contains(symbol) || m.Held(symbol)
}
