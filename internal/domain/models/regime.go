package models

import "time"

// RegimeState classifies overall market direction.
type RegimeState string

const (
	RegimeBull RegimeState = "BULL"
	RegimeBear RegimeState = "BEAR"
	RegimeFlat RegimeState = "FLAT"
)

// Regime is a versioned immutable value. Readers hold one version at a time.
type Regime struct {
	State     RegimeState `json:"state"`
	EnteredAt time.Time   `json:"entered_at"`
	Score     float64     `json:"score"`
	Breadth   float64     `json:"breadth"`
	Momentum  float64     `json:"momentum"`
	Samples   int         `json:"samples"`
	Version   uint64      `json:"version"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RegimeInputs aggregates per-symbol snapshots for one classification cycle.
type RegimeInputs struct {
	Snapshots []IndicatorSnapshot
	At        time.Time
}
