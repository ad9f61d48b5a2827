package models

import "time"

// EngineStatus is a consolidated read-only view for the status API.
// Note: no transport (json/http) concerns beyond tags.
type EngineStatus struct {
	Timestamp time.Time      `json:"timestamp"`
	Regime    *Regime        `json:"regime,omitempty"`
	Universe  *Universe      `json:"universe,omitempty"`
	Legacy    []string       `json:"legacy"`
	Risk      RiskState      `json:"risk"`
	Open      []Position     `json:"open"`
	Workers   int            `json:"workers"`
	Errors    map[string]int `json:"errors,omitempty"`
}
