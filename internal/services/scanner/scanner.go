// Package scanner tracks volume spikes and buying climaxes per symbol.
package scanner

import (
	"math"
	"time"

	"VoltX/internal/domain/models"
)

// Config sets the scanner thresholds. Zero fields take the defaults below.
type Config struct {
	// Enabled turns status reporting on. A disabled scanner leaves snapshots unscanned.
	Enabled bool
	// SpikeThreshold is the relative volume that marks a symbol TREND_ACTIVE.
	SpikeThreshold float64
	// ClimaxThreshold is the relative volume a climax candle needs.
	ClimaxThreshold float64
	// ClimaxWickRatio is the upper wick share of the candle range that marks rejection.
	ClimaxWickRatio float64
	// ClimaxDropPct is the close distance below the high, in percent, that marks rejection.
	ClimaxDropPct float64
	ExhaustionRSI float64
	Cooldown      time.Duration
	// SpikeHold keeps TREND_ACTIVE after the last spike. Zero latches it.
	SpikeHold time.Duration
}

func (c Config) withDefaults() Config {
	if c.SpikeThreshold <= 0 {
		c.SpikeThreshold = 3
	}
	if c.ClimaxThreshold <= 0 {
		c.ClimaxThreshold = 5
	}
	if c.ClimaxWickRatio <= 0 {
		c.ClimaxWickRatio = 0.5
	}
	if c.ClimaxDropPct <= 0 {
		c.ClimaxDropPct = 3
	}
	if c.ExhaustionRSI <= 0 {
		c.ExhaustionRSI = 70
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 60 * time.Minute
	}
	return c
}

// Scanner holds the volume state of one symbol. Not safe for concurrent use.
type Scanner struct {
	cfg Config

	spikeAt        time.Time
	exhaustedUntil time.Time
}

func New(cfg Config) *Scanner {
	return &Scanner{cfg: cfg.withDefaults()}
}

// IsClimax reports a high volume candle that closed well off its high.
func (s *Scanner) IsClimax(c models.Candle, relVol float64) bool {
	if relVol < s.cfg.ClimaxThreshold {
		return false
	}
	rng := c.High - c.Low
	wick := c.High - math.Max(c.Open, c.Close)
	if rng > 0 && wick/rng >= s.cfg.ClimaxWickRatio {
		return true
	}
	return c.High > 0 && (c.High-c.Close)*100/c.High >= s.cfg.ClimaxDropPct
}

// Observe folds the last closed candle in and returns the status at at.
// A climax with RSI at or over ExhaustionRSI marks the symbol EXHAUSTED
// until the cooldown passes.
func (s *Scanner) Observe(c models.Candle, relVol, rsi float64, at time.Time) models.VolumeStatus {
	if at.Before(s.exhaustedUntil) {
		return models.VolumeExhausted
	}
	if relVol >= s.cfg.SpikeThreshold {
		s.spikeAt = at
	}
	if s.IsClimax(c, relVol) && rsi >= s.cfg.ExhaustionRSI {
		s.exhaustedUntil = at.Add(s.cfg.Cooldown)
		return models.VolumeExhausted
	}
	return s.Status(at)
}

// Status reports the state at at without new data.
func (s *Scanner) Status(at time.Time) models.VolumeStatus {
	switch {
	case at.Before(s.exhaustedUntil):
		return models.VolumeExhausted
	case s.spikeAt.IsZero():
		return models.VolumeNormal
	case s.cfg.SpikeHold > 0 && at.Sub(s.spikeAt) > s.cfg.SpikeHold:
		return models.VolumeNormal
	}
	return models.VolumeTrendActive
}

// ExhaustedUntil returns the end of the current cooldown, or zero.
func (s *Scanner) ExhaustedUntil() time.Time { return s.exhaustedUntil }
