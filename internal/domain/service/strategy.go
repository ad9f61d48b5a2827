package service

import (
	"VoltX/internal/domain/models"
)

// RegimeClassifier maps aggregate indicator data to a market regime and a score.
type RegimeClassifier interface {
	Classify(inputs models.RegimeInputs) (models.RegimeState, float64)
}

// RegimeReader returns the currently published regime. Never nil after start.
type RegimeReader interface {
	Current() *models.Regime
}

// GuardProvider hands regime dependent entry thresholds to the signal engines.
type GuardProvider interface {
	Guards(regime models.RegimeState) models.GuardProfile
}
