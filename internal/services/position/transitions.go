package position

import "VoltX/internal/domain/models"

// ValidTransitions lists the allowed position state changes.
var ValidTransitions = map[models.PositionState][]models.PositionState{
	models.PositionPending:  {models.PositionOpen, models.PositionCancelled},
	models.PositionOpen:     {models.PositionTrailing, models.PositionClosed},
	models.PositionTrailing: {models.PositionClosed},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to models.PositionState) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
