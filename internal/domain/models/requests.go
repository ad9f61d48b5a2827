package models

// Requests for status HTTP endpoints.

type PositionsRequest struct {
	Symbol   string `query:"symbol" json:"symbol"`
	Strategy string `query:"strategy" json:"strategy" validate:"omitempty,oneof=VBS DIP"`
	State    string `query:"state" json:"state" validate:"omitempty,oneof=PENDING OPEN TRAILING"`
}

type HistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type SnapshotRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type CandlesRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required"`
	Timeframe string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 3m 5m 15m 1h 4h 1d"`
	Limit     int    `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=2000"`
}
