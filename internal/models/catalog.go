package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset is an instrument of the backend catalog.
type Asset struct {
	ID       int64           `json:"id"`
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Currency string          `json:"currency"`
	Price    decimal.Decimal `json:"price"`
}

func AssetID(a Asset) int64 { return a.ID }

// Recommendation is an analyst call on an asset.
type Recommendation struct {
	ID          int64           `json:"id"`
	AssetID     int64           `json:"asset_id"`
	Symbol      string          `json:"symbol"`
	Action      string          `json:"action"`
	TargetPrice decimal.Decimal `json:"target_price"`
	Horizon     string          `json:"horizon"`
	Rationale   string          `json:"rationale"`
	CreatedAt   time.Time       `json:"created_at"`
}

func RecommendationID(r Recommendation) int64 { return r.ID }
