package models

import (
	"fmt"
	"time"

	"finanzapp-core/internal/consistency"
)

// Operation is a persisted buy or sell of one asset.
type Operation struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	AssetID     int64     `gorm:"index;not null" json:"asset_id"`
	AssetSymbol string    `json:"asset_symbol"`
	Kind        string    `gorm:"not null" json:"kind"` // "buy" or "sell"; older rows may hold "compra"/"venta"
	Quantity    float64   `gorm:"not null" json:"quantity"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	Timestamp   time.Time `gorm:"index;not null" json:"timestamp"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Event converts the record into the form the consistency check replays.
func (o Operation) Event() (consistency.Event, error) {
	kind, err := consistency.ParseKind(o.Kind)
	if err != nil {
		return consistency.Event{}, fmt.Errorf("operation %s: %w", o.ID, err)
	}
	return consistency.Event{
		ID:         o.ID,
		Timestamp:  o.Timestamp,
		Kind:       kind,
		Quantity:   o.Quantity,
		AssetLabel: o.AssetSymbol,
	}, nil
}

// Events converts a history, failing on the first record with an unknown kind.
func Events(ops []Operation) ([]consistency.Event, error) {
	events := make([]consistency.Event, 0, len(ops))
	for _, op := range ops {
		ev, err := op.Event()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
