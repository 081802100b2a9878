package consistency

import (
	"slices"
	"time"
)

// Event is a single buy or sell of one asset. ID is empty for a proposal
// that has not been persisted yet. AssetLabel only feeds error messages.
type Event struct {
	ID         string    `json:"id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       Kind      `json:"kind"`
	Quantity   float64   `json:"quantity"`
	AssetLabel string    `json:"asset_label,omitempty"`
}

// Signed returns the quantity with the sign of its kind.
func (e Event) Signed() float64 {
	return e.Kind.sign() * e.Quantity
}

// BalancePoint is the running holding right after Event was applied.
type BalancePoint struct {
	Event   Event   `json:"event"`
	Balance float64 `json:"balance"`
}

// sortTimeline orders events by timestamp. Equal timestamps keep their
// relative order, so a proposal appended last is replayed after existing
// events of the same instant.
func sortTimeline(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

// Replay walks a copy of events in chronological order and reports the
// balance after each step. The input is not modified.
func Replay(events []Event) []BalancePoint {
	timeline := slices.Clone(events)
	sortTimeline(timeline)

	points := make([]BalancePoint, 0, len(timeline))
	balance := 0.0
	for _, ev := range timeline {
		balance += ev.Signed()
		points = append(points, BalancePoint{Event: ev, Balance: balance})
	}
	return points
}

// Holding is the balance once every event has been applied.
func Holding(events []Event) float64 {
	total := 0.0
	for _, ev := range events {
		total += ev.Signed()
	}
	return total
}
