package valuation

// Position is one holding as returned by a portfolio valuation. Prices and
// costs are in the native Currency; NativeValue is supplied by the caller.
type Position struct {
	AssetID           int64   `json:"asset_id"`
	Symbol            string  `json:"symbol"`
	Quantity          float64 `json:"quantity"`
	AverageCost       float64 `json:"average_cost"`
	CurrentPrice      float64 `json:"current_price"`
	NativeValue       float64 `json:"native_value"`
	PortfolioSharePct float64 `json:"portfolio_share_pct"`
	Currency          string  `json:"currency"`
	AssetType         string  `json:"asset_type"`
}

// performanceSentinel ranks positions without a cost basis below any real return.
const performanceSentinel = -999

// Row is a Position rendered in a display currency.
type Row struct {
	Position
	Price        float64 `json:"price"`
	Cost         float64 `json:"cost"`
	TotalCost    float64 `json:"total_cost"`
	CurrentValue float64 `json:"current_value"`
	// PerformancePct is computed on native values, so it is the same in any display currency.
	PerformancePct float64 `json:"performance_pct"`
	// Degraded marks a row whose conversion needed a rate that was unavailable.
	Degraded bool `json:"degraded"`
}

// Normalize renders p in display using rate. p is not modified.
func Normalize(p Position, display Display, rate float64) Row {
	class := Classify(p.Currency)
	price, priceDegraded := Convert(p.CurrentPrice, class, display, rate)
	cost, costDegraded := Convert(p.AverageCost, class, display, rate)

	perf := float64(performanceSentinel)
	if p.AverageCost > 0 {
		perf = (p.CurrentPrice - p.AverageCost) / p.AverageCost
	}

	return Row{
		Position:       p,
		Price:          price,
		Cost:           cost,
		TotalCost:      cost * p.Quantity,
		CurrentValue:   price * p.Quantity,
		PerformancePct: perf,
		Degraded:       priceDegraded || costDegraded,
	}
}
