package models

import (
	"github.com/shopspring/decimal"

	"finanzapp-core/internal/valuation"
)

// Valuation is the backend's portfolio valuation response. Amounts arrive as
// JSON numbers or strings. Totals are null when the backend could not value
// the portfolio.
type Valuation struct {
	PortfolioID  int64               `json:"portfolio_id"`
	Positions    []ValuationPosition `json:"positions"`
	TotalLocal   *decimal.Decimal    `json:"total_ars"`
	TotalForeign *decimal.Decimal    `json:"total_usd"`
}

type ValuationPosition struct {
	AssetID           int64           `json:"asset_id"`
	Symbol            string          `json:"symbol"`
	Quantity          decimal.Decimal `json:"quantity"`
	AverageCost       decimal.Decimal `json:"average_cost"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	Value             decimal.Decimal `json:"value"`
	PortfolioSharePct decimal.Decimal `json:"portfolio_share_pct"`
	Currency          string          `json:"currency"`
	AssetType         string          `json:"asset_type"`
}

// PositionList converts the decimal amounts into valuation positions.
func (v Valuation) PositionList() []valuation.Position {
	out := make([]valuation.Position, 0, len(v.Positions))
	for _, p := range v.Positions {
		out = append(out, valuation.Position{
			AssetID:           p.AssetID,
			Symbol:            p.Symbol,
			Quantity:          p.Quantity.InexactFloat64(),
			AverageCost:       p.AverageCost.InexactFloat64(),
			CurrentPrice:      p.CurrentPrice.InexactFloat64(),
			NativeValue:       p.Value.InexactFloat64(),
			PortfolioSharePct: p.PortfolioSharePct.InexactFloat64(),
			Currency:          p.Currency,
			AssetType:         p.AssetType,
		})
	}
	return out
}

func (v Valuation) Totals() valuation.Totals {
	var t valuation.Totals
	if v.TotalLocal != nil {
		f := v.TotalLocal.InexactFloat64()
		t.TotalLocal = &f
	}
	if v.TotalForeign != nil {
		f := v.TotalForeign.InexactFloat64()
		t.TotalForeign = &f
	}
	return t
}
