package valuation

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrUnknownSortKey   = errors.New("unknown sort key")
	ErrUnknownDirection = errors.New("unknown sort direction")
)

// SortKey selects the value positions are ordered by.
type SortKey string

const (
	KeySymbol         SortKey = "symbol"
	KeyCurrency       SortKey = "currency"
	KeyQuantity       SortKey = "quantity"
	KeyAverageCost    SortKey = "averageCost"
	KeyTotalCost      SortKey = "totalCost"
	KeyPrice          SortKey = "price"
	KeyCurrentValue   SortKey = "currentValue"
	KeyPortfolioShare SortKey = "portfolioSharePct"
	KeyPerformance    SortKey = "performancePct"
)

var sortKeys = []SortKey{
	KeySymbol, KeyCurrency, KeyQuantity, KeyAverageCost, KeyTotalCost,
	KeyPrice, KeyCurrentValue, KeyPortfolioShare, KeyPerformance,
}

// Valid reports whether k is one of the supported keys.
func (k SortKey) Valid() bool { return slices.Contains(sortKeys, k) }

// ParseSortKey accepts the key names case-insensitively, with or without
// underscores (current_value, currentvalue, currentValue).
func ParseSortKey(s string) (SortKey, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for _, k := range sortKeys {
		if strings.ToLower(string(k)) == norm {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
}

type Direction int

const (
	Descending Direction = iota
	Ascending
)

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc", "descending":
		return Descending, nil
	case "asc", "ascending":
		return Ascending, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

func (d Direction) String() string {
	if d == Ascending {
		return "asc"
	}
	return "desc"
}

// compareBy orders two rows by key in ascending order.
func compareBy(key SortKey, a, b Row) int {
	switch key {
	case KeySymbol:
		return strings.Compare(a.Symbol, b.Symbol)
	case KeyCurrency:
		return strings.Compare(a.Currency, b.Currency)
	case KeyQuantity:
		return cmp.Compare(a.Quantity, b.Quantity)
	case KeyAverageCost:
		return cmp.Compare(a.AverageCost, b.AverageCost)
	case KeyTotalCost:
		return cmp.Compare(a.TotalCost, b.TotalCost)
	case KeyPrice:
		return cmp.Compare(a.Price, b.Price)
	case KeyCurrentValue:
		return cmp.Compare(a.CurrentValue, b.CurrentValue)
	case KeyPortfolioShare:
		return cmp.Compare(a.PortfolioSharePct, b.PortfolioSharePct)
	case KeyPerformance:
		return cmp.Compare(a.PerformancePct, b.PerformancePct)
	}
	return 0
}

// Result is an ordered rendering of a portfolio.
type Result struct {
	Display Display `json:"display"`
	Rate    float64 `json:"rate"`
	// RateAvailable is false when the totals did not yield a usable rate.
	RateAvailable bool `json:"rate_available"`
	// Degraded is true when at least one row needed the missing rate.
	Degraded bool  `json:"degraded"`
	Rows     []Row `json:"rows"`
}

// Sort renders positions in display and orders them by key. Ties keep the
// input order in either direction. positions is not modified.
//
// key must come from ParseSortKey or the Key constants; any other value
// compares every row as equal and leaves the input order.
func Sort(positions []Position, display Display, totals Totals, key SortKey, dir Direction) Result {
	rate, ok := ImpliedRate(totals)
	res := Result{
		Display:       display,
		Rate:          rate,
		RateAvailable: ok,
		Rows:          make([]Row, 0, len(positions)),
	}
	for _, p := range positions {
		row := Normalize(p, display, rate)
		res.Degraded = res.Degraded || row.Degraded
		res.Rows = append(res.Rows, row)
	}

	slices.SortStableFunc(res.Rows, func(a, b Row) int {
		c := compareBy(key, a, b)
		if dir == Descending {
			return -c
		}
		return c
	})
	return res
}

// Filter narrows a position list. Zero fields match everything.
type Filter struct {
	// Query matches a substring of the symbol, ignoring case.
	Query     string `json:"query,omitempty"`
	AssetType string `json:"asset_type,omitempty"`
	Class     Class  `json:"class,omitempty"`
}

func (f Filter) Match(p Position) bool {
	if q := strings.TrimSpace(f.Query); q != "" &&
		!strings.Contains(strings.ToLower(p.Symbol), strings.ToLower(q)) {
		return false
	}
	if f.AssetType != "" && !strings.EqualFold(f.AssetType, p.AssetType) {
		return false
	}
	if f.Class != 0 && Classify(p.Currency) != f.Class {
		return false
	}
	return true
}

// FilterAndSort applies f and then Sort.
func FilterAndSort(positions []Position, f Filter, display Display, totals Totals, key SortKey, dir Direction) Result {
	kept := make([]Position, 0, len(positions))
	for _, p := range positions {
		if f.Match(p) {
			kept = append(kept, p)
		}
	}
	return Sort(kept, display, totals, key, dir)
}
