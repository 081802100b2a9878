// Package valuation renders a mixed-currency portfolio in a single display
// currency and orders it by a caller-selected key.
//
// Positions are either local-class (pesos and anything not dollar-pegged) or
// USD-class (USD and the USDT/USDC stablecoins). The exchange rate is implied
// from the valuation totals rather than fetched, so a failed valuation call
// leaves conversions degraded to zero; rows carry a Degraded flag for that case.
package valuation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
)

var (
	ErrUnknownDisplayCurrency = errors.New("unknown display currency")
	ErrUnknownClass           = errors.New("unknown currency class")
)

// Class groups native currencies by how they convert.
type Class int

const (
	// ClassLocal covers ARS and any currency outside the USD-pegged set.
	ClassLocal Class = iota + 1
	// ClassUSD covers USD and USD-pegged stablecoins.
	ClassUSD
)

func (c Class) String() string {
	switch c {
	case ClassLocal:
		return "local"
	case ClassUSD:
		return "usd"
	}
	return "any"
}

// ParseClass reads a class filter; "" and "any" mean no filter (zero Class).
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return 0, nil
	case "local", "ars":
		return ClassLocal, nil
	case "usd":
		return ClassUSD, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownClass, s)
}

var usdPegged = map[string]struct{}{
	"USD":  {},
	"USDT": {},
	"USDC": {},
}

// Classify maps a native currency code to its conversion class.
func Classify(currency string) Class {
	if _, ok := usdPegged[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return ClassUSD
	}
	return ClassLocal
}

// Display is the currency values are rendered in.
type Display string

const (
	DisplayARS Display = "ARS"
	DisplayUSD Display = "USD"
)

func ParseDisplay(s string) (Display, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ARS":
		return DisplayARS, nil
	case "USD":
		return DisplayUSD, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDisplayCurrency, s)
}

// Totals is the aggregate valuation snapshot. Either side is nil when the
// valuation call failed.
type Totals struct {
	TotalLocal   *float64 `json:"total_local,omitempty"`
	TotalForeign *float64 `json:"total_foreign,omitempty"`
}

// ImpliedRate is TotalLocal / TotalForeign. ok is false, and the rate 0,
// when either total is missing or the foreign total is not positive.
func ImpliedRate(t Totals) (rate float64, ok bool) {
	if t.TotalLocal == nil || t.TotalForeign == nil || *t.TotalForeign <= 0 {
		return 0, false
	}
	return *t.TotalLocal / *t.TotalForeign, true
}

// Convert expresses value, natively in class, in the display currency.
// degraded is true when a conversion was required but rate was not usable,
// in which case the result is 0.
func Convert(value float64, class Class, display Display, rate float64) (converted float64, degraded bool) {
	switch display {
	case DisplayARS:
		if class != ClassUSD {
			return value, false
		}
		if rate <= 0 {
			return 0, true
		}
		return value * rate, false
	case DisplayUSD:
		if class == ClassUSD {
			return value, false
		}
		if rate <= 0 {
			return 0, true
		}
		return value / rate, false
	}
	return 0, true
}

// FormatAmount renders value with the display currency's symbol and grouping.
func FormatAmount(value float64, display Display) string {
	return money.NewFromFloat(value, string(display)).Display()
}
