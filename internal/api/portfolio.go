package api

import (
	"net/http"

	"finanzapp-core/internal/metrics"
	"finanzapp-core/internal/valuation"
)

// notAvailable replaces amounts that could not be converted.
const notAvailable = "N/D"

type positionRow struct {
	valuation.Row
	PriceDisplay        string `json:"price_display"`
	TotalCostDisplay    string `json:"total_cost_display"`
	CurrentValueDisplay string `json:"current_value_display"`
}

type positionsResponse struct {
	Display       valuation.Display `json:"display"`
	Rate          float64           `json:"rate"`
	RateAvailable bool              `json:"rate_available"`
	Degraded      bool              `json:"degraded"`
	Sort          valuation.SortKey `json:"sort"`
	Direction     string            `json:"direction"`
	Rows          []positionRow     `json:"rows"`
}

func formatted(res valuation.Result, key valuation.SortKey, dir valuation.Direction) positionsResponse {
	resp := positionsResponse{
		Display:       res.Display,
		Rate:          res.Rate,
		RateAvailable: res.RateAvailable,
		Degraded:      res.Degraded,
		Sort:          key,
		Direction:     dir.String(),
		Rows:          make([]positionRow, 0, len(res.Rows)),
	}
	for _, row := range res.Rows {
		pr := positionRow{
			Row:                 row,
			PriceDisplay:        notAvailable,
			TotalCostDisplay:    notAvailable,
			CurrentValueDisplay: notAvailable,
		}
		if !row.Degraded {
			pr.PriceDisplay = valuation.FormatAmount(row.Price, res.Display)
			pr.TotalCostDisplay = valuation.FormatAmount(row.TotalCost, res.Display)
			pr.CurrentValueDisplay = valuation.FormatAmount(row.CurrentValue, res.Display)
		}
		resp.Rows = append(resp.Rows, pr)
	}
	if res.Degraded {
		metrics.DegradedValuations.Inc()
	}
	return resp
}

// sortOptions are the display, ordering and filter parameters shared by the
// portfolio endpoints.
type sortOptions struct {
	Display   string `json:"display"`
	Sort      string `json:"sort"`
	Direction string `json:"dir"`
	Query     string `json:"q"`
	AssetType string `json:"type"`
	Class     string `json:"class"`
}

func (o sortOptions) parse() (valuation.Display, valuation.SortKey, valuation.Direction, valuation.Filter, error) {
	var f valuation.Filter
	display := valuation.DisplayARS
	if o.Display != "" {
		d, err := valuation.ParseDisplay(o.Display)
		if err != nil {
			return "", "", 0, f, err
		}
		display = d
	}
	key := valuation.KeyCurrentValue
	if o.Sort != "" {
		k, err := valuation.ParseSortKey(o.Sort)
		if err != nil {
			return "", "", 0, f, err
		}
		key = k
	}
	dir, err := valuation.ParseDirection(o.Direction)
	if err != nil {
		return "", "", 0, f, err
	}
	class, err := valuation.ParseClass(o.Class)
	if err != nil {
		return "", "", 0, f, err
	}
	f = valuation.Filter{Query: o.Query, AssetType: o.AssetType, Class: class}
	return display, key, dir, f, nil
}

type sortRequest struct {
	sortOptions
	Positions []valuation.Position `json:"positions"`
	Totals    valuation.Totals     `json:"totals"`
}

// sortPortfolio handles POST /api/v1/portfolio/sort
func (s *Server) sortPortfolio(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	display, key, dir, filter, err := req.parse()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res := valuation.FilterAndSort(req.Positions, filter, display, req.Totals, key, dir)
	writeJSON(w, http.StatusOK, formatted(res, key, dir))
}

// portfolioPositions handles GET /api/v1/portfolios/{portfolioID}/positions
func (s *Server) portfolioPositions(w http.ResponseWriter, r *http.Request) {
	portfolioID, err := int64Param(r, "portfolioID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	opts := sortOptions{
		Display:   q.Get("display"),
		Sort:      q.Get("sort"),
		Direction: q.Get("dir"),
		Query:     q.Get("q"),
		AssetType: q.Get("type"),
		Class:     q.Get("class"),
	}
	display, key, dir, filter, err := opts.parse()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	v, err := s.session.Valuation(r.Context(), portfolioID)
	if err != nil {
		s.failUpstream(w, r, err)
		return
	}
	res := valuation.FilterAndSort(v.PositionList(), filter, display, v.Totals(), key, dir)
	writeJSON(w, http.StatusOK, formatted(res, key, dir))
}
