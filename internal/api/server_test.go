package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"finanzapp-core/internal/backend"
	"finanzapp-core/internal/backend/backendtest"
	"finanzapp-core/internal/config"
	"finanzapp-core/internal/consistency"
	"finanzapp-core/internal/database"
	"finanzapp-core/internal/ledger"
	"finanzapp-core/internal/models"
	"finanzapp-core/internal/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	handler http.Handler
	client  *backendtest.MockClient
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)

	logger := zap.NewNop()
	validator := consistency.NewValidator(logger, consistency.Options{})
	ledgerSvc := ledger.NewService(ledger.NewGormRepository(db), validator, logger)
	client := new(backendtest.MockClient)
	sess := session.New(client, logger)

	srv := NewServer(config.Server{Port: 0}, ledgerSvc, sess, validator, logger)
	t.Cleanup(func() { client.AssertExpectations(t) })
	return &testEnv{handler: srv.Routes(), client: client}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestOperations_Lifecycle(t *testing.T) {
	env := setupTestServer(t)

	// Arrange
	rec := env.do(t, http.MethodPost, "/api/v1/assets/1/operations",
		`{"asset_symbol":"GGAL","kind":"buy","quantity":10,"timestamp":"2024-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	buy := decodeBody[models.Operation](t, rec)

	rec = env.do(t, http.MethodPost, "/api/v1/assets/1/operations",
		`{"asset_symbol":"GGAL","kind":"sell","quantity":8,"timestamp":"2024-01-10T00:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Act: a backdated sell strands the later one
	rec = env.do(t, http.MethodPost, "/api/v1/assets/1/operations",
		`{"asset_symbol":"GGAL","kind":"sell","quantity":4,"timestamp":"2024-01-05T00:00:00Z"}`)

	// Assert
	require.Equal(t, http.StatusConflict, rec.Code)
	violation := decodeBody[violationResponse](t, rec)
	assert.Equal(t, "2024-01-10", violation.Date)
	assert.InDelta(t, -2.0, violation.Balance, 1e-9)
	assert.Contains(t, violation.Error, "GGAL")

	rec = env.do(t, http.MethodGet, "/api/v1/assets/1/holding", "")
	require.Equal(t, http.StatusOK, rec.Code)
	holding := decodeBody[holdingResponse](t, rec)
	assert.Equal(t, 2.0, holding.Holding)
	assert.Len(t, holding.Timeline, 2)

	rec = env.do(t, http.MethodPut, "/api/v1/operations/"+buy.ID,
		`{"kind":"buy","quantity":5,"timestamp":"2024-01-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/operations/"+buy.ID,
		`{"kind":"compra","quantity":12,"timestamp":"2024-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 12.0, decodeBody[models.Operation](t, rec).Quantity)

	rec = env.do(t, http.MethodDelete, "/api/v1/operations/"+buy.ID, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/assets/1/operations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.Operation](t, rec), 2)
}

func TestOperations_Errors(t *testing.T) {
	env := setupTestServer(t)

	testCases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"bad asset id", http.MethodGet, "/api/v1/assets/abc/operations", "", http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/v1/assets/1/operations", `{"kind":`, http.StatusBadRequest},
		{"unknown kind", http.MethodPost, "/api/v1/assets/1/operations", `{"kind":"swap","quantity":1,"timestamp":"2024-01-01T00:00:00Z"}`, http.StatusBadRequest},
		{"negative quantity", http.MethodPost, "/api/v1/assets/1/operations", `{"kind":"buy","quantity":-1,"timestamp":"2024-01-01T00:00:00Z"}`, http.StatusBadRequest},
		{"update unknown", http.MethodPut, "/api/v1/operations/missing", `{"kind":"buy","quantity":1,"timestamp":"2024-01-01T00:00:00Z"}`, http.StatusNotFound},
		{"delete unknown", http.MethodDelete, "/api/v1/operations/missing", "", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestValidateOperation(t *testing.T) {
	env := setupTestServer(t)
	existing := `[
		{"id":"e1","timestamp":"2024-01-01T00:00:00Z","kind":"buy","quantity":10},
		{"id":"e2","timestamp":"2024-01-10T00:00:00Z","kind":"sell","quantity":8}
	]`

	testCases := []struct {
		name   string
		body   string
		status int
		ok     bool
	}{
		{
			name:   "backdated sell",
			body:   `{"existing":` + existing + `,"action":"create","proposed":{"timestamp":"2024-01-05T00:00:00Z","kind":"venta","quantity":4,"asset_label":"GGAL"}}`,
			status: http.StatusOK,
		},
		{
			name:   "harmless buy",
			body:   `{"existing":` + existing + `,"action":"create","proposed":{"timestamp":"2024-01-05T00:00:00Z","kind":"buy","quantity":4}}`,
			status: http.StatusOK,
			ok:     true,
		},
		{
			name:   "delete without target",
			body:   `{"existing":` + existing + `,"action":"delete"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "edit unknown target",
			body:   `{"existing":` + existing + `,"action":"edit","target_id":"zz","proposed":{"timestamp":"2024-01-05T00:00:00Z","kind":"buy","quantity":1}}`,
			status: http.StatusNotFound,
		},
		{
			name:   "unknown action",
			body:   `{"existing":[],"action":"merge"}`,
			status: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/operations/validate", tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.status != http.StatusOK {
				return
			}
			resp := decodeBody[validateResponse](t, rec)
			assert.Equal(t, tc.ok, resp.OK)
			if !tc.ok {
				require.NotNil(t, resp.Violation)
				assert.Equal(t, "2024-01-10", resp.Violation.Date())
				assert.Contains(t, resp.Message, "GGAL")
			}
		})
	}
}

func sampleValuation(withTotals bool) *models.Valuation {
	v := &models.Valuation{
		PortfolioID: 7,
		Positions: []models.ValuationPosition{
			{AssetID: 1, Symbol: "AAPL", Quantity: decimal.NewFromInt(1), AverageCost: decimal.NewFromInt(80), CurrentPrice: decimal.NewFromInt(100), Value: decimal.NewFromInt(100), Currency: "USD", AssetType: "CEDEAR"},
			{AssetID: 2, Symbol: "GGAL", Quantity: decimal.NewFromInt(1), AverageCost: decimal.NewFromInt(125000), CurrentPrice: decimal.NewFromInt(100000), Value: decimal.NewFromInt(100000), Currency: "ARS", AssetType: "ACCION"},
		},
	}
	if withTotals {
		local, foreign := decimal.NewFromInt(200000), decimal.NewFromInt(100)
		v.TotalLocal, v.TotalForeign = &local, &foreign
	}
	return v
}

type rowBody struct {
	Symbol              string  `json:"symbol"`
	Price               float64 `json:"price"`
	CurrentValue        float64 `json:"current_value"`
	Degraded            bool    `json:"degraded"`
	PriceDisplay        string  `json:"price_display"`
	CurrentValueDisplay string  `json:"current_value_display"`
}

type positionsBody struct {
	Display  string    `json:"display"`
	Degraded bool      `json:"degraded"`
	Rows     []rowBody `json:"rows"`
}

func TestPortfolioPositions(t *testing.T) {
	t.Run("Renders in USD", func(t *testing.T) {
		env := setupTestServer(t)
		env.client.On("GetValuation", mock.Anything, int64(7)).Return(sampleValuation(true), nil).Once()

		rec := env.do(t, http.MethodGet, "/api/v1/portfolios/7/positions?display=usd&sort=current_value&dir=desc", "")

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody[positionsBody](t, rec)
		assert.Equal(t, "USD", body.Display)
		assert.False(t, body.Degraded)
		require.Len(t, body.Rows, 2)
		assert.Equal(t, "AAPL", body.Rows[0].Symbol)
		assert.Equal(t, "$100.00", body.Rows[0].CurrentValueDisplay)
		assert.Equal(t, "GGAL", body.Rows[1].Symbol)
		assert.InDelta(t, 50.0, body.Rows[1].Price, 1e-9)
		assert.Equal(t, "$50.00", body.Rows[1].PriceDisplay)
	})

	t.Run("Degraded rows show N/D", func(t *testing.T) {
		env := setupTestServer(t)
		env.client.On("GetValuation", mock.Anything, int64(7)).Return(sampleValuation(false), nil).Once()

		rec := env.do(t, http.MethodGet, "/api/v1/portfolios/7/positions?display=USD", "")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[positionsBody](t, rec)
		assert.True(t, body.Degraded)
		require.Len(t, body.Rows, 2)
		assert.Equal(t, "AAPL", body.Rows[0].Symbol)
		assert.False(t, body.Rows[0].Degraded)
		assert.True(t, body.Rows[1].Degraded)
		assert.Equal(t, notAvailable, body.Rows[1].PriceDisplay)
		assert.Equal(t, 0.0, body.Rows[1].CurrentValue)
	})

	t.Run("Filters by class", func(t *testing.T) {
		env := setupTestServer(t)
		env.client.On("GetValuation", mock.Anything, int64(7)).Return(sampleValuation(true), nil).Once()

		rec := env.do(t, http.MethodGet, "/api/v1/portfolios/7/positions?class=local", "")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[positionsBody](t, rec)
		require.Len(t, body.Rows, 1)
		assert.Equal(t, "GGAL", body.Rows[0].Symbol)
	})

	t.Run("Bad sort key", func(t *testing.T) {
		env := setupTestServer(t)

		rec := env.do(t, http.MethodGet, "/api/v1/portfolios/7/positions?sort=volume", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Backend failure", func(t *testing.T) {
		env := setupTestServer(t)
		env.client.On("GetValuation", mock.Anything, int64(7)).Return(nil, errors.New("request failed after 3 attempts")).Once()

		rec := env.do(t, http.MethodGet, "/api/v1/portfolios/7/positions", "")

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestSortPortfolio(t *testing.T) {
	env := setupTestServer(t)
	body := `{
		"display": "ARS",
		"sort": "symbol",
		"dir": "asc",
		"totals": {"total_local": 200000, "total_foreign": 100},
		"positions": [
			{"symbol": "GGAL", "quantity": 1, "average_cost": 125000, "current_price": 100000, "currency": "ARS"},
			{"symbol": "AAPL", "quantity": 1, "average_cost": 80, "current_price": 100, "currency": "USD"}
		]
	}`

	rec := env.do(t, http.MethodPost, "/api/v1/portfolio/sort", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[positionsBody](t, rec)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "AAPL", resp.Rows[0].Symbol)
	assert.InDelta(t, 200000.0, resp.Rows[0].Price, 1e-9)
	assert.Equal(t, "GGAL", resp.Rows[1].Symbol)
}

func TestCatalog(t *testing.T) {
	t.Run("Asset is fetched once", func(t *testing.T) {
		env := setupTestServer(t)
		env.client.On("GetAsset", mock.Anything, int64(3)).
			Return(&models.Asset{ID: 3, Symbol: "YPF", Currency: "ARS"}, nil).Once()

		for i := 0; i < 2; i++ {
			rec := env.do(t, http.MethodGet, "/api/v1/catalog/assets/3", "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "YPF", decodeBody[models.Asset](t, rec).Symbol)
		}
	})

	t.Run("Unknown asset", func(t *testing.T) {
		env := setupTestServer(t)
		env.client.On("GetAsset", mock.Anything, int64(9)).
			Return(nil, fmt.Errorf("%w: /assets/9", backend.ErrNotFound)).Once()

		rec := env.do(t, http.MethodGet, "/api/v1/catalog/assets/9", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Recommendations listing", func(t *testing.T) {
		env := setupTestServer(t)
		env.client.On("ListRecommendations", mock.Anything).
			Return([]models.Recommendation{{ID: 1, Symbol: "GGAL", Action: "buy"}}, nil).Once()

		rec := env.do(t, http.MethodGet, "/api/v1/catalog/recommendations", "")
		require.Equal(t, http.StatusOK, rec.Code)
		rec = env.do(t, http.MethodGet, "/api/v1/catalog/recommendations/1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "GGAL", decodeBody[models.Recommendation](t, rec).Symbol)
	})

	t.Run("Logout clears caches", func(t *testing.T) {
		env := setupTestServer(t)
		env.client.On("ListAssets", mock.Anything).Return([]models.Asset{{ID: 1, Symbol: "GGAL"}}, nil).Twice()
		env.client.On("SetToken", "").Return().Once()

		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/catalog/assets", "").Code)
		require.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/api/v1/session/logout", "").Code)
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/catalog/assets", "").Code)
	})
}

func TestLogin_RestoresCatalogAfterLogout(t *testing.T) {
	// Arrange: a backend that only serves requests carrying a valid token
	upstream := http.NewServeMux()
	upstream.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		if body.Username != "ana" || body.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"bad credentials"}`))
			return
		}
		w.Write([]byte(`{"token":"tok-new"}`))
	})
	upstream.HandleFunc("/assets", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Header.Get("Authorization") {
		case "Bearer cfg-token", "Bearer tok-new":
			w.Write([]byte(`[{"id":1,"symbol":"GGAL"}]`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"missing token"}`))
		}
	})
	backendSrv := httptest.NewServer(upstream)
	defer backendSrv.Close()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	logger := zap.NewNop()
	validator := consistency.NewValidator(logger, consistency.Options{})
	client := backend.NewRestClient(&config.Backend{BaseURL: backendSrv.URL, Token: "cfg-token", MaxRetries: 1}, logger)
	sess := session.New(client, logger)
	srv := NewServer(config.Server{}, ledger.NewService(ledger.NewGormRepository(db), validator, logger), sess, validator, logger)
	env := &testEnv{handler: srv.Routes()}

	// Act / Assert
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/catalog/assets", "").Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/api/v1/session/logout", "").Code)
	assert.False(t, sess.Authenticated())
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/v1/catalog/assets", "").Code)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/v1/session/login", `{"username":"ana"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/v1/session/login", `{"username":"ana","password":"nope"}`).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/api/v1/session/login", `{"username":"ana","password":"pw"}`).Code)

	assert.True(t, sess.Authenticated())
	rec := env.do(t, http.MethodGet, "/api/v1/catalog/assets", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "GGAL", decodeBody[[]models.Asset](t, rec)[0].Symbol)
}
