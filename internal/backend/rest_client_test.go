package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"finanzapp-core/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	rc := &RestClient{
		client:     resty.New().SetBaseURL(server.URL),
		logger:     zap.NewNop(),
		limiter:    rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
		maxRetries: 3,
		backoff:    time.Millisecond,
	}

	return rc, server
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestGetAsset(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/assets/7", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, `{"id":7,"symbol":"GGAL","type":"ACCION","currency":"ARS","price":"4210.5"}`)
		})
		rc, server := setupTestServer(handler)
		defer server.Close()
		rc.SetToken("secret")

		// Act
		asset, err := rc.GetAsset(context.Background(), 7)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, int64(7), asset.ID)
		assert.Equal(t, "GGAL", asset.Symbol)
		assert.Equal(t, "4210.5", asset.Price.String())
	})

	t.Run("NotFound", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			writeJSON(w, http.StatusNotFound, `{"detail":"missing"}`)
		})
		rc, server := setupTestServer(handler)
		defer server.Close()

		asset, err := rc.GetAsset(context.Background(), 99)

		assert.Nil(t, asset)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "404 is not retried")
	})
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	t.Run("RecoversAfterFailures", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				writeJSON(w, http.StatusServiceUnavailable, `{}`)
				return
			}
			writeJSON(w, http.StatusOK, `[{"id":1,"symbol":"AL30"},{"id":2,"symbol":"GD30"}]`)
		})
		rc, server := setupTestServer(handler)
		defer server.Close()

		assets, err := rc.ListAssets(context.Background())

		require.NoError(t, err)
		assert.Len(t, assets, 2)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("GivesUp", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			writeJSON(w, http.StatusInternalServerError, `{"detail":"boom"}`)
		})
		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.ListRecommendations(context.Background())

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to list recommendations")
		assert.Contains(t, err.Error(), "request failed after 3 attempts")
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("ClientErrorIsNotRetried", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			writeJSON(w, http.StatusBadRequest, `{"detail":"bad"}`)
		})
		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.GetValuation(context.Background(), 1)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "request failed with status")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "30")
			writeJSON(w, http.StatusTooManyRequests, `{}`)
		})
		rc, server := setupTestServer(handler)
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := rc.ListAssets(ctx)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestGetAssetsByIDs(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assets", r.URL.Path)
		assert.Equal(t, "3,5", r.URL.Query().Get("ids"))
		writeJSON(w, http.StatusOK, `[{"id":3},{"id":5}]`)
	})
	rc, server := setupTestServer(handler)
	defer server.Close()

	assets, err := rc.GetAssetsByIDs(context.Background(), []int64{3, 5})
	require.NoError(t, err)
	assert.Len(t, assets, 2)

	none, err := rc.GetAssetsByIDs(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestLogin(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana", body["username"])
		writeJSON(w, http.StatusOK, `{"token":"tok-123"}`)
	})
	handler.HandleFunc("/recommendations/4", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"id":4,"symbol":"YPFD","action":"buy","target_price":36000}`)
	})
	rc, server := setupTestServer(handler)
	defer server.Close()

	token, err := rc.Login(context.Background(), "ana", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)

	rec, err := rc.GetRecommendation(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "YPFD", rec.Symbol)
	assert.Equal(t, "36000", rec.TargetPrice.String())
}

func TestGetValuation(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/portfolios/12/valuation", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"portfolio_id":12,"positions":[{"asset_id":1,"symbol":"AAPL","quantity":1,"current_price":100,"currency":"USD"}],"total_ars":200000,"total_usd":100}`)
	})
	rc, server := setupTestServer(handler)
	defer server.Close()

	v, err := rc.GetValuation(context.Background(), 12)

	require.NoError(t, err)
	require.Len(t, v.Positions, 1)
	totals := v.Totals()
	require.NotNil(t, totals.TotalForeign)
	assert.Equal(t, 100.0, *totals.TotalForeign)
}

func TestNewRestClient(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		rc := NewRestClient(&config.Backend{BaseURL: "http://example.test/api/"}, zap.NewNop())
		assert.NotNil(t, rc)
		assert.Equal(t, 1, rc.maxRetries)
		assert.Equal(t, rate.Inf, rc.limiter.Limit())
		assert.Equal(t, "http://example.test/api", rc.client.BaseURL)
	})

	t.Run("Configured", func(t *testing.T) {
		cfg := &config.Backend{BaseURL: "http://example.test", Token: "t", RateLimit: 5, RateLimitBurst: 2, MaxRetries: 4}
		rc := NewRestClient(cfg, zap.NewNop())
		assert.Equal(t, 4, rc.maxRetries)
		assert.Equal(t, rate.Limit(5), rc.limiter.Limit())
		assert.Equal(t, 2, rc.limiter.Burst())
		assert.Equal(t, "t", rc.token)
	})
}

func TestLogin_RejectedCredentials(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusUnauthorized, `{"detail":"bad credentials"}`)
	})
	rc, server := setupTestServer(handler)
	defer server.Close()

	_, err := rc.Login(context.Background(), "ana", "wrong")

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.False(t, rc.Authenticated())
}

func TestAuthenticated(t *testing.T) {
	rc := NewRestClient(&config.Backend{BaseURL: "http://localhost", Token: "cfg-token"}, zap.NewNop())
	assert.True(t, rc.Authenticated())

	rc.SetToken("")
	assert.False(t, rc.Authenticated())

	rc.SetToken("tok-2")
	assert.True(t, rc.Authenticated())
}
