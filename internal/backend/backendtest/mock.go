// Package backendtest provides a testify mock of backend.Client.
package backendtest

import (
	"context"

	"finanzapp-core/internal/backend"
	"finanzapp-core/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of backend.Client.
type MockClient struct {
	mock.Mock
}

var _ backend.Client = (*MockClient)(nil)

func (m *MockClient) Login(ctx context.Context, username, password string) (string, error) {
	args := m.Called(ctx, username, password)
	return args.String(0), args.Error(1)
}

func (m *MockClient) SetToken(token string) {
	m.Called(token)
}

func (m *MockClient) Authenticated() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockClient) GetAsset(ctx context.Context, id int64) (*models.Asset, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*models.Asset)
	return a, args.Error(1)
}

func (m *MockClient) ListAssets(ctx context.Context) ([]models.Asset, error) {
	args := m.Called(ctx)
	a, _ := args.Get(0).([]models.Asset)
	return a, args.Error(1)
}

func (m *MockClient) GetAssetsByIDs(ctx context.Context, ids []int64) ([]models.Asset, error) {
	args := m.Called(ctx, ids)
	a, _ := args.Get(0).([]models.Asset)
	return a, args.Error(1)
}

func (m *MockClient) GetRecommendation(ctx context.Context, id int64) (*models.Recommendation, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*models.Recommendation)
	return r, args.Error(1)
}

func (m *MockClient) ListRecommendations(ctx context.Context) ([]models.Recommendation, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).([]models.Recommendation)
	return r, args.Error(1)
}

func (m *MockClient) GetValuation(ctx context.Context, portfolioID int64) (*models.Valuation, error) {
	args := m.Called(ctx, portfolioID)
	v, _ := args.Get(0).(*models.Valuation)
	return v, args.Error(1)
}
