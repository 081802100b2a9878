package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"finanzapp-core/internal/consistency"
	"finanzapp-core/internal/metrics"
	"finanzapp-core/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidOperation is returned for input that cannot describe a trade.
var ErrInvalidOperation = errors.New("invalid operation")

// Input carries the user-editable fields of an operation.
type Input struct {
	AssetSymbol string    `json:"asset_symbol"`
	Kind        string    `json:"kind"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	Timestamp   time.Time `json:"timestamp"`
}

func (in Input) event(id string) (consistency.Event, error) {
	kind, err := consistency.ParseKind(in.Kind)
	if err != nil {
		return consistency.Event{}, err
	}
	if in.Timestamp.IsZero() {
		return consistency.Event{}, fmt.Errorf("%w: timestamp is required", ErrInvalidOperation)
	}
	return consistency.Event{
		ID:         id,
		Timestamp:  in.Timestamp,
		Kind:       kind,
		Quantity:   in.Quantity,
		AssetLabel: in.AssetSymbol,
	}, nil
}

// Service records operations only when the asset's holding stays
// non-negative over its whole history.
//
// Check and write happen under one lock so two concurrent mutations of the
// same history cannot both pass against a stale snapshot.
type Service struct {
	mu        sync.Mutex
	logger    *zap.Logger
	repo      Repository
	validator *consistency.Validator
}

func NewService(repo Repository, validator *consistency.Validator, logger *zap.Logger) *Service {
	return &Service{
		logger:    logger.Named("ledger"),
		repo:      repo,
		validator: validator,
	}
}

// List returns an asset's history in chronological order.
func (s *Service) List(ctx context.Context, assetID int64) ([]models.Operation, error) {
	return s.repo.ListByAsset(ctx, assetID)
}

// Holding replays an asset's history and returns the balance after each operation.
func (s *Service) Holding(ctx context.Context, assetID int64) ([]consistency.BalancePoint, error) {
	ops, err := s.repo.ListByAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	events, err := models.Events(ops)
	if err != nil {
		return nil, err
	}
	return consistency.Replay(events), nil
}

// Create validates and stores a new operation for assetID. A non-nil
// Violation means nothing was stored.
func (s *Service) Create(ctx context.Context, assetID int64, in Input) (*models.Operation, *consistency.Violation, error) {
	proposed, err := in.event("")
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	violation, err := s.check(ctx, assetID, consistency.ActionCreate, proposed, "")
	if err != nil || violation != nil {
		return nil, violation, err
	}

	op := &models.Operation{
		ID:          uuid.NewString(),
		AssetID:     assetID,
		AssetSymbol: in.AssetSymbol,
		Kind:        proposed.Kind.String(),
		Quantity:    in.Quantity,
		Price:       in.Price,
		Currency:    in.Currency,
		Timestamp:   in.Timestamp,
	}
	if err := s.repo.Create(ctx, op); err != nil {
		return nil, nil, err
	}
	s.logger.Info("Operation recorded",
		zap.String("event_id", op.ID),
		zap.Int64("asset_id", assetID),
		zap.String("kind", op.Kind),
		zap.Float64("quantity", op.Quantity),
	)
	return op, nil, nil
}

// Update validates and applies new values to an existing operation.
func (s *Service) Update(ctx context.Context, id string, in Input) (*models.Operation, *consistency.Violation, error) {
	proposed, err := in.event(id)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	op, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if proposed.AssetLabel == "" {
		proposed.AssetLabel = op.AssetSymbol
	}

	violation, err := s.check(ctx, op.AssetID, consistency.ActionEdit, proposed, id)
	if err != nil || violation != nil {
		return nil, violation, err
	}

	op.Kind = proposed.Kind.String()
	op.Quantity = in.Quantity
	op.Price = in.Price
	op.Timestamp = in.Timestamp
	if in.Currency != "" {
		op.Currency = in.Currency
	}
	if in.AssetSymbol != "" {
		op.AssetSymbol = in.AssetSymbol
	}
	if err := s.repo.Update(ctx, op); err != nil {
		return nil, nil, err
	}
	s.logger.Info("Operation updated", zap.String("event_id", id), zap.Int64("asset_id", op.AssetID))
	return op, nil, nil
}

// Delete removes an operation unless later sells depend on it.
func (s *Service) Delete(ctx context.Context, id string) (*consistency.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	target := consistency.Event{AssetLabel: op.AssetSymbol}
	violation, err := s.check(ctx, op.AssetID, consistency.ActionDelete, target, id)
	if err != nil || violation != nil {
		return violation, err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}
	s.logger.Info("Operation deleted", zap.String("event_id", id), zap.Int64("asset_id", op.AssetID))
	return nil, nil
}

func (s *Service) check(ctx context.Context, assetID int64, action consistency.Action, proposed consistency.Event, targetID string) (*consistency.Violation, error) {
	ops, err := s.repo.ListByAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	events, err := models.Events(ops)
	if err != nil {
		return nil, err
	}

	violation, err := s.validator.Validate(events, action, proposed, targetID)
	switch {
	case err != nil:
		metrics.Validations.WithLabelValues(action.String(), "error").Inc()
	case violation != nil:
		metrics.Validations.WithLabelValues(action.String(), "violation").Inc()
	default:
		metrics.Validations.WithLabelValues(action.String(), "ok").Inc()
	}
	return violation, err
}
