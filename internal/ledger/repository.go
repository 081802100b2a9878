package ledger

import (
	"context"
	"errors"
	"fmt"

	"finanzapp-core/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when an operation id is unknown.
var ErrNotFound = errors.New("operation not found")

// Repository persists operation history.
type Repository interface {
	ListByAsset(ctx context.Context, assetID int64) ([]models.Operation, error)
	Get(ctx context.Context, id string) (*models.Operation, error)
	Create(ctx context.Context, op *models.Operation) error
	Update(ctx context.Context, op *models.Operation) error
	Delete(ctx context.Context, id string) error
}

// GormRepository stores operations through gorm.
type GormRepository struct {
	db *gorm.DB
}

var _ Repository = (*GormRepository)(nil)

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// ListByAsset returns an asset's history ordered by timestamp, then insertion.
func (r *GormRepository) ListByAsset(ctx context.Context, assetID int64) ([]models.Operation, error) {
	var ops []models.Operation
	err := r.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("timestamp asc").Order("created_at asc").
		Find(&ops).Error
	if err != nil {
		return nil, fmt.Errorf("could not list operations for asset %d: %w", assetID, err)
	}
	return ops, nil
}

func (r *GormRepository) Get(ctx context.Context, id string) (*models.Operation, error) {
	var op models.Operation
	err := r.db.WithContext(ctx).First(&op, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("could not get operation %s: %w", id, err)
	}
	return &op, nil
}

func (r *GormRepository) Create(ctx context.Context, op *models.Operation) error {
	if err := r.db.WithContext(ctx).Create(op).Error; err != nil {
		return fmt.Errorf("could not create operation: %w", err)
	}
	return nil
}

func (r *GormRepository) Update(ctx context.Context, op *models.Operation) error {
	res := r.db.WithContext(ctx).Save(op)
	if res.Error != nil {
		return fmt.Errorf("could not update operation %s: %w", op.ID, res.Error)
	}
	return nil
}

func (r *GormRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Operation{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("could not delete operation %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
