package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/resumelab/cv-optimizer/entity"
)

type CVRepository struct {
	db *gorm.DB
}

func NewCVRepository(db *gorm.DB) *CVRepository {
	return &CVRepository{db: db}
}

func (r *CVRepository) Create(ctx context.Context, cv *entity.CVDocument) error {
	return r.db.WithContext(ctx).Create(cv).Error
}

// FindByIDAndOwner fails closed: a CV owned by someone else is reported as
// not found.
func (r *CVRepository) FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*entity.CVDocument, error) {
	var cv entity.CVDocument
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&cv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCVNotFound
		}
		return nil, err
	}
	return &cv, nil
}

func (r *CVRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]entity.CVDocument, error) {
	var cvs []entity.CVDocument
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&cvs).Error
	return cvs, err
}
