package projects

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tinkerly/tinkerly-backend/pkg/db"
	"github.com/tinkerly/tinkerly-backend/pkg/db/models"
	"github.com/tinkerly/tinkerly-backend/pkg/enums"
	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
)

// Repository reads projects and records payment state transitions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListByUser(ctx context.Context, userID string) ([]models.Project, error)
	FindForUser(ctx context.Context, userID string, projectID uuid.UUID) (*models.Project, error)
	UpdateStatus(ctx context.Context, projectID uuid.UUID, status enums.ProjectStatus) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListByUser(ctx context.Context, userID string) ([]models.Project, error) {
	var rows []models.Project
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindForUser answers NOT_FOUND for projects owned by someone else.
func (r *repository) FindForUser(ctx context.Context, userID string, projectID uuid.UUID) (*models.Project, error) {
	var row models.Project
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", projectID, userID).
		First(&row).Error
	if db.IsNotFound(err) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load project failed")
	}
	return &row, nil
}

func (r *repository) UpdateStatus(ctx context.Context, projectID uuid.UUID, status enums.ProjectStatus) error {
	if !status.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid project status %q", status)
	}
	res := r.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("id = ?", projectID).
		Update("status", status)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, res.Error, "update project status failed")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
	}
	return nil
}
