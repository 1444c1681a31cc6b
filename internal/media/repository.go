package media

import (
	"context"
	"time"

	"github.com/soundpost/soundpost-backend/pkg/db"
	"github.com/soundpost/soundpost-backend/pkg/db/models"
	"github.com/soundpost/soundpost-backend/pkg/errors"
)

// Repository persists media records.
type Repository struct {
	client *db.Client
}

func NewRepository(client *db.Client) *Repository {
	return &Repository{client: client}
}

func (r *Repository) Create(ctx context.Context, m *models.Media) error {
	if err := r.client.DB().WithContext(ctx).Create(m).Error; err != nil {
		return errors.Wrap(errors.CodeDependency, err, "creating media record")
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, m *models.Media) error {
	if err := r.client.DB().WithContext(ctx).Save(m).Error; err != nil {
		return errors.Wrap(errors.CodeDependency, err, "updating media record")
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uint) (*models.Media, error) {
	var m models.Media
	err := r.client.DB().WithContext(ctx).First(&m, id).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errors.New(errors.CodeNotFound, "media record not found")
		}
		return nil, errors.Wrap(errors.CodeDependency, err, "loading media record")
	}
	return &m, nil
}

func (r *Repository) Delete(ctx context.Context, id uint) error {
	if err := r.client.DB().WithContext(ctx).Delete(&models.Media{}, id).Error; err != nil {
		return errors.Wrap(errors.CodeDependency, err, "deleting media record")
	}
	return nil
}

// ListOrphansBefore returns fileless rows older than the cutoff. These are
// the residue of saves that persisted the row but never materialized the
// upload. Rows backed by an object-store key have no local file by design
// and are not orphans.
func (r *Repository) ListOrphansBefore(ctx context.Context, cutoff time.Time) ([]models.Media, error) {
	var rows []models.Media
	err := r.client.DB().WithContext(ctx).
		Where("file_path = ? AND (object_key IS NULL OR object_key = ?) AND created_at < ?", "", "", cutoff).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "listing orphaned media records")
	}
	return rows, nil
}

// ObjectKeyExists reports whether any record already claims the object key.
func (r *Repository) ObjectKeyExists(ctx context.Context, key string) (bool, error) {
	var count int64
	err := r.client.DB().WithContext(ctx).
		Model(&models.Media{}).
		Where("object_key = ?", key).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(errors.CodeDependency, err, "checking object key")
	}
	return count > 0, nil
}
