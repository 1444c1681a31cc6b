package posts

import (
	"context"

	"gorm.io/gorm"

	"github.com/soundpost/soundpost-backend/pkg/db"
	"github.com/soundpost/soundpost-backend/pkg/db/models"
	"github.com/soundpost/soundpost-backend/pkg/errors"
)

// Repository persists posts and their thread links.
type Repository struct {
	client *db.Client
}

func NewRepository(client *db.Client) *Repository {
	return &Repository{client: client}
}

func (r *Repository) Create(ctx context.Context, p *models.Post) error {
	if err := r.client.DB().WithContext(ctx).Create(p).Error; err != nil {
		return errors.Wrap(errors.CodeDependency, err, "creating post")
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, p *models.Post) error {
	if err := r.client.DB().WithContext(ctx).Save(p).Error; err != nil {
		return errors.Wrap(errors.CodeDependency, err, "updating post")
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uint) (*models.Post, error) {
	var p models.Post
	err := r.client.DB().WithContext(ctx).
		Preload("Media").
		Preload("Replies").
		Preload("Replies.Media").
		First(&p, id).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errors.New(errors.CodeNotFound, "post not found")
		}
		return nil, errors.Wrap(errors.CodeDependency, err, "loading post")
	}
	return &p, nil
}

// ListTopLevel returns posts without a parent, newest first, with their
// replies nested one level deep.
func (r *Repository) ListTopLevel(ctx context.Context) ([]models.Post, error) {
	var rows []models.Post
	err := r.client.DB().WithContext(ctx).
		Where("parent_id IS NULL").
		Preload("Media").
		Preload("Replies").
		Preload("Replies.Media").
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "listing posts")
	}
	return rows, nil
}

func (r *Repository) Delete(ctx context.Context, id uint) error {
	if err := r.client.DB().WithContext(ctx).Delete(&models.Post{}, id).Error; err != nil {
		return errors.Wrap(errors.CodeDependency, err, "deleting post")
	}
	return nil
}

// DeleteWithReplies removes the post and detaches its replies in one
// transaction, so a failure cannot leave replies pointing at a deleted
// parent. The replies survive; only the parent link is cleared.
func (r *Repository) DeleteWithReplies(ctx context.Context, id uint) error {
	err := r.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).
			Where("parent_id = ?", id).
			Update("parent_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
	if err != nil {
		return errors.Wrap(errors.CodeDependency, err, "deleting post thread")
	}
	return nil
}
