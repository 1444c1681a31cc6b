package posts

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soundpost/soundpost-backend/pkg/config"
	"github.com/soundpost/soundpost-backend/pkg/db"
	"github.com/soundpost/soundpost-backend/pkg/db/models"
	"github.com/soundpost/soundpost-backend/pkg/enums"
	"github.com/soundpost/soundpost-backend/pkg/errors"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	client, err := db.New(context.Background(), config.DBConfig{
		DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
	}, true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.DB().AutoMigrate(&models.Media{}, &models.Post{}))
	return NewRepository(client)
}

func TestRepositoryFindPreloadsMediaAndReplies(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := &models.Media{ID: 1, Kind: enums.MediaKindAudio, FilePath: "audio/1/a.mp3"}
	require.NoError(t, repo.client.DB().Create(m).Error)

	parent := &models.Post{ID: 1, AuthorID: 2, Head: "parent", MediaID: &m.ID}
	require.NoError(t, repo.Create(ctx, parent))
	reply := &models.Post{AuthorID: 3, Head: "reply", ParentID: &parent.ID}
	require.NoError(t, repo.Create(ctx, reply))

	loaded, err := repo.FindByID(ctx, parent.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Media)
	require.Equal(t, "audio/1/a.mp3", loaded.Media.FilePath)
	require.Len(t, loaded.Replies, 1)
	require.Equal(t, "reply", loaded.Replies[0].Head)
}

func TestRepositoryFindNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.FindByID(context.Background(), 999)
	typed := errors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, errors.CodeNotFound, typed.Code())
}

func TestRepositoryListTopLevel(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	parent := &models.Post{AuthorID: 2, Head: "top"}
	require.NoError(t, repo.Create(ctx, parent))
	reply := &models.Post{AuthorID: 2, Head: "nested", ParentID: &parent.ID}
	require.NoError(t, repo.Create(ctx, reply))

	rows, err := repo.ListTopLevel(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "top", rows[0].Head)
	require.Len(t, rows[0].Replies, 1)
}

func TestRepositoryDeleteWithReplies(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	parent := &models.Post{AuthorID: 2, Head: "parent"}
	require.NoError(t, repo.Create(ctx, parent))
	reply := &models.Post{AuthorID: 3, Head: "reply", ParentID: &parent.ID}
	require.NoError(t, repo.Create(ctx, reply))

	require.NoError(t, repo.DeleteWithReplies(ctx, parent.ID))

	_, err := repo.FindByID(ctx, parent.ID)
	typed := errors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, errors.CodeNotFound, typed.Code())

	survivor, err := repo.FindByID(ctx, reply.ID)
	require.NoError(t, err)
	require.Nil(t, survivor.ParentID)
}
