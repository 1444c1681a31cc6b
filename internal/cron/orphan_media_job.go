package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/soundpost/soundpost-backend/pkg/logger"
)

const defaultOrphanRetention = 7 * 24 * time.Hour

type orphanSweeper interface {
	SweepOrphans(ctx context.Context, retention time.Duration) (int, error)
}

// OrphanMediaJobParams configure the orphan media cleanup job.
type OrphanMediaJobParams struct {
	Logger    *logger.Logger
	Medias    orphanSweeper
	Retention time.Duration
}

// NewOrphanMediaJob removes media rows whose upload never materialized.
// A crash between the row save and the file write leaves such rows
// behind; they have no file path and serve nothing.
func NewOrphanMediaJob(params OrphanMediaJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Medias == nil {
		return nil, fmt.Errorf("media service required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOrphanRetention
	}
	return &orphanMediaJob{
		logg:      params.Logger,
		medias:    params.Medias,
		retention: retention,
	}, nil
}

type orphanMediaJob struct {
	logg      *logger.Logger
	medias    orphanSweeper
	retention time.Duration
}

func (j *orphanMediaJob) Name() string { return "orphan-media-cleanup" }

func (j *orphanMediaJob) Run(ctx context.Context) error {
	removed, err := j.medias.SweepOrphans(ctx, j.retention)
	if err != nil {
		return fmt.Errorf("orphan media cleanup: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"retention": j.retention.String(),
		"removed":   removed,
	})
	j.logg.Info(logCtx, "orphan media cleanup complete")
	return nil
}
