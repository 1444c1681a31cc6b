package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/soundpost/soundpost-backend/pkg/logger"
)

const defaultTempFileRetention = 24 * time.Hour

type tempFileSweeper interface {
	SweepTempFiles(ctx context.Context, olderThan time.Duration) (int, error)
}

// TempFileSweepJobParams configure the temp file sweep job.
type TempFileSweepJobParams struct {
	Logger    *logger.Logger
	Store     tempFileSweeper
	Retention time.Duration
}

// NewTempFileSweepJob removes stale temp files under the media root,
// left by writes or conversions that died before their final rename.
func NewTempFileSweepJob(params TempFileSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("artifact store required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultTempFileRetention
	}
	return &tempFileSweepJob{
		logg:      params.Logger,
		store:     params.Store,
		retention: retention,
	}, nil
}

type tempFileSweepJob struct {
	logg      *logger.Logger
	store     tempFileSweeper
	retention time.Duration
}

func (j *tempFileSweepJob) Name() string { return "temp-file-sweep" }

func (j *tempFileSweepJob) Run(ctx context.Context) error {
	removed, err := j.store.SweepTempFiles(ctx, j.retention)
	if err != nil {
		return fmt.Errorf("temp file sweep: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"retention": j.retention.String(),
		"removed":   removed,
	})
	j.logg.Info(logCtx, "temp file sweep complete")
	return nil
}
