package models

import (
	"time"

	"github.com/soundpost/soundpost-backend/pkg/enums"
)

// Media tracks one uploaded artifact and the files derived from it. FilePath,
// MP3Path and ThumbnailPath are relative to the media root and embed the
// record's own ID as a path segment.
type Media struct {
	ID              uint            `gorm:"column:id;primaryKey"`
	Kind            enums.MediaKind `gorm:"column:kind;size:16;not null"`
	FilePath        string          `gorm:"column:file_path;size:512"`
	MP3Path         *string         `gorm:"column:mp3_path;size:512"`
	ObjectKey       *string         `gorm:"column:object_key;size:512"`
	DurationSeconds *float64        `gorm:"column:duration_seconds"`
	ThumbnailPath   *string         `gorm:"column:thumbnail_path;size:512"`
	Transcript      *string         `gorm:"column:transcript"`
	AltText         *string         `gorm:"column:alt_text"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// HasFile reports whether the primary artifact was materialized. A persisted
// row without a file is an orphan left by a failed two-phase save.
func (m *Media) HasFile() bool {
	return m != nil && m.FilePath != ""
}

// PlaybackPath prefers the normalized MP3 variant over the primary file.
func (m *Media) PlaybackPath() string {
	if m == nil {
		return ""
	}
	if m.MP3Path != nil && *m.MP3Path != "" {
		return *m.MP3Path
	}
	return m.FilePath
}
