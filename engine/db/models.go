package db

import (
	"time"

	"github.com/liuran001/TrackFetch-Go/engine"
	"gorm.io/gorm"
)

// CachedFileModel indexes one blob of the on-disk file cache.
type CachedFileModel struct {
	ID        uint      `gorm:"primarykey"`
	Key       string    `gorm:"uniqueIndex;not null"`
	Path      string    `gorm:"not null"`
	Size      int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"index"`
}

func (CachedFileModel) TableName() string {
	return "cached_files"
}

// StatModel stores aggregated download statistics.
type StatModel struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;not null"`
	Value int64
}

func (StatModel) TableName() string {
	return "download_stats"
}

func cachedFileToInternal(model CachedFileModel) engine.CachedFile {
	return engine.CachedFile{
		Key:       model.Key,
		Path:      model.Path,
		Size:      model.Size,
		CreatedAt: model.CreatedAt,
	}
}

func cachedFileFromInternal(file *engine.CachedFile) CachedFileModel {
	return CachedFileModel{
		Key:       file.Key,
		Path:      file.Path,
		Size:      file.Size,
		CreatedAt: file.CreatedAt,
	}
}
