package service

import (
	"context"
	"time"

	"go-news-intel/config"
	"go-news-intel/internal/logger"
	"go-news-intel/internal/model"
	"go-news-intel/internal/textutil"
	"gorm.io/gorm"
)

type Deduplicator struct {
	db  *gorm.DB
	cfg config.DedupConfig
	log *logger.Logger
	now func() time.Time
}

func NewDeduplicator(db *gorm.DB, cfg config.DedupConfig, log *logger.Logger) *Deduplicator {
	return &Deduplicator{db: db, cfg: cfg, log: log, now: time.Now}
}

// IsDuplicate 与窗口内最近的标题做模糊比对,任一相似度达到阈值即视为重复
func (d *Deduplicator) IsDuplicate(ctx context.Context, title string) (bool, error) {
	if title == "" {
		return false, nil
	}

	since := d.now().Add(-d.cfg.Window).UTC()
	var recent []string
	err := d.db.WithContext(ctx).Model(&model.Article{}).
		Where("published_at >= ?", since).
		Order("published_at DESC").
		Limit(d.cfg.SampleLimit).
		Pluck("title", &recent).Error
	if err != nil {
		return false, err
	}

	for _, existing := range recent {
		score := textutil.TokenSetRatio(title, existing)
		if score >= d.cfg.Threshold {
			d.log.Info("duplicate detected", "title", title, "existing", existing, "similarity", score)
			return true, nil
		}
	}
	return false, nil
}
