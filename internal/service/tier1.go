package service

import (
	"fmt"

	"go-news-intel/config"
	"go-news-intel/internal/logger"
	"go-news-intel/internal/model"
	"go-news-intel/internal/textutil"
	"gorm.io/gorm"
)

// Tier1Verifier 检查一级权威来源是否报道了同一事件
type Tier1Verifier struct {
	cfg config.TruthConfig
	log *logger.Logger
}

func NewTier1Verifier(cfg config.TruthConfig, log *logger.Logger) *Tier1Verifier {
	return &Tier1Verifier{cfg: cfg, log: log}
}

// IsTier1 来源是否在白名单中
func (v *Tier1Verifier) IsTier1(source *model.Source) bool {
	if source == nil {
		return false
	}
	for _, name := range v.cfg.Tier1Sources {
		if source.Name == name {
			return true
		}
	}
	return false
}

// Verify 自身来源为一级来源时直接通过;否则在 [发布-2h, 发布+12h] 内查找相似标题
func (v *Tier1Verifier) Verify(db *gorm.DB, article *model.Article) (*model.Tier1Evidence, error) {
	if v.IsTier1(article.Source) {
		return &model.Tier1Evidence{
			Verified: true,
			Evidence: fmt.Sprintf("Direct from Tier 1 source: %s", article.Source.Name),
		}, nil
	}

	var tier1IDs []uint
	if err := db.Model(&model.Source{}).Where("name IN ?", v.cfg.Tier1Sources).Pluck("id", &tier1IDs).Error; err != nil {
		return nil, err
	}
	if len(tier1IDs) == 0 {
		v.log.Warn("no tier 1 sources configured in database")
		return &model.Tier1Evidence{}, nil
	}

	var candidates []model.Article
	err := db.Preload("Source").
		Where("source_id IN ? AND id <> ?", tier1IDs, article.ID).
		Where("published_at >= ? AND published_at <= ?",
			article.PublishedAt.Add(-v.cfg.Tier1Before).UTC(), article.PublishedAt.Add(v.cfg.Tier1After).UTC()).
		Order("published_at ASC, id ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		similarity := textutil.TokenSetRatio(article.Title, candidates[i].Title)
		if similarity < v.cfg.Tier1Threshold {
			continue
		}
		name := ""
		if candidates[i].Source != nil {
			name = candidates[i].Source.Name
		}
		ev := &model.Tier1Evidence{
			Verified:       true,
			MatchedArticle: candidates[i].ID,
			Similarity:     similarity,
			Evidence: fmt.Sprintf("Confirmed by Tier 1 source '%s' (similarity: %d%%). Title: '%s'",
				name, similarity, candidates[i].Title),
		}
		v.log.Info("tier 1 verification pass", "article_id", article.ID, "matched", candidates[i].ID)
		return ev, nil
	}

	return &model.Tier1Evidence{}, nil
}
