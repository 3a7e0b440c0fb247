package service

import (
	"errors"
	"fmt"

	"go-news-intel/internal/model"
	"gorm.io/gorm"
)

func findArticle(db *gorm.DB, id uint) (*model.Article, error) {
	var article model.Article
	err := db.Preload("Source").Preload("Correlation").First(&article, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: article %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// voteCounts 按文章统计投票数
func voteCounts(db *gorm.DB, articleIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(articleIDs))
	if len(articleIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ArticleID uint
		Total     int64
	}
	err := db.Model(&model.Vote{}).
		Select("article_id, COUNT(*) AS total").
		Where("article_id IN ?", articleIDs).
		Group("article_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.ArticleID] = r.Total
	}
	return counts, nil
}
