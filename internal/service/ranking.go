package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go-news-intel/config"
	"go-news-intel/internal/logger"
	"go-news-intel/internal/model"
	"gorm.io/gorm"
)

// RankingService 计算文章热度(HackerNews风格的时间衰减)
// Hot = (Trust * Impact + Votes * 2) / (Age + 2)^1.5
type RankingService struct {
	db  *gorm.DB
	cfg config.RankingConfig
	log *logger.Logger
	now func() time.Time
}

func NewRankingService(db *gorm.DB, cfg config.RankingConfig, log *logger.Logger) *RankingService {
	return &RankingService{db: db, cfg: cfg, log: log, now: time.Now}
}

// Hotness 纯计算,ageHours 小于0.1时按0.1计算
func (s *RankingService) Hotness(trust, impact float64, votes int64, ageHours float64) float64 {
	age := math.Max(0.1, ageHours)
	numerator := trust*impact + float64(votes)*s.cfg.VoteMultiplier
	return numerator / math.Pow(age+2, s.cfg.Gravity)
}

// Score 计算单篇文章的热度,保留两位小数
func (s *RankingService) Score(article *model.Article, votes int64) (float64, error) {
	if article.PublishedAt.IsZero() {
		return 0, fmt.Errorf("%w: article %d has no publish time", ErrComputation, article.ID)
	}

	trust := s.cfg.DefaultTrust
	if article.Source != nil {
		trust = article.Source.TrustScore
	}

	// 强烈看涨或看跌的情绪都代表高影响力
	impact := s.cfg.DefaultImpact
	if article.SentimentScore != nil {
		impact = math.Abs(*article.SentimentScore)
	}

	age := s.now().Sub(article.PublishedAt).Hours()
	score := s.Hotness(trust, impact, votes, age)
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return 0, fmt.Errorf("%w: invalid hotness %v for article %d", ErrComputation, score, article.ID)
	}
	return math.Round(score*100) / 100, nil
}

// UpdateAllScores 重新计算窗口内所有文章的热度
func (s *RankingService) UpdateAllScores(ctx context.Context) (*BatchResult, error) {
	result := newBatch("rank", s.now())
	cutoff := s.now().Add(-s.cfg.Window).UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var articles []model.Article
		if err := tx.Preload("Source").
			Where("published_at >= ?", cutoff).
			Find(&articles).Error; err != nil {
			return err
		}

		ids := make([]uint, len(articles))
		for i := range articles {
			ids[i] = articles[i].ID
		}
		votes, err := voteCounts(tx, ids)
		if err != nil {
			return err
		}

		for i := range articles {
			article := &articles[i]
			score, err := s.Score(article, votes[article.ID])
			if err == nil {
				err = tx.Model(article).Update("ranking_score", score).Error
			}
			if err != nil {
				s.log.Error("calculate hotness failed", "article_id", article.ID, "error", err)
				result.Fail(article.ID, err)
				continue
			}
			result.OK(article.ID, fmt.Sprintf("%.2f", score))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.finish(s.now())
	s.log.Info("ranking scores updated", "updated", result.Succeeded, "failed", result.Failed)
	return &result, nil
}

// Trending 热门列表:只返回簇首,按热度降序
func (s *RankingService) Trending(ctx context.Context, limit, offset int) ([]model.Article, error) {
	var articles []model.Article
	err := s.db.WithContext(ctx).Preload("Source").
		Where("is_cluster_lead = ?", true).
		Order("ranking_score DESC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&articles).Error
	return articles, err
}
