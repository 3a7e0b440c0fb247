package service

import (
	"context"
	"time"

	"go-news-intel/internal/logger"
	"go-news-intel/internal/model"
	"gorm.io/gorm"
)

type ProcessorService struct {
	db       *gorm.DB
	analyzer Analyzer
	log      *logger.Logger
	now      func() time.Time
}

func NewProcessorService(db *gorm.DB, analyzer Analyzer, log *logger.Logger) *ProcessorService {
	return &ProcessorService{db: db, analyzer: analyzer, log: log, now: time.Now}
}

// ProcessArticle 分析单篇文章并写回情绪、分类、标签和币种。
// 分析器可能读取配置表,不能在事务内调用
func (s *ProcessorService) ProcessArticle(ctx context.Context, article *model.Article) error {
	sourceName := ""
	if article.Source != nil {
		sourceName = article.Source.Name
	}

	result, err := s.analyzer.Analyze(ctx, article.Title, article.Content, sourceName)
	if err != nil {
		return err
	}

	score := result.SentimentScore
	now := s.now()
	article.SentimentScore = &score
	article.SentimentLabel = result.SentimentLabel
	article.Category = result.Category
	// AI结果为空时保留关键词标注
	if len(result.Tags) > 0 {
		article.Tags = result.Tags
	}
	if len(result.Coins) > 0 {
		article.CoinsMentioned = result.Coins
	}
	article.AnalyzedAt = &now

	return s.db.WithContext(ctx).Select("sentiment_score", "sentiment_label", "category", "tags", "coins_mentioned", "analyzed_at").
		Updates(article).Error
}

// ProcessPendingArticles 批量分析未处理的文章
func (s *ProcessorService) ProcessPendingArticles(ctx context.Context, limit int) (*BatchResult, error) {
	result := newBatch("analyze", s.now())

	var articles []model.Article
	if err := s.db.WithContext(ctx).Preload("Source").
		Where("analyzed_at IS NULL").
		Order("published_at DESC").
		Limit(limit).
		Find(&articles).Error; err != nil {
		return nil, err
	}

	for i := range articles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.ProcessArticle(ctx, &articles[i]); err != nil {
			s.log.Error("analyze article failed", "article_id", articles[i].ID, "error", err)
			result.Fail(articles[i].ID, err)
			continue
		}
		result.OK(articles[i].ID, articles[i].SentimentLabel)
	}

	result.finish(s.now())
	s.log.Info("analysis complete", "processed", result.Processed, "succeeded", result.Succeeded, "failed", result.Failed)
	return &result, nil
}
