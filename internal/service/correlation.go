package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go-news-intel/config"
	"go-news-intel/internal/logger"
	"go-news-intel/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Polarity string

const (
	PolarityBullish Polarity = "bullish"
	PolarityBearish Polarity = "bearish"
	PolarityNeutral Polarity = "neutral"
)

var bullishKeywords = []string{
	"rally", "surge", "bullish", "gain", "rise", "pump", "moon",
	"breakout", "recovery", "growth", "bullrun",
	"tăng", "tích cực", "lạc quan", "bứt phá", "tăng trưởng",
}

var bearishKeywords = []string{
	"crash", "dump", "bearish", "fall", "drop", "decline", "plunge",
	"sell-off", "correction", "downturn", "bearmarket",
	"giảm", "sụt giảm", "bi quan", "rớt", "xuống", "giảm giá",
}

// ClassifyPolarity 统计命中的看涨/看跌关键词数量,多者为文章倾向
func ClassifyPolarity(title, content string) Polarity {
	text := strings.ToLower(title + " " + content)
	bull, bear := 0, 0
	for _, kw := range bullishKeywords {
		if strings.Contains(text, kw) {
			bull++
		}
	}
	for _, kw := range bearishKeywords {
		if strings.Contains(text, kw) {
			bear++
		}
	}
	switch {
	case bull > bear:
		return PolarityBullish
	case bear > bull:
		return PolarityBearish
	default:
		return PolarityNeutral
	}
}

// TrustBreakdown 增强信任分的组成
type TrustBreakdown struct {
	BaseTrust       float64 `json:"base_trust_score"`
	SmartMoneyBonus float64 `json:"smart_money_bonus"`
	SentimentBonus  float64 `json:"sentiment_bonus"`
	OnChainBonus    float64 `json:"onchain_bonus"`
	EnhancedTrust   float64 `json:"enhanced_trust_score"`
}

// SmartMoneyBonus 强信号(>=70 看涨 / <=30 看跌)与文章同向 +0.5,反向 -0.3
func SmartMoneyBonus(sig *model.SmartMoneySignal, p Polarity) float64 {
	if sig == nil {
		return 0
	}
	switch {
	case sig.Score >= 70:
		return alignedBonus(p, PolarityBullish, 0.5, -0.3)
	case sig.Score <= 30:
		return alignedBonus(p, PolarityBearish, 0.5, -0.3)
	}
	return 0
}

// SentimentBonus 社区看涨占比 >0.6 或 <0.4 时与文章同向 +0.3,反向 -0.2
func SentimentBonus(rep *model.SentimentReport, p Polarity) float64 {
	ratio, ok := rep.BullishRatio()
	if !ok {
		return 0
	}
	switch {
	case ratio > 0.6:
		return alignedBonus(p, PolarityBullish, 0.3, -0.2)
	case ratio < 0.4:
		return alignedBonus(p, PolarityBearish, 0.3, -0.2)
	}
	return 0
}

// OnChainBonus 链上置信度 * 0.2,不做扣分
func OnChainBonus(intel *model.OnChainIntelligence) float64 {
	if intel == nil || intel.Confidence <= 0 {
		return 0
	}
	return intel.Confidence * 0.2
}

func alignedBonus(p, signal Polarity, agree, disagree float64) float64 {
	switch {
	case p == signal:
		return agree
	case p != PolarityNeutral:
		return disagree
	}
	return 0
}

// ComputeTrust 汇总各项加成并限制在 [0, 10]
func ComputeTrust(base float64, sm *model.SmartMoneySignal, rep *model.SentimentReport, intel *model.OnChainIntelligence, p Polarity) TrustBreakdown {
	b := TrustBreakdown{
		BaseTrust:       base,
		SmartMoneyBonus: SmartMoneyBonus(sm, p),
		SentimentBonus:  SentimentBonus(rep, p),
		OnChainBonus:    OnChainBonus(intel),
	}
	b.EnhancedTrust = clamp(base+b.SmartMoneyBonus+b.SentimentBonus+b.OnChainBonus, 0, 10)
	return b
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// CorrelationService 把文章与发布时间前后的外部信号关联,生成增强信任分
type CorrelationService struct {
	db      *gorm.DB
	signals *SignalStore
	cfg     config.CorrelationConfig
	log     *logger.Logger
	now     func() time.Time
}

func NewCorrelationService(db *gorm.DB, signals *SignalStore, cfg config.CorrelationConfig, log *logger.Logger) *CorrelationService {
	return &CorrelationService{db: db, signals: signals, cfg: cfg, log: log, now: time.Now}
}

// Correlate 计算单篇文章的关联记录;窗口内没有任何信号时返回 ErrDataUnavailable
func (s *CorrelationService) Correlate(ctx context.Context, src SignalSource, article *model.Article) (*model.TrustCorrelation, error) {
	from := article.PublishedAt.Add(-s.cfg.SignalWindow)
	to := article.PublishedAt.Add(s.cfg.SignalWindow)
	coin := article.PrimaryCoin()

	sm, err := src.LatestSmartMoney(ctx, coin, from, to)
	if err != nil {
		return nil, err
	}
	rep, err := src.LatestSentiment(ctx, coin, from, to)
	if err != nil {
		return nil, err
	}
	intel, err := src.LatestOnChain(ctx, coin, from, to)
	if err != nil {
		return nil, err
	}
	if sm == nil && rep == nil && intel == nil {
		return nil, fmt.Errorf("%w: no signals within ±%s of article %d", ErrDataUnavailable, s.cfg.SignalWindow, article.ID)
	}

	base := s.cfg.DefaultTrust
	if article.Source != nil {
		base = article.Source.TrustScore
	}
	polarity := ClassifyPolarity(article.Title, article.Content)
	b := ComputeTrust(base, sm, rep, intel, polarity)

	corr := &model.TrustCorrelation{
		ArticleID:          article.ID,
		Polarity:           string(polarity),
		BaseTrustScore:     b.BaseTrust,
		SmartMoneyBonus:    b.SmartMoneyBonus,
		SentimentBonus:     b.SentimentBonus,
		OnChainBonus:       b.OnChainBonus,
		EnhancedTrustScore: b.EnhancedTrust,
	}

	var nearest time.Time
	if sm != nil {
		corr.SmartMoneySignalID = &sm.ID
		nearest = sm.Timestamp
	}
	if rep != nil {
		corr.SentimentReportID = &rep.ID
		if nearest.IsZero() {
			nearest = rep.Timestamp
		}
	}
	if intel != nil {
		corr.OnChainID = &intel.ID
		if nearest.IsZero() {
			nearest = intel.Timestamp
		}
	}
	diff := int64(nearest.Sub(article.PublishedAt).Seconds())
	corr.TimeDiffSeconds = &diff

	return corr, nil
}

// CorrelateRecent 批量处理回看窗口内的文章,已有记录会被覆盖
func (s *CorrelationService) CorrelateRecent(ctx context.Context) (*BatchResult, error) {
	result := newBatch("correlate", s.now())
	cutoff := s.now().Add(-s.cfg.Lookback).UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var articles []model.Article
		if err := tx.Preload("Source").
			Where("published_at >= ?", cutoff).
			Order("published_at ASC, id ASC").
			Find(&articles).Error; err != nil {
			return err
		}

		src := s.signals.WithTx(tx)
		for i := range articles {
			article := &articles[i]
			corr, err := s.Correlate(ctx, src, article)
			if err == nil {
				err = upsertCorrelation(tx, corr)
			}
			if err != nil {
				if !errors.Is(err, ErrDataUnavailable) {
					s.log.Error("trust correlation failed", "article_id", article.ID, "error", err)
				}
				result.Fail(article.ID, err)
				continue
			}
			result.OK(article.ID, fmt.Sprintf("%.2f", corr.EnhancedTrustScore))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.finish(s.now())
	s.log.Info("trust correlation complete", "correlated", result.Succeeded,
		"uncorrelated", result.Skipped, "failed", result.Failed)
	return &result, nil
}

func upsertCorrelation(tx *gorm.DB, corr *model.TrustCorrelation) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "article_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"smart_money_signal_id", "sentiment_report_id", "on_chain_id", "polarity",
			"base_trust_score", "smart_money_bonus", "sentiment_bonus", "on_chain_bonus",
			"enhanced_trust_score", "time_diff_seconds", "updated_at",
		}),
	}).Create(corr).Error
}

// Get 查询文章的关联记录
func (s *CorrelationService) Get(ctx context.Context, articleID uint) (*model.TrustCorrelation, error) {
	var corr model.TrustCorrelation
	err := s.db.WithContext(ctx).Where("article_id = ?", articleID).First(&corr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no trust correlation for article %d", ErrNotFound, articleID)
		}
		return nil, err
	}
	return &corr, nil
}
