package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go-news-intel/config"
	"go-news-intel/internal/logger"
	"go-news-intel/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 各项检查的分值
const (
	tier1Points          = 40
	marketPoints         = 30
	marketPenalty        = 50
	consensusPoints      = 20
	consensusFakePenalty = 40
)

// VerificationReport 单篇文章的验证报告
type VerificationReport struct {
	ArticleID     uint                     `json:"article_id"`
	Title         string                   `json:"title"`
	InitialStatus model.VerificationStatus `json:"initial_status"`
	FinalStatus   model.VerificationStatus `json:"final_status"`
	Confidence    float64                  `json:"confidence_score"`
	Evidence      model.Evidence           `json:"evidence"`
}

// TruthService 汇总一级来源交叉验证、行情验证和加权社区共识,给出最终结论
type TruthService struct {
	db         *gorm.DB
	tier1      *Tier1Verifier
	market     *MarketVerifier
	reputation *ReputationService
	cfg        config.TruthConfig
	log        *logger.Logger
	now        func() time.Time
}

func NewTruthService(db *gorm.DB, tier1 *Tier1Verifier, market *MarketVerifier, reputation *ReputationService, cfg config.TruthConfig, log *logger.Logger) *TruthService {
	return &TruthService{
		db:         db,
		tier1:      tier1,
		market:     market,
		reputation: reputation,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// Confidence 有适用检查时为 earned/max*100+50,限制在 [0,100];否则为中性50
func Confidence(earned, max float64) float64 {
	if max <= 0 {
		return 50
	}
	return math.Round(clamp(earned/max*100+50, 0, 100)*10) / 10
}

// FinalStatus 根据置信度和社区共识决定结论
func FinalStatus(confidence float64, consensus string) model.VerificationStatus {
	switch {
	case confidence >= 75:
		return model.VerificationVerified
	case confidence <= 30:
		return model.VerificationDebunked
	case confidence <= 40 || consensus == model.ConsensusFake:
		return model.VerificationFlagged
	}
	return model.VerificationPending
}

// Evaluate 运行全部适用检查,不写库
func (s *TruthService) Evaluate(ctx context.Context, tx *gorm.DB, article *model.Article) (*VerificationReport, error) {
	report := &VerificationReport{
		ArticleID:     article.ID,
		Title:         article.Title,
		InitialStatus: article.VerificationStatus,
	}
	ev := &report.Evidence

	// 1. 一级来源交叉验证
	tier1, err := s.tier1.Verify(tx, article)
	if err != nil {
		return nil, fmt.Errorf("tier 1 check: %w", err)
	}
	ev.Checks = append(ev.Checks, "tier1_source_check")
	ev.Tier1 = tier1
	ev.Max += tier1Points
	if tier1.Verified {
		ev.Earned += tier1Points
	}

	// 2. 行情验证,仅限 market_move 且能确定币种
	if coin := article.PrimaryCoin(); article.Category == model.CategoryMarketMove && coin != "" {
		label := article.SentimentLabel
		if label == "" {
			label = model.SentimentNeutral
		}
		market := s.market.Check(ctx, coin, article.PublishedAt, label)
		ev.Checks = append(ev.Checks, "market_data_check")
		ev.Market = market
		switch market.Result {
		case model.MarketVerified:
			ev.Earned += marketPoints
			ev.Max += marketPoints
		case model.MarketDebunked:
			ev.Earned -= marketPenalty
		}
	}

	// 3. 社区共识,至少需要5票
	consensus, err := s.reputation.WeightedConsensus(tx, article.ID, s.cfg.ConsensusShare)
	if err != nil {
		return nil, fmt.Errorf("consensus check: %w", err)
	}
	ev.Checks = append(ev.Checks, "user_consensus_check")
	ev.Consensus = consensus
	consensusLabel := ""
	if consensus.VoteCount >= s.cfg.ConsensusMinVotes {
		consensusLabel = consensus.Consensus
		switch consensus.Consensus {
		case model.ConsensusTrusted:
			ev.Earned += consensusPoints
			ev.Max += consensusPoints
		case model.ConsensusFake:
			ev.Earned -= consensusFakePenalty
		default:
			ev.Max += consensusPoints
		}
	}

	report.Confidence = Confidence(ev.Earned, ev.Max)
	report.FinalStatus = FinalStatus(report.Confidence, consensusLabel)
	return report, nil
}

// VerifyArticle 评估并写回结论、证据和置信度
func (s *TruthService) VerifyArticle(ctx context.Context, tx *gorm.DB, article *model.Article) (*VerificationReport, error) {
	report, err := s.Evaluate(ctx, tx, article)
	if err != nil {
		return nil, err
	}

	err = tx.Model(article).Updates(map[string]interface{}{
		"verification_status": report.FinalStatus,
		"evidence":            datatypes.NewJSONType(report.Evidence),
		"confidence_score":    report.Confidence,
	}).Error
	if err != nil {
		return nil, err
	}
	article.VerificationStatus = report.FinalStatus
	article.ConfidenceScore = report.Confidence

	s.log.Info("verification complete", "article_id", article.ID,
		"status", report.FinalStatus, "confidence", report.Confidence)
	return report, nil
}

// Verify 重新验证指定文章(任意状态)
func (s *TruthService) Verify(ctx context.Context, articleID uint) (*VerificationReport, error) {
	var report *VerificationReport
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		article, err := findArticle(tx, articleID)
		if err != nil {
			return err
		}
		report, err = s.VerifyArticle(ctx, tx, article)
		return err
	})
	return report, err
}

// VerifyPending 批量验证回看窗口内的 PENDING 文章
func (s *TruthService) VerifyPending(ctx context.Context) (*BatchResult, error) {
	result := newBatch("verify", s.now())
	cutoff := s.now().Add(-s.cfg.Lookback).UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []model.Article
		if err := tx.Preload("Source").
			Where("verification_status = ? AND published_at >= ?", model.VerificationPending, cutoff).
			Order("published_at ASC, id ASC").
			Limit(s.cfg.BatchSize).
			Find(&pending).Error; err != nil {
			return err
		}
		s.log.Info("articles pending verification", "count", len(pending))

		for i := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			report, err := s.VerifyArticle(ctx, tx, &pending[i])
			if err != nil {
				s.log.Error("verification failed", "article_id", pending[i].ID, "error", err)
				result.Fail(pending[i].ID, err)
				continue
			}
			result.OK(pending[i].ID, fmt.Sprintf("%s (%.1f)", report.FinalStatus, report.Confidence))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.finish(s.now())
	s.log.Info("background verification complete", "processed", result.Processed, "failed", result.Failed)
	return &result, nil
}
