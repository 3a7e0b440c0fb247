package service

import (
	"context"
	"math"

	"go-news-intel/config"
	"go-news-intel/internal/logger"
	"go-news-intel/internal/model"
	"gorm.io/gorm"
)

// Reputation 用户投票准确率,按需计算不落库
type Reputation struct {
	UserID       string  `json:"user_id"`
	Accuracy     float64 `json:"accuracy_score"`
	TotalVotes   int     `json:"total_votes"`
	CorrectVotes int     `json:"correct_votes"`
	Tier         string  `json:"reputation_tier"`
	Weight       float64 `json:"vote_weight"`
}

type ReputationService struct {
	db  *gorm.DB
	cfg config.ReputationConfig
	log *logger.Logger
}

func NewReputationService(db *gorm.DB, cfg config.ReputationConfig, log *logger.Logger) *ReputationService {
	return &ReputationService{db: db, cfg: cfg, log: log}
}

// Tier 同时满足准确率和已结算票数两个门槛
func (s *ReputationService) Tier(accuracy float64, resolvedVotes int) string {
	for _, t := range s.cfg.Tiers {
		if accuracy >= t.MinAccuracy && resolvedVotes >= t.MinVotes {
			return t.Name
		}
	}
	return s.cfg.DefaultTier
}

// Weight 准确率对应的投票权重(阶梯函数)
func (s *ReputationService) Weight(accuracy float64) float64 {
	for _, b := range s.cfg.WeightBands {
		if accuracy >= b.MinAccuracy {
			return b.Weight
		}
	}
	return s.cfg.MinWeight
}

// Get 计算单个用户的信誉
func (s *ReputationService) Get(ctx context.Context, userID string) (*Reputation, error) {
	reps, err := s.compute(s.db.WithContext(ctx), []string{userID}, 0)
	if err != nil {
		return nil, err
	}
	rep := reps[userID]
	s.log.Debug("user reputation", "user_id", userID, "accuracy", rep.Accuracy,
		"correct", rep.CorrectVotes, "total", rep.TotalVotes, "tier", rep.Tier)
	return rep, nil
}

// compute 只统计已结算(VERIFIED/DEBUNKED)文章上的投票;excludeArticle 非0时排除该文章,
// 用于评估这篇文章本身的共识
func (s *ReputationService) compute(db *gorm.DB, userIDs []string, excludeArticle uint) (map[string]*Reputation, error) {
	var rows []struct {
		UserID             string
		Verdict            model.Verdict
		VerificationStatus model.VerificationStatus
	}

	if len(userIDs) > 0 {
		q := db.Table("votes").
			Select("votes.user_id, votes.verdict, articles.verification_status").
			Joins("JOIN articles ON articles.id = votes.article_id").
			Where("votes.user_id IN ?", userIDs).
			Where("articles.verification_status IN ?", []model.VerificationStatus{model.VerificationVerified, model.VerificationDebunked})
		if excludeArticle != 0 {
			q = q.Where("articles.id <> ?", excludeArticle)
		}
		if err := q.Scan(&rows).Error; err != nil {
			return nil, err
		}
	}

	totals := make(map[string]int)
	correct := make(map[string]int)
	for _, r := range rows {
		totals[r.UserID]++
		if (r.Verdict == model.VerdictTrust && r.VerificationStatus == model.VerificationVerified) ||
			(r.Verdict == model.VerdictFake && r.VerificationStatus == model.VerificationDebunked) {
			correct[r.UserID]++
		}
	}

	out := make(map[string]*Reputation, len(userIDs))
	for _, id := range userIDs {
		rep := &Reputation{UserID: id, TotalVotes: totals[id], CorrectVotes: correct[id]}
		accuracy := s.cfg.DefaultAccuracy
		if rep.TotalVotes > 0 {
			accuracy = float64(rep.CorrectVotes) / float64(rep.TotalVotes) * 100
		}
		rep.Accuracy = math.Round(accuracy*10) / 10
		rep.Tier = s.Tier(accuracy, rep.TotalVotes)
		rep.Weight = s.Weight(accuracy)
		out[id] = rep
	}
	return out, nil
}

// WeightedConsensus 按投票者信誉加权计算文章的社区共识,share 为判定阈值(百分比)
func (s *ReputationService) WeightedConsensus(db *gorm.DB, articleID uint, share float64) (*model.ConsensusResult, error) {
	var votes []model.Vote
	if err := db.Where("article_id = ?", articleID).Order("id ASC").Find(&votes).Error; err != nil {
		return nil, err
	}

	result := &model.ConsensusResult{Consensus: model.ConsensusUnknown, VoteCount: len(votes)}
	if len(votes) == 0 {
		return result, nil
	}

	userIDs := make([]string, 0, len(votes))
	for _, v := range votes {
		userIDs = append(userIDs, v.UserID)
	}
	reps, err := s.compute(db, userIDs, articleID)
	if err != nil {
		return nil, err
	}

	var trust, fake, total float64
	for _, v := range votes {
		w := reps[v.UserID].Weight
		switch v.Verdict {
		case model.VerdictTrust:
			trust += w
		case model.VerdictFake:
			fake += w
		}
		total += w
	}

	var trustPct, fakePct float64
	if total > 0 {
		trustPct = trust / total * 100
		fakePct = fake / total * 100
	}
	switch {
	case trustPct >= share:
		result.Consensus = model.ConsensusTrusted
	case fakePct >= share:
		result.Consensus = model.ConsensusFake
	default:
		result.Consensus = model.ConsensusDisputed
	}

	result.TrustWeight = round2(trust)
	result.FakeWeight = round2(fake)
	result.TotalWeight = round2(total)
	result.TrustPct = math.Round(trustPct*10) / 10
	result.FakePct = math.Round(fakePct*10) / 10
	return result, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
