package service

import (
	"context"
	"errors"
	"fmt"

	"go-news-intel/internal/model"
	"gorm.io/gorm"
)

type VoteService struct {
	db *gorm.DB
}

func NewVoteService(db *gorm.DB) *VoteService {
	return &VoteService{db: db}
}

// Cast 投票,每个用户对每篇文章只能投一次且不可修改
func (s *VoteService) Cast(ctx context.Context, userID string, articleID uint, verdict model.Verdict) (*model.Vote, error) {
	if !verdict.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVerdict, verdict)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidVerdict)
	}

	vote := &model.Vote{UserID: userID, ArticleID: articleID, Verdict: verdict}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findArticle(tx, articleID); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&model.Vote{}).
			Where("user_id = ? AND article_id = ?", userID, articleID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyVoted
		}
		return tx.Create(vote).Error
	})
	if err != nil {
		return nil, err
	}
	return vote, nil
}

// Status 用户对文章的投票,未投票时返回 nil
func (s *VoteService) Status(ctx context.Context, userID string, articleID uint) (*model.Vote, error) {
	var vote model.Vote
	err := s.db.WithContext(ctx).Where("user_id = ? AND article_id = ?", userID, articleID).First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}
