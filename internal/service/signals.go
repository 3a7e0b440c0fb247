package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-news-intel/internal/model"
	"gorm.io/gorm"
)

// SignalSource 按币种和时间范围查询外部情报快照,每种类型返回时间最近的一条。
// 找不到时返回 nil, nil
type SignalSource interface {
	LatestSmartMoney(ctx context.Context, coin string, from, to time.Time) (*model.SmartMoneySignal, error)
	LatestSentiment(ctx context.Context, coin string, from, to time.Time) (*model.SentimentReport, error)
	LatestOnChain(ctx context.Context, coin string, from, to time.Time) (*model.OnChainIntelligence, error)
}

// SignalStore 基于数据库的 SignalSource
type SignalStore struct {
	db *gorm.DB
}

func NewSignalStore(db *gorm.DB) *SignalStore {
	return &SignalStore{db: db}
}

// WithTx 返回绑定到事务的副本
func (s *SignalStore) WithTx(tx *gorm.DB) *SignalStore {
	return &SignalStore{db: tx}
}

func (s *SignalStore) LatestSmartMoney(ctx context.Context, coin string, from, to time.Time) (*model.SmartMoneySignal, error) {
	var sig model.SmartMoneySignal
	return latest(s.scope(ctx, coin, from, to), &sig)
}

func (s *SignalStore) LatestSentiment(ctx context.Context, coin string, from, to time.Time) (*model.SentimentReport, error) {
	var rep model.SentimentReport
	return latest(s.scope(ctx, coin, from, to), &rep)
}

func (s *SignalStore) LatestOnChain(ctx context.Context, coin string, from, to time.Time) (*model.OnChainIntelligence, error) {
	var intel model.OnChainIntelligence
	return latest(s.scope(ctx, coin, from, to), &intel)
}

// scope 币种为空时不过滤;否则同时接受该币种和全市场信号
func (s *SignalStore) scope(ctx context.Context, coin string, from, to time.Time) *gorm.DB {
	q := s.db.WithContext(ctx).Where("timestamp >= ? AND timestamp <= ?", from.UTC(), to.UTC())
	if coin != "" {
		q = q.Where("coin IN ?", []string{coin, ""})
	}
	return q.Order("timestamp DESC, id DESC")
}

func latest[T any](q *gorm.DB, dest *T) (*T, error) {
	err := q.First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return dest, nil
}

// SaveSignal 写入一条情报快照
func SaveSignal[T model.Signal](ctx context.Context, s *SignalStore, sig *T) error {
	return s.db.WithContext(ctx).Create(sig).Error
}

// LatestSignal 某币种时间最近的一条快照,不含全市场信号,找不到返回 ErrNotFound
func LatestSignal[T model.Signal](ctx context.Context, s *SignalStore, coin string) (*T, error) {
	var sig T
	q := s.db.WithContext(ctx).
		Where("coin = ?", strings.ToUpper(strings.TrimSpace(coin))).
		Order("timestamp DESC, id DESC")
	found, err := latest(q, &sig)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("no signal for %s: %w", coin, ErrNotFound)
	}
	return found, nil
}
