// Package testutil 提供测试用的内存数据库和数据构造函数
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"go-news-intel/config"
	"go-news-intel/internal/database"
	"go-news-intel/internal/model"
)

// OpenTestDB 每个测试一个独立的内存 sqlite 库
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func CreateSource(t *testing.T, db *gorm.DB, name string, trust float64) *model.Source {
	t.Helper()
	src := &model.Source{
		Name:       name,
		Type:       model.SourceTypeRSS,
		URL:        fmt.Sprintf("https://%s.example.com/feed-%d", sanitize(name), time.Now().UnixNano()),
		Enabled:    true,
		TrustScore: trust,
	}
	require.NoError(t, db.Create(src).Error)
	return src
}

// ArticleOption 调整默认文章字段
type ArticleOption func(*model.Article)

func WithCoins(coins ...string) ArticleOption {
	return func(a *model.Article) { a.CoinsMentioned = coins }
}

func WithTags(tags ...string) ArticleOption {
	return func(a *model.Article) { a.Tags = tags }
}

func WithSentiment(label string, score float64) ArticleOption {
	return func(a *model.Article) {
		a.SentimentLabel = label
		a.SentimentScore = &score
	}
}

func WithCategory(category string) ArticleOption {
	return func(a *model.Article) { a.Category = category }
}

func WithStatus(status model.VerificationStatus) ArticleOption {
	return func(a *model.Article) { a.VerificationStatus = status }
}

func WithContent(content string) ArticleOption {
	return func(a *model.Article) { a.Content = content }
}

func WithCluster(id string, lead bool) ArticleOption {
	return func(a *model.Article) {
		a.ClusterID = &id
		a.IsClusterLead = lead
	}
}

func WithAnalyzed(at time.Time) ArticleOption {
	return func(a *model.Article) { a.AnalyzedAt = &at }
}

var articleSeq atomic.Int64

func CreateArticle(t *testing.T, db *gorm.DB, source *model.Source, title string, publishedAt time.Time, opts ...ArticleOption) *model.Article {
	t.Helper()
	seq := articleSeq.Add(1)
	a := &model.Article{
		Title:       title,
		URL:         fmt.Sprintf("https://news.example.com/%d", seq),
		PublishedAt: publishedAt,
	}
	if source != nil {
		a.SourceID = source.ID
	}
	for _, opt := range opts {
		opt(a)
	}
	require.NoError(t, db.Create(a).Error)
	return a
}

func CreateVote(t *testing.T, db *gorm.DB, userID string, articleID uint, verdict model.Verdict) {
	t.Helper()
	require.NoError(t, db.Create(&model.Vote{UserID: userID, ArticleID: articleID, Verdict: verdict}).Error)
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
		}
	}
	return string(out)
}
