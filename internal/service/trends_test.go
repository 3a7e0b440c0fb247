package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-news-intel/internal/model"
	"go-news-intel/internal/testutil"
	"gorm.io/gorm"
)

func newTestTrendService(db *gorm.DB) *TrendService {
	s := NewTrendService(db, pipeline.Trend, nopLog)
	s.now = fixedClock
	return s
}

func TestVelocityOrdering(t *testing.T) {
	assert.True(t, NewNarrative().Greater(NumericVelocity(1000)))
	assert.False(t, NumericVelocity(1000).Greater(NewNarrative()))
	assert.True(t, NumericVelocity(3).Greater(NumericVelocity(2.5)))
	assert.False(t, NewNarrative().Greater(NewNarrative()))

	data, err := json.Marshal([]Velocity{NewNarrative(), NumericVelocity(2.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `["new", 2.5]`, string(data))
	assert.Equal(t, "new", NewNarrative().String())
	assert.Equal(t, "2.50", NumericVelocity(2.5).String())
}

func TestDetectNarratives(t *testing.T) {
	db := testutil.OpenTestDB(t)
	src := testutil.CreateSource(t, db, "CoinDesk RSS", 8)

	// ETF:基线 6 天共 6 篇(日均1),近24小时 4 篇 -> (4-1)/1 = 3
	for i := 0; i < 6; i++ {
		testutil.CreateArticle(t, db, src, "ETF baseline", hoursAgo(float64(30+i*20)), testutil.WithTags("ETF"))
	}
	for i := 0; i < 4; i++ {
		testutil.CreateArticle(t, db, src, "ETF recent", hoursAgo(float64(1+i)), testutil.WithTags("ETF"))
	}
	// DeFi:基线日均1,近期 2 篇 -> 速度1,低于阈值
	for i := 0; i < 6; i++ {
		testutil.CreateArticle(t, db, src, "DeFi baseline", hoursAgo(float64(40+i*20)), testutil.WithTags("DeFi"))
	}
	testutil.CreateArticle(t, db, src, "DeFi recent", hoursAgo(5), testutil.WithTags("DeFi"))
	testutil.CreateArticle(t, db, src, "DeFi recent 2", hoursAgo(6), testutil.WithTags("defi"))
	// RWA:基线为0 -> 新叙事
	testutil.CreateArticle(t, db, src, "RWA one", hoursAgo(2), testutil.WithTags("RWA"))
	newest := testutil.CreateArticle(t, db, src, "RWA two", hoursAgo(1), testutil.WithTags("rwa", "RWA"))
	// 只出现一次,低于最小提及数
	testutil.CreateArticle(t, db, src, "Gaming", hoursAgo(3), testutil.WithTags("Gaming"))

	trends, err := newTestTrendService(db).DetectNarratives(context.Background())
	require.NoError(t, err)
	require.Len(t, trends, 2)

	assert.Equal(t, "RWA", trends[0].Name)
	assert.True(t, trends[0].Velocity.New)
	assert.Equal(t, 2, trends[0].Count24h)
	assert.Zero(t, trends[0].AvgDaily7d)
	require.Len(t, trends[0].Samples, 2)
	assert.Equal(t, newest.ID, trends[0].Samples[0].ID)

	assert.Equal(t, "ETF", trends[1].Name)
	assert.Equal(t, NumericVelocity(3), trends[1].Velocity)
	assert.Equal(t, 4, trends[1].Count24h)
	assert.Equal(t, 1.0, trends[1].AvgDaily7d)
	assert.Len(t, trends[1].Samples, pipeline.Trend.SampleSize)
}

func TestDetectCoinsRequiresThreeMentions(t *testing.T) {
	db := testutil.OpenTestDB(t)
	src := testutil.CreateSource(t, db, "CoinDesk RSS", 8)

	for i := 0; i < 3; i++ {
		testutil.CreateArticle(t, db, src, "PEPE rally", hoursAgo(float64(i+1)), testutil.WithCoins("PEPE"))
	}
	testutil.CreateArticle(t, db, src, "SOL one", hoursAgo(2), testutil.WithCoins("SOL"))
	testutil.CreateArticle(t, db, src, "SOL two", hoursAgo(3), testutil.WithCoins("sol"))

	trends, err := newTestTrendService(db).DetectCoins(context.Background())
	require.NoError(t, err)
	require.Len(t, trends, 1)
	assert.Equal(t, "PEPE", trends[0].Name)
	assert.True(t, trends[0].Velocity.New)
}

func TestDetectEmpty(t *testing.T) {
	db := testutil.OpenTestDB(t)
	trends, err := newTestTrendService(db).DetectNarratives(context.Background())
	require.NoError(t, err)
	assert.Empty(t, trends)
}

func TestRankOrdersByVelocityThenCount(t *testing.T) {
	s := newTestTrendService(nil)
	tags := func(a *model.Article) []string { return a.Tags }
	mk := func(n int, tag string) []model.Article {
		out := make([]model.Article, n)
		for i := range out {
			out[i] = model.Article{Tags: []string{tag}}
		}
		return out
	}

	recent := append(append(mk(3, "A"), mk(5, "B")...), mk(4, "C")...)
	baseline := mk(6, "C")
	trends := s.rank(recent, baseline, tags, 2, 6)

	require.Len(t, trends, 3)
	assert.Equal(t, "B", trends[0].Name)
	assert.Equal(t, "A", trends[1].Name)
	assert.Equal(t, "C", trends[2].Name)
	assert.Equal(t, NumericVelocity(3), trends[2].Velocity)
}

func TestRankThresholdUsesUnroundedVelocity(t *testing.T) {
	s := newTestTrendService(nil)
	tags := func(a *model.Article) []string { return a.Tags }
	recent := []model.Article{{Tags: []string{"DeFi"}}, {Tags: []string{"DeFi"}}, {Tags: []string{"DeFi"}}}
	baseline := []model.Article{{Tags: []string{"DeFi"}}}

	// 3 / (1/0.9987) - 1 = 1.996,保留两位后是 2.00,但仍低于阈值
	assert.Empty(t, s.rank(recent, baseline, tags, 2, 2.996/3))

	trends := s.rank(recent, baseline, tags, 2, 1)
	require.Len(t, trends, 1)
	assert.Equal(t, NumericVelocity(2), trends[0].Velocity)
}
