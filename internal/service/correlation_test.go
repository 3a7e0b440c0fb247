package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-news-intel/internal/logger"
	"go-news-intel/internal/model"
	"go-news-intel/internal/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func newTestCorrelationService(db *gorm.DB) *CorrelationService {
	s := NewCorrelationService(db, NewSignalStore(db), pipeline.Correlation, nopLog)
	s.now = fixedClock
	return s
}

func TestClassifyPolarity(t *testing.T) {
	tests := []struct {
		title, content string
		want           Polarity
	}{
		{"Bitcoin rally continues", "analysts see a breakout", PolarityBullish},
		{"Market crash deepens", "prices plunge overnight", PolarityBearish},
		{"Fed meeting scheduled", "", PolarityNeutral},
		{"Rally fades into decline", "", PolarityNeutral},
		{"Bitcoin tăng mạnh", "", PolarityBullish},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPolarity(tt.title, tt.content))
		})
	}
}

func TestSignalBonuses(t *testing.T) {
	strongBull := &model.SmartMoneySignal{Score: 75}
	strongBear := &model.SmartMoneySignal{Score: 20}
	weak := &model.SmartMoneySignal{Score: 50}

	assert.Equal(t, 0.5, SmartMoneyBonus(strongBull, PolarityBullish))
	assert.Equal(t, -0.3, SmartMoneyBonus(strongBull, PolarityBearish))
	assert.Equal(t, 0.0, SmartMoneyBonus(strongBull, PolarityNeutral))
	assert.Equal(t, 0.5, SmartMoneyBonus(strongBear, PolarityBearish))
	assert.Equal(t, 0.0, SmartMoneyBonus(weak, PolarityBullish))
	assert.Equal(t, 0.0, SmartMoneyBonus(nil, PolarityBullish))

	bullishCrowd := &model.SentimentReport{TotalMessages: 100, BullishCount: 70}
	bearishCrowd := &model.SentimentReport{TotalMessages: 100, BullishCount: 30}
	assert.Equal(t, 0.3, SentimentBonus(bullishCrowd, PolarityBullish))
	assert.Equal(t, -0.2, SentimentBonus(bearishCrowd, PolarityBullish))
	assert.Equal(t, 0.0, SentimentBonus(&model.SentimentReport{}, PolarityBullish))
	assert.Equal(t, 0.0, SentimentBonus(nil, PolarityBullish))

	assert.InDelta(t, 0.16, OnChainBonus(&model.OnChainIntelligence{Confidence: 0.8}), 1e-9)
	assert.Equal(t, 0.0, OnChainBonus(nil))
}

func TestComputeTrustClamps(t *testing.T) {
	bull := &model.SmartMoneySignal{Score: 90}
	crowd := &model.SentimentReport{TotalMessages: 10, BullishCount: 9}
	intel := &model.OnChainIntelligence{Confidence: 1}

	b := ComputeTrust(9.8, bull, crowd, intel, PolarityBullish)
	assert.Equal(t, 10.0, b.EnhancedTrust)

	b = ComputeTrust(0.1, bull, crowd, nil, PolarityBearish)
	assert.Equal(t, 0.0, b.EnhancedTrust)

	b = ComputeTrust(7, bull, nil, nil, PolarityBullish)
	assert.Equal(t, 7.5, b.EnhancedTrust)
	assert.Equal(t, 0.5, b.SmartMoneyBonus)
}

func TestCorrelateRecent(t *testing.T) {
	db := testutil.OpenTestDB(t)
	src := testutil.CreateSource(t, db, "CoinDesk RSS", 7)

	published := hoursAgo(5)
	matched := testutil.CreateArticle(t, db, src, "Bitcoin rally extends", published, testutil.WithCoins("BTC"))
	lonely := testutil.CreateArticle(t, db, src, "Quiet day for Cardano", hoursAgo(20), testutil.WithCoins("ADA"))

	require.NoError(t, db.Create(&model.SmartMoneySignal{Timestamp: published.Add(30 * time.Minute), Coin: "BTC", Score: 75}).Error)
	// 窗口外的信号被忽略
	require.NoError(t, db.Create(&model.SmartMoneySignal{Timestamp: published.Add(-3 * time.Hour), Coin: "BTC", Score: 10}).Error)
	// 其他币种的信号不参与
	require.NoError(t, db.Create(&model.SentimentReport{Timestamp: hoursAgo(20), Coin: "ETH", TotalMessages: 10, BullishCount: 9}).Error)

	s := newTestCorrelationService(db)
	result, err := s.CorrelateRecent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Skipped)

	corr, err := s.Get(context.Background(), matched.ID)
	require.NoError(t, err)
	assert.Equal(t, string(PolarityBullish), corr.Polarity)
	assert.Equal(t, 7.0, corr.BaseTrustScore)
	assert.Equal(t, 0.5, corr.SmartMoneyBonus)
	assert.Equal(t, 7.5, corr.EnhancedTrustScore)
	require.NotNil(t, corr.SmartMoneySignalID)
	require.NotNil(t, corr.TimeDiffSeconds)
	assert.EqualValues(t, 1800, *corr.TimeDiffSeconds)

	_, err = s.Get(context.Background(), lonely.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// 重复运行覆盖已有记录
	_, err = s.CorrelateRecent(context.Background())
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&model.TrustCorrelation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCorrelateAcceptsMarketWideSignals(t *testing.T) {
	db := testutil.OpenTestDB(t)
	src := testutil.CreateSource(t, db, "CoinDesk RSS", 5)
	article := testutil.CreateArticle(t, db, src, "Market crash wipes out value", hoursAgo(3), testutil.WithCoins("ETH"))
	require.NoError(t, db.Create(&model.SentimentReport{Timestamp: hoursAgo(2), TotalMessages: 10, BullishCount: 2}).Error)

	s := newTestCorrelationService(db)
	article = reloadWithSource(t, db, article.ID)
	corr, err := s.Correlate(context.Background(), s.signals, article)
	require.NoError(t, err)
	assert.Equal(t, 0.3, corr.SentimentBonus)
	assert.InDelta(t, 5.3, corr.EnhancedTrustScore, 1e-9)
}

func TestCorrelateWithoutSignals(t *testing.T) {
	db := testutil.OpenTestDB(t)
	s := newTestCorrelationService(db)
	_, err := s.Correlate(context.Background(), s.signals, &model.Article{ID: 1, PublishedAt: hoursAgo(1)})
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func reloadWithSource(t *testing.T, db *gorm.DB, id uint) *model.Article {
	t.Helper()
	a, err := findArticle(db, id)
	require.NoError(t, err)
	return a
}

func TestCorrelateRecentLogsFailures(t *testing.T) {
	db := testutil.OpenTestDB(t)
	src := testutil.CreateSource(t, db, "CoinDesk RSS", 7)
	article := testutil.CreateArticle(t, db, src, "Bitcoin rally extends", hoursAgo(5), testutil.WithCoins("BTC"))

	core, logs := observer.New(zapcore.WarnLevel)
	s := NewCorrelationService(db, NewSignalStore(db), pipeline.Correlation, logger.Wrap(zap.New(core)))
	s.now = fixedClock

	// 没有信号只记为跳过,不算错误
	result, err := s.CorrelateRecent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, logs.Len())

	require.NoError(t, db.Migrator().DropTable(&model.OnChainIntelligence{}))
	result, err = s.CorrelateRecent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	entries := logs.FilterMessage("trust correlation failed").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, article.ID, entries[0].ContextMap()["article_id"])
}
