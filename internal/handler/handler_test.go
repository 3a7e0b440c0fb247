package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-news-intel/config"
	"go-news-intel/internal/app"
	"go-news-intel/internal/logger"
	"go-news-intel/internal/model"
	"go-news-intel/internal/testutil"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.OpenTestDB(t)
	cfg := config.Default()
	cfg.Cron.LockPath = filepath.Join(t.TempDir(), "scheduler.lock")
	a := app.New(cfg, db, logger.NewNop(), nil)

	r := gin.New()
	NewHandler(a).RegisterRoutes(r)
	return r, db
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSources(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/sources", map[string]interface{}{
		"name": "CoinDesk RSS", "url": "https://www.coindesk.com/arc/outboundfeeds/rss/", "trust_score": 9,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/api/sources", map[string]interface{}{"name": "Bad", "url": "https://x", "trust_score": 11})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/sources", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sources []model.Source
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sources))
	require.Len(t, sources, 1)
	assert.True(t, sources[0].Enabled)
	assert.Equal(t, 9.0, sources[0].TrustScore)

	w = doJSON(t, r, http.MethodDelete, "/api/sources/"+strconv.Itoa(int(sources[0].ID)), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVotes(t *testing.T) {
	r, db := setupRouter(t)
	src := testutil.CreateSource(t, db, "Minor Blog", 5)
	article := testutil.CreateArticle(t, db, src, "Rumor", time.Now().UTC().Add(-time.Hour))
	path := "/api/articles/" + strconv.Itoa(int(article.ID)) + "/votes"

	w := doJSON(t, r, http.MethodPost, path, map[string]string{"user_id": "alice", "verdict": "trust"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, path, map[string]string{"user_id": "alice", "verdict": "fake"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, path, map[string]string{"user_id": "bob", "verdict": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/articles/9999/votes", map[string]string{"user_id": "bob", "verdict": "trust"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, path+"/alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		HasVoted bool        `json:"has_voted"`
		Vote     *model.Vote `json:"vote"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.HasVoted)
	assert.Equal(t, model.VerdictTrust, status.Vote.Verdict)

	w = doJSON(t, r, http.MethodGet, "/api/users/alice/reputation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reputation_tier":"Novice"`)
}

func TestArticles(t *testing.T) {
	r, db := setupRouter(t)
	src := testutil.CreateSource(t, db, "Minor Blog", 5)
	now := time.Now().UTC().Truncate(time.Second)
	a := testutil.CreateArticle(t, db, src, "Bitcoin surges past 70k", now.Add(-2*time.Hour), testutil.WithCoins("BTC"))
	testutil.CreateArticle(t, db, src, "Bitcoin surges past 70k as ETF inflows grow", now.Add(-time.Hour), testutil.WithCoins("BTC"))
	testutil.CreateArticle(t, db, src, "Verified story", now.Add(-time.Hour), testutil.WithStatus(model.VerificationVerified))

	w := doJSON(t, r, http.MethodGet, "/api/articles?status=PENDING", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data  []model.Article `json:"data"`
		Total int64           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.EqualValues(t, 2, list.Total)

	w = doJSON(t, r, http.MethodGet, "/api/articles?coin=BTC", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.EqualValues(t, 2, list.Total)

	w = doJSON(t, r, http.MethodGet, "/api/articles?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/articles/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/articles/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 聚类后两篇相似文章互为相关
	w = doJSON(t, r, http.MethodPost, "/api/jobs/cluster", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/articles/"+strconv.Itoa(int(a.ID)), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Article      model.Article `json:"article"`
		RelatedCount int64         `json:"related_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.EqualValues(t, 1, detail.RelatedCount)
	require.NotNil(t, detail.Article.ClusterID)

	w = doJSON(t, r, http.MethodGet, "/api/clusters/"+*detail.Article.ClusterID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/clusters/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/articles/"+strconv.Itoa(int(a.ID))+"/correlation", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobsAndStatus(t *testing.T) {
	r, _ := setupRouter(t)

	for _, job := range []string{"cluster", "rank", "correlate", "verify"} {
		w := doJSON(t, r, http.MethodPost, "/api/jobs/"+job, nil)
		assert.Equal(t, http.StatusOK, w.Code, job)
	}

	w := doJSON(t, r, http.MethodPost, "/api/jobs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/trending", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/trends/narratives", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_articles":0`)
}

func TestConfigHidesAPIKey(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/config", map[string]string{
		model.ConfigLLMApiKey: "sk-secret",
		model.ConfigLLMModel:  "gpt-4o",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cfg map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, "******", cfg[model.ConfigLLMApiKey])
	assert.Equal(t, "gpt-4o", cfg[model.ConfigLLMModel])

	// 回传掩码不会覆盖原密钥
	w = doJSON(t, r, http.MethodPost, "/api/config", cfg)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodGet, "/api/config", nil)
	assert.Contains(t, w.Body.String(), "******")
}

func TestSignals(t *testing.T) {
	r, db := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/signals/smart-money", map[string]interface{}{
		"timestamp": "2025-03-10T20:00:00+08:00", "coin": "btc", "score": 72, "confidence": 0.8, "timeframe": "4h",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored model.SmartMoneySignal
	require.NoError(t, db.First(&stored).Error)
	assert.Equal(t, "BTC", stored.Coin)
	assert.True(t, stored.Timestamp.Equal(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)))

	w = doJSON(t, r, http.MethodGet, "/api/signals/smart-money/btc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sig model.SmartMoneySignal
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sig))
	assert.Equal(t, 72.0, sig.Score)

	w = doJSON(t, r, http.MethodPost, "/api/signals/sentiment", map[string]interface{}{
		"coin": "ETH", "total_messages": 20, "bullish_count": 15, "bearish_count": 3, "neutral_count": 2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doJSON(t, r, http.MethodGet, "/api/signals/sentiment/ETH", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"bullish_count":15`)

	w = doJSON(t, r, http.MethodGet, "/api/signals/onchain/BTC", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/signals/onchain", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
