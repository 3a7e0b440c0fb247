package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-news-intel/internal/database"
	"go-news-intel/internal/model"
	"go-news-intel/internal/testutil"
)

func TestParseAnalysis(t *testing.T) {
	answer := "```json\n{\"sentiment_score\": 14, \"sentiment_label\": \"BULLISH\", \"category\": \" Market_Move \", \"tags\": [\"ETF\"], \"coins\": [\"btc\", \" eth\"]}\n```"
	result, err := parseAnalysis(answer)
	require.NoError(t, err)
	assert.Equal(t, 10.0, result.SentimentScore)
	assert.Equal(t, model.SentimentBullish, result.SentimentLabel)
	assert.Equal(t, model.CategoryMarketMove, result.Category)
	assert.Equal(t, []string{"ETF"}, result.Tags)
	assert.Equal(t, []string{"BTC", "ETH"}, result.Coins)

	result, err = parseAnalysis(`{"sentiment_score": -12, "sentiment_label": "unsure"}`)
	require.NoError(t, err)
	assert.Equal(t, -10.0, result.SentimentScore)
	assert.Equal(t, model.SentimentNeutral, result.SentimentLabel)

	_, err = parseAnalysis("I cannot help with that")
	assert.ErrorIs(t, err, ErrComputation)
}

func llmServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/completions":
			var req ChatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if status != http.StatusOK {
				http.Error(w, "upstream down", status)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{{"message": Message{Role: "assistant", Content: content}}},
			})
		case "/models":
			_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o-mini"},{"id":"gpt-4o"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLLMServiceAnalyze(t *testing.T) {
	srv := llmServer(t, http.StatusOK, `{"sentiment_score": -6, "sentiment_label": "Bearish", "category": "security", "tags": ["Security"], "coins": ["eth"]}`)
	db := testutil.OpenTestDB(t)
	require.NoError(t, database.InitDefaultConfig(db))
	require.NoError(t, db.Model(&model.Config{}).Where("key = ?", model.ConfigLLMApiURL).Update("value", srv.URL).Error)

	llm := NewLLMService(db)
	result, err := llm.Analyze(context.Background(), "Bridge exploit drains funds", "", "Minor Blog")
	require.NoError(t, err)
	assert.Equal(t, -6.0, result.SentimentScore)
	assert.Equal(t, model.SentimentBearish, result.SentimentLabel)
	assert.Equal(t, []string{"ETH"}, result.Coins)

	models, err := llm.GetModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o-mini", "gpt-4o"}, models)
}

func TestLLMServiceUpstreamError(t *testing.T) {
	srv := llmServer(t, http.StatusServiceUnavailable, "")
	db := testutil.OpenTestDB(t)
	require.NoError(t, db.Create(&model.Config{Key: model.ConfigLLMApiURL, Value: srv.URL}).Error)

	_, err := NewLLMService(db).Chat(context.Background(), "", "hi")
	assert.ErrorIs(t, err, ErrExternalService)
}
