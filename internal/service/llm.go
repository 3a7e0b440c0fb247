package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-news-intel/internal/model"
	"gorm.io/gorm"
)

// AnalysisResult AI对文章的结构化分析
type AnalysisResult struct {
	SentimentScore float64  `json:"sentiment_score"` // -10 ~ 10
	SentimentLabel string   `json:"sentiment_label"`
	Category       string   `json:"category"`
	Tags           []string `json:"tags"`
	Coins          []string `json:"coins"`
}

// Analyzer 无状态的分析协作方,注入到批处理组件中
type Analyzer interface {
	Analyze(ctx context.Context, title, content, source string) (*AnalysisResult, error)
}

type LLMService struct {
	db     *gorm.DB
	client *http.Client
}

type LLMConfig struct {
	Provider string
	ApiURL   string
	ApiKey   string
	Model    string
}

type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type ModelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		Created int64  `json:"created"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

func NewLLMService(db *gorm.DB) *LLMService {
	return &LLMService{
		db:     db,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// GetConfig 获取LLM配置
func (s *LLMService) GetConfig() (*LLMConfig, error) {
	configs := make(map[string]string)
	var items []model.Config
	if err := s.db.Find(&items).Error; err != nil {
		return nil, err
	}

	for _, item := range items {
		configs[item.Key] = item.Value
	}

	return &LLMConfig{
		Provider: configs[model.ConfigLLMProvider],
		ApiURL:   configs[model.ConfigLLMApiURL],
		ApiKey:   configs[model.ConfigLLMApiKey],
		Model:    configs[model.ConfigLLMModel],
	}, nil
}

// Chat 调用LLM
func (s *LLMService) Chat(ctx context.Context, prompt, content string) (string, error) {
	cfg, err := s.GetConfig()
	if err != nil {
		return "", err
	}

	messages := []Message{{Role: "user", Content: content}}
	if prompt != "" {
		messages = append([]Message{{Role: "system", Content: prompt}}, messages...)
	}
	jsonBody, err := json.Marshal(ChatRequest{Model: cfg.Model, Messages: messages})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		cfg.ApiURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.ApiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: API返回错误 (%d): %s", ErrExternalService, resp.StatusCode, string(body))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("解析响应失败: %v", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response from LLM", ErrExternalService)
	}

	return chatResp.Choices[0].Message.Content, nil
}

// GetPrompt 获取提示词
func (s *LLMService) GetPrompt(key string) string {
	var config model.Config
	s.db.Where("key = ?", key).First(&config)
	return config.Value
}

// Analyze 调用LLM分析文章情绪、分类、标签和币种
func (s *LLMService) Analyze(ctx context.Context, title, content, source string) (*AnalysisResult, error) {
	prompt := s.GetPrompt(model.ConfigPromptAnalyze)
	input := fmt.Sprintf("来源: %s\n标题: %s\n\n%s", source, title, content)

	answer, err := s.Chat(ctx, prompt, input)
	if err != nil {
		return nil, err
	}
	return parseAnalysis(answer)
}

// parseAnalysis 解析模型输出,容忍 ```json 代码块包裹
func parseAnalysis(answer string) (*AnalysisResult, error) {
	text := strings.TrimSpace(answer)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}

	var result AnalysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("%w: 解析分析结果失败: %v", ErrComputation, err)
	}
	if result.SentimentScore > 10 {
		result.SentimentScore = 10
	} else if result.SentimentScore < -10 {
		result.SentimentScore = -10
	}
	switch strings.ToLower(result.SentimentLabel) {
	case "bullish":
		result.SentimentLabel = model.SentimentBullish
	case "bearish":
		result.SentimentLabel = model.SentimentBearish
	default:
		result.SentimentLabel = model.SentimentNeutral
	}
	result.Category = strings.ToLower(strings.TrimSpace(result.Category))
	for i, c := range result.Coins {
		result.Coins[i] = strings.ToUpper(strings.TrimSpace(c))
	}
	return &result, nil
}

// GetModels 获取可用模型列表
func (s *LLMService) GetModels(ctx context.Context) ([]string, error) {
	cfg, err := s.GetConfig()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET",
		cfg.ApiURL+"/models", nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+cfg.ApiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API返回错误: %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)

	var modelsResp ModelsResponse
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %v", err)
	}

	models := make([]string, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		models = append(models, m.ID)
	}

	return models, nil
}

// TestConnection 测试LLM连接
func (s *LLMService) TestConnection(ctx context.Context) (string, error) {
	cfg, err := s.GetConfig()
	if err != nil {
		return "", err
	}

	// 验证配置
	if cfg.ApiURL == "" {
		return "", fmt.Errorf("API地址未配置")
	}
	if cfg.ApiKey == "" {
		return "", fmt.Errorf("API密钥未配置")
	}
	if cfg.Model == "" {
		return "", fmt.Errorf("模型未配置")
	}

	return s.Chat(ctx, "", "Hi")
}
