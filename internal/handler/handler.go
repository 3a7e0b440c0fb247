package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go-news-intel/internal/app"
	"go-news-intel/internal/model"
	"go-news-intel/internal/scheduler"
	"go-news-intel/internal/service"
	"gorm.io/gorm"
)

type Handler struct {
	db        *gorm.DB
	app       *app.App
	scheduler interface {
		NextRuns() map[string]time.Time
	}
}

func NewHandler(a *app.App) *Handler {
	return &Handler{db: a.DB, app: a}
}

// SetScheduler 设置调度器引用
func (h *Handler) SetScheduler(scheduler interface {
	NextRuns() map[string]time.Time
}) {
	h.scheduler = scheduler
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		// Sources
		api.GET("/sources", h.ListSources)
		api.POST("/sources", h.CreateSource)
		api.DELETE("/sources/:id", h.DeleteSource)
		api.POST("/sources/:id/fetch", h.FetchSource)

		// Articles
		api.GET("/articles", h.ListArticles)
		api.GET("/articles/:id", h.GetArticle)
		api.GET("/articles/:id/related", h.GetRelated)
		api.GET("/articles/:id/correlation", h.GetCorrelation)
		api.POST("/articles/:id/verify", h.VerifyArticle)
		api.POST("/articles/:id/votes", h.CastVote)
		api.GET("/articles/:id/votes/:user", h.GetVote)
		api.GET("/trending", h.Trending)
		api.GET("/clusters/:id", h.GetCluster)

		// Trends
		api.GET("/trends/narratives", h.TrendingNarratives)
		api.GET("/trends/coins", h.TrendingCoins)

		// Signals
		signals := api.Group("/signals")
		signals.POST("/smart-money", createSignal[model.SmartMoneySignal](h))
		signals.GET("/smart-money/:coin", latestSignal[model.SmartMoneySignal](h))
		signals.POST("/sentiment", createSignal[model.SentimentReport](h))
		signals.GET("/sentiment/:coin", latestSignal[model.SentimentReport](h))
		signals.POST("/onchain", createSignal[model.OnChainIntelligence](h))
		signals.GET("/onchain/:coin", latestSignal[model.OnChainIntelligence](h))

		// Users
		api.GET("/users/:id/reputation", h.GetReputation)

		// Jobs
		api.POST("/jobs/:name", h.RunJob)

		// Config
		api.GET("/config", h.GetConfig)
		api.POST("/config", h.SaveConfig)

		// LLM
		api.GET("/llm/models", h.GetLLMModels)
		api.POST("/llm/test", h.TestLLMConnection)

		// Status
		api.GET("/status", h.GetStatus)
	}
}

// writeError 按错误类型映射HTTP状态码
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, scheduler.ErrUnknownJob):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidVerdict):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrAlreadyVoted), errors.Is(err, scheduler.ErrJobRunning):
		status = http.StatusConflict
	case errors.Is(err, service.ErrExternalService):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// ===== Source相关 =====

func (h *Handler) ListSources(c *gin.Context) {
	var sources []model.Source
	if err := h.db.Order("id ASC").Find(&sources).Error; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sources)
}

func (h *Handler) CreateSource(c *gin.Context) {
	var source model.Source
	if err := c.ShouldBindJSON(&source); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if source.Name == "" || source.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and url are required"})
		return
	}
	if source.TrustScore < 0 || source.TrustScore > 10 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trust_score must be between 0 and 10"})
		return
	}

	if err := h.db.Create(&source).Error; err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, source)
}

func (h *Handler) DeleteSource(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.db.Delete(&model.Source{}, id).Error; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) FetchSource(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var source model.Source
	if err := h.db.First(&source, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
		return
	}

	result, err := h.app.Feed.FetchSource(c.Request.Context(), &source)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ===== Article相关 =====

func (h *Handler) ListArticles(c *gin.Context) {
	status := c.Query("status") // PENDING, VERIFIED, FLAGGED, DEBUNKED
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize := 20

	query := h.db.Model(&model.Article{})
	switch s := model.VerificationStatus(status); s {
	case model.VerificationPending, model.VerificationVerified, model.VerificationFlagged, model.VerificationDebunked:
		query = query.Where("verification_status = ?", s)
	case "":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + status})
		return
	}
	if coin := c.Query("coin"); coin != "" {
		// coins_mentioned 为JSON数组,按带引号的元素匹配
		query = query.Where("coins_mentioned LIKE ?", `%"`+coin+`"%`)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeError(c, err)
		return
	}

	var articles []model.Article
	if err := query.Preload("Source").
		Order("published_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&articles).Error; err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  articles,
		"total": total,
		"page":  page,
	})
}

func (h *Handler) GetArticle(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var article model.Article
	if err := h.db.Preload("Source").Preload("Correlation").First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		writeError(c, err)
		return
	}

	related, err := h.app.Cluster.RelatedCount(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"article":       article,
		"related_count": related,
	})
}

func (h *Handler) GetRelated(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	count, err := h.app.Cluster.RelatedCount(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"article_id": id, "related_count": count})
}

func (h *Handler) GetCorrelation(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	corr, err := h.app.Correlation.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, corr)
}

func (h *Handler) VerifyArticle(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	report, err := h.app.Truth.Verify(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) Trending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	articles, err := h.app.Ranking.Trending(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": articles, "limit": limit, "offset": offset})
}

func (h *Handler) GetCluster(c *gin.Context) {
	members, err := h.app.Cluster.Members(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if len(members) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cluster_id": c.Param("id"), "members": members})
}

// ===== 投票与信誉 =====

type voteRequest struct {
	UserID  string        `json:"user_id"`
	Verdict model.Verdict `json:"verdict"`
}

func (h *Handler) CastVote(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vote, err := h.app.Votes.Cast(c.Request.Context(), req.UserID, id, req.Verdict)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, vote)
}

func (h *Handler) GetVote(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	vote, err := h.app.Votes.Status(c.Request.Context(), c.Param("user"), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"has_voted": vote != nil, "vote": vote})
}

func (h *Handler) GetReputation(c *gin.Context) {
	rep, err := h.app.Reputation.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// ===== 趋势 =====

func (h *Handler) TrendingNarratives(c *gin.Context) {
	trends, err := h.app.Trends.DetectNarratives(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": trends})
}

func (h *Handler) TrendingCoins(c *gin.Context) {
	trends, err := h.app.Trends.DetectCoins(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": trends})
}

// ===== 情报快照 =====

func createSignal[T model.Signal](h *Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sig T
		if err := c.ShouldBindJSON(&sig); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := service.SaveSignal(c.Request.Context(), h.app.Signals, &sig); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, sig)
	}
}

func latestSignal[T model.Signal](h *Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		sig, err := service.LatestSignal[T](c.Request.Context(), h.app.Signals, c.Param("coin"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, sig)
	}
}

// ===== 任务 =====

// RunJob 同步执行批处理任务,同名任务正在运行时返回409
func (h *Handler) RunJob(c *gin.Context) {
	result, err := h.app.Runner.Run(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": c.Param("name"), "result": result})
}

// ===== Config相关 =====

func (h *Handler) GetConfig(c *gin.Context) {
	var configs []model.Config
	if err := h.db.Find(&configs).Error; err != nil {
		writeError(c, err)
		return
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		// 不回显密钥
		if cfg.Key == model.ConfigLLMApiKey && cfg.Value != "" {
			result[cfg.Key] = "******"
			continue
		}
		result[cfg.Key] = cfg.Value
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) SaveConfig(c *gin.Context) {
	var input map[string]string
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for key, value := range input {
		if key == model.ConfigLLMApiKey && value == "******" {
			continue
		}
		if err := h.db.Where("key = ?", key).Assign(model.Config{Value: value}).FirstOrCreate(&model.Config{Key: key}).Error; err != nil {
			writeError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "saved"})
}

// ===== LLM相关 =====

func (h *Handler) GetLLMModels(c *gin.Context) {
	models, err := h.app.LLM.GetModels(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"models": models})
}

func (h *Handler) TestLLMConnection(c *gin.Context) {
	response, err := h.app.LLM.TestConnection(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "连接成功",
		"response": response,
	})
}

// ===== Status相关 =====

func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.app.Status.GetSystemStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// 添加定时任务信息
	if h.scheduler != nil {
		status.NextRuns = h.scheduler.NextRuns()
	}

	c.JSON(http.StatusOK, status)
}
