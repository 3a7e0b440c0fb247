package service

import (
	"time"

	"go-news-intel/internal/model"
	"gorm.io/gorm"
)

type StatusService struct {
	db *gorm.DB
}

type SystemStatus struct {
	// 文章统计
	TotalArticles    int64 `json:"total_articles"`
	PendingArticles  int64 `json:"pending_articles"`
	VerifiedArticles int64 `json:"verified_articles"`
	FlaggedArticles  int64 `json:"flagged_articles"`
	DebunkedArticles int64 `json:"debunked_articles"`
	UnanalyzedCount  int64 `json:"unanalyzed_articles"`

	// 聚类与关联
	ClusterLeads int64 `json:"cluster_leads"`
	Correlations int64 `json:"trust_correlations"`
	Votes        int64 `json:"votes"`

	// 来源统计
	TotalSources   int64 `json:"total_sources"`
	EnabledSources int64 `json:"enabled_sources"`

	// 定时任务信息
	NextRuns map[string]time.Time `json:"next_runs,omitempty"`
}

func NewStatusService(db *gorm.DB) *StatusService {
	return &StatusService{db: db}
}

// GetSystemStatus 获取系统状态
func (s *StatusService) GetSystemStatus() (*SystemStatus, error) {
	status := &SystemStatus{}
	articles := func() *gorm.DB { return s.db.Model(&model.Article{}) }

	counts := []struct {
		q   *gorm.DB
		dst *int64
	}{
		{articles(), &status.TotalArticles},
		{articles().Where("verification_status = ?", model.VerificationPending), &status.PendingArticles},
		{articles().Where("verification_status = ?", model.VerificationVerified), &status.VerifiedArticles},
		{articles().Where("verification_status = ?", model.VerificationFlagged), &status.FlaggedArticles},
		{articles().Where("verification_status = ?", model.VerificationDebunked), &status.DebunkedArticles},
		{articles().Where("analyzed_at IS NULL"), &status.UnanalyzedCount},
		{articles().Where("is_cluster_lead = ?", true), &status.ClusterLeads},
		{s.db.Model(&model.TrustCorrelation{}), &status.Correlations},
		{s.db.Model(&model.Vote{}), &status.Votes},
		{s.db.Model(&model.Source{}), &status.TotalSources},
		{s.db.Model(&model.Source{}).Where("enabled = ?", true), &status.EnabledSources},
	}
	for _, c := range counts {
		if err := c.q.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	return status, nil
}
