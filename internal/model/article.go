package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationFlagged  VerificationStatus = "FLAGGED"
	VerificationDebunked VerificationStatus = "DEBUNKED"
)

// Resolved 已有最终结论(用于信誉计算)
func (s VerificationStatus) Resolved() bool {
	return s == VerificationVerified || s == VerificationDebunked
}

const CategoryMarketMove = "market_move"

// 情绪标签
const (
	SentimentBullish = "Bullish"
	SentimentBearish = "Bearish"
	SentimentNeutral = "Neutral"
)

// CandidateItem 抓取到的候选条目,去重通过后才会入库
type CandidateItem struct {
	Title       string
	URL         string
	PublishedAt time.Time
	RawContent  string
	SourceID    uint
}

type Article struct {
	ID                 uint                         `gorm:"primaryKey" json:"id"`
	SourceID           uint                         `gorm:"not null;index" json:"source_id"`
	Source             *Source                      `gorm:"foreignKey:SourceID" json:"source,omitempty"`
	Title              string                       `gorm:"size:500;not null" json:"title"`
	URL                string                       `gorm:"size:500;uniqueIndex;not null" json:"url"`
	Content            string                       `gorm:"type:text" json:"content"`
	Tags               datatypes.JSONSlice[string]  `json:"tags"`
	CoinsMentioned     datatypes.JSONSlice[string]  `json:"coins_mentioned"`
	Category           string                       `gorm:"size:50;index" json:"category"`
	SentimentScore     *float64                     `json:"sentiment_score,omitempty"`
	SentimentLabel     string                       `gorm:"size:20" json:"sentiment_label"`
	PublishedAt        time.Time                    `gorm:"index" json:"published_at"`
	ClusterID          *string                      `gorm:"size:36;index" json:"cluster_id,omitempty"`
	IsClusterLead      bool                         `gorm:"default:false;index" json:"is_cluster_lead"`
	RankingScore       float64                      `gorm:"default:0;index" json:"ranking_score"`
	VerificationStatus VerificationStatus           `gorm:"size:20;default:PENDING;index" json:"verification_status"`
	Evidence           datatypes.JSONType[Evidence] `json:"evidence"`
	ConfidenceScore    float64                      `gorm:"default:0" json:"confidence_score"`
	AnalyzedAt         *time.Time                   `json:"analyzed_at,omitempty"`
	Correlation        *TrustCorrelation            `gorm:"foreignKey:ArticleID" json:"trust_correlation,omitempty"`
	CreatedAt          time.Time                    `json:"created_at"`
}

// BeforeSave 统一使用UTC存储时间,保证时间窗口比较一致
func (a *Article) BeforeSave(tx *gorm.DB) error {
	a.PublishedAt = a.PublishedAt.UTC()
	if a.VerificationStatus == "" {
		a.VerificationStatus = VerificationPending
	}
	return nil
}

// PrimaryCoin 返回第一个提及的币种
func (a *Article) PrimaryCoin() string {
	if len(a.CoinsMentioned) == 0 {
		return ""
	}
	return a.CoinsMentioned[0]
}
