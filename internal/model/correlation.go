package model

import "time"

// TrustCorrelation 文章的增强信任评分,每篇文章最多一条
type TrustCorrelation struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	ArticleID          uint      `gorm:"uniqueIndex;not null" json:"article_id"`
	SmartMoneySignalID *uint     `json:"smart_money_signal_id,omitempty"`
	SentimentReportID  *uint     `json:"sentiment_report_id,omitempty"`
	OnChainID          *uint     `json:"onchain_intelligence_id,omitempty"`
	Polarity           string    `gorm:"size:10" json:"polarity"`
	BaseTrustScore     float64   `json:"base_trust_score"`
	SmartMoneyBonus    float64   `json:"smart_money_bonus"`
	SentimentBonus     float64   `json:"sentiment_bonus"`
	OnChainBonus       float64   `json:"onchain_bonus"`
	EnhancedTrustScore float64   `json:"enhanced_trust_score"`
	TimeDiffSeconds    *int64    `json:"time_diff_seconds,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
