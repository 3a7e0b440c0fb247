package model

import "time"

type SourceType string

const (
	SourceTypeRSS SourceType = "rss"
	SourceTypeAPI SourceType = "api"
)

// Source 新闻来源,TrustScore 为 0-10 的信任评分
type Source struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"size:255;not null;index" json:"name"`
	Type       SourceType `gorm:"size:20;default:rss" json:"type"`
	URL        string     `gorm:"size:500;uniqueIndex;not null" json:"url"`
	Enabled    bool       `gorm:"default:true" json:"enabled"`
	TrustScore float64    `gorm:"default:5" json:"trust_score"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
