package model

import "time"

type Verdict string

const (
	VerdictTrust Verdict = "trust"
	VerdictFake  Verdict = "fake"
)

func (v Verdict) Valid() bool {
	return v == VerdictTrust || v == VerdictFake
}

// Vote 每个用户对每篇文章只能投一次,投票后不可修改
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:100;not null;uniqueIndex:idx_user_article" json:"user_id"`
	ArticleID uint      `gorm:"not null;uniqueIndex:idx_user_article;index" json:"article_id"`
	Verdict   Verdict   `gorm:"size:10;not null" json:"verdict"`
	CreatedAt time.Time `json:"created_at"`
}
