package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// 外部情报快照,由外部机器人写入,批处理只读。Coin 为空表示全市场信号

// Signal 三类情报快照
type Signal interface {
	SmartMoneySignal | SentimentReport | OnChainIntelligence
}

// normalizeSignal 时间统一为UTC,sqlite 按字符串比较时间,时区不同会错开窗口
func normalizeSignal(ts *time.Time, coin *string) {
	if ts.IsZero() {
		*ts = time.Now()
	}
	*ts = ts.UTC()
	*coin = strings.ToUpper(strings.TrimSpace(*coin))
}

type SmartMoneySignal struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
	Coin       string    `gorm:"size:20;index" json:"coin"`
	Score      float64   `json:"score"` // 0-100
	Confidence float64   `json:"confidence"`
	Timeframe  string    `gorm:"size:10" json:"timeframe"`
}

type SentimentReport struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Timestamp     time.Time `gorm:"index" json:"timestamp"`
	Coin          string    `gorm:"size:20;index" json:"coin"`
	TotalMessages int       `json:"total_messages"`
	BullishCount  int       `json:"bullish_count"`
	BearishCount  int       `json:"bearish_count"`
	NeutralCount  int       `json:"neutral_count"`
}

// BullishRatio 看涨消息占比,无消息时 ok=false
func (r *SentimentReport) BullishRatio() (ratio float64, ok bool) {
	if r == nil || r.TotalMessages <= 0 {
		return 0, false
	}
	return float64(r.BullishCount) / float64(r.TotalMessages), true
}

type OnChainIntelligence struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
	Coin       string    `gorm:"size:20;index" json:"coin"`
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"` // 0-1
	Bias       string    `gorm:"size:20" json:"bias"`
}

func (s *SmartMoneySignal) BeforeSave(tx *gorm.DB) error {
	normalizeSignal(&s.Timestamp, &s.Coin)
	return nil
}

func (r *SentimentReport) BeforeSave(tx *gorm.DB) error {
	normalizeSignal(&r.Timestamp, &r.Coin)
	return nil
}

func (i *OnChainIntelligence) BeforeSave(tx *gorm.DB) error {
	normalizeSignal(&i.Timestamp, &i.Coin)
	return nil
}
