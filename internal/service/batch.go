package service

import (
	"errors"
	"time"
)

type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// ItemResult 单篇文章的处理结果
type ItemResult struct {
	ArticleID uint    `json:"article_id"`
	Outcome   Outcome `json:"outcome"`
	Detail    string  `json:"detail,omitempty"`
	Err       error   `json:"-"`
}

// BatchResult 一次批处理的汇总
type BatchResult struct {
	Job        string       `json:"job"`
	Processed  int          `json:"processed"`
	Succeeded  int          `json:"succeeded"`
	Skipped    int          `json:"skipped"`
	Failed     int          `json:"failed"`
	Items      []ItemResult `json:"items,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

func newBatch(job string, now time.Time) BatchResult {
	return BatchResult{Job: job, StartedAt: now}
}

// Record 记录单条结果并更新计数
func (r *BatchResult) Record(item ItemResult) {
	r.Processed++
	switch item.Outcome {
	case OutcomeOK:
		r.Succeeded++
	case OutcomeSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
	r.Items = append(r.Items, item)
}

func (r *BatchResult) OK(id uint, detail string) {
	r.Record(ItemResult{ArticleID: id, Outcome: OutcomeOK, Detail: detail})
}

// Fail 按错误类型记录:数据不可用视为跳过,其他视为失败
func (r *BatchResult) Fail(id uint, err error) {
	outcome := OutcomeFailed
	if errors.Is(err, ErrDataUnavailable) {
		outcome = OutcomeSkipped
	}
	r.Record(ItemResult{ArticleID: id, Outcome: outcome, Detail: err.Error(), Err: err})
}

func (r *BatchResult) finish(now time.Time) {
	r.FinishedAt = now
}
