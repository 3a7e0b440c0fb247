package service

import "errors"

var (
	// ErrDataUnavailable 时间窗口内没有信号或投票,跳过即可
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrExternalService 外部行情/AI服务超时或返回非200
	ErrExternalService = errors.New("external service error")
	// ErrComputation 单条数据异常,跳过该条
	ErrComputation = errors.New("computation error")

	ErrNotFound       = errors.New("not found")
	ErrAlreadyVoted   = errors.New("already voted on this article")
	ErrInvalidVerdict = errors.New("invalid verdict")
)
