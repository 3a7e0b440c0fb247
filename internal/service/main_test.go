package service

import (
	"time"

	"go-news-intel/config"
	"go-news-intel/internal/logger"
)

// 测试统一使用整秒UTC时间,sqlite按字符串比较时间
var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func hoursAgo(h float64) time.Time {
	return testNow.Add(-time.Duration(h * float64(time.Hour)))
}

var (
	nopLog   = logger.NewNop()
	pipeline = config.DefaultPipeline()
)
