package service

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go-news-intel/config"
	"go-news-intel/internal/logger"
	"go-news-intel/internal/model"
	"gorm.io/gorm"
)

// Velocity 提及速度。New 表示此前窗口内从未出现的新叙事,排在任何数值之前
type Velocity struct {
	New   bool
	Value float64
}

func NumericVelocity(v float64) Velocity { return Velocity{Value: v} }

func NewNarrative() Velocity { return Velocity{New: true} }

// Greater 判断 v 是否排在 o 之前
func (v Velocity) Greater(o Velocity) bool {
	if v.New != o.New {
		return v.New
	}
	return v.Value > o.Value
}

func (v Velocity) String() string {
	if v.New {
		return "new"
	}
	return strconv.FormatFloat(v.Value, 'f', 2, 64)
}

func (v Velocity) MarshalJSON() ([]byte, error) {
	if v.New {
		return []byte(`"new"`), nil
	}
	return []byte(strconv.FormatFloat(v.Value, 'f', -1, 64)), nil
}

type SampleArticle struct {
	ID             uint      `json:"id"`
	Title          string    `json:"title"`
	SentimentLabel string    `json:"sentiment_label"`
	PublishedAt    time.Time `json:"published_at"`
}

type TrendEntry struct {
	Name       string          `json:"name"`
	Velocity   Velocity        `json:"velocity"`
	Count24h   int             `json:"count_24h"`
	AvgDaily7d float64         `json:"avg_daily_7d"`
	Samples    []SampleArticle `json:"sample_news"`
}

type TrendService struct {
	db  *gorm.DB
	cfg config.TrendConfig
	log *logger.Logger
	now func() time.Time
}

func NewTrendService(db *gorm.DB, cfg config.TrendConfig, log *logger.Logger) *TrendService {
	return &TrendService{db: db, cfg: cfg, log: log, now: time.Now}
}

// DetectNarratives 发现正在升温的主题标签
func (s *TrendService) DetectNarratives(ctx context.Context) ([]TrendEntry, error) {
	trends, err := s.detect(ctx, func(a *model.Article) []string { return a.Tags }, s.cfg.MinTagMentions)
	if err != nil {
		return nil, err
	}
	s.log.Info("trending narratives detected", "count", len(trends))
	return trends, nil
}

// DetectCoins 发现提及量激增的币种
func (s *TrendService) DetectCoins(ctx context.Context) ([]TrendEntry, error) {
	trends, err := s.detect(ctx, func(a *model.Article) []string { return a.CoinsMentioned }, s.cfg.MinCoinMentions)
	if err != nil {
		return nil, err
	}
	s.log.Info("trending coins detected", "count", len(trends))
	return trends, nil
}

func (s *TrendService) detect(ctx context.Context, extract func(*model.Article) []string, minMentions int) ([]TrendEntry, error) {
	now := s.now().UTC()
	recentStart := now.Add(-s.cfg.RecentWindow)
	baselineStart := now.Add(-s.cfg.BaselineWindow)

	db := s.db.WithContext(ctx)
	var recent []model.Article
	if err := db.Where("published_at >= ?", recentStart).
		Order("published_at DESC, id ASC").
		Find(&recent).Error; err != nil {
		return nil, err
	}

	var baseline []model.Article
	if err := db.Where("published_at >= ? AND published_at < ?", baselineStart, recentStart).
		Find(&baseline).Error; err != nil {
		return nil, err
	}

	baselineDays := (s.cfg.BaselineWindow - s.cfg.RecentWindow).Hours() / 24
	return s.rank(recent, baseline, extract, minMentions, baselineDays), nil
}

// rank 计算每个条目的速度并筛出趋势,recent 需按发布时间倒序
func (s *TrendService) rank(recent, baseline []model.Article, extract func(*model.Article) []string, minMentions int, baselineDays float64) []TrendEntry {
	recentCounts := countMentions(recent, extract)
	baselineCounts := countMentions(baseline, extract)

	var trends []TrendEntry
	for name, count := range recentCounts {
		if count < minMentions {
			continue
		}

		avg := 0.0
		if baselineDays > 0 {
			avg = float64(baselineCounts[name]) / baselineDays
		}

		var velocity Velocity
		if avg == 0 {
			velocity = NewNarrative()
		} else {
			raw := (float64(count) - avg) / avg
			if raw < s.cfg.VelocityThreshold {
				continue
			}
			velocity = NumericVelocity(math.Round(raw*100) / 100)
		}

		trends = append(trends, TrendEntry{
			Name:       name,
			Velocity:   velocity,
			Count24h:   count,
			AvgDaily7d: math.Round(avg*100) / 100,
			Samples:    s.samples(recent, extract, name),
		})
	}

	sort.Slice(trends, func(i, j int) bool {
		if trends[i].Velocity != trends[j].Velocity {
			return trends[i].Velocity.Greater(trends[j].Velocity)
		}
		if trends[i].Count24h != trends[j].Count24h {
			return trends[i].Count24h > trends[j].Count24h
		}
		return trends[i].Name < trends[j].Name
	})
	return trends
}

func (s *TrendService) samples(recent []model.Article, extract func(*model.Article) []string, name string) []SampleArticle {
	var out []SampleArticle
	for i := range recent {
		if len(out) >= s.cfg.SampleSize {
			break
		}
		if _, ok := normalizedSet(extract(&recent[i]))[name]; !ok {
			continue
		}
		out = append(out, SampleArticle{
			ID:             recent[i].ID,
			Title:          recent[i].Title,
			SentimentLabel: recent[i].SentimentLabel,
			PublishedAt:    recent[i].PublishedAt,
		})
	}
	return out
}

// countMentions 每篇文章内同一条目只计一次,名称统一大写
func countMentions(articles []model.Article, extract func(*model.Article) []string) map[string]int {
	counts := make(map[string]int)
	for i := range articles {
		for name := range normalizedSet(extract(&articles[i])) {
			counts[name]++
		}
	}
	return counts
}

func normalizedSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.ToUpper(strings.TrimSpace(item))
		if item != "" {
			set[item] = struct{}{}
		}
	}
	return set
}
