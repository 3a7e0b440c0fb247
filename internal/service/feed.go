package service

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"
	"go-news-intel/internal/logger"
	"go-news-intel/internal/model"
	"gorm.io/gorm"
)

type FeedService struct {
	db     *gorm.DB
	parser *gofeed.Parser
	dedup  *Deduplicator
	tagger *Tagger
	log    *logger.Logger
}

// IngestResult 一次抓取的统计
type IngestResult struct {
	Fetched    int `json:"fetched"`
	Created    int `json:"created"`
	Existing   int `json:"existing"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

func (r *IngestResult) add(o IngestResult) {
	r.Fetched += o.Fetched
	r.Created += o.Created
	r.Existing += o.Existing
	r.Duplicates += o.Duplicates
	r.Failed += o.Failed
}

func NewFeedService(db *gorm.DB, dedup *Deduplicator, tagger *Tagger, log *logger.Logger) *FeedService {
	return &FeedService{
		db:     db,
		parser: gofeed.NewParser(),
		dedup:  dedup,
		tagger: tagger,
		log:    log,
	}
}

// FetchSource 抓取单个来源
func (s *FeedService) FetchSource(ctx context.Context, source *model.Source) (IngestResult, error) {
	parsed, err := s.parser.ParseURLWithContext(source.URL, ctx)
	if err != nil {
		return IngestResult{}, err
	}

	var result IngestResult
	for _, item := range parsed.Items {
		result.Fetched++
		candidate := model.CandidateItem{
			Title:       item.Title,
			URL:         item.Link,
			PublishedAt: s.parseTime(item),
			RawContent:  item.Description,
			SourceID:    source.ID,
		}
		result.add(s.Ingest(ctx, candidate))
	}

	s.log.Info("source fetched", "source", source.Name, "fetched", result.Fetched,
		"created", result.Created, "duplicates", result.Duplicates)
	return result, nil
}

// Ingest 入库单个候选条目:URL已存在或标题重复则跳过
func (s *FeedService) Ingest(ctx context.Context, candidate model.CandidateItem) IngestResult {
	if candidate.Title == "" || candidate.URL == "" {
		return IngestResult{Failed: 1}
	}

	// 使用URL去重
	var existing int64
	if err := s.db.WithContext(ctx).Model(&model.Article{}).Where("url = ?", candidate.URL).Count(&existing).Error; err != nil {
		s.log.Error("lookup url failed", "url", candidate.URL, "error", err)
		return IngestResult{Failed: 1}
	}
	if existing > 0 {
		return IngestResult{Existing: 1}
	}

	dup, err := s.dedup.IsDuplicate(ctx, candidate.Title)
	if err != nil {
		s.log.Error("dedup check failed", "title", candidate.Title, "error", err)
		return IngestResult{Failed: 1}
	}
	if dup {
		return IngestResult{Duplicates: 1}
	}

	coins, topics := s.tagger.Tag(candidate.Title + " " + candidate.RawContent)
	article := model.Article{
		SourceID:       candidate.SourceID,
		Title:          candidate.Title,
		URL:            candidate.URL,
		Content:        candidate.RawContent,
		PublishedAt:    candidate.PublishedAt,
		Tags:           topics,
		CoinsMentioned: coins,
	}
	if err := s.db.WithContext(ctx).Create(&article).Error; err != nil {
		s.log.Error("create article failed", "url", candidate.URL, "error", err)
		return IngestResult{Failed: 1}
	}
	return IngestResult{Created: 1}
}

// FetchAllSources 抓取所有启用的来源
func (s *FeedService) FetchAllSources(ctx context.Context) (IngestResult, error) {
	var sources []model.Source
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&sources).Error; err != nil {
		return IngestResult{}, err
	}

	var total IngestResult
	for i := range sources {
		result, err := s.FetchSource(ctx, &sources[i])
		if err != nil {
			s.log.Warn("fetch source failed", "source", sources[i].Name, "error", err)
			continue
		}
		total.add(result)
	}
	return total, nil
}

func (s *FeedService) parseTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	return time.Now().UTC()
}
