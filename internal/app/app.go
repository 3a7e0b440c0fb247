// Package app 组装所有服务并注册批处理任务
package app

import (
	"context"

	"go-news-intel/config"
	"go-news-intel/internal/logger"
	"go-news-intel/internal/scheduler"
	"go-news-intel/internal/service"
	"gorm.io/gorm"
)

type App struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Pipeline config.Pipeline

	Feed        *service.FeedService
	LLM         *service.LLMService
	Processor   *service.ProcessorService
	Cluster     *service.ClusterService
	Ranking     *service.RankingService
	Trends      *service.TrendService
	Correlation *service.CorrelationService
	Reputation  *service.ReputationService
	Truth       *service.TruthService
	Votes       *service.VoteService
	Status      *service.StatusService
	Signals     *service.SignalStore

	Runner *scheduler.Runner
}

// New 按配置构造服务,market 为 nil 时使用 Binance 公共接口
func New(cfg *config.Config, db *gorm.DB, log *logger.Logger, market service.MarketData) *App {
	p := cfg.Pipeline
	if market == nil {
		market = service.NewBinanceClient(cfg.Market)
	}

	llm := service.NewLLMService(db)
	signals := service.NewSignalStore(db)
	reputation := service.NewReputationService(db, p.Reputation, log.With("component", "reputation"))
	a := &App{
		DB:          db,
		Log:         log,
		Pipeline:    p,
		LLM:         llm,
		Feed:        service.NewFeedService(db, service.NewDeduplicator(db, p.Dedup, log.With("component", "dedup")), service.NewTagger(), log.With("component", "feed")),
		Processor:   service.NewProcessorService(db, llm, log.With("component", "processor")),
		Cluster:     service.NewClusterService(db, p.Clustering, log.With("component", "cluster")),
		Ranking:     service.NewRankingService(db, p.Ranking, log.With("component", "ranking")),
		Trends:      service.NewTrendService(db, p.Trend, log.With("component", "trends")),
		Correlation: service.NewCorrelationService(db, signals, p.Correlation, log.With("component", "correlation")),
		Reputation:  reputation,
		Truth: service.NewTruthService(db,
			service.NewTier1Verifier(p.Truth, log.With("component", "tier1")),
			service.NewMarketVerifier(market, p.Truth, log.With("component", "market")),
			reputation, p.Truth, log.With("component", "truth")),
		Votes:   service.NewVoteService(db),
		Status:  service.NewStatusService(db),
		Signals: signals,
		Runner:  scheduler.NewRunner(log.With("component", "runner"), cfg.Cron.LockPath),
	}
	a.registerJobs()
	return a
}

func (a *App) registerJobs() {
	a.Runner.Register(scheduler.JobFetch, func(ctx context.Context) (interface{}, error) {
		return a.Feed.FetchAllSources(ctx)
	})
	a.Runner.Register(scheduler.JobAnalyze, func(ctx context.Context) (interface{}, error) {
		return a.Processor.ProcessPendingArticles(ctx, a.Pipeline.Analysis.BatchSize)
	})
	a.Runner.Register(scheduler.JobCluster, func(ctx context.Context) (interface{}, error) {
		return a.Cluster.ClusterRecent(ctx)
	})
	a.Runner.Register(scheduler.JobRank, func(ctx context.Context) (interface{}, error) {
		return a.Ranking.UpdateAllScores(ctx)
	})
	a.Runner.Register(scheduler.JobCorrelate, func(ctx context.Context) (interface{}, error) {
		return a.Correlation.CorrelateRecent(ctx)
	})
	a.Runner.Register(scheduler.JobVerify, func(ctx context.Context) (interface{}, error) {
		return a.Truth.VerifyPending(ctx)
	})
}
