package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
	"go-news-intel/config"
	"go-news-intel/internal/logger"
)

type Scheduler struct {
	cron    *cron.Cron
	runner  *Runner
	config  config.CronConfig
	lock    *flock.Flock
	entries map[string]cron.EntryID
	log     *logger.Logger
}

func NewScheduler(runner *Runner, cfg config.CronConfig, log *logger.Logger) *Scheduler {
	cronLog := log.Cron()
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		runner:  runner,
		config:  cfg,
		lock:    flock.New(cfg.LockPath),
		entries: make(map[string]cron.EntryID),
		log:     log,
	}
}

func (s *Scheduler) specs() map[string]string {
	return map[string]string{
		JobFetch:     s.config.FetchInterval,
		JobAnalyze:   s.config.AnalyzeInterval,
		JobCluster:   s.config.ClusterInterval,
		JobRank:      s.config.RankInterval,
		JobCorrelate: s.config.CorrelateInterval,
		JobVerify:    s.config.VerifyInterval,
	}
}

// Start 获取锁文件后注册全部定时任务;同一批处理不能有两个调度实例并发写入
func (s *Scheduler) Start() error {
	if dir := filepath.Dir(s.config.LockPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create lock dir: %w", err)
		}
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scheduler instance is already running")
	}

	for _, name := range s.runner.Names() {
		spec, ok := s.specs()[name]
		if !ok || spec == "" {
			continue
		}
		job := name
		id, err := s.cron.AddFunc(spec, func() {
			if _, err := s.runner.Run(context.Background(), job); err != nil && !errors.Is(err, ErrJobRunning) {
				s.log.Warn("[Cron] job error", "job", job, "error", err)
			}
		})
		if err != nil {
			_ = s.lock.Unlock()
			return fmt.Errorf("schedule %s (%s): %w", job, spec, err)
		}
		s.entries[job] = id
	}

	s.cron.Start()
	s.log.Info("[Cron] Scheduler started", "jobs", len(s.entries), "lock", s.config.LockPath)
	return nil
}

// NextRuns 各任务的下次执行时间
func (s *Scheduler) NextRuns() map[string]time.Time {
	next := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		next[name] = s.cron.Entry(id).Next
	}
	return next
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	if err := s.lock.Unlock(); err != nil {
		s.log.Warn("failed to release scheduler lock", "error", err)
	}
}
