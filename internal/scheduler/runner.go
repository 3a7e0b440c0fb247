package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go-news-intel/internal/logger"
)

// 任务名称
const (
	JobFetch     = "fetch"
	JobAnalyze   = "analyze"
	JobCluster   = "cluster"
	JobRank      = "rank"
	JobCorrelate = "correlate"
	JobVerify    = "verify"
)

var (
	ErrJobRunning = errors.New("job already running")
	ErrUnknownJob = errors.New("unknown job")
)

// JobFunc 批处理任务,返回运行摘要
type JobFunc func(ctx context.Context) (interface{}, error)

// Runner 同一任务同一时间只允许一个实例运行,定时触发和手动触发共用。
// lockPath 非空时另外对 <lockPath>.<job> 加文件锁,跨进程(serve 与 run 命令)互斥
type Runner struct {
	jobs     map[string]JobFunc
	locks    map[string]*sync.Mutex
	lockPath string
	log      *logger.Logger
}

func NewRunner(log *logger.Logger, lockPath string) *Runner {
	return &Runner{
		jobs:     make(map[string]JobFunc),
		locks:    make(map[string]*sync.Mutex),
		lockPath: lockPath,
		log:      log,
	}
}

// JobLockPath 任务的文件锁路径
func (r *Runner) JobLockPath(name string) string {
	if r.lockPath == "" {
		return ""
	}
	return r.lockPath + "." + name
}

// Register 在启动前注册任务
func (r *Runner) Register(name string, fn JobFunc) {
	r.jobs[name] = fn
	r.locks[name] = &sync.Mutex{}
}

func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run 执行任务;同名任务正在运行时立即返回 ErrJobRunning
func (r *Runner) Run(ctx context.Context, name string) (interface{}, error) {
	fn, ok := r.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	mu := r.locks[name]
	if !mu.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	defer mu.Unlock()

	if path := r.JobLockPath(name); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create lock dir: %w", err)
		}
		fl := flock.New(path)
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock job %s: %w", name, err)
		}
		if !locked {
			return nil, fmt.Errorf("%w: %s (held by another process)", ErrJobRunning, name)
		}
		defer func() {
			if err := fl.Unlock(); err != nil {
				r.log.Warn("failed to release job lock", "job", name, "error", err)
			}
		}()
	}

	start := time.Now()
	r.log.Info("job started", "job", name)
	result, err := fn(ctx)
	if err != nil {
		r.log.Error("job failed", "job", name, "error", err, "elapsed", time.Since(start))
		return nil, err
	}
	r.log.Info("job finished", "job", name, "elapsed", time.Since(start))
	return result, nil
}
