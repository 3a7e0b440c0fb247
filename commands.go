package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"go-news-intel/config"
	"go-news-intel/internal/app"
	"go-news-intel/internal/database"
	"go-news-intel/internal/handler"
	"go-news-intel/internal/logger"
	"go-news-intel/internal/scheduler"
)

// deps 命令共用的配置、日志和数据库
type deps struct {
	cfg *config.Config
	log *logger.Logger
	db  *gorm.DB
}

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "go-news-intel",
		Short:         "Crypto news dedup, clustering, ranking and verification pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(&configPath))
	rootCmd.AddCommand(newRunCommand(&configPath))
	return rootCmd
}

func setup(configPath string) (*deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	// 初始化数据库
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	// 初始化默认配置
	if err := database.InitDefaultConfig(db); err != nil {
		return nil, fmt.Errorf("init default config: %w", err)
	}

	return &deps{cfg: cfg, log: log, db: db}, nil
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the batch scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer rt.log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, rt)
		},
	}
}

func serve(ctx context.Context, rt *deps) error {
	a := app.New(rt.cfg, rt.db, rt.log, nil)

	// 启动定时任务
	sched := scheduler.NewScheduler(a.Runner, rt.cfg.Cron, rt.log.With("component", "cron"))
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	// 初始化Gin
	gin.SetMode(rt.cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())

	// 注册路由
	h := handler.NewHandler(a)
	h.SetScheduler(sched)
	h.RegisterRoutes(r)

	srv := &http.Server{Addr: rt.cfg.GetServerAddress(), Handler: r}
	errc := make(chan error, 1)
	go func() {
		rt.log.Info("server starting", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	rt.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRunCommand(configPath *string) *cobra.Command {
	jobs := []string{scheduler.JobFetch, scheduler.JobAnalyze, scheduler.JobCluster,
		scheduler.JobRank, scheduler.JobCorrelate, scheduler.JobVerify}
	return &cobra.Command{
		Use:       "run <job>",
		Short:     "Run a single batch job once and print its result",
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer rt.log.Sync()

			a := app.New(rt.cfg, rt.db, rt.log, nil)
			result, err := a.Runner.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}
