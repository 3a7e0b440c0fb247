package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Cron     CronConfig     `yaml:"cron"`
	Market   MarketConfig   `yaml:"market"`
	Pipeline Pipeline       `yaml:"pipeline"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Mode string `yaml:"mode"` // dev, prod
}

type CronConfig struct {
	FetchInterval     string `yaml:"fetch_interval"`     // RSS抓取间隔
	AnalyzeInterval   string `yaml:"analyze_interval"`   // AI分析间隔
	ClusterInterval   string `yaml:"cluster_interval"`   // 聚类间隔
	RankInterval      string `yaml:"rank_interval"`      // 热度计算间隔
	CorrelateInterval string `yaml:"correlate_interval"` // 信号关联间隔
	VerifyInterval    string `yaml:"verify_interval"`    // 真实性验证间隔
	LockPath          string `yaml:"lock_path"`
}

type MarketConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	// 默认配置
	cfg := Default()

	// 如果配置文件存在,读取配置
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else {
		log.Printf("配置文件不存在: %s, 使用默认配置", configPath)
	}

	// 环境变量覆盖配置
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		cfg.Server.Mode = mode
	}

	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}

	if logMode := os.Getenv("LOG_MODE"); logMode != "" {
		cfg.Log.Mode = logMode
	}

	if baseURL := os.Getenv("MARKET_BASE_URL"); baseURL != "" {
		cfg.Market.BaseURL = baseURL
	}

	return cfg, nil
}

// Default 返回内置默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "3000",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "data/news.db",
		},
		Log: LogConfig{
			Mode: "dev",
		},
		Cron: CronConfig{
			FetchInterval:     "*/30 * * * *", // 每30分钟
			AnalyzeInterval:   "*/10 * * * *", // 每10分钟
			ClusterInterval:   "*/10 * * * *",
			RankInterval:      "*/10 * * * *",
			CorrelateInterval: "*/15 * * * *",
			VerifyInterval:    "*/30 * * * *",
			LockPath:          "data/scheduler.lock",
		},
		Market: MarketConfig{
			BaseURL: "https://api.binance.com/api/v3",
			Timeout: 10 * time.Second,
		},
		Pipeline: DefaultPipeline(),
	}
}

// GetServerAddress 获取服务器监听地址
func (c *Config) GetServerAddress() string {
	// 如果端口是纯数字,加上冒号前缀
	if _, err := strconv.Atoi(c.Server.Port); err == nil {
		return ":" + c.Server.Port
	}
	return c.Server.Port
}
