package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"go-news-intel/config"
	"go-news-intel/internal/model"
)

// Models 需要自动迁移的全部模型
var Models = []interface{}{
	&model.Source{},
	&model.Article{},
	&model.Vote{},
	&model.TrustCorrelation{},
	&model.SmartMoneySignal{},
	&model.SentimentReport{},
	&model.OnChainIntelligence{},
	&model.Config{},
}

// Open 连接数据库并自动迁移
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	case "", "sqlite":
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(cfg.Path), gormCfg)
		if err == nil {
			// sqlite 单写连接,内存库也依赖这一连接保持数据
			sqlDB, dbErr := db.DB()
			if dbErr != nil {
				return nil, dbErr
			}
			sqlDB.SetMaxOpenConns(1)
			sqlDB.SetMaxIdleConns(1)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	// 自动迁移
	if err := db.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// InitDefaultConfig 初始化默认配置
func InitDefaultConfig(db *gorm.DB) error {
	defaults := map[string]string{
		model.ConfigLLMProvider: "openai",
		model.ConfigLLMApiURL:   "https://api.openai.com/v1",
		model.ConfigLLMModel:    "gpt-4o-mini",
		model.ConfigPromptAnalyze: `你是一个加密货币新闻分析助手。请分析以下文章,只返回JSON:
{"sentiment_score": -10到10的数字, "sentiment_label": "Bullish"/"Bearish"/"Neutral",
 "category": "market_move"/"regulation"/"technology"/"security"/"opinion",
 "tags": ["主题标签"], "coins": ["BTC"]}`,
	}

	for key, value := range defaults {
		if err := db.Where("key = ?", key).FirstOrCreate(&model.Config{Key: key, Value: value}).Error; err != nil {
			return err
		}
	}
	return nil
}
