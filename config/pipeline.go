package config

import "time"

// Pipeline 汇总所有批处理组件的阈值。组件构造时按值传入,运行期间不再修改。
type Pipeline struct {
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Dedup       DedupConfig       `yaml:"dedup"`
	Clustering  ClusteringConfig  `yaml:"clustering"`
	Ranking     RankingConfig     `yaml:"ranking"`
	Trend       TrendConfig       `yaml:"trend"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Truth       TruthConfig       `yaml:"truth"`
	Reputation  ReputationConfig  `yaml:"reputation"`
}

// AnalysisConfig BatchSize 受LLM速率限制
type AnalysisConfig struct {
	BatchSize int `yaml:"batch_size"`
}

type DedupConfig struct {
	Threshold   int           `yaml:"threshold"`
	Window      time.Duration `yaml:"window"`
	SampleLimit int           `yaml:"sample_limit"`
}

// 聚类匹配策略
const (
	ClusterPolicyFirst = "first" // 第一个命中的簇
	ClusterPolicyBest  = "best"  // 相似度最高的簇
)

type ClusteringConfig struct {
	Threshold int           `yaml:"threshold"`
	Window    time.Duration `yaml:"window"`
	Policy    string        `yaml:"policy"`
}

type RankingConfig struct {
	Gravity        float64       `yaml:"gravity"`
	VoteMultiplier float64       `yaml:"vote_multiplier"`
	Window         time.Duration `yaml:"window"`
	DefaultTrust   float64       `yaml:"default_trust"`
	DefaultImpact  float64       `yaml:"default_impact"`
}

type TrendConfig struct {
	VelocityThreshold float64       `yaml:"velocity_threshold"`
	RecentWindow      time.Duration `yaml:"recent_window"`
	BaselineWindow    time.Duration `yaml:"baseline_window"`
	MinTagMentions    int           `yaml:"min_tag_mentions"`
	MinCoinMentions   int           `yaml:"min_coin_mentions"`
	SampleSize        int           `yaml:"sample_size"`
}

type CorrelationConfig struct {
	SignalWindow time.Duration `yaml:"signal_window"`
	Lookback     time.Duration `yaml:"lookback"`
	DefaultTrust float64       `yaml:"default_trust"`
}

type TruthConfig struct {
	Tier1Sources       []string      `yaml:"tier1_sources"`
	Tier1Before        time.Duration `yaml:"tier1_before"`
	Tier1After         time.Duration `yaml:"tier1_after"`
	Tier1Threshold     int           `yaml:"tier1_threshold"`
	MarketWindow       time.Duration `yaml:"market_window"`
	PriceConfirmPct    float64       `yaml:"price_confirm_pct"`
	PriceContradictPct float64       `yaml:"price_contradict_pct"`
	VolumeConfirmPct   float64       `yaml:"volume_confirm_pct"`
	ConsensusMinVotes  int           `yaml:"consensus_min_votes"`
	ConsensusShare     float64       `yaml:"consensus_share"`
	Lookback           time.Duration `yaml:"lookback"`
	BatchSize          int           `yaml:"batch_size"`
}

// ReputationTier 信誉等级门槛
type ReputationTier struct {
	Name        string  `yaml:"name"`
	MinAccuracy float64 `yaml:"min_accuracy"`
	MinVotes    int     `yaml:"min_votes"`
}

// WeightBand 准确率 -> 投票权重
type WeightBand struct {
	MinAccuracy float64 `yaml:"min_accuracy"`
	Weight      float64 `yaml:"weight"`
}

type ReputationConfig struct {
	DefaultAccuracy float64          `yaml:"default_accuracy"`
	DefaultTier     string           `yaml:"default_tier"`
	Tiers           []ReputationTier `yaml:"tiers"`        // 从高到低
	WeightBands     []WeightBand     `yaml:"weight_bands"` // 从高到低
	MinWeight       float64          `yaml:"min_weight"`
}

// DefaultPipeline 默认阈值
func DefaultPipeline() Pipeline {
	return Pipeline{
		Analysis: AnalysisConfig{
			BatchSize: 20,
		},
		Dedup: DedupConfig{
			Threshold:   85,
			Window:      24 * time.Hour,
			SampleLimit: 50,
		},
		Clustering: ClusteringConfig{
			Threshold: 75,
			Window:    6 * time.Hour,
			Policy:    ClusterPolicyFirst,
		},
		Ranking: RankingConfig{
			Gravity:        1.5,
			VoteMultiplier: 2,
			Window:         72 * time.Hour,
			DefaultTrust:   5.0,
			DefaultImpact:  5.0,
		},
		Trend: TrendConfig{
			VelocityThreshold: 2.0,
			RecentWindow:      24 * time.Hour,
			BaselineWindow:    7 * 24 * time.Hour,
			MinTagMentions:    2,
			MinCoinMentions:   3,
			SampleSize:        3,
		},
		Correlation: CorrelationConfig{
			SignalWindow: 2 * time.Hour,
			Lookback:     48 * time.Hour,
			DefaultTrust: 5.0,
		},
		Truth: TruthConfig{
			Tier1Sources:       []string{"CoinTelegraph RSS", "CoinDesk RSS", "Kraken Blog", "Decrypt RSS"},
			Tier1Before:        2 * time.Hour,
			Tier1After:         12 * time.Hour,
			Tier1Threshold:     85,
			MarketWindow:       4 * time.Hour,
			PriceConfirmPct:    1,
			PriceContradictPct: 2,
			VolumeConfirmPct:   5,
			ConsensusMinVotes:  5,
			ConsensusShare:     60,
			Lookback:           7 * 24 * time.Hour,
			BatchSize:          20,
		},
		Reputation: ReputationConfig{
			DefaultAccuracy: 50,
			DefaultTier:     "Novice",
			Tiers: []ReputationTier{
				{Name: "Expert", MinAccuracy: 80, MinVotes: 50},
				{Name: "Advanced", MinAccuracy: 70, MinVotes: 20},
				{Name: "Intermediate", MinAccuracy: 60, MinVotes: 10},
			},
			WeightBands: []WeightBand{
				{MinAccuracy: 85, Weight: 3.0},
				{MinAccuracy: 75, Weight: 2.0},
				{MinAccuracy: 65, Weight: 1.5},
				{MinAccuracy: 55, Weight: 1.0},
				{MinAccuracy: 45, Weight: 0.75},
			},
			MinWeight: 0.5,
		},
	}
}
