package model

// Evidence 真实性验证的证据记录,保存每项检查的原始结果
type Evidence struct {
	Checks    []string         `json:"checks_performed,omitempty"`
	Tier1     *Tier1Evidence   `json:"tier1,omitempty"`
	Market    *MarketEvidence  `json:"market,omitempty"`
	Consensus *ConsensusResult `json:"user_consensus,omitempty"`
	Earned    float64          `json:"earned_points"`
	Max       float64          `json:"max_points"`
}

type Tier1Evidence struct {
	Verified       bool   `json:"verified"`
	Evidence       string `json:"evidence,omitempty"`
	MatchedArticle uint   `json:"matched_article_id,omitempty"`
	Similarity     int    `json:"similarity,omitempty"`
}

// 市场验证结果
const (
	MarketVerified      = "VERIFIED"
	MarketDebunked      = "DEBUNKED"
	MarketNeutral       = "NEUTRAL"
	MarketUnverifiable  = "UNVERIFIABLE"
	MarketError         = "ERROR"
	MarketNotApplicable = "NOT_APPLICABLE"
)

type MarketEvidence struct {
	Result          string  `json:"verification_result"`
	Evidence        string  `json:"evidence"`
	Symbol          string  `json:"symbol,omitempty"`
	PriceChangePct  float64 `json:"price_change_pct"`
	VolumeChangePct float64 `json:"volume_change_pct"`
	OpenPrice       float64 `json:"open_price,omitempty"`
	ClosePrice      float64 `json:"close_price,omitempty"`
}

// 社区共识
const (
	ConsensusTrusted  = "TRUSTED"
	ConsensusFake     = "FAKE"
	ConsensusDisputed = "DISPUTED"
	ConsensusUnknown  = "UNKNOWN"
)

type ConsensusResult struct {
	Consensus   string  `json:"consensus"`
	TrustWeight float64 `json:"trust_score"`
	FakeWeight  float64 `json:"fake_score"`
	TrustPct    float64 `json:"trust_pct"`
	FakePct     float64 `json:"fake_pct"`
	TotalWeight float64 `json:"total_weight"`
	VoteCount   int     `json:"vote_count"`
}
