package service

import (
	"regexp"
	"sort"
	"strings"
)

var coinKeywords = map[string][]string{
	"BTC":   {"bitcoin", "btc", "satoshi", "nakamoto"},
	"ETH":   {"ethereum", "eth", "vitalik", "erc-20", "erc20"},
	"SOL":   {"solana", "sol"},
	"BNB":   {"binance coin", "bnb", "bsc", "binance smart chain"},
	"XRP":   {"ripple", "xrp"},
	"ADA":   {"cardano", "ada", "hoskinson"},
	"DOGE":  {"dogecoin", "doge", "shiba inu"},
	"DOT":   {"polkadot", "dot"},
	"MATIC": {"polygon", "matic"},
	"LTC":   {"litecoin", "ltc"},
}

var topicKeywords = map[string][]string{
	"DeFi":       {"defi", "dex", "swap", "staking", "yield farming", "liquidity", "aave", "uniswap"},
	"NFT":        {"nft", "collectible", "opensea", "bayc", "mint"},
	"Regulation": {"sec", "regulation", "ban", "law", "compliance", "gensler", "cftc", "policy"},
	"Macro":      {"fed", "cpi", "inflation", "interest rate", "fomc", "macro", "recession"},
	"Security":   {"hack", "exploit", "scam", "phishing", "security", "audit"},
	"Technology": {"upgrade", "fork", "layer2", "zk-rollup", "mainnet", "testnet"},
}

// Tagger 基于关键词表的币种/主题标注,AI分析之前的兜底
type Tagger struct {
	coins  map[string][]*regexp.Regexp
	topics map[string][]*regexp.Regexp
}

func NewTagger() *Tagger {
	return &Tagger{
		coins:  compileTaxonomy(coinKeywords),
		topics: compileTaxonomy(topicKeywords),
	}
}

func compileTaxonomy(src map[string][]string) map[string][]*regexp.Regexp {
	out := make(map[string][]*regexp.Regexp, len(src))
	for name, kws := range src {
		for _, kw := range kws {
			out[name] = append(out[name], regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`\b`))
		}
	}
	return out
}

// Tag 返回排序后的币种和主题
func (t *Tagger) Tag(text string) (coins []string, topics []string) {
	lower := strings.ToLower(text)
	return matchTaxonomy(t.coins, lower), matchTaxonomy(t.topics, lower)
}

func matchTaxonomy(tax map[string][]*regexp.Regexp, text string) []string {
	var found []string
	for name, patterns := range tax {
		for _, p := range patterns {
			if p.MatchString(text) {
				found = append(found, name)
				break
			}
		}
	}
	sort.Strings(found)
	return found
}
