package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go-news-intel/config"
	"go-news-intel/internal/logger"
	"go-news-intel/internal/model"
	"golang.org/x/sync/errgroup"
)

// KlineQuery K线查询参数,时间为毫秒时间戳
type KlineQuery struct {
	Symbol   string
	Interval string
	StartMs  int64
	EndMs    int64
	Limit    int
}

type Candle struct {
	OpenTime int64   `json:"open_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// MarketData 外部行情数据源
type MarketData interface {
	Klines(ctx context.Context, q KlineQuery) ([]Candle, error)
}

// BinanceClient Binance 公共K线接口
type BinanceClient struct {
	baseURL string
	client  *http.Client
}

func NewBinanceClient(cfg config.MarketConfig) *BinanceClient {
	return &BinanceClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Klines 非200、超时和网络错误都包装为 ErrExternalService
func (c *BinanceClient) Klines(ctx context.Context, q KlineQuery) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", q.Symbol)
	params.Set("interval", q.Interval)
	params.Set("startTime", strconv.FormatInt(q.StartMs, 10))
	params.Set("endTime", strconv.FormatInt(q.EndMs, 10))
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/klines?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrExternalService, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: market data for %s returned %d", ErrExternalService, q.Symbol, resp.StatusCode)
	}

	return parseKlines(body)
}

// parseKlines 解析 [[openTime, "open", "high", "low", "close", "volume", ...], ...]
func parseKlines(body []byte) ([]Candle, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	candles := make([]Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline %d: expected at least 6 fields, got %d", i, len(row))
		}
		var fields [6]float64
		for j := 0; j < 6; j++ {
			v, err := klineNumber(row[j])
			if err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j, err)
			}
			fields[j] = v
		}
		candles = append(candles, Candle{
			OpenTime: int64(fields[0]),
			Open:     fields[1],
			High:     fields[2],
			Low:      fields[3],
			Close:    fields[4],
			Volume:   fields[5],
		})
	}
	return candles, nil
}

// klineNumber 兼容数字和字符串形式的数值
func klineNumber(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}

// MarketVerifier 用发布后的实际行情验证 market_move 类文章的方向判断
type MarketVerifier struct {
	data MarketData
	cfg  config.TruthConfig
	log  *logger.Logger
}

func NewMarketVerifier(data MarketData, cfg config.TruthConfig, log *logger.Logger) *MarketVerifier {
	return &MarketVerifier{data: data, cfg: cfg, log: log}
}

// TradingSymbol BTC -> BTCUSDT
func TradingSymbol(coin string) string {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	if strings.HasSuffix(coin, "USDT") {
		return coin
	}
	return coin + "USDT"
}

// Check 比较发布后与发布前两个窗口的价格和成交量变化
func (v *MarketVerifier) Check(ctx context.Context, coin string, publishedAt time.Time, sentiment string) *model.MarketEvidence {
	symbol := TradingSymbol(coin)
	start := publishedAt.UnixMilli()
	hours := int(v.cfg.MarketWindow.Hours())

	var after, before []Candle
	var beforeErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		after, err = v.data.Klines(gctx, KlineQuery{
			Symbol: symbol, Interval: "1h",
			StartMs: start, EndMs: publishedAt.Add(v.cfg.MarketWindow).UnixMilli(),
			Limit: hours,
		})
		return err
	})
	g.Go(func() error {
		// 对比窗口失败时成交量变化按0处理,不影响结论
		before, beforeErr = v.data.Klines(gctx, KlineQuery{
			Symbol: symbol, Interval: "1h",
			StartMs: publishedAt.Add(-v.cfg.MarketWindow).UnixMilli(), EndMs: start,
			Limit: hours,
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		v.log.Warn("market data unavailable", "symbol", symbol, "error", err)
		if errors.Is(err, ErrExternalService) || errors.Is(err, context.DeadlineExceeded) {
			return &model.MarketEvidence{Result: model.MarketUnverifiable, Symbol: symbol,
				Evidence: fmt.Sprintf("Market data unavailable for %s", symbol)}
		}
		return &model.MarketEvidence{Result: model.MarketError, Symbol: symbol,
			Evidence: fmt.Sprintf("Verification failed: %v", err)}
	}
	if beforeErr != nil {
		v.log.Debug("comparison window unavailable", "symbol", symbol, "error", beforeErr)
	}

	if len(after) < 2 {
		return &model.MarketEvidence{Result: model.MarketUnverifiable, Symbol: symbol,
			Evidence: "Insufficient market data"}
	}

	openPrice := after[0].Open
	closePrice := after[len(after)-1].Close
	if openPrice <= 0 {
		return &model.MarketEvidence{Result: model.MarketError, Symbol: symbol,
			Evidence: "Invalid open price"}
	}
	priceChange := (closePrice - openPrice) / openPrice * 100

	volumeChange := 0.0
	if beforeErr == nil && len(before) > 0 {
		prevAvg := avgVolume(before)
		if prevAvg > 0 {
			volumeChange = (avgVolume(after) - prevAvg) / prevAvg * 100
		}
	}

	ev := &model.MarketEvidence{
		Symbol:          symbol,
		PriceChangePct:  round2(priceChange),
		VolumeChangePct: round2(volumeChange),
		OpenPrice:       openPrice,
		ClosePrice:      closePrice,
	}
	ev.Result, ev.Evidence = v.decide(sentiment, priceChange, volumeChange)
	v.log.Info("market verification", "symbol", symbol, "result", ev.Result, "evidence", ev.Evidence)
	return ev
}

// decide 看涨:涨幅>1%且放量>5%为证实,跌幅>2%为证伪;看跌对称
func (v *MarketVerifier) decide(sentiment string, price, volume float64) (string, string) {
	p, vol := round2(price), round2(volume)
	switch sentiment {
	case model.SentimentBullish:
		switch {
		case price > v.cfg.PriceConfirmPct && volume > v.cfg.VolumeConfirmPct:
			return model.MarketVerified, fmt.Sprintf("Bullish claim confirmed: %.2f%% price increase, %.2f%% volume spike", p, vol)
		case price < -v.cfg.PriceContradictPct:
			return model.MarketDebunked, fmt.Sprintf("Bullish claim contradicted: price dropped %.2f%%", p)
		}
		return model.MarketNeutral, fmt.Sprintf("Bullish claim inconclusive: %.2f%% price change", p)
	case model.SentimentBearish:
		switch {
		case price < -v.cfg.PriceConfirmPct && volume > v.cfg.VolumeConfirmPct:
			return model.MarketVerified, fmt.Sprintf("Bearish claim confirmed: %.2f%% price drop, %.2f%% volume spike", p, vol)
		case price > v.cfg.PriceContradictPct:
			return model.MarketDebunked, fmt.Sprintf("Bearish claim contradicted: price rose %.2f%%", p)
		}
		return model.MarketNeutral, fmt.Sprintf("Bearish claim inconclusive: %.2f%% price change", p)
	}
	return model.MarketNeutral, "Sentiment is neutral, no strong verification needed"
}

func avgVolume(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	total := 0.0
	for _, c := range candles {
		total += c.Volume
	}
	return total / float64(len(candles))
}
