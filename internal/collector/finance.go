package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/rsboard/internal/docstore"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/pkg/config"
	"github.com/wonny/rsboard/pkg/httputil"
	"github.com/wonny/rsboard/pkg/logger"
	"github.com/wonny/rsboard/pkg/redis"
)

// ErrNoQuotes is returned when no instrument could be quoted; nothing is published
var ErrNoQuotes = errors.New("no finance quotes collected")

var kst = time.FixedZone("KST", 9*60*60)

// Bond is one treasury maturity and the symbol quoting its yield
type Bond struct {
	Maturity string
	Symbol   string
	Link     string
}

// Instrument is one macro indicator row of the finance board
type Instrument struct {
	Name      string
	Symbol    string
	Link      string
	Precision int // price decimals
}

// DefaultBonds returns the 2Y/10Y/30Y yield table
func DefaultBonds() []Bond {
	return []Bond{
		{Maturity: "2Y", Symbol: "2YY=F", Link: "https://finance.yahoo.com/quote/ZT=F/"},
		{Maturity: "10Y", Symbol: "^TNX", Link: "https://finance.yahoo.com/quote/%5ETNX/"},
		{Maturity: "30Y", Symbol: "^TYX", Link: "https://finance.yahoo.com/quote/%5ETYX/"},
	}
}

// DefaultInstruments returns the board rows in display order.
// ⭐ SSOT: 금융 보드 지표 목록은 여기서만
func DefaultInstruments() []Instrument {
	return []Instrument{
		{Name: "달러 인덱스", Symbol: "DX=F", Link: "https://finance.yahoo.com/quote/DX-Y.NYB/", Precision: 2},
		{Name: "나스닥 지수", Symbol: "^IXIC", Link: "https://finance.yahoo.com/quote/^IXIC/", Precision: 2},
		{Name: "S&P500 지수", Symbol: "^GSPC", Link: "https://finance.yahoo.com/quote/^GSPC/", Precision: 2},
		{Name: "나스닥 선물", Symbol: "NQ=F", Link: "https://finance.yahoo.com/quote/NQ=F/", Precision: 2},
		{Name: "S&P500 선물", Symbol: "ES=F", Link: "https://finance.yahoo.com/quote/ES=F/", Precision: 2},
		{Name: "WTI 유가", Symbol: "CL=F", Link: "https://finance.yahoo.com/quote/CL=F/", Precision: 2},
		{Name: "금 가격", Symbol: "GC=F", Link: "https://finance.yahoo.com/quote/GC=F/", Precision: 2},
		{Name: "비트코인", Symbol: "BTC-USD", Link: "https://finance.yahoo.com/quote/BTC-USD/", Precision: 2},
		{Name: "반도체(SOXX)", Symbol: "SOXX", Link: "https://finance.yahoo.com/quote/SOXX/", Precision: 2},
		{Name: "철강(SLX)", Symbol: "SLX", Link: "https://finance.yahoo.com/quote/SLX/", Precision: 2},
		{Name: "구리 가격", Symbol: "HG=F", Link: "https://finance.yahoo.com/quote/HG=F/", Precision: 2},
		{Name: "환율(엔화)", Symbol: "JPY=X", Link: "https://finance.yahoo.com/quote/JPY%3DX/", Precision: 3},
		{Name: "환율(원화)", Symbol: "KRW=X", Link: "https://finance.yahoo.com/quote/KRW=X/", Precision: 3},
	}
}

// FinanceResult summarizes one finance collection run
type FinanceResult struct {
	Bonds      int           `json:"bonds"`
	Items      int           `json:"items"`
	Failed     int           `json:"failed"`
	UpdateTime string        `json:"update_time"`
	Duration   time.Duration `json:"duration"`
}

// financeItem is the published row; "Link" is capitalized on the wire
type financeItem struct {
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
	Link   string  `json:"Link"`
}

// financeDocument is the published summary: bonds flattened as
// "{maturity}_val", "{maturity}_chg", "{maturity}_link"
type financeDocument struct {
	UpdateTime string                 `json:"update_time"`
	Bonds      map[string]interface{} `json:"bonds"`
	Items      []financeItem          `json:"items"`
}

// FinanceCollector quotes treasury yields and macro indicators and
// publishes them as the finance summary document.
// ⭐ SSOT: 금융 요약 문서 생성은 여기서만
type FinanceCollector struct {
	fetcher     Fetcher
	publisher   docstore.Publisher
	cfg         config.FinanceConfig
	bonds       []Bond
	instruments []Instrument
	logger      *logger.Logger
	now         func() time.Time
}

// NewFinanceCollector creates a collector over the default instrument tables
func NewFinanceCollector(fetcher Fetcher, publisher docstore.Publisher, cfg config.FinanceConfig, log *logger.Logger) *FinanceCollector {
	return &FinanceCollector{
		fetcher:     fetcher,
		publisher:   publisher,
		cfg:         cfg,
		bonds:       DefaultBonds(),
		instruments: DefaultInstruments(),
		logger:      log.WithComponent("finance-collector"),
		now:         time.Now,
	}
}

// NewFinanceFetcher builds the rate-limited HTTP client used for chart requests.
// limiter may be nil.
func NewFinanceFetcher(cfg config.FinanceConfig, limiter *redis.RateLimiter, log *logger.Logger) *httputil.Client {
	client := httputil.NewWithTimeout(log, cfg.Timeout).
		WithRetry(2, 500*time.Millisecond).
		WithUserAgent("Mozilla/5.0").
		WithLimiter(cfg.RequestsPerSecond, 1)

	if limiter != nil {
		client = client.WithRateLimiter(limiter, redis.YahooFinanceRateLimit)
	}
	return client
}

// Collect quotes every bond and instrument and publishes the summary.
// Failed quotes are left out; if every quote fails nothing is published.
func (c *FinanceCollector) Collect(ctx context.Context) (FinanceResult, error) {
	start := c.now()
	res := FinanceResult{UpdateTime: start.In(kst).Format(ArticleTimeLayout)}

	doc := financeDocument{
		UpdateTime: res.UpdateTime,
		Bonds:      make(map[string]interface{}, len(c.bonds)*3),
		Items:      make([]financeItem, 0, len(c.instruments)),
	}

	// === 1. 금리 ===
	for _, b := range c.bonds {
		q, err := c.quote(ctx, b.Symbol)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failed++
			c.logger.WithError(err).WithField("maturity", b.Maturity).Warn("Bond quote failed")
			continue
		}
		doc.Bonds[b.Maturity+"_val"] = roundTo(q.Last, 2)
		doc.Bonds[b.Maturity+"_chg"] = roundTo(q.ChangePct(), 2)
		doc.Bonds[b.Maturity+"_link"] = b.Link
		res.Bonds++
	}

	// === 2. 주요 지표 ===
	for _, inst := range c.instruments {
		q, err := c.quote(ctx, inst.Symbol)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failed++
			c.logger.WithError(err).WithField("symbol", inst.Symbol).Warn("Instrument quote failed")
			continue
		}
		doc.Items = append(doc.Items, financeItem{
			Name:   inst.Name,
			Price:  roundTo(q.Last, inst.Precision),
			Change: roundTo(q.ChangePct(), 2),
			Link:   inst.Link,
		})
	}
	res.Items = len(doc.Items)

	if res.Bonds == 0 && res.Items == 0 {
		return res, ErrNoQuotes
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return res, fmt.Errorf("failed to encode finance summary: %w", err)
	}
	if err := c.publisher.Put(ctx, model.TopicFinance, data); err != nil {
		return res, fmt.Errorf("failed to publish finance summary: %w", err)
	}

	res.Duration = c.now().Sub(start)
	c.logger.WithFields(map[string]interface{}{
		"bonds":  res.Bonds,
		"items":  res.Items,
		"failed": res.Failed,
	}).Info("Finance summary published")

	return res, nil
}

func (c *FinanceCollector) quote(ctx context.Context, symbol string) (Quote, error) {
	u, err := ChartURL(c.cfg.BaseURL, symbol, c.cfg.Range)
	if err != nil {
		return Quote{}, err
	}

	body, err := c.fetcher.GetBody(ctx, u)
	if err != nil {
		return Quote{}, err
	}
	return parseChart(symbol, body)
}
