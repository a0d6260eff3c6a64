// Package collector produces the news and finance documents the dashboard subscribes to.
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

// ErrNoRankings is returned when the market has no ranked entity to search for
var ErrNoRankings = errors.New("no rankings to collect news for")

// Fetcher returns the raw body of a URL
type Fetcher interface {
	GetBody(ctx context.Context, url string) ([]byte, error)
}

// Result summarizes one collection run
type Result struct {
	Market     model.Market  `json:"market"`
	Entities   int           `json:"entities"`
	Collected  int           `json:"collected"`
	Cached     int           `json:"cached"`
	Failed     int           `json:"failed"`
	Articles   int           `json:"articles"`
	UpdateTime string        `json:"update_time"`
	Duration   time.Duration `json:"duration"`
}

// NewsCollector searches news for every ranked entity of a market and
// publishes the whole feed as one document.
// ⭐ SSOT: 뉴스 문서 생성은 여기서만
type NewsCollector struct {
	fetcher   Fetcher
	publisher docstore.Publisher
	decoder   *model.Decoder
	cache     *redis.Cache
	cfg       config.NewsConfig
	logger    *logger.Logger
	now       func() time.Time
}

// NewNewsCollector creates a collector; cache may be nil
func NewNewsCollector(
	fetcher Fetcher,
	publisher docstore.Publisher,
	decoder *model.Decoder,
	cache *redis.Cache,
	cfg config.NewsConfig,
	log *logger.Logger,
) *NewsCollector {
	return &NewsCollector{
		fetcher:   fetcher,
		publisher: publisher,
		decoder:   decoder,
		cache:     cache,
		cfg:       cfg,
		logger:    log.WithComponent("news-collector"),
		now:       time.Now,
	}
}

// NewFetcher builds the rate-limited HTTP client used for RSS requests.
// limiter may be nil; when set, the budget is shared across processes.
func NewFetcher(cfg config.NewsConfig, limiter *redis.RateLimiter, log *logger.Logger) *httputil.Client {
	client := httputil.NewWithTimeout(log, cfg.Timeout).
		WithRetry(2, 500*time.Millisecond).
		WithUserAgent("Mozilla/5.0").
		WithLimiter(cfg.RequestsPerSecond, 1)

	if limiter != nil {
		client = client.WithRateLimiter(limiter, redis.GoogleNewsRateLimit)
	}
	return client
}

// CollectAll runs Collect for each market; the first error is returned after all ran
func (c *NewsCollector) CollectAll(ctx context.Context, markets []model.Market) ([]Result, error) {
	results := make([]Result, 0, len(markets))
	var firstErr error

	for _, m := range markets {
		res, err := c.Collect(ctx, m)
		if err != nil {
			c.logger.WithError(err).WithField("market", string(m)).Error("News collection failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, res)
	}

	return results, firstErr
}

// Collect searches every ranked entity of market and publishes the feed.
// Entities whose search fails are left out of the document.
func (c *NewsCollector) Collect(ctx context.Context, market model.Market) (Result, error) {
	start := c.now()
	res := Result{Market: market, UpdateTime: start.Format(ArticleTimeLayout)}

	rankings, err := c.rankings(ctx, market)
	if err != nil {
		return res, err
	}
	res.Entities = len(rankings.Rankings)

	feed := model.NewsFeed{Entries: make(map[string]model.NewsEntry, len(rankings.Rankings))}

	for _, rank := range rankings.Rankings {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		key := EntityKey(rank)
		entry, cached, err := c.entity(ctx, market, key, rank.Name)
		if err != nil {
			res.Failed++
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"market": string(market),
				"entity": key,
			}).Warn("News search failed")
			continue
		}

		if cached {
			res.Cached++
		} else {
			res.Collected++
		}
		res.Articles += len(entry.Articles)
		feed.Entries[key] = entry
	}

	data, err := json.Marshal(feed)
	if err != nil {
		return res, fmt.Errorf("failed to encode news feed: %w", err)
	}
	if err := c.publisher.Put(ctx, model.NewsTopic(market), data); err != nil {
		return res, fmt.Errorf("failed to publish news feed: %w", err)
	}

	res.Duration = c.now().Sub(start)
	c.logger.WithFields(map[string]interface{}{
		"market":    string(market),
		"entities":  res.Entities,
		"collected": res.Collected,
		"cached":    res.Cached,
		"failed":    res.Failed,
		"articles":  res.Articles,
	}).Info("News feed published")

	return res, nil
}

// EntityKey is the feed key of a ranked entity: "{code}_{name}"
func EntityKey(rank model.StockRank) string {
	return rank.Code + "_" + rank.Name
}

func (c *NewsCollector) rankings(ctx context.Context, market model.Market) (model.RankingSnapshot, error) {
	topic := model.RankingsTopic(market)

	doc, err := c.publisher.Get(ctx, topic)
	if err != nil {
		return model.RankingSnapshot{}, fmt.Errorf("failed to read %s: %w", topic, err)
	}
	if !doc.Exists {
		return model.RankingSnapshot{}, fmt.Errorf("%w: %s is absent", ErrNoRankings, topic)
	}

	decoded, err := c.decoder.Decode(topic, doc.Data)
	if err != nil {
		return model.RankingSnapshot{}, fmt.Errorf("failed to decode %s: %w", topic, err)
	}

	snap, ok := decoded.(model.RankingSnapshot)
	if !ok || snap.Empty() {
		return model.RankingSnapshot{}, fmt.Errorf("%w: %s", ErrNoRankings, topic)
	}
	return snap, nil
}

func (c *NewsCollector) entity(ctx context.Context, market model.Market, key, query string) (model.NewsEntry, bool, error) {
	cacheKey := redis.NewsKey(string(market), key)

	var entry model.NewsEntry
	if hit, err := c.cache.Get(ctx, cacheKey, &entry); err != nil {
		c.logger.WithError(err).WithField("key", cacheKey).Debug("News cache read failed")
	} else if hit {
		if entry.Articles == nil {
			entry.Articles = []model.Article{}
		}
		return entry, true, nil
	}

	u, err := SearchURL(c.cfg.BaseURL, market, query)
	if err != nil {
		return model.NewsEntry{}, false, err
	}

	body, err := c.fetcher.GetBody(ctx, u)
	if err != nil {
		return model.NewsEntry{}, false, err
	}

	items, err := parseFeed(body)
	if err != nil {
		return model.NewsEntry{}, false, err
	}

	now := c.now()
	entry = model.NewsEntry{
		UpdateTime: now.Format(ArticleTimeLayout),
		Articles:   BuildArticles(items, now, c.cfg.MaxArticles),
	}

	if err := c.cache.Set(ctx, cacheKey, entry, c.cfg.CacheTTL); err != nil {
		c.logger.WithError(err).WithField("key", cacheKey).Debug("News cache write failed")
	}

	return entry, false, nil
}
