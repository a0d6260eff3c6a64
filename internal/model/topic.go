package model

import (
	"errors"
	"fmt"
	"strings"
)

// Market identifies one ranked stock market
type Market string

const (
	MarketKR Market = "KR"
	MarketUS Market = "US"
)

// Markets lists the supported markets in display order
var Markets = []Market{MarketKR, MarketUS}

// ErrInvalidMarket is returned when a market string is not KR or US
var ErrInvalidMarket = errors.New("invalid market")

// ParseMarket parses a market code case-insensitively.
// KOREA / USA are accepted as aliases.
func ParseMarket(s string) (Market, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "KR", "KOREA":
		return MarketKR, nil
	case "US", "USA":
		return MarketUS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMarket, s)
	}
}

// Topic is the key of one externally pushed document.
// The string values are the wire contract with the document store.
type Topic string

const (
	TopicFinance    Topic = "market_data/global_indices"
	TopicNewsKR     Topic = "stock_news/news_kr"
	TopicNewsUS     Topic = "stock_news/news_us"
	TopicRankingsKR Topic = "rs_data/latest"
	TopicRankingsUS Topic = "rs_data/us_latest"
)

// Key returns the document part of the topic (e.g. "latest" for rs_data/latest)
func (t Topic) Key() string {
	if i := strings.LastIndex(string(t), "/"); i >= 0 {
		return string(t)[i+1:]
	}
	return string(t)
}

// Kind is the logical content type of a topic
type Kind int

const (
	KindSummary Kind = iota + 1
	KindNews
	KindRankings
)

func (k Kind) String() string {
	switch k {
	case KindSummary:
		return "summary"
	case KindNews:
		return "news"
	case KindRankings:
		return "rankings"
	default:
		return "unknown"
	}
}

// TopicSpec binds a topic to its content kind and market
type TopicSpec struct {
	Topic  Topic
	Kind   Kind
	Market Market // empty for the finance summary
}

// ⭐ SSOT: 구독 대상 토픽 테이블
var topicTable = []TopicSpec{
	{Topic: TopicFinance, Kind: KindSummary},
	{Topic: TopicNewsKR, Kind: KindNews, Market: MarketKR},
	{Topic: TopicNewsUS, Kind: KindNews, Market: MarketUS},
	{Topic: TopicRankingsKR, Kind: KindRankings, Market: MarketKR},
	{Topic: TopicRankingsUS, Kind: KindRankings, Market: MarketUS},
}

// Topics returns every topic the dashboard subscribes to
func Topics() []TopicSpec {
	out := make([]TopicSpec, len(topicTable))
	copy(out, topicTable)
	return out
}

// LookupTopic returns the table entry of a known topic
func LookupTopic(t Topic) (TopicSpec, bool) {
	for _, spec := range topicTable {
		if spec.Topic == t {
			return spec, true
		}
	}
	return TopicSpec{}, false
}

// RankingsTopic returns the rankings topic of a market
func RankingsTopic(m Market) Topic {
	if m == MarketUS {
		return TopicRankingsUS
	}
	return TopicRankingsKR
}

// NewsTopic returns the news topic of a market
func NewsTopic(m Market) Topic {
	if m == MarketUS {
		return TopicNewsUS
	}
	return TopicNewsKR
}
