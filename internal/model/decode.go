package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Document is a decoded topic value
type Document interface {
	Empty() bool
}

var (
	// ErrUnknownTopic is returned for topics outside the topic table
	ErrUnknownTopic = errors.New("unknown topic")

	// ErrMalformed wraps every document decoding failure
	ErrMalformed = errors.New("malformed document")
)

// DefaultMaturities is the treasury maturity table used when none is configured
var DefaultMaturities = []string{"2Y", "10Y", "30Y"}

// Decoder turns raw topic payloads into typed documents.
// Absent and malformed payloads decode to the topic's safe default.
// ⭐ SSOT: 문서 역직렬화는 여기서만
type Decoder struct {
	maturities []string
}

// NewDecoder creates a decoder using the given bond maturity table
func NewDecoder(maturities []string) *Decoder {
	if len(maturities) == 0 {
		maturities = DefaultMaturities
	}
	m := make([]string, len(maturities))
	copy(m, maturities)
	return &Decoder{maturities: m}
}

// Maturities returns the configured maturity table
func (d *Decoder) Maturities() []string {
	out := make([]string, len(d.maturities))
	copy(out, d.maturities)
	return out
}

// Default returns the safe default document of a topic
func (d *Decoder) Default(topic Topic) (Document, error) {
	spec, ok := LookupTopic(topic)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	switch spec.Kind {
	case KindSummary:
		return MarketSummary{Bonds: map[string]BondPoint{}, Items: []MarketSummaryItem{}}, nil
	case KindNews:
		return NewsFeed{Entries: map[string]NewsEntry{}}, nil
	default:
		return RankingSnapshot{Market: spec.Market, Key: topic.Key(), Rankings: []StockRank{}}, nil
	}
}

// Decode decodes a payload for topic.
// A nil/empty/null payload yields the default with no error; a malformed
// payload yields the default together with an ErrMalformed error.
func (d *Decoder) Decode(topic Topic, data []byte) (Document, error) {
	def, err := d.Default(topic)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return def, nil
	}

	spec, _ := LookupTopic(topic)

	var doc Document
	switch spec.Kind {
	case KindSummary:
		doc, err = d.decodeSummary(trimmed)
	case KindNews:
		doc, err = decodeNews(trimmed)
	default:
		doc, err = decodeRankings(spec, trimmed)
	}
	if err != nil {
		return def, fmt.Errorf("%w: %s: %v", ErrMalformed, topic, err)
	}

	return doc, nil
}

func decodeRankings(spec TopicSpec, data []byte) (RankingSnapshot, error) {
	var raw struct {
		UpdateTime json.RawMessage   `json:"update_time"`
		Rankings   []json.RawMessage `json:"rankings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return RankingSnapshot{}, err
	}

	snap := RankingSnapshot{
		Market:     spec.Market,
		Key:        spec.Topic.Key(),
		UpdateTime: flexString(raw.UpdateTime),
		Rankings:   make([]StockRank, 0, len(raw.Rankings)),
	}

	for _, entry := range raw.Rankings {
		rank, err := decodeStockRank(entry)
		if err != nil {
			snap.Dropped++
			continue
		}
		snap.Rankings = append(snap.Rankings, rank)
	}

	return snap, nil
}

func decodeStockRank(data json.RawMessage) (StockRank, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return StockRank{}, err
	}

	rank := StockRank{
		Code: flexString(fields["code"]),
		Name: flexString(fields["name"]),
	}
	if rank.Code == "" {
		// 미국 producer 일부는 ticker 필드를 사용
		rank.Code = flexString(fields["ticker"])
	}
	if rank.Code == "" || rank.Name == "" {
		return StockRank{}, errors.New("code and name are required")
	}

	if r, err := flexFloat(fields["rank"]); err == nil && r != nil {
		rank.Rank = int(*r)
	}

	targets := map[string]**float64{
		"rs_10":     &rank.RS10,
		"rs_30":     &rank.RS30,
		"rs_60":     &rank.RS60,
		"rs_90":     &rank.RS90,
		"rs_180":    &rank.RS180,
		"rs_avg":    &rank.RSAvg,
		"disparity": &rank.Disparity,
	}
	for key, dst := range targets {
		v, err := flexFloat(fields[key])
		if err != nil {
			return StockRank{}, fmt.Errorf("%s: %w", key, err)
		}
		*dst = v
	}

	return rank, nil
}

func (d *Decoder) decodeSummary(data []byte) (MarketSummary, error) {
	var raw struct {
		Bonds      map[string]json.RawMessage `json:"bonds"`
		Items      []json.RawMessage          `json:"items"`
		UpdateTime json.RawMessage            `json:"update_time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return MarketSummary{}, err
	}

	summary := MarketSummary{
		Bonds:      make(map[string]BondPoint, len(d.maturities)),
		Items:      make([]MarketSummaryItem, 0, len(raw.Items)),
		UpdateTime: flexString(raw.UpdateTime),
	}

	for _, m := range d.maturities {
		if bp, ok := bondPoint(raw.Bonds, m); ok {
			summary.Bonds[m] = bp
		}
	}

	for _, entry := range raw.Items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entry, &fields); err != nil {
			continue
		}
		item := MarketSummaryItem{
			Name: flexString(fields["name"]),
			Link: flexString(fields["Link"]),
		}
		if item.Link == "" {
			item.Link = flexString(fields["link"])
		}
		item.Price, _ = flexFloat(fields["price"])
		item.Change, _ = flexFloat(fields["change"])
		summary.Items = append(summary.Items, item)
	}

	return summary, nil
}

// bondPoint reads maturity m in either nested ("10Y": {...}) or flat ("10Y_val") form
func bondPoint(bonds map[string]json.RawMessage, m string) (BondPoint, bool) {
	if nested, ok := bonds[m]; ok {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(nested, &fields); err == nil {
			bp := BondPoint{Link: flexString(fields["link"])}
			bp.Val, _ = flexFloat(fields["val"])
			bp.Chg, _ = flexFloat(fields["chg"])
			return bp, true
		}
	}

	val, hasVal := bonds[m+"_val"]
	chg, hasChg := bonds[m+"_chg"]
	link, hasLink := bonds[m+"_link"]
	if !hasVal && !hasChg && !hasLink {
		return BondPoint{}, false
	}

	bp := BondPoint{Link: flexString(link)}
	bp.Val, _ = flexFloat(val)
	bp.Chg, _ = flexFloat(chg)
	return bp, true
}

func decodeNews(data []byte) (NewsFeed, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewsFeed{}, err
	}

	feed := NewsFeed{Entries: make(map[string]NewsEntry, len(raw))}
	for key, value := range raw {
		if key == ReservedUpdateTimeKey {
			feed.UpdateTime = flexString(value)
			continue
		}

		var entry NewsEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			feed.Dropped++
			continue
		}
		if entry.Articles == nil {
			entry.Articles = []Article{}
		}
		feed.Entries[key] = entry
	}

	return feed, nil
}

// flexFloat accepts JSON numbers and numeric strings; null/absent → nil
func flexFloat(raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var v float64
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if s == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		v = parsed
	} else if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}

	if math.IsNaN(v) {
		return nil, nil
	}
	return &v, nil
}

// flexString accepts JSON strings and numbers (e.g. numeric KRX codes)
func flexString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}

	return ""
}
