// Package newsgroup turns a news feed into per-entity tabs with a
// deterministic default selection.
package newsgroup

import (
	"errors"
	"sort"
	"strings"

	"github.com/wonny/rsboard/internal/model"
)

// KeyRule derives a tab label from a feed key: split on Separator and drop
// the first Skip segments. Keys with too few segments label as themselves.
type KeyRule struct {
	Separator string `yaml:"separator" json:"separator"`
	Skip      int    `yaml:"skip" json:"skip"`
}

// DefaultKeyRule maps "005930_삼성전자" → "삼성전자" and "news_AAPL" → "AAPL"
var DefaultKeyRule = KeyRule{Separator: "_", Skip: 1}

// Validate checks the rule at startup
func (r KeyRule) Validate() error {
	if r.Separator == "" {
		return errors.New("key rule separator must not be empty")
	}
	if r.Skip < 0 {
		return errors.New("key rule skip must be >= 0")
	}
	return nil
}

// Label applies the rule to one key
func (r KeyRule) Label(key string) string {
	if r.Separator == "" || r.Skip == 0 {
		return key
	}

	parts := strings.Split(key, r.Separator)
	if len(parts) <= r.Skip {
		return key
	}

	label := strings.Join(parts[r.Skip:], r.Separator)
	if label == "" {
		return key
	}
	return label
}

// Tab is one entity of the feed
type Tab struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Articles int    `json:"articles"`
}

// Grouping is the sorted tab list of a feed
type Grouping struct {
	Tabs       []Tab  `json:"tabs"`
	Default    string `json:"default,omitempty"`
	HasDefault bool   `json:"has_default"`
}

// Contains reports whether key is a tab of the grouping
func (g Grouping) Contains(key string) bool {
	for _, t := range g.Tabs {
		if t.Key == key {
			return true
		}
	}
	return false
}

// Group enumerates the entity keys of feed (never update_time), labels them
// and sorts case-insensitively by label, ties by raw key
func Group(feed model.NewsFeed, rule KeyRule) Grouping {
	tabs := make([]Tab, 0, len(feed.Entries))
	for key, entry := range feed.Entries {
		if key == model.ReservedUpdateTimeKey {
			continue
		}
		tabs = append(tabs, Tab{
			Key:      key,
			Label:    rule.Label(key),
			Articles: len(entry.Articles),
		})
	}

	sort.Slice(tabs, func(i, j int) bool {
		a, b := strings.ToUpper(tabs[i].Label), strings.ToUpper(tabs[j].Label)
		if a != b {
			return a < b
		}
		return tabs[i].Key < tabs[j].Key
	})

	g := Grouping{Tabs: tabs}
	if len(tabs) > 0 {
		g.Default = tabs[0].Key
		g.HasDefault = true
	}
	return g
}

// Articles returns the articles of key as received, or nil for an unknown key
func Articles(feed model.NewsFeed, key string) []model.Article {
	if key == model.ReservedUpdateTimeKey {
		return nil
	}
	entry, ok := feed.Entries[key]
	if !ok {
		return nil
	}
	return entry.Articles
}
