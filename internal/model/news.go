package model

import (
	"encoding/json"
	"sort"
)

// ReservedUpdateTimeKey is the non-entity key of a news feed document
const ReservedUpdateTimeKey = "update_time"

// Article is one news item
type Article struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Publisher string `json:"publisher"`
	Time      string `json:"time"`
}

// NewsEntry is the article list of one entity
type NewsEntry struct {
	UpdateTime string    `json:"update_time,omitempty"`
	Articles   []Article `json:"articles"`
}

// NewsFeed maps entity keys (e.g. "005930_삼성전자") to their articles
type NewsFeed struct {
	Entries    map[string]NewsEntry
	UpdateTime string

	// Dropped counts entity values that failed to decode
	Dropped int
}

// Empty reports whether the feed has no entity
func (f NewsFeed) Empty() bool {
	return len(f.Entries) == 0
}

// Keys returns entity keys in byte order
func (f NewsFeed) Keys() []string {
	keys := make([]string, 0, len(f.Entries))
	for k := range f.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON writes the flat wire form: entity keys plus update_time
func (f NewsFeed) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(f.Entries)+1)
	for k, v := range f.Entries {
		out[k] = v
	}
	if f.UpdateTime != "" {
		out[ReservedUpdateTimeKey] = f.UpdateTime
	}
	return json.Marshal(out)
}
