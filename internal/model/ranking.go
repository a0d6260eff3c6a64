package model

import (
	"math"
	"sort"
)

// LabelField selects which StockRank field identifies an entity in a view
type LabelField string

const (
	LabelName LabelField = "name"
	LabelCode LabelField = "code"
)

// Valid reports whether f is a known label field
func (f LabelField) Valid() bool {
	return f == LabelName || f == LabelCode
}

// StockRank is one ranked entity as produced by the RS producer.
// Optional scores are pointers: nil means absent, never zero.
type StockRank struct {
	Rank      int      `json:"rank,omitempty"`
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	RS10      *float64 `json:"rs_10,omitempty"`
	RS30      *float64 `json:"rs_30,omitempty"`
	RS60      *float64 `json:"rs_60,omitempty"`
	RS90      *float64 `json:"rs_90,omitempty"`
	RS180     *float64 `json:"rs_180,omitempty"`
	RSAvg     *float64 `json:"rs_avg,omitempty"`
	Disparity *float64 `json:"disparity,omitempty"`
}

// Label returns the entity identifier for the given label field
func (s StockRank) Label(f LabelField) string {
	if f == LabelCode {
		return s.Code
	}
	return s.Name
}

// Score returns the RS score stored under a wire field key (rs_10 … rs_180, rs_avg)
func (s StockRank) Score(field string) *float64 {
	switch field {
	case "rs_10":
		return s.RS10
	case "rs_30":
		return s.RS30
	case "rs_60":
		return s.RS60
	case "rs_90":
		return s.RS90
	case "rs_180":
		return s.RS180
	case "rs_avg":
		return s.RSAvg
	default:
		return nil
	}
}

// Weight returns the non-negative sizing weight: max(rs_avg, 0).
// Absent or non-finite scores size as 0.
func (s StockRank) Weight() float64 {
	if s.RSAvg == nil {
		return 0
	}
	v := *s.RSAvg
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Period is one lookback column of the RS table
type Period struct {
	Name  string // chart label, e.g. "180D"
	Field string // wire field, e.g. "rs_180"
	Days  int
}

// ⭐ SSOT: 기간 테이블 (oldest → newest)
var periods = []Period{
	{Name: "180D", Field: "rs_180", Days: 180},
	{Name: "90D", Field: "rs_90", Days: 90},
	{Name: "60D", Field: "rs_60", Days: 60},
	{Name: "30D", Field: "rs_30", Days: 30},
	{Name: "10D", Field: "rs_10", Days: 10},
}

// Periods returns the lookback periods ordered oldest to newest
func Periods() []Period {
	out := make([]Period, len(periods))
	copy(out, periods)
	return out
}

// RankingSnapshot is the full rankings document of one market
type RankingSnapshot struct {
	Market     Market      `json:"market"`
	Key        string      `json:"key"`
	UpdateTime string      `json:"update_time,omitempty"`
	Rankings   []StockRank `json:"rankings"`

	// Dropped counts entries rejected while decoding (missing code/name, bad types)
	Dropped int `json:"-"`
}

// Empty reports whether the snapshot has no entities
func (r RankingSnapshot) Empty() bool {
	return len(r.Rankings) == 0
}

// SortByRSAvg returns a copy of ranks ordered by rs_avg descending.
// Entries without rs_avg sort last; ties keep input order.
func SortByRSAvg(ranks []StockRank) []StockRank {
	out := make([]StockRank, len(ranks))
	copy(out, ranks)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].RSAvg, out[j].RSAvg
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})

	return out
}
