// Package momentum pivots a ranking snapshot into the period-indexed series
// drawn by the momentum chart.
package momentum

import (
	"encoding/json"
	"fmt"

	"github.com/wonny/rsboard/internal/model"
)

const (
	// MomentumThreshold is the minimum rs_avg for an entity to be charted
	MomentumThreshold = 75.0

	// MaxSeriesEntities caps the number of charted entities
	MaxSeriesEntities = 12
)

// Entity is one charted stock in ranked order
type Entity struct {
	Key   string  `json:"key"`
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	RSAvg float64 `json:"rs_avg"`
	Color string  `json:"color"`
}

// Row holds every entity's score at one lookback period.
// Entities without a score at that period are absent from Values.
type Row struct {
	Period string
	Values map[string]float64
}

// MarshalJSON writes the flat chart form {"name": "180D", "<key>": score, ...}
func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Values)+1)
	for k, v := range r.Values {
		out[k] = v
	}
	out["name"] = r.Period
	return json.Marshal(out)
}

// Series is the chart input: one row per period, oldest first
type Series struct {
	Rows     []Row    `json:"rows"`
	Entities []Entity `json:"entities"`
}

// Build filters, ranks and pivots a snapshot. It is pure: the same snapshot
// always yields the same series, and len(Rows) always equals the period count.
func Build(snap model.RankingSnapshot, label model.LabelField) Series {
	selected := Select(snap.Rankings, MomentumThreshold, MaxSeriesEntities)
	keys := entityKeys(selected, label)

	entities := make([]Entity, len(selected))
	for i, s := range selected {
		entities[i] = Entity{
			Key:   keys[i],
			Code:  s.Code,
			Name:  s.Name,
			RSAvg: *s.RSAvg,
			Color: Color(i, len(selected)),
		}
	}

	periods := model.Periods()
	rows := make([]Row, len(periods))
	for i, p := range periods {
		values := make(map[string]float64, len(selected))
		for j, s := range selected {
			if v := s.Score(p.Field); v != nil {
				values[keys[j]] = *v
			}
		}
		rows[i] = Row{Period: p.Name, Values: values}
	}

	return Series{Rows: rows, Entities: entities}
}

// Select keeps entries with rs_avg >= threshold, ranked by rs_avg descending
// (ties in input order), capped at limit. Entries without rs_avg never qualify.
func Select(ranks []model.StockRank, threshold float64, limit int) []model.StockRank {
	qualified := make([]model.StockRank, 0, len(ranks))
	for _, r := range ranks {
		if r.RSAvg != nil && *r.RSAvg >= threshold {
			qualified = append(qualified, r)
		}
	}

	sorted := model.SortByRSAvg(qualified)
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// Color spreads n hues evenly around the circle in ranked order
func Color(i, n int) string {
	if n <= 0 {
		return ""
	}
	hue := float64(i) * 360 / float64(n)
	return fmt.Sprintf("hsl(%g, 70%%, 45%%)", hue)
}

// entityKeys picks the chart key per entity; a key already taken gets the
// code appended so two series never share a column
func entityKeys(ranks []model.StockRank, label model.LabelField) []string {
	keys := make([]string, len(ranks))
	seen := make(map[string]bool, len(ranks))

	for i, r := range ranks {
		key := r.Label(label)
		if key == "" {
			key = r.Code
		}
		if seen[key] {
			key = fmt.Sprintf("%s (%s)", key, r.Code)
		}
		for n := 2; seen[key]; n++ {
			key = fmt.Sprintf("%s (%s #%d)", r.Label(label), r.Code, n)
		}
		seen[key] = true
		keys[i] = key
	}

	return keys
}
