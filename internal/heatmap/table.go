package heatmap

import "github.com/wonny/rsboard/internal/model"

// TableRow is one line of the rank table shown beside the heatmap
type TableRow struct {
	Rank      int                 `json:"rank"`
	Code      string              `json:"code"`
	Name      string              `json:"name"`
	Scores    map[string]*float64 `json:"scores"` // period name → score
	RSAvg     *float64            `json:"rs_avg"`
	Disparity *float64            `json:"disparity"`
}

// Table is the rank table in snapshot order
type Table struct {
	Periods    []string   `json:"periods"`
	Rows       []TableRow `json:"rows"`
	UpdateTime string     `json:"update_time,omitempty"`
}

// BuildTable lists the snapshot as received. Rank is the 1-based position;
// the producer's rank field is not trusted for display order.
func BuildTable(snap model.RankingSnapshot) Table {
	periods := model.Periods()
	names := make([]string, len(periods))
	for i, p := range periods {
		names[i] = p.Name
	}

	rows := make([]TableRow, len(snap.Rankings))
	for i, r := range snap.Rankings {
		scores := make(map[string]*float64, len(periods))
		for _, p := range periods {
			scores[p.Name] = r.Score(p.Field)
		}
		rows[i] = TableRow{
			Rank:      i + 1,
			Code:      r.Code,
			Name:      r.Name,
			Scores:    scores,
			RSAvg:     r.RSAvg,
			Disparity: r.Disparity,
		}
	}

	return Table{Periods: names, Rows: rows, UpdateTime: snap.UpdateTime}
}
