// Package heatmap lays a ranking snapshot out as a squarified treemap with
// threshold coloring and adaptive labels.
package heatmap

import (
	"fmt"

	"github.com/wonny/rsboard/internal/model"
)

// Category is the color bucket of a tile
type Category string

const (
	CategoryHigh Category = "high"
	CategoryLow  Category = "low"
)

// Options controls layout and labeling
type Options struct {
	Width       float64
	Height      float64
	AspectRatio float64
	Threshold   float64 // rs_avg >= Threshold is high
	Label       model.LabelField

	MinWidth     float64 // text needs width > MinWidth
	MinHeight    float64 // and height > MinHeight
	MaxLabelFont float64
	MaxScoreFont float64
	FontFloor    float64 // text below this size is suppressed

	HighColor string
	LowColor  string
}

// DefaultOptions returns the dashboard's heatmap settings
func DefaultOptions() Options {
	return Options{
		Width:        1020,
		Height:       550,
		AspectRatio:  1.8,
		Threshold:    70,
		Label:        model.LabelName,
		MinWidth:     35,
		MinHeight:    25,
		MaxLabelFont: 14,
		MaxScoreFont: 12,
		FontFloor:    8,
		HighColor:    "#2ecc71",
		LowColor:     "#ff4d94",
	}
}

// Text is the rendered label of a tile
type Text struct {
	Show      bool    `json:"show"`
	Label     string  `json:"label,omitempty"`
	Truncated bool    `json:"truncated,omitempty"`
	LabelFont float64 `json:"label_font,omitempty"`
	Score     string  `json:"score,omitempty"`
	ScoreFont float64 `json:"score_font,omitempty"`
}

// Tile is one laid-out entity
type Tile struct {
	Rect
	Index     int      `json:"index"`
	Key       string   `json:"key"`
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	RSAvg     *float64 `json:"rs_avg,omitempty"`
	Disparity *float64 `json:"disparity,omitempty"`
	Size      float64  `json:"size"`
	Category  Category `json:"category"`
	Color     string   `json:"color"`
	Text      Text     `json:"text"`
}

// Heatmap is the full layout of one snapshot
type Heatmap struct {
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Threshold float64 `json:"threshold"`
	Tiles     []Tile  `json:"tiles"`
}

// Build lays out every ranking in snapshot order
func Build(snap model.RankingSnapshot, opts Options) Heatmap {
	weights := make([]float64, len(snap.Rankings))
	for i, r := range snap.Rankings {
		weights[i] = r.Weight()
	}

	rects := Squarify(weights, Rect{Width: opts.Width, Height: opts.Height}, opts.AspectRatio)

	tiles := make([]Tile, len(snap.Rankings))
	for i, r := range snap.Rankings {
		cat := Classify(r.RSAvg, opts.Threshold)
		color := opts.LowColor
		if cat == CategoryHigh {
			color = opts.HighColor
		}

		key := r.Label(opts.Label)
		if key == "" {
			key = r.Code
		}

		tiles[i] = Tile{
			Rect:      rects[i],
			Index:     i,
			Key:       key,
			Code:      r.Code,
			Name:      r.Name,
			RSAvg:     r.RSAvg,
			Disparity: r.Disparity,
			Size:      weights[i],
			Category:  cat,
			Color:     color,
			Text:      FitText(key, scoreText(r.RSAvg), rects[i], opts),
		}
	}

	return Heatmap{
		Width:     opts.Width,
		Height:    opts.Height,
		Threshold: opts.Threshold,
		Tiles:     tiles,
	}
}

// Classify buckets a score; absent scores are low
func Classify(rsAvg *float64, threshold float64) Category {
	if rsAvg != nil && *rsAvg >= threshold {
		return CategoryHigh
	}
	return CategoryLow
}

func scoreText(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}
