// Package viewconfig holds the explicit view tables: per-market label
// fields, thresholds, the news key rule and the bond maturity table.
package viewconfig

import (
	"github.com/wonny/rsboard/internal/finance"
	"github.com/wonny/rsboard/internal/heatmap"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/internal/newsgroup"
)

// Config is the full view configuration
type Config struct {
	Markets  map[model.Market]MarketConfig `yaml:"markets" json:"markets"`
	Heatmap  HeatmapConfig                 `yaml:"heatmap" json:"heatmap"`
	News     newsgroup.KeyRule             `yaml:"news" json:"news"`
	Finance  FinanceConfig                 `yaml:"finance" json:"finance"`
}

// MarketConfig selects the entity identifier shown for a market
type MarketConfig struct {
	Label model.LabelField `yaml:"label" json:"label"`
}

// HeatmapConfig controls the treemap
type HeatmapConfig struct {
	Threshold    float64 `yaml:"threshold" json:"threshold"`
	AspectRatio  float64 `yaml:"aspect_ratio" json:"aspect_ratio"`
	Width        float64 `yaml:"width" json:"width"`
	Height       float64 `yaml:"height" json:"height"`
	MinWidth     float64 `yaml:"min_width" json:"min_width"`
	MinHeight    float64 `yaml:"min_height" json:"min_height"`
	MaxLabelFont float64 `yaml:"max_label_font" json:"max_label_font"`
	MaxScoreFont float64 `yaml:"max_score_font" json:"max_score_font"`
	FontFloor    float64 `yaml:"font_floor" json:"font_floor"`
	HighColor    string  `yaml:"high_color" json:"high_color"`
	LowColor     string  `yaml:"low_color" json:"low_color"`
}

// FinanceConfig controls the finance board
type FinanceConfig struct {
	Maturities          []string `yaml:"maturities" json:"maturities"`
	SplitAt             int      `yaml:"split_at" json:"split_at"`
	VolatilityThreshold float64  `yaml:"volatility_threshold" json:"volatility_threshold"`
}

// Default returns the built-in view configuration.
// ⭐ SSOT: 히트맵 70 / 최소 박스 35x25 (모멘텀 75 는 momentum.MomentumThreshold 고정)
func Default() *Config {
	hm := heatmap.DefaultOptions()
	fin := finance.DefaultOptions()

	return &Config{
		Markets: map[model.Market]MarketConfig{
			model.MarketKR: {Label: model.LabelName},
			model.MarketUS: {Label: model.LabelCode},
		},
		Heatmap: HeatmapConfig{
			Threshold:    hm.Threshold,
			AspectRatio:  hm.AspectRatio,
			Width:        hm.Width,
			Height:       hm.Height,
			MinWidth:     hm.MinWidth,
			MinHeight:    hm.MinHeight,
			MaxLabelFont: hm.MaxLabelFont,
			MaxScoreFont: hm.MaxScoreFont,
			FontFloor:    hm.FontFloor,
			HighColor:    hm.HighColor,
			LowColor:     hm.LowColor,
		},
		News: newsgroup.DefaultKeyRule,
		Finance: FinanceConfig{
			Maturities:          append([]string(nil), fin.Maturities...),
			SplitAt:             fin.SplitAt,
			VolatilityThreshold: fin.VolatilityThreshold,
		},
	}
}

// LabelFor returns the label field of a market
func (c *Config) LabelFor(m model.Market) model.LabelField {
	if mc, ok := c.Markets[m]; ok && mc.Label.Valid() {
		return mc.Label
	}
	return model.LabelName
}

// HeatmapOptions returns layout options for a market, sized width x height
// (zero keeps the configured size)
func (c *Config) HeatmapOptions(m model.Market, width, height float64) heatmap.Options {
	h := c.Heatmap
	if width <= 0 {
		width = h.Width
	}
	if height <= 0 {
		height = h.Height
	}

	return heatmap.Options{
		Width:        width,
		Height:       height,
		AspectRatio:  h.AspectRatio,
		Threshold:    h.Threshold,
		Label:        c.LabelFor(m),
		MinWidth:     h.MinWidth,
		MinHeight:    h.MinHeight,
		MaxLabelFont: h.MaxLabelFont,
		MaxScoreFont: h.MaxScoreFont,
		FontFloor:    h.FontFloor,
		HighColor:    h.HighColor,
		LowColor:     h.LowColor,
	}
}

// FinanceOptions returns the board options
func (c *Config) FinanceOptions() finance.Options {
	return finance.Options{
		Maturities:          append([]string(nil), c.Finance.Maturities...),
		SplitAt:             c.Finance.SplitAt,
		VolatilityThreshold: c.Finance.VolatilityThreshold,
	}
}

// Decoder returns a document decoder bound to the maturity table
func (c *Config) Decoder() *model.Decoder {
	return model.NewDecoder(c.Finance.Maturities)
}
