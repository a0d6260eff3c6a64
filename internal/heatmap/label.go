package heatmap

import (
	"math"

	"github.com/mattn/go-runewidth"
)

const (
	// glyph advance per display cell, in em
	cellEm = 0.6
	// label font as a share of tile height (label + score lines must fit)
	heightShare = 0.4
	scoreShare  = 0.85
	padding     = 4.0
	ellipsis    = "…"
)

// FitText sizes label and score text for a tile.
//
// Font size is min(max font, share of height, size that fits the label
// width), so it never grows when the tile or the available width shrinks.
// A label too wide even at the floor size is truncated with an ellipsis;
// below the floor nothing is drawn.
func FitText(label, score string, r Rect, opts Options) Text {
	if !(r.Width > opts.MinWidth && r.Height > opts.MinHeight) {
		return Text{}
	}

	avail := r.Width - 2*padding
	byHeight := r.Height * heightShare
	if avail <= 0 || byHeight < opts.FontFloor {
		return Text{}
	}

	cells := runewidth.StringWidth(label)
	byWidth := math.Inf(1)
	if cells > 0 {
		byWidth = avail / (float64(cells) * cellEm)
	}

	font := math.Min(opts.MaxLabelFont, math.Min(byHeight, byWidth))
	text := label
	truncated := false

	if font < opts.FontFloor {
		// keep the floor size and cut the label to what fits
		font = opts.FontFloor
		maxCells := int(avail / (font * cellEm))
		if maxCells <= runewidth.StringWidth(ellipsis) {
			return Text{}
		}
		text = runewidth.Truncate(label, maxCells, ellipsis)
		truncated = true
	}

	out := Text{
		Show:      true,
		Label:     text,
		Truncated: truncated,
		LabelFont: round1(font),
	}

	scoreFont := math.Min(opts.MaxScoreFont, font*scoreShare)
	if score != "" && scoreFont >= opts.FontFloor &&
		float64(runewidth.StringWidth(score))*scoreFont*cellEm <= avail {
		out.Score = score
		out.ScoreFont = round1(scoreFont)
	}

	return out
}

func round1(v float64) float64 {
	return math.Floor(v*10) / 10
}
