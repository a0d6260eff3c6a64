package heatmap

import "math"

// Rect is an axis-aligned rectangle in layout pixels
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns Width*Height
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

func finite(r Rect) bool {
	for _, v := range [...]float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type cell struct {
	index int
	area  float64
}

// Squarify partitions bounds into one rectangle per weight, in input order.
//
// Rows are grown along the shorter side while the worst aspect ratio keeps
// improving against the target ratio; the last row is flushed into whatever
// space remains. Positive weights tile bounds exactly; zero, negative and
// non-finite weights yield zero-area rectangles.
func Squarify(weights []float64, bounds Rect, ratio float64) []Rect {
	out := make([]Rect, len(weights))
	if !finite(bounds) {
		return out
	}
	for i := range out {
		out[i] = Rect{X: bounds.X, Y: bounds.Y}
	}

	total := 0.0
	for _, w := range weights {
		total += clean(w)
	}
	if total <= 0 || !(bounds.Width > 0 && bounds.Height > 0) {
		return out
	}
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		ratio = 1
	}

	scale := bounds.Area() / total
	pending := make([]cell, len(weights))
	for i, w := range weights {
		pending[i] = cell{index: i, area: clean(w) * scale}
	}

	rect := bounds
	row := make([]cell, 0, len(pending))
	rowArea := 0.0
	best := math.Inf(1)
	side := math.Min(rect.Width, rect.Height)

	for len(pending) > 0 {
		c := pending[0]
		row = append(row, c)
		rowArea += c.area

		score := worst(row, rowArea, side, ratio)
		if score <= best || len(row) == 1 {
			pending = pending[1:]
			best = score
			continue
		}

		// adding c made the row worse: lay out the row without it
		row = row[:len(row)-1]
		rowArea -= c.area
		rect = place(out, row, rowArea, side, rect, false)
		side = math.Min(rect.Width, rect.Height)
		row = row[:0]
		rowArea = 0
		best = math.Inf(1)
	}

	if len(row) > 0 {
		place(out, row, rowArea, side, rect, true)
	}

	return out
}

// worst is the largest aspect-ratio distortion in a row laid along side
func worst(row []cell, rowArea, side, ratio float64) float64 {
	if rowArea <= 0 || side <= 0 {
		return math.Inf(1)
	}

	lo, hi := math.Inf(1), 0.0
	for _, c := range row {
		if c.area <= 0 {
			continue
		}
		lo = math.Min(lo, c.area)
		hi = math.Max(hi, c.area)
	}

	sideSq := side * side
	rowSq := rowArea * rowArea
	return math.Max(sideSq*hi*ratio/rowSq, rowSq/(sideSq*lo*ratio))
}

// place lays row along the side of rect it was measured against and
// returns the remaining rectangle
func place(out []Rect, row []cell, rowArea, side float64, rect Rect, flush bool) Rect {
	if side == rect.Width {
		return placeHorizontal(out, row, rowArea, rect, flush)
	}
	return placeVertical(out, row, rowArea, rect, flush)
}

func placeHorizontal(out []Rect, row []cell, rowArea float64, rect Rect, flush bool) Rect {
	height := 0.0
	if rect.Width > 0 {
		height = rowArea / rect.Width
	}
	if flush || height > rect.Height {
		height = rect.Height
	}

	x := rect.X
	last := -1
	for _, c := range row {
		w := 0.0
		if height > 0 && c.area > 0 {
			w = math.Min(c.area/height, rect.X+rect.Width-x)
			last = c.index
		}
		out[c.index] = Rect{X: x, Y: rect.Y, Width: w, Height: height}
		if w == 0 {
			out[c.index].Height = 0
		}
		x += w
	}
	// the last positive tile absorbs rounding so the row spans the full width
	if last >= 0 {
		out[last].Width += rect.X + rect.Width - x
	}

	return Rect{X: rect.X, Y: rect.Y + height, Width: rect.Width, Height: rect.Height - height}
}

func placeVertical(out []Rect, row []cell, rowArea float64, rect Rect, flush bool) Rect {
	width := 0.0
	if rect.Height > 0 {
		width = rowArea / rect.Height
	}
	if flush || width > rect.Width {
		width = rect.Width
	}

	y := rect.Y
	last := -1
	for _, c := range row {
		h := 0.0
		if width > 0 && c.area > 0 {
			h = math.Min(c.area/width, rect.Y+rect.Height-y)
			last = c.index
		}
		out[c.index] = Rect{X: rect.X, Y: y, Width: width, Height: h}
		if h == 0 {
			out[c.index].Width = 0
		}
		y += h
	}
	if last >= 0 {
		out[last].Height += rect.Y + rect.Height - y
	}

	return Rect{X: rect.X + width, Y: rect.Y, Width: rect.Width - width, Height: rect.Height}
}

func clean(w float64) float64 {
	if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return 0
	}
	return w
}
