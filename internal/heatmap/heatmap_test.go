package heatmap

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsboard/internal/model"
)

const eps = 1e-6

func f(v float64) *float64 { return &v }

func overlap(a, b Rect) float64 {
	w := math.Min(a.X+a.Width, b.X+b.Width) - math.Max(a.X, b.X)
	h := math.Min(a.Y+a.Height, b.Y+b.Height) - math.Max(a.Y, b.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func checkPartition(t *testing.T, weights []float64, bounds Rect, rects []Rect) {
	t.Helper()
	require.Len(t, rects, len(weights))

	sum := 0.0
	for i, r := range rects {
		assert.False(t, math.IsNaN(r.Width) || math.IsNaN(r.Height), "tile %d has NaN size", i)
		assert.GreaterOrEqual(t, r.Width, 0.0, "tile %d width", i)
		assert.GreaterOrEqual(t, r.Height, 0.0, "tile %d height", i)
		assert.GreaterOrEqual(t, r.X, bounds.X-eps)
		assert.GreaterOrEqual(t, r.Y, bounds.Y-eps)
		assert.LessOrEqual(t, r.X+r.Width, bounds.X+bounds.Width+eps)
		assert.LessOrEqual(t, r.Y+r.Height, bounds.Y+bounds.Height+eps)
		if weights[i] <= 0 {
			assert.InDelta(t, 0, r.Area(), eps, "zero weight tile %d must be zero-area", i)
		}
		sum += r.Area()
	}

	assert.InDelta(t, bounds.Area(), sum, bounds.Area()*1e-9, "areas must sum to the bounds")

	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			assert.InDelta(t, 0, overlap(rects[i], rects[j]), eps, "tiles %d and %d overlap", i, j)
		}
	}
}

func TestSquarifyPartitionsBounds(t *testing.T) {
	bounds := Rect{Width: 1020, Height: 550}

	cases := [][]float64{
		{1},
		{6, 6, 4, 3, 2, 2, 1},
		{100, 1, 1, 1, 1},
		{0, 5, 0, 5},
		{80, 0},
		{0, 0, 10},
	}
	for _, weights := range cases {
		checkPartition(t, weights, bounds, Squarify(weights, bounds, 1.8))
	}
}

func TestSquarifyRandomWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	bounds := Rect{X: 10, Y: 20, Width: 800, Height: 450}

	for n := 1; n <= 60; n += 7 {
		weights := make([]float64, n)
		for i := range weights {
			weights[i] = rng.Float64() * 100
			if i%9 == 4 {
				weights[i] = 0
			}
		}
		if weights[0] == 0 {
			weights[0] = 1
		}
		checkPartition(t, weights, bounds, Squarify(weights, bounds, 1.8))
	}
}

func TestSquarifyAllZero(t *testing.T) {
	rects := Squarify([]float64{0, 0, math.NaN(), -3}, Rect{Width: 100, Height: 100}, 1.8)
	for _, r := range rects {
		assert.Equal(t, 0.0, r.Area())
	}
}

func TestSquarifyNonFiniteBounds(t *testing.T) {
	for _, bounds := range []Rect{
		{Width: math.NaN(), Height: 10},
		{Width: 10, Height: math.Inf(1)},
		{X: math.NaN(), Width: 10, Height: 10},
		{Width: math.Inf(-1), Height: 10},
	} {
		rects := Squarify([]float64{1, 2}, bounds, 1.8)
		require.Len(t, rects, 2)
		for _, r := range rects {
			assert.Equal(t, Rect{}, r)
		}
	}
}

func TestSquarifyProportionalAreas(t *testing.T) {
	bounds := Rect{Width: 300, Height: 200}
	rects := Squarify([]float64{3, 2, 1}, bounds, 1.8)

	total := bounds.Area()
	assert.InDelta(t, total/2, rects[0].Area(), 1e-6)
	assert.InDelta(t, total/3, rects[1].Area(), 1e-6)
	assert.InDelta(t, total/6, rects[2].Area(), 1e-6)
}

func TestBuildTilesInInputOrder(t *testing.T) {
	snap := model.RankingSnapshot{
		Market: model.MarketKR,
		Rankings: []model.StockRank{
			{Code: "005930", Name: "삼성전자", RSAvg: f(92)},
			{Code: "000660", Name: "SK하이닉스", RSAvg: f(70)},
			{Code: "035420", Name: "NAVER", RSAvg: f(69.9)},
			{Code: "999999", Name: "Missing"},
		},
	}

	hm := Build(snap, DefaultOptions())
	require.Len(t, hm.Tiles, 4)

	for i, tile := range hm.Tiles {
		assert.Equal(t, i, tile.Index)
		assert.Equal(t, snap.Rankings[i].Code, tile.Code)
	}

	assert.Equal(t, "삼성전자", hm.Tiles[0].Key)
	assert.Equal(t, CategoryHigh, hm.Tiles[0].Category)
	assert.Equal(t, CategoryHigh, hm.Tiles[1].Category, "70 meets the heatmap threshold")
	assert.Equal(t, CategoryLow, hm.Tiles[2].Category)
	assert.Equal(t, "#ff4d94", hm.Tiles[2].Color)

	missing := hm.Tiles[3]
	assert.Equal(t, CategoryLow, missing.Category)
	assert.Equal(t, 0.0, missing.Size)
	assert.Equal(t, 0.0, missing.Area())
	assert.False(t, missing.Text.Show)
}

func TestBuildUsesCodeLabel(t *testing.T) {
	opts := DefaultOptions()
	opts.Label = model.LabelCode

	hm := Build(model.RankingSnapshot{Rankings: []model.StockRank{{Code: "AAPL", Name: "Apple", RSAvg: f(88)}}}, opts)
	require.Len(t, hm.Tiles, 1)
	assert.Equal(t, "AAPL", hm.Tiles[0].Key)
	assert.True(t, hm.Tiles[0].Text.Show)
	assert.Equal(t, "AAPL", hm.Tiles[0].Text.Label)
	assert.Equal(t, "88.0", hm.Tiles[0].Text.Score)
}

func TestFitTextMinimumFootprint(t *testing.T) {
	opts := DefaultOptions()

	assert.False(t, FitText("AAPL", "90.0", Rect{Width: 35, Height: 100}, opts).Show, "width must exceed 35")
	assert.False(t, FitText("AAPL", "90.0", Rect{Width: 100, Height: 25}, opts).Show, "height must exceed 25")
	assert.True(t, FitText("AAPL", "90.0", Rect{Width: 36, Height: 26}, opts).Show)
}

func TestFitTextMonotonic(t *testing.T) {
	opts := DefaultOptions()
	label := "Samsung Electronics"

	prev := 0.0
	for w := 30.0; w <= 400; w += 5 {
		txt := FitText(label, "80.0", Rect{Width: w, Height: 60}, opts)
		assert.GreaterOrEqual(t, txt.LabelFont, prev, "width %v", w)
		prev = txt.LabelFont
	}

	prev = 0.0
	for h := 20.0; h <= 200; h += 5 {
		txt := FitText(label, "80.0", Rect{Width: 300, Height: h}, opts)
		assert.GreaterOrEqual(t, txt.LabelFont, prev, "height %v", h)
		prev = txt.LabelFont
	}

	short := FitText("AB", "", Rect{Width: 60, Height: 60}, opts)
	long := FitText("ABCDEFGH", "", Rect{Width: 60, Height: 60}, opts)
	assert.GreaterOrEqual(t, short.LabelFont, long.LabelFont, "longer labels never get larger fonts")
}

func TestFitTextNeverOverflows(t *testing.T) {
	opts := DefaultOptions()

	for _, label := range []string{"A", "NVDA", "삼성바이오로직스", "Berkshire Hathaway Inc. Class B"} {
		for w := 36.0; w <= 300; w += 11 {
			for h := 26.0; h <= 120; h += 13 {
				txt := FitText(label, "99.9", Rect{Width: w, Height: h}, opts)
				if !txt.Show {
					continue
				}
				assert.GreaterOrEqual(t, txt.LabelFont, opts.FontFloor)
				assert.LessOrEqual(t, txt.LabelFont, opts.MaxLabelFont)
				assert.LessOrEqual(t, txt.LabelFont+txt.ScoreFont, h, "text taller than tile")
				if txt.Truncated {
					assert.True(t, strings.HasSuffix(txt.Label, ellipsis))
				}
			}
		}
	}
}

func TestFitTextTruncates(t *testing.T) {
	txt := FitText("Berkshire Hathaway Inc. Class B", "", Rect{Width: 60, Height: 60}, DefaultOptions())
	require.True(t, txt.Show)
	assert.True(t, txt.Truncated)
	assert.Equal(t, 8.0, txt.LabelFont)
	assert.True(t, strings.HasSuffix(txt.Label, ellipsis))
}
