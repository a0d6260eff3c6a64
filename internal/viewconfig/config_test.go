package viewconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsboard/internal/model"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, model.LabelName, cfg.LabelFor(model.MarketKR))
	assert.Equal(t, model.LabelCode, cfg.LabelFor(model.MarketUS))
	assert.Equal(t, 70.0, cfg.Heatmap.Threshold)
	assert.Equal(t, 35.0, cfg.Heatmap.MinWidth)
	assert.Equal(t, 25.0, cfg.Heatmap.MinHeight)
	assert.Equal(t, []string{"2Y", "10Y", "30Y"}, cfg.Finance.Maturities)
}

func TestParseMergesOverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
heatmap:
  threshold: 75
  min_width: 40
finance:
  maturities: [5Y, 10Y, 30Y]
`))
	require.NoError(t, err)

	assert.Equal(t, 75.0, cfg.Heatmap.Threshold)
	assert.Equal(t, 40.0, cfg.Heatmap.MinWidth)
	assert.Equal(t, 25.0, cfg.Heatmap.MinHeight, "unspecified fields keep defaults")
	assert.Equal(t, []string{"5Y", "10Y", "30Y"}, cfg.FinanceOptions().Maturities)
	assert.Equal(t, []string{"5Y", "10Y", "30Y"}, cfg.Decoder().Maturities())
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("heatmap:\n  treshold: 70\n"))
	assert.Error(t, err)
}

func TestMomentumThresholdIsNotConfigurable(t *testing.T) {
	_, err := Parse([]byte("momentum:\n  threshold: 60\n"))
	assert.Error(t, err)
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, Default().Heatmap, cfg.Heatmap)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad label", func(c *Config) { c.Markets[model.MarketUS] = MarketConfig{Label: "ticker"} }, "markets.US.label"},
		{"missing market", func(c *Config) { delete(c.Markets, model.MarketKR) }, "markets.KR"},
		{"unknown market", func(c *Config) { c.Markets["JP"] = MarketConfig{Label: model.LabelCode} }, "markets.JP"},
		{"threshold range", func(c *Config) { c.Heatmap.Threshold = 120 }, "heatmap.threshold"},
		{"aspect", func(c *Config) { c.Heatmap.AspectRatio = 0 }, "heatmap.aspect_ratio"},
		{"font floor", func(c *Config) { c.Heatmap.FontFloor = 20 }, "heatmap.max_label_font/max_score_font"},
		{"news rule", func(c *Config) { c.News.Separator = "" }, "news"},
		{"maturity", func(c *Config) { c.Finance.Maturities = []string{"10"} }, "finance.maturities"},
		{"duplicate maturity", func(c *Config) { c.Finance.Maturities = []string{"10Y", "10Y"} }, "finance.maturities"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestHeatmapOptions(t *testing.T) {
	cfg := Default()

	opts := cfg.HeatmapOptions(model.MarketUS, 0, 0)
	assert.Equal(t, model.LabelCode, opts.Label)
	assert.Equal(t, 1020.0, opts.Width)

	opts = cfg.HeatmapOptions(model.MarketKR, 400, 300)
	assert.Equal(t, model.LabelName, opts.Label)
	assert.Equal(t, 400.0, opts.Width)
	assert.Equal(t, 300.0, opts.Height)
}

func TestLoadFileAndHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "view.yaml")
	require.NoError(t, os.WriteFile(path, []byte("heatmap:\n  threshold: 80\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 80.0, cfg.Heatmap.Threshold)

	h1, err := Hash(cfg)
	require.NoError(t, err)
	h2, err := Hash(Default())
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.Len(t, h1, 64)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
