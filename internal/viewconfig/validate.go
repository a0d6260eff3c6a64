package viewconfig

import (
	"fmt"
	"math"
	"regexp"

	"github.com/wonny/rsboard/internal/model"
)

// ValidationError 검증 실패 (시작 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var maturityPattern = regexp.MustCompile(`^[1-9][0-9]*[MY]$`)

// Validate checks every table at startup
func Validate(cfg *Config) error {
	// === Markets ===
	for _, m := range model.Markets {
		mc, ok := cfg.Markets[m]
		if !ok {
			return ValidationError{fmt.Sprintf("markets.%s", m), "required"}
		}
		if !mc.Label.Valid() {
			return ValidationError{fmt.Sprintf("markets.%s.label", m), "must be name or code"}
		}
	}
	for m := range cfg.Markets {
		if m != model.MarketKR && m != model.MarketUS {
			return ValidationError{fmt.Sprintf("markets.%s", m), "unknown market"}
		}
	}

	// === Heatmap ===
	h := cfg.Heatmap
	if err := scoreThreshold("heatmap.threshold", h.Threshold); err != nil {
		return err
	}
	if !(h.AspectRatio > 0) || math.IsInf(h.AspectRatio, 0) {
		return ValidationError{"heatmap.aspect_ratio", "must be > 0"}
	}
	if h.Width <= 0 || h.Height <= 0 {
		return ValidationError{"heatmap.width/height", "must be > 0"}
	}
	if h.MinWidth < 0 || h.MinHeight < 0 {
		return ValidationError{"heatmap.min_width/min_height", "must be >= 0"}
	}
	if h.FontFloor <= 0 {
		return ValidationError{"heatmap.font_floor", "must be > 0"}
	}
	if h.MaxLabelFont < h.FontFloor || h.MaxScoreFont < h.FontFloor {
		return ValidationError{"heatmap.max_label_font/max_score_font", "must be >= font_floor"}
	}
	if h.HighColor == "" || h.LowColor == "" {
		return ValidationError{"heatmap.high_color/low_color", "required"}
	}

	// === News ===
	if err := cfg.News.Validate(); err != nil {
		return ValidationError{"news", err.Error()}
	}

	// === Finance ===
	if len(cfg.Finance.Maturities) == 0 {
		return ValidationError{"finance.maturities", "required"}
	}
	seen := make(map[string]bool, len(cfg.Finance.Maturities))
	for _, m := range cfg.Finance.Maturities {
		if !maturityPattern.MatchString(m) {
			return ValidationError{"finance.maturities", fmt.Sprintf("invalid maturity %q", m)}
		}
		if seen[m] {
			return ValidationError{"finance.maturities", fmt.Sprintf("duplicate maturity %q", m)}
		}
		seen[m] = true
	}
	if cfg.Finance.SplitAt < 0 {
		return ValidationError{"finance.split_at", "must be >= 0"}
	}
	if cfg.Finance.VolatilityThreshold <= 0 {
		return ValidationError{"finance.volatility_threshold", "must be > 0"}
	}

	return nil
}

func scoreThreshold(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return ValidationError{field, "must be in [0, 100]"}
	}
	return nil
}
