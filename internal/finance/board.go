// Package finance shapes the global market summary into the finance board:
// treasury rows plus two indicator groups.
package finance

import (
	"fmt"
	"math"

	"github.com/wonny/rsboard/internal/model"
)

// Options controls the board layout
type Options struct {
	Maturities          []string // bond rows, in display order
	SplitAt             int      // items[:SplitAt] → group I, rest → group II
	VolatilityThreshold float64  // |change| >= threshold is volatile
}

// DefaultOptions returns the board settings used by the dashboard
func DefaultOptions() Options {
	return Options{
		Maturities:          model.DefaultMaturities,
		SplitAt:             7,
		VolatilityThreshold: 2,
	}
}

// BondRow is one maturity of the treasury curve
type BondRow struct {
	Maturity   string   `json:"maturity"`
	Value      *float64 `json:"value,omitempty"`
	ValueText  string   `json:"value_text"`
	Change     *float64 `json:"change,omitempty"`
	ChangeText string   `json:"change_text"`
	Link       string   `json:"link,omitempty"`
	Volatile   bool     `json:"volatile"`
}

// ItemRow is one indicator
type ItemRow struct {
	Name       string   `json:"name"`
	Price      *float64 `json:"price,omitempty"`
	PriceText  string   `json:"price_text"`
	Change     *float64 `json:"change,omitempty"`
	ChangeText string   `json:"change_text"`
	Link       string   `json:"link,omitempty"`
	Volatile   bool     `json:"volatile"`
}

// Board is the finance projection
type Board struct {
	Bonds      []BondRow `json:"bonds"`
	GroupI     []ItemRow `json:"group_i"`
	GroupII    []ItemRow `json:"group_ii"`
	UpdateTime string    `json:"update_time,omitempty"`
}

// Build projects a summary. Every configured maturity gets a row even when
// the summary lacks it.
func Build(s model.MarketSummary, opts Options) Board {
	b := Board{
		Bonds:      make([]BondRow, 0, len(opts.Maturities)),
		GroupI:     []ItemRow{},
		GroupII:    []ItemRow{},
		UpdateTime: s.UpdateTime,
	}

	for _, m := range opts.Maturities {
		p := s.Bonds[m]
		b.Bonds = append(b.Bonds, BondRow{
			Maturity:   m,
			Value:      p.Val,
			ValueText:  FormatNumber(p.Val),
			Change:     p.Chg,
			ChangeText: FormatChange(p.Chg),
			Link:       p.Link,
			Volatile:   Volatile(p.Chg, opts.VolatilityThreshold),
		})
	}

	split := opts.SplitAt
	if split < 0 {
		split = 0
	}
	for i, item := range s.Items {
		row := ItemRow{
			Name:       item.Name,
			Price:      item.Price,
			PriceText:  FormatNumber(item.Price),
			Change:     item.Change,
			ChangeText: FormatChange(item.Change),
			Link:       item.Link,
			Volatile:   Volatile(item.Change, opts.VolatilityThreshold),
		}
		if i < split {
			b.GroupI = append(b.GroupI, row)
		} else {
			b.GroupII = append(b.GroupII, row)
		}
	}

	return b
}

// FormatChange renders a signed percentage: +1.23%, -0.50%, 0.00%
func FormatChange(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return "-"
	}
	if *v > 0 {
		return fmt.Sprintf("+%.2f%%", *v)
	}
	return fmt.Sprintf("%.2f%%", *v)
}

// FormatNumber renders a price or yield with two decimals
func FormatNumber(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

// Volatile reports |change| >= threshold
func Volatile(change *float64, threshold float64) bool {
	return change != nil && math.Abs(*change) >= threshold
}
