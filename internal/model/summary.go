package model

// MarketSummaryItem is one macro indicator row
type MarketSummaryItem struct {
	Name   string   `json:"name"`
	Price  *float64 `json:"price,omitempty"`
	Change *float64 `json:"change,omitempty"` // signed percentage
	Link   string   `json:"Link,omitempty"`
}

// BondPoint is one treasury maturity reading
type BondPoint struct {
	Val  *float64 `json:"val,omitempty"`
	Chg  *float64 `json:"chg,omitempty"`
	Link string   `json:"link,omitempty"`
}

// MarketSummary is the global macro summary document
type MarketSummary struct {
	Bonds      map[string]BondPoint `json:"bonds"`
	Items      []MarketSummaryItem  `json:"items"`
	UpdateTime string               `json:"update_time,omitempty"`
}

// Empty reports whether the summary carries neither bonds nor items
func (s MarketSummary) Empty() bool {
	return len(s.Bonds) == 0 && len(s.Items) == 0
}
