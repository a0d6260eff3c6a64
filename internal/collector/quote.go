package collector

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
)

// ErrNoQuote is returned when a chart has fewer than two usable closes
var ErrNoQuote = errors.New("not enough closes for a quote")

// Quote is the latest close against the one before it
type Quote struct {
	Symbol string
	Last   float64
	Prev   float64
}

// ChangePct returns the signed percentage change from Prev to Last
func (q Quote) ChangePct() float64 {
	if q.Prev == 0 {
		return 0
	}
	return (q.Last - q.Prev) / q.Prev * 100
}

// chartResponse is the subset of the chart API payload we read
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol string `json:"symbol"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// ChartURL builds the daily chart URL of symbol: {base}/{symbol}?range=..&interval=1d
func ChartURL(base, symbol, rng string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/" + url.PathEscape(symbol))
	if err != nil {
		return "", fmt.Errorf("invalid chart base URL: %w", err)
	}

	q := u.Query()
	q.Set("range", rng)
	q.Set("interval", "1d")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseChart extracts the last two non-null closes.
// null and non-finite closes (holidays, halted sessions) are skipped.
func parseChart(symbol string, body []byte) (Quote, error) {
	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Quote{}, fmt.Errorf("parse chart %s: %w", symbol, err)
	}
	if e := resp.Chart.Error; e != nil {
		return Quote{}, fmt.Errorf("chart %s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return Quote{}, fmt.Errorf("%w: %s has no chart", ErrNoQuote, symbol)
	}

	closes := make([]float64, 0, 16)
	for _, c := range resp.Chart.Result[0].Indicators.Quote[0].Close {
		if c == nil || math.IsNaN(*c) || math.IsInf(*c, 0) {
			continue
		}
		closes = append(closes, *c)
	}
	if len(closes) < 2 {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoQuote, symbol)
	}

	return Quote{
		Symbol: symbol,
		Last:   closes[len(closes)-1],
		Prev:   closes[len(closes)-2],
	}, nil
}

// roundTo rounds v to n decimals
func roundTo(v float64, n int) float64 {
	p := math.Pow(10, float64(n))
	return math.Round(v*p) / p
}
