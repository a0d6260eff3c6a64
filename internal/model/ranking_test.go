package model

import (
	"math"
	"testing"
)

func f(v float64) *float64 { return &v }

func TestSortByRSAvg(t *testing.T) {
	in := []StockRank{
		{Code: "A", RSAvg: f(70)},
		{Code: "B"},
		{Code: "C", RSAvg: f(90)},
		{Code: "D", RSAvg: f(70)},
	}

	out := SortByRSAvg(in)

	want := []string{"C", "A", "D", "B"}
	for i, code := range want {
		if out[i].Code != code {
			t.Errorf("position %d: expected %s, got %s", i, code, out[i].Code)
		}
	}

	// input untouched
	if in[0].Code != "A" || in[1].Code != "B" {
		t.Error("Expected input slice to be unchanged")
	}
}

func TestWeight(t *testing.T) {
	tests := []struct {
		name string
		avg  *float64
		want float64
	}{
		{"absent", nil, 0},
		{"negative", f(-3), 0},
		{"nan", f(math.NaN()), 0},
		{"inf", f(math.Inf(1)), 0},
		{"positive", f(42.5), 42.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StockRank{RSAvg: tt.avg}.Weight()
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPeriodsOrder(t *testing.T) {
	ps := Periods()
	if len(ps) != 5 {
		t.Fatalf("Expected 5 periods, got %d", len(ps))
	}

	names := []string{"180D", "90D", "60D", "30D", "10D"}
	for i, p := range ps {
		if p.Name != names[i] {
			t.Errorf("Expected %s at %d, got %s", names[i], i, p.Name)
		}
		if (StockRank{RS10: f(1), RS30: f(1), RS60: f(1), RS90: f(1), RS180: f(1)}).Score(p.Field) == nil {
			t.Errorf("Expected field %s to map to a score", p.Field)
		}
	}
}

func TestParseMarket(t *testing.T) {
	for in, want := range map[string]Market{"kr": MarketKR, "KOREA": MarketKR, " us ": MarketUS, "USA": MarketUS} {
		got, err := ParseMarket(in)
		if err != nil || got != want {
			t.Errorf("ParseMarket(%q) = %v, %v; expected %v", in, got, err, want)
		}
	}

	if _, err := ParseMarket("FINANCE"); err == nil {
		t.Error("Expected error for FINANCE")
	}
}

func TestTopicKey(t *testing.T) {
	if TopicRankingsUS.Key() != "us_latest" {
		t.Errorf("Expected us_latest, got %s", TopicRankingsUS.Key())
	}
	if RankingsTopic(MarketKR) != TopicRankingsKR || NewsTopic(MarketUS) != TopicNewsUS {
		t.Error("Expected market topic lookups to match the topic table")
	}
}
