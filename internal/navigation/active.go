package navigation

import "github.com/wonny/rsboard/internal/model"

// Projection is a derived view the presentation layer draws
type Projection string

const (
	ProjectionFinance  Projection = "finance"
	ProjectionNews     Projection = "news"
	ProjectionHeatmap  Projection = "heatmap"
	ProjectionTable    Projection = "table"
	ProjectionMomentum Projection = "momentum"
)

// Active describes what is live for a state
type Active struct {
	Market      model.Market  `json:"market,omitempty"`
	Projections []Projection  `json:"projections"`
	Topics      []model.Topic `json:"topics"`
}

// ActiveFor lists the projections gated on by s and the topics they read.
// Navigation never opens or closes subscriptions; this only selects what to
// compute.
func ActiveFor(s State) Active {
	market, ok := s.Market.Stock()
	if !ok {
		return Active{
			Projections: []Projection{ProjectionFinance},
			Topics:      []model.Topic{model.TopicFinance},
		}
	}

	switch s.SubView {
	case SubViewRankTable:
		return Active{
			Market:      market,
			Projections: []Projection{ProjectionHeatmap, ProjectionTable},
			Topics:      []model.Topic{model.RankingsTopic(market)},
		}
	case SubViewRankGraph:
		return Active{
			Market:      market,
			Projections: []Projection{ProjectionMomentum},
			Topics:      []model.Topic{model.RankingsTopic(market)},
		}
	default:
		return Active{
			Market:      market,
			Projections: []Projection{ProjectionNews},
			Topics:      []model.Topic{model.NewsTopic(market)},
		}
	}
}

// Reads reports whether state s depends on topic
func (a Active) Reads(topic model.Topic) bool {
	for _, t := range a.Topics {
		if t == topic {
			return true
		}
	}
	return false
}
