package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/pkg/logger"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(logger.NewNop())
	assert.Equal(t, State{Market: MarketFinance}, m.State())
}

func TestSelectMarketResetsSubview(t *testing.T) {
	m := NewMachine(logger.NewNop())

	assert.True(t, m.SelectMarket(MarketKR))
	assert.True(t, m.SelectSubview(SubViewRankGraph))
	assert.Equal(t, State{Market: MarketKR, SubView: SubViewRankGraph}, m.State())

	assert.True(t, m.SelectMarket(MarketUS))
	assert.Equal(t, State{Market: MarketUS, SubView: SubViewNews}, m.State())

	m.SelectSubview(SubViewRankTable)
	assert.True(t, m.SelectMarket(MarketUS), "reselecting the same market still resets to NEWS")
	assert.Equal(t, SubViewNews, m.State().SubView)

	assert.True(t, m.SelectMarket(MarketFinance))
	assert.Equal(t, State{Market: MarketFinance}, m.State())
}

func TestInvalidTransitionsAreNoOps(t *testing.T) {
	m := NewMachine(logger.NewNop())

	assert.False(t, m.SelectSubview(SubViewRankTable), "no sub-view under FINANCE")
	assert.Equal(t, Initial, m.State())

	assert.False(t, m.SelectMarket(Market("JP")))
	assert.Equal(t, Initial, m.State())

	m.SelectMarket(MarketKR)
	assert.False(t, m.SelectSubview(SubView("CHART")))
	assert.False(t, m.SelectSubview(SubViewNews), "already on NEWS")
	assert.Equal(t, State{Market: MarketKR, SubView: SubViewNews}, m.State())
}

func TestParse(t *testing.T) {
	mk, err := ParseMarket("finance")
	require.NoError(t, err)
	assert.Equal(t, MarketFinance, mk)

	_, err = ParseMarket("jp")
	assert.ErrorIs(t, err, ErrInvalidMarket)

	v, err := ParseSubView("rank_graph")
	require.NoError(t, err)
	assert.Equal(t, SubViewRankGraph, v)

	_, err = ParseSubView("graph")
	assert.ErrorIs(t, err, ErrInvalidSubView)
}

func TestActiveFor(t *testing.T) {
	tests := []struct {
		state State
		proj  []Projection
		topic model.Topic
	}{
		{Initial, []Projection{ProjectionFinance}, model.TopicFinance},
		{State{MarketKR, SubViewNews}, []Projection{ProjectionNews}, model.TopicNewsKR},
		{State{MarketUS, SubViewRankTable}, []Projection{ProjectionHeatmap, ProjectionTable}, model.TopicRankingsUS},
		{State{MarketKR, SubViewRankGraph}, []Projection{ProjectionMomentum}, model.TopicRankingsKR},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			a := ActiveFor(tt.state)
			assert.Equal(t, tt.proj, a.Projections)
			assert.True(t, a.Reads(tt.topic))
			assert.Len(t, a.Topics, 1)
		})
	}
}
