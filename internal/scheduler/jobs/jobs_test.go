package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsboard/internal/collector"
	"github.com/wonny/rsboard/internal/docstore/memstore"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/pkg/config"
	"github.com/wonny/rsboard/pkg/logger"
)

func TestNewsCollectionJobFailsWithoutRankings(t *testing.T) {
	store := memstore.New()
	defer store.Close()

	cfg := config.NewsConfig{
		BaseURL:           "http://127.0.0.1:0/rss/search",
		MaxArticles:       20,
		RequestsPerSecond: 100,
		Timeout:           time.Second,
	}
	log := logger.NewNop()
	col := collector.NewNewsCollector(collector.NewFetcher(cfg, nil, log), store, model.NewDecoder(nil), nil, cfg, log)

	job := NewNewsCollectionJob(col, []model.Market{model.MarketKR}, "0 */10 * * * *", log)
	assert.Equal(t, "news_collection", job.Name())
	assert.Equal(t, "0 */10 * * * *", job.Schedule())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, collector.ErrNoRankings)
}

func TestFinanceCollectionJobPublishes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chart/^TNX" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"chart":{"result":[{"indicators":{"quote":[{"close":[4.0,4.1]}]}}],"error":null}`))
	}))
	defer srv.Close()

	store := memstore.New()
	defer store.Close()

	cfg := config.FinanceConfig{
		BaseURL:           srv.URL + "/chart",
		Range:             "10d",
		RequestsPerSecond: 1000,
		Timeout:           time.Second,
	}
	log := logger.NewNop()
	col := collector.NewFinanceCollector(collector.NewFinanceFetcher(cfg, nil, log).DisableRetry(), store, cfg, log)

	job := NewFinanceCollectionJob(col, "0 */10 * * * *", log)
	assert.Equal(t, "finance_collection", job.Name())
	require.NoError(t, job.Run(context.Background()))

	doc, err := store.Get(context.Background(), model.TopicFinance)
	require.NoError(t, err)
	assert.True(t, doc.Exists)
}

func TestFinanceCollectionJobFailsWhenNothingQuoted(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	store := memstore.New()
	defer store.Close()

	cfg := config.FinanceConfig{BaseURL: srv.URL, Range: "10d", RequestsPerSecond: 1000, Timeout: time.Second}
	log := logger.NewNop()
	col := collector.NewFinanceCollector(collector.NewFinanceFetcher(cfg, nil, log).DisableRetry(), store, cfg, log)

	err := NewFinanceCollectionJob(col, "@every 10m", log).Run(context.Background())
	assert.ErrorIs(t, err, collector.ErrNoQuotes)
}
