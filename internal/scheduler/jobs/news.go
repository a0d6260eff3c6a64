package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/rsboard/internal/collector"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/pkg/logger"
)

// NewsCollectionJob refreshes the news documents of a set of markets
type NewsCollectionJob struct {
	collector *collector.NewsCollector
	markets   []model.Market
	schedule  string
	logger    *logger.Logger
}

// NewNewsCollectionJob creates a new news collection job
func NewNewsCollectionJob(c *collector.NewsCollector, markets []model.Market, schedule string, log *logger.Logger) *NewsCollectionJob {
	return &NewsCollectionJob{
		collector: c,
		markets:   markets,
		schedule:  schedule,
		logger:    log,
	}
}

// Name returns the job name
func (j *NewsCollectionJob) Name() string {
	return "news_collection"
}

// Schedule returns the cron schedule
func (j *NewsCollectionJob) Schedule() string {
	return j.schedule
}

// Run collects every market; a market failure fails the run so it is retried
func (j *NewsCollectionJob) Run(ctx context.Context) error {
	results, err := j.collector.CollectAll(ctx, j.markets)

	articles := 0
	for _, r := range results {
		articles += r.Articles
	}
	j.logger.WithFields(map[string]interface{}{
		"markets":  len(results),
		"articles": articles,
	}).Debug("News collection run finished")

	if err != nil {
		return fmt.Errorf("news collection: %w", err)
	}
	return nil
}
