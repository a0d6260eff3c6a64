package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/rsboard/internal/collector"
	"github.com/wonny/rsboard/pkg/logger"
)

// FinanceCollectionJob refreshes the finance summary document
type FinanceCollectionJob struct {
	collector *collector.FinanceCollector
	schedule  string
	logger    *logger.Logger
}

// NewFinanceCollectionJob creates a new finance collection job
func NewFinanceCollectionJob(c *collector.FinanceCollector, schedule string, log *logger.Logger) *FinanceCollectionJob {
	return &FinanceCollectionJob{
		collector: c,
		schedule:  schedule,
		logger:    log,
	}
}

// Name returns the job name
func (j *FinanceCollectionJob) Name() string {
	return "finance_collection"
}

// Schedule returns the cron schedule
func (j *FinanceCollectionJob) Schedule() string {
	return j.schedule
}

// Run quotes every instrument once; an empty run fails so it is retried
func (j *FinanceCollectionJob) Run(ctx context.Context) error {
	res, err := j.collector.Collect(ctx)

	j.logger.WithFields(map[string]interface{}{
		"bonds":  res.Bonds,
		"items":  res.Items,
		"failed": res.Failed,
	}).Debug("Finance collection run finished")

	if err != nil {
		return fmt.Errorf("finance collection: %w", err)
	}
	return nil
}
