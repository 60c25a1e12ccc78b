package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/tscore/backend/pkg/logger"
)

// Pruner deletes stored rows older than a cutoff
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob prunes old cycles and quality snapshots
type RetentionJob struct {
	schedule  string
	retention time.Duration
	pruners   map[string]Pruner
	logger    *logger.Logger
	clock     func() time.Time
}

// NewRetentionJob creates a new retention job; pruners are keyed by table label
func NewRetentionJob(schedule string, retention time.Duration, pruners map[string]Pruner, log *logger.Logger) *RetentionJob {
	if log == nil {
		log = logger.Nop()
	}
	return &RetentionJob{
		schedule:  schedule,
		retention: retention,
		pruners:   pruners,
		logger:    log,
		clock:     time.Now,
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "retention"
}

// Schedule returns the cron schedule (weekly by default)
func (j *RetentionJob) Schedule() string {
	return j.schedule
}

// Run executes the cleanup; every pruner runs even if an earlier one fails
func (j *RetentionJob) Run(ctx context.Context) error {
	cutoff := j.clock().UTC().Add(-j.retention)
	j.logger.WithField("cutoff", cutoff.Format(time.RFC3339)).Debug("Starting retention cleanup")

	var firstErr error
	for name, p := range j.pruners {
		removed, err := p.PruneBefore(ctx, cutoff)
		if err != nil {
			j.logger.WithError(err).WithField("table", name).Warn("Retention prune failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("prune %s: %w", name, err)
			}
			continue
		}
		if removed > 0 {
			j.logger.WithFields(map[string]interface{}{
				"table":   name,
				"removed": removed,
			}).Info("Retention cleanup completed")
		}
	}

	return firstErr
}
