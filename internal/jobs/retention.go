package jobs

import (
	"context"
	"time"

	"peregrine/internal/config"
	"peregrine/internal/metrics"
	"peregrine/internal/store"
)

// RetentionStats captures the number of jobs deleted by TTL cleanup, keyed
// by terminal status. Crawled pages and issues go with their job via FK
// cascade, so only jobs are counted.
type RetentionStats struct {
	JobsDeleted map[string]int64 `json:"jobsDeleted"`
}

// CleanupExpiredData deletes old terminal jobs based on retention settings
// so that the database does not grow without bound.
func CleanupExpiredData(ctx context.Context, cfg *config.Config, st *store.Store) RetentionStats {
	stats := RetentionStats{JobsDeleted: make(map[string]int64)}

	jobTTL := cfg.Retention.Jobs

	applyJobTTL := func(status Status, days int) {
		if days <= 0 {
			return
		}
		age := time.Duration(days) * 24 * time.Hour
		if n, err := st.DeleteJobsOlderThan(ctx, string(status), age); err == nil && n > 0 {
			stats.JobsDeleted[string(status)] += n
			metrics.RecordRetentionJobs(string(status), n)
		}
	}

	// Helper to compute effective TTL for each terminal status.
	effectiveDays := func(specific int) int {
		if specific > 0 {
			return specific
		}
		return jobTTL.DefaultDays
	}

	applyJobTTL(StatusCompleted, effectiveDays(jobTTL.CompletedDays))
	applyJobTTL(StatusFailed, effectiveDays(jobTTL.FailedDays))
	applyJobTTL(StatusCancelled, effectiveDays(jobTTL.CancelledDays))

	return stats
}
