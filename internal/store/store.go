package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sqlc-dev/pqtype"
)

// Store wraps access to the job database.
type Store struct {
	DB *sql.DB
}

// New creates a Store on a shared *sql.DB with pooling.
func New(database *sql.DB) *Store {
	return &Store{DB: database}
}

// Open connects to Postgres via the pgx stdlib driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("DB_OPEN: %w", err)
	}
	database.SetMaxOpenConns(10)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("DB_PING: %w", err)
	}
	return database, nil
}

// Project is one audited site.
type Project struct {
	ID            uuid.UUID
	Domain        string
	CrawlSettings pqtype.NullRawMessage
	CreatedAt     time.Time
}

// Job mirrors a crawl_jobs row joined with its project domain.
type Job struct {
	ID                 uuid.UUID
	ProjectID          uuid.UUID
	Domain             string
	Status             string
	ErrorMessage       sql.NullString
	CurrentURL         sql.NullString
	PagesCrawled       int
	PagesFailed        int
	PagesDiscovered    int
	ProgressPercentage int
	HealthScore        sql.NullInt32
	TotalIssues        int
	ErrorsCount        int
	WarningsCount      int
	NoticesCount       int
	PassedCount        int
	CategoryScores     pqtype.NullRawMessage
	SettingsSnapshot   pqtype.NullRawMessage
	ResumedFrom        uuid.NullUUID
	DurationSeconds    sql.NullInt32
	CreatedAt          time.Time
	StartedAt          sql.NullTime
	CompletedAt        sql.NullTime
}

const jobColumns = `j.id, j.project_id, p.domain, j.status, j.error_message,
	j.current_url, j.pages_crawled, j.pages_failed, j.pages_discovered,
	j.progress_percentage, j.health_score, j.total_issues, j.errors_count,
	j.warnings_count, j.notices_count, j.passed_count, j.category_scores,
	j.settings_snapshot, j.resumed_from, j.duration_seconds, j.created_at,
	j.started_at, j.completed_at`

const jobFrom = ` FROM crawl_jobs j JOIN projects p ON p.id = j.project_id `

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.ProjectID, &j.Domain, &j.Status, &j.ErrorMessage,
		&j.CurrentURL, &j.PagesCrawled, &j.PagesFailed, &j.PagesDiscovered,
		&j.ProgressPercentage, &j.HealthScore, &j.TotalIssues, &j.ErrorsCount,
		&j.WarningsCount, &j.NoticesCount, &j.PassedCount, &j.CategoryScores,
		&j.SettingsSnapshot, &j.ResumedFrom, &j.DurationSeconds, &j.CreatedAt,
		&j.StartedAt, &j.CompletedAt)
	return j, err
}

// GetProject fetches one project row.
func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (Project, error) {
	var p Project
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, domain, crawl_settings, created_at FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.Domain, &p.CrawlSettings, &p.CreatedAt)
	return p, err
}

// CreateJob inserts a pending crawl job with its settings snapshot.
func (s *Store) CreateJob(ctx context.Context, projectID uuid.UUID, settings any, resumedFrom uuid.NullUUID) (uuid.UUID, error) {
	snapshot, err := json.Marshal(settings)
	if err != nil {
		return uuid.Nil, fmt.Errorf("JOB_SETTINGS_ENCODE: %w", err)
	}

	id := uuid.New()
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO crawl_jobs (id, project_id, status, settings_snapshot, resumed_from, created_at)
		 VALUES ($1, $2, 'pending', $3, $4, now())`,
		id, projectID, snapshot, resumedFrom)
	return id, err
}

// GetJob fetches one job with its project domain.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (Job, error) {
	return scanJob(s.DB.QueryRowContext(ctx,
		`SELECT `+jobColumns+jobFrom+`WHERE j.id = $1`, id))
}

// GetJobStatus reads only the status column.
func (s *Store) GetJobStatus(ctx context.Context, id uuid.UUID) (string, error) {
	var status string
	err := s.DB.QueryRowContext(ctx,
		`SELECT status FROM crawl_jobs WHERE id = $1`, id).Scan(&status)
	return status, err
}

// ListJobs returns the most recent jobs, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, status string, limit int) ([]Job, error) {
	query := `SELECT ` + jobColumns + jobFrom
	args := []any{limit}
	if status != "" {
		query += `WHERE j.status = $2 `
		args = append(args, status)
	}
	query += `ORDER BY j.created_at DESC LIMIT $1`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// OldestPendingJob returns the next job to run, or sql.ErrNoRows.
func (s *Store) OldestPendingJob(ctx context.Context) (Job, error) {
	return scanJob(s.DB.QueryRowContext(ctx,
		`SELECT `+jobColumns+jobFrom+
			`WHERE j.status = 'pending' ORDER BY j.created_at ASC LIMIT 1`))
}

// MarkJobProcessing claims a pending job. Returns false when another worker
// got there first.
func (s *Store) MarkJobProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE crawl_jobs SET status = 'processing', started_at = now(), error_message = NULL
		 WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkJobTerminal writes a terminal status. The predicate on the current
// status makes the terminal write happen at most once: an external cancel or
// user-completed flip wins over the worker's own finalization.
func (s *Store) MarkJobTerminal(ctx context.Context, id uuid.UUID, status string, errMsg *string) error {
	var msg sql.NullString
	if errMsg != nil {
		msg = sql.NullString{String: *errMsg, Valid: true}
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE crawl_jobs SET status = $2, error_message = $3, completed_at = now(),
		   duration_seconds = EXTRACT(EPOCH FROM (now() - started_at))::int
		 WHERE id = $1 AND status = 'processing'`, id, status, msg)
	return err
}

// CancelJob flips a pending or processing job to cancelled. The status
// trigger notifies the worker, which stops the crawl cooperatively. Returns
// false when the job is already terminal or does not exist.
func (s *Store) CancelJob(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE crawl_jobs SET status = 'cancelled', completed_at = now(),
		   duration_seconds = CASE WHEN started_at IS NOT NULL
		     THEN EXTRACT(EPOCH FROM (now() - started_at))::int END
		 WHERE id = $1 AND status IN ('pending', 'processing')`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateJobProgress writes the in-flight counters and current URL.
func (s *Store) UpdateJobProgress(ctx context.Context, id uuid.UUID, crawled, failed, discovered, progress int, currentURL string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE crawl_jobs SET pages_crawled = $2, pages_failed = $3,
		   pages_discovered = $4, progress_percentage = $5, current_url = $6
		 WHERE id = $1`, id, crawled, failed, discovered, progress, currentURL)
	return err
}

// FinalizeJobCounters writes the post-crawl aggregates. It deliberately does
// not touch the status column.
func (s *Store) FinalizeJobCounters(ctx context.Context, id uuid.UUID, health, total, errors, warnings, notices, passed int, categoryScores json.RawMessage) error {
	scores := pqtype.NullRawMessage{RawMessage: categoryScores, Valid: len(categoryScores) > 0}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE crawl_jobs SET health_score = $2, total_issues = $3, errors_count = $4,
		   warnings_count = $5, notices_count = $6, passed_count = $7, category_scores = $8
		 WHERE id = $1`, id, health, total, errors, warnings, notices, passed, scores)
	return err
}

// RecoverStaleJobs flips processing jobs whose worker died back to pending.
func (s *Store) RecoverStaleJobs(ctx context.Context, olderThan time.Duration, message string) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE crawl_jobs SET status = 'pending', error_message = $2, started_at = NULL
		 WHERE status = 'processing' AND started_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())), message)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResumeCandidates returns recently failed jobs worth resuming: failed within
// the window, crawled more than minPages, not themselves a resume, and with
// no pending or processing job on the same project.
func (s *Store) ResumeCandidates(ctx context.Context, window time.Duration, minPages, limit int) ([]Job, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+jobColumns+jobFrom+`
		 WHERE j.status = 'failed'
		   AND j.completed_at > now() - $1::interval
		   AND j.pages_crawled > $2
		   AND j.resumed_from IS NULL
		   AND NOT EXISTS (
		     SELECT 1 FROM crawl_jobs a
		     WHERE a.project_id = j.project_id AND a.status IN ('pending', 'processing'))
		 ORDER BY j.completed_at DESC LIMIT $3`,
		fmt.Sprintf("%d seconds", int(window.Seconds())), minPages, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// HasActiveJob reports whether a project already has a pending or processing
// job.
func (s *Store) HasActiveJob(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM crawl_jobs
		 WHERE project_id = $1 AND status IN ('pending', 'processing'))`, projectID).
		Scan(&exists)
	return exists, err
}

// DeleteJobsOlderThan removes terminal jobs past their retention age. Pages
// and issues go with them via FK cascade.
func (s *Store) DeleteJobsOlderThan(ctx context.Context, status string, age time.Duration) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM crawl_jobs WHERE status = $1 AND completed_at < now() - $2::interval`,
		status, fmt.Sprintf("%d seconds", int(age.Seconds())))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
