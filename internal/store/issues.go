package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"peregrine/internal/issues"
)

// LoadIssueDefinitions reads the whole catalogue, active rows included so the
// detector can report what it dropped.
func (s *Store) LoadIssueDefinitions(ctx context.Context) ([]issues.Definition, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, code, name, category, severity, is_active FROM issue_definitions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []issues.Definition
	for rows.Next() {
		var d issues.Definition
		if err := rows.Scan(&d.ID, &d.Code, &d.Name, &d.Category, &d.Severity, &d.IsActive); err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// SeedIssueDefinitions inserts the built-in catalogue when the table is
// empty. Operator edits to an existing catalogue are never overwritten.
func (s *Store) SeedIssueDefinitions(ctx context.Context, defs []issues.Definition) (bool, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM issue_definitions`).Scan(&count); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO issue_definitions (id, code, name, category, severity, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	for _, d := range defs {
		if _, err := stmt.ExecContext(ctx, uuid.New(), d.Code, d.Name, d.Category, d.Severity, d.IsActive); err != nil {
			return false, err
		}
	}
	return true, tx.Commit()
}

// RecordPageIssue links a page to a per-job issue aggregate, creating the
// aggregate on first sight. The page_issues uniqueness constraint absorbs
// duplicates, and the aggregate count only moves when a new link was actually
// inserted, so retries never overcount.
func (s *Store) RecordPageIssue(ctx context.Context, crawlID, pageID uuid.UUID, definitionID string, details map[string]any) (bool, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var issueID uuid.UUID
	err = tx.QueryRowContext(ctx,
		`INSERT INTO crawl_issues (id, crawl_id, issue_definition_id, affected_pages_count)
		 VALUES ($1, $2, $3, 0)
		 ON CONFLICT (crawl_id, issue_definition_id) DO UPDATE
		   SET issue_definition_id = EXCLUDED.issue_definition_id
		 RETURNING id`,
		uuid.New(), crawlID, definitionID).Scan(&issueID)
	if err != nil {
		return false, err
	}

	var detailsJSON pqtype.NullRawMessage
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err == nil {
			detailsJSON = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO page_issues (id, page_id, crawl_issue_id, details)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (page_id, crawl_issue_id) DO NOTHING`,
		uuid.New(), pageID, issueID, detailsJSON)
	if err != nil {
		return false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if inserted > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE crawl_issues SET affected_pages_count = affected_pages_count + 1
			 WHERE id = $1`, issueID); err != nil {
			return false, err
		}
	}
	return inserted > 0, tx.Commit()
}

// SeverityCounts is the per-severity occurrence total of one crawl or one
// category within it.
type SeverityCounts struct {
	Errors   int
	Warnings int
	Notices  int
}

func (c *SeverityCounts) add(severity string, n int) {
	switch severity {
	case issues.SeverityError:
		c.Errors += n
	case issues.SeverityWarning:
		c.Warnings += n
	case issues.SeverityNotice:
		c.Notices += n
	}
}

// Total sums all severities.
func (c SeverityCounts) Total() int {
	return c.Errors + c.Warnings + c.Notices
}

// IssueCounts sums a crawl's issue occurrences by severity and by category.
func (s *Store) IssueCounts(ctx context.Context, crawlID uuid.UUID) (SeverityCounts, map[string]SeverityCounts, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT d.category, d.severity, COALESCE(sum(i.affected_pages_count), 0)
		 FROM crawl_issues i
		 JOIN issue_definitions d ON d.id = i.issue_definition_id
		 WHERE i.crawl_id = $1
		 GROUP BY d.category, d.severity`, crawlID)
	if err != nil {
		return SeverityCounts{}, nil, err
	}
	defer rows.Close()

	var total SeverityCounts
	byCategory := make(map[string]SeverityCounts)
	for rows.Next() {
		var category, severity string
		var n int
		if err := rows.Scan(&category, &severity, &n); err != nil {
			return SeverityCounts{}, nil, err
		}
		total.add(severity, n)
		counts := byCategory[category]
		counts.add(severity, n)
		byCategory[category] = counts
	}
	return total, byCategory, rows.Err()
}

// PagesWithIssues counts the distinct pages of a crawl that carry at least
// one issue.
func (s *Store) PagesWithIssues(ctx context.Context, crawlID uuid.UUID) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT count(DISTINCT pi.page_id)
		 FROM page_issues pi
		 JOIN crawl_issues ci ON ci.id = pi.crawl_issue_id
		 WHERE ci.crawl_id = $1`, crawlID).Scan(&count)
	return count, err
}

// IssueSummary is one aggregate row of a job's issue report.
type IssueSummary struct {
	Code               string
	Name               string
	Category           string
	Severity           string
	AffectedPagesCount int
}

// JobIssueSummaries lists a crawl's aggregates for the status API.
func (s *Store) JobIssueSummaries(ctx context.Context, crawlID uuid.UUID) ([]IssueSummary, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT d.code, d.name, d.category, d.severity, i.affected_pages_count
		 FROM crawl_issues i
		 JOIN issue_definitions d ON d.id = i.issue_definition_id
		 WHERE i.crawl_id = $1
		 ORDER BY i.affected_pages_count DESC, d.code ASC`, crawlID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []IssueSummary
	for rows.Next() {
		var is IssueSummary
		if err := rows.Scan(&is.Code, &is.Name, &is.Category, &is.Severity, &is.AffectedPagesCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, is)
	}
	return summaries, rows.Err()
}

// PerformanceAudit is one oracle result for a URL and strategy.
type PerformanceAudit struct {
	CrawlID          uuid.UUID
	URL              string
	Strategy         string
	PerformanceScore int
	LCPMs            *float64
	FCPMs            *float64
	CLS              *float64
	TBTMs            *float64
	SpeedIndexMs     *float64
	FieldData        json.RawMessage
	Opportunities    json.RawMessage
	Diagnostics      json.RawMessage
}

// InsertPerformanceAudit stores one oracle result.
func (s *Store) InsertPerformanceAudit(ctx context.Context, a PerformanceAudit) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO performance_audits (id, crawl_id, url, strategy, performance_score,
		   lcp_ms, fcp_ms, cls, tbt_ms, speed_index_ms, field_data, opportunities, diagnostics, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())`,
		uuid.New(), a.CrawlID, a.URL, a.Strategy, a.PerformanceScore,
		a.LCPMs, a.FCPMs, a.CLS, a.TBTMs, a.SpeedIndexMs,
		pqtype.NullRawMessage{RawMessage: a.FieldData, Valid: len(a.FieldData) > 0},
		pqtype.NullRawMessage{RawMessage: a.Opportunities, Valid: len(a.Opportunities) > 0},
		pqtype.NullRawMessage{RawMessage: a.Diagnostics, Valid: len(a.Diagnostics) > 0})
	return err
}
