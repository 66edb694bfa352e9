package http

import (
	"encoding/json"
	"time"
)

// ErrorResponse is the error envelope for every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
}

// JobItem is the list-view projection of a crawl job.
type JobItem struct {
	ID                 string     `json:"id"`
	ProjectID          string     `json:"projectId"`
	Domain             string     `json:"domain"`
	Status             string     `json:"status"`
	ProgressPercentage int        `json:"progressPercentage"`
	PagesCrawled       int        `json:"pagesCrawled"`
	PagesFailed        int        `json:"pagesFailed"`
	PagesDiscovered    int        `json:"pagesDiscovered"`
	HealthScore        *int       `json:"healthScore,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
}

// IssueSummaryItem is one catalogue entry's aggregate for a job.
type IssueSummaryItem struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	Severity      string `json:"severity"`
	AffectedPages int    `json:"affectedPages"`
}

// JobDetailItem extends JobItem with counters, scores, and the per-issue
// breakdown.
type JobDetailItem struct {
	JobItem
	CurrentURL      string             `json:"currentUrl,omitempty"`
	ErrorMessage    string             `json:"errorMessage,omitempty"`
	TotalIssues     int                `json:"totalIssues"`
	ErrorsCount     int                `json:"errorsCount"`
	WarningsCount   int                `json:"warningsCount"`
	NoticesCount    int                `json:"noticesCount"`
	PassedCount     int                `json:"passedCount"`
	CategoryScores  json.RawMessage    `json:"categoryScores,omitempty"`
	ResumedFrom     string             `json:"resumedFrom,omitempty"`
	DurationSeconds *int               `json:"durationSeconds,omitempty"`
	Issues          []IssueSummaryItem `json:"issues"`
}

type ListJobsResponse struct {
	Success bool      `json:"success"`
	Jobs    []JobItem `json:"jobs"`
}

type JobDetailResponse struct {
	Success bool           `json:"success"`
	Job     *JobDetailItem `json:"job,omitempty"`
}

// EnqueueJobRequest creates an ad-hoc audit for a project. Settings are
// optional; absent fields fall back to the project's stored settings, then to
// worker defaults.
type EnqueueJobRequest struct {
	ProjectID string          `json:"projectId"`
	Settings  json.RawMessage `json:"settings,omitempty"`
}

type EnqueueJobResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Status  string `json:"status,omitempty"`
}

type CancelJobResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Status  string `json:"status,omitempty"`
}
