package metrics

import (
	"strings"
	"testing"
)

func TestRecordRequestAndExport(t *testing.T) {
	// Record a single request and ensure it appears in the export.
	RecordRequest("GET", "/v1/jobs", 200, 42)

	out := Export()
	if !strings.Contains(out, "peregrine_http_requests_total{method=\"GET\",path=\"/v1/jobs\",status=\"200\"}") {
		t.Fatalf("expected HTTP request metric for GET /v1/jobs in export, got:\n%s", out)
	}
	if !strings.Contains(out, "peregrine_http_request_duration_ms_sum") || !strings.Contains(out, "peregrine_http_request_duration_ms_count") {
		t.Fatalf("expected latency metrics headers in export, got:\n%s", out)
	}
}

func TestRecordCrawlMetrics(t *testing.T) {
	RecordPageCrawled(false)
	RecordPageCrawled(true)
	RecordFetchRetry()
	RecordJobFinished("completed")
	RecordIssueDetected("warning")

	out := Export()
	if !strings.Contains(out, "peregrine_pages_crawled_total") {
		t.Fatalf("expected pages_crawled_total in export, got:\n%s", out)
	}
	if !strings.Contains(out, "peregrine_pages_failed_total") {
		t.Fatalf("expected pages_failed_total in export, got:\n%s", out)
	}
	if !strings.Contains(out, "peregrine_jobs_total{status=\"completed\"}") {
		t.Fatalf("expected jobs_total for completed status, got:\n%s", out)
	}
	if !strings.Contains(out, "peregrine_issues_detected_total{severity=\"warning\"}") {
		t.Fatalf("expected issues_detected_total for warning severity, got:\n%s", out)
	}
}

func TestRecordOracleAndRetentionMetrics(t *testing.T) {
	RecordOracleAudit("mobile", true)
	RecordOracleAudit("desktop", false)
	RecordRetentionJobs("completed", 3)
	RecordRetentionJobs("failed", 0)

	out := Export()
	if !strings.Contains(out, "peregrine_oracle_audits_total{strategy=\"desktop\",success=\"false\"}") {
		t.Fatalf("expected failed desktop oracle audit, got:\n%s", out)
	}
	if !strings.Contains(out, "peregrine_oracle_audits_total{strategy=\"mobile\",success=\"true\"}") {
		t.Fatalf("expected successful mobile oracle audit, got:\n%s", out)
	}
	if !strings.Contains(out, "peregrine_retention_jobs_deleted_total{status=\"completed\"} 3") {
		t.Fatalf("expected retention counter for completed jobs, got:\n%s", out)
	}
	if strings.Contains(out, "peregrine_retention_jobs_deleted_total{status=\"failed\"}") {
		t.Fatalf("zero deletions must not be recorded, got:\n%s", out)
	}
}
