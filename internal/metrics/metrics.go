package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for the worker.
// This is intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	pagesCrawledTotal int64
	pagesFailedTotal  int64
	fetchRetriesTotal int64

	jobsTotal        = make(map[string]int64)
	issuesTotal      = make(map[string]int64)
	oracleAuditTotal = make(map[oracleKey]int64)

	retentionJobsDeleted = make(map[string]int64)
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type oracleKey struct {
	Strategy string
	Success  string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordPageCrawled counts one fetched page, failed or not.
func RecordPageCrawled(failed bool) {
	mu.Lock()
	defer mu.Unlock()
	pagesCrawledTotal++
	if failed {
		pagesFailedTotal++
	}
}

// RecordFetchRetry counts one transient-failure retry.
func RecordFetchRetry() {
	mu.Lock()
	defer mu.Unlock()
	fetchRetriesTotal++
}

// RecordJobFinished counts one job reaching a terminal status.
func RecordJobFinished(status string) {
	mu.Lock()
	defer mu.Unlock()
	jobsTotal[status]++
}

// RecordIssueDetected counts one issue occurrence by severity.
func RecordIssueDetected(severity string) {
	mu.Lock()
	defer mu.Unlock()
	issuesTotal[severity]++
}

// RecordOracleAudit counts one external performance audit call.
func RecordOracleAudit(strategy string, success bool) {
	mu.Lock()
	defer mu.Unlock()

	s := "false"
	if success {
		s = "true"
	}
	oracleAuditTotal[oracleKey{Strategy: strategy, Success: s}]++
}

// RecordRetentionJobs increments the counter of jobs deleted by TTL for
// a given terminal status.
func RecordRetentionJobs(status string, deleted int64) {
	if deleted <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionJobsDeleted[status] += deleted
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP peregrine_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE peregrine_http_requests_total counter\n")

	// Sort keys for stable output
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		v := requestsTotal[k]
		fmt.Fprintf(&b, "peregrine_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, v)
	}

	b.WriteString("# HELP peregrine_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE peregrine_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP peregrine_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE peregrine_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		fmt.Fprintf(&b, "peregrine_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "peregrine_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsCount[k])
	}

	b.WriteString("# HELP peregrine_pages_crawled_total Total pages fetched across all jobs\n")
	b.WriteString("# TYPE peregrine_pages_crawled_total counter\n")
	fmt.Fprintf(&b, "peregrine_pages_crawled_total %d\n", pagesCrawledTotal)

	b.WriteString("# HELP peregrine_pages_failed_total Total pages that ended in a permanent fetch failure\n")
	b.WriteString("# TYPE peregrine_pages_failed_total counter\n")
	fmt.Fprintf(&b, "peregrine_pages_failed_total %d\n", pagesFailedTotal)

	b.WriteString("# HELP peregrine_fetch_retries_total Total transient-failure navigation retries\n")
	b.WriteString("# TYPE peregrine_fetch_retries_total counter\n")
	fmt.Fprintf(&b, "peregrine_fetch_retries_total %d\n", fetchRetriesTotal)

	b.WriteString("# HELP peregrine_jobs_total Total jobs by terminal status\n")
	b.WriteString("# TYPE peregrine_jobs_total counter\n")

	var statuses []string
	for s := range jobsTotal {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(&b, "peregrine_jobs_total{status=\"%s\"} %d\n", s, jobsTotal[s])
	}

	b.WriteString("# HELP peregrine_issues_detected_total Total issue occurrences by severity\n")
	b.WriteString("# TYPE peregrine_issues_detected_total counter\n")

	var severities []string
	for s := range issuesTotal {
		severities = append(severities, s)
	}
	sort.Strings(severities)
	for _, s := range severities {
		fmt.Fprintf(&b, "peregrine_issues_detected_total{severity=\"%s\"} %d\n", s, issuesTotal[s])
	}

	b.WriteString("# HELP peregrine_oracle_audits_total Total external performance audit calls\n")
	b.WriteString("# TYPE peregrine_oracle_audits_total counter\n")

	var oracleKeys []oracleKey
	for k := range oracleAuditTotal {
		oracleKeys = append(oracleKeys, k)
	}
	sort.Slice(oracleKeys, func(i, j int) bool {
		if oracleKeys[i].Strategy != oracleKeys[j].Strategy {
			return oracleKeys[i].Strategy < oracleKeys[j].Strategy
		}
		return oracleKeys[i].Success < oracleKeys[j].Success
	})
	for _, k := range oracleKeys {
		fmt.Fprintf(&b, "peregrine_oracle_audits_total{strategy=\"%s\",success=\"%s\"} %d\n",
			k.Strategy, k.Success, oracleAuditTotal[k])
	}

	b.WriteString("# HELP peregrine_retention_jobs_deleted_total Total jobs deleted by TTL\n")
	b.WriteString("# TYPE peregrine_retention_jobs_deleted_total counter\n")

	var retained []string
	for s := range retentionJobsDeleted {
		retained = append(retained, s)
	}
	sort.Strings(retained)
	for _, s := range retained {
		fmt.Fprintf(&b, "peregrine_retention_jobs_deleted_total{status=\"%s\"} %d\n", s, retentionJobsDeleted[s])
	}

	return b.String()
}
