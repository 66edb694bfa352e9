package fetcher

import (
	"context"
	"strings"
	"time"

	"peregrine/internal/model"
)

// Fetcher navigates one URL and returns its extracted PageRecord. Crawl
// never returns a nil record together with a nil error: permanent failures
// yield an error-shaped record so the orchestrator can persist them.
type Fetcher interface {
	Crawl(ctx context.Context, url string) (*model.PageRecord, error)
	Close()
}

// RetryPolicy controls retries of transient navigation failures with
// exponential backoff: attempt n sleeps InitialBackoff * Multiplier^n.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy retries twice starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     2,
		InitialBackoff: time.Second,
		Multiplier:     2,
	}
}

// Backoff returns the sleep before retrying after attempt (zero-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := float64(p.InitialBackoff)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

// retryablePatterns are substrings of navigation error messages that mark a
// failure as transient.
var retryablePatterns = []string{
	"econnreset",
	"etimedout",
	"econnrefused",
	"epipe",
	"socket hang up",
	"aborted",
	"err_connection_",
	"err_timed_out",
	"err_name_not_resolved",
	"err_network_changed",
	"err_internet_disconnected",
	"context deadline exceeded",
	"timeout",
}

// IsRetryable classifies a navigation error against the transient-network
// whitelist.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// isHTMLContentType accepts text/html and application/xhtml+xml responses.
func isHTMLContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "xhtml+xml")
}
