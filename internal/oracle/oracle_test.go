package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleResponse = `{
	"loadingExperience": {"metrics": {"LARGEST_CONTENTFUL_PAINT_MS": {"percentile": 2100}}},
	"lighthouseResult": {
		"categories": {"performance": {"score": 0.87}},
		"audits": {
			"largest-contentful-paint": {"title": "LCP", "score": 0.8, "numericValue": 2400},
			"cumulative-layout-shift": {"title": "CLS", "score": 0.95, "numericValue": 0.02},
			"render-blocking-resources": {
				"title": "Eliminate render-blocking resources",
				"score": 0.4,
				"numericValue": 450,
				"details": {"type": "opportunity"}
			},
			"mainthread-work-breakdown": {
				"title": "Minimize main-thread work",
				"score": 0.5,
				"numericValue": 3100,
				"details": {"type": "table"}
			}
		}
	}
}`

func TestAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("strategy") != "mobile" || q.Get("url") != "https://example.com" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("key") != "test-key" {
			t.Errorf("missing API key")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, sampleResponse)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", 5*time.Second)
	audit, err := c.Analyze(context.Background(), "https://example.com", StrategyMobile)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if audit.PerformanceScore != 87 {
		t.Fatalf("score = %d, want 87", audit.PerformanceScore)
	}
	if audit.LCPMs == nil || *audit.LCPMs != 2400 {
		t.Fatalf("LCP = %v", audit.LCPMs)
	}
	if len(audit.FieldData) == 0 {
		t.Fatalf("field data missing")
	}
	if len(audit.Opportunities) == 0 || len(audit.Diagnostics) == 0 {
		t.Fatalf("opportunity split missing: opp=%s diag=%s", audit.Opportunities, audit.Diagnostics)
	}
}

func TestAnalyzeDisabled(t *testing.T) {
	c := New("", "", 0)
	if c.Enabled() {
		t.Fatalf("client without key must be disabled")
	}
	if _, err := c.Analyze(context.Background(), "https://example.com", StrategyMobile); err != ErrDisabled {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestAnalyzeRejectsUnknownStrategy(t *testing.T) {
	c := New("http://127.0.0.1:1", "key", time.Second)
	if _, err := c.Analyze(context.Background(), "https://example.com", "tablet"); err == nil {
		t.Fatalf("expected strategy error")
	}
}

func TestAnalyzeNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "key", time.Second)
	if _, err := c.Analyze(context.Background(), "https://example.com", StrategyDesktop); err == nil {
		t.Fatalf("expected error for 429 response")
	}
}
