package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"peregrine/internal/logger"
)

func TestIsRetryable(t *testing.T) {
	retryable := []string{
		"read tcp: ECONNRESET",
		"navigation failed: net::ERR_CONNECTION_REFUSED",
		"net::ERR_TIMED_OUT",
		"socket hang up",
		"request aborted",
		"context deadline exceeded",
	}
	for _, msg := range retryable {
		if !IsRetryable(errors.New(msg)) {
			t.Fatalf("expected retryable: %q", msg)
		}
	}

	permanent := []string{
		"net::ERR_CERT_AUTHORITY_INVALID",
		"invalid URL",
	}
	for _, msg := range permanent {
		if IsRetryable(errors.New(msg)) {
			t.Fatalf("expected permanent: %q", msg)
		}
	}
	if IsRetryable(nil) {
		t.Fatalf("nil error must not be retryable")
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2, InitialBackoff: time.Second, Multiplier: 2}
	if got := p.Backoff(0); got != time.Second {
		t.Fatalf("Backoff(0) = %v", got)
	}
	if got := p.Backoff(1); got != 2*time.Second {
		t.Fatalf("Backoff(1) = %v", got)
	}
	if got := p.Backoff(2); got != 4*time.Second {
		t.Fatalf("Backoff(2) = %v", got)
	}
}

func TestHTTPFetcherSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Home</title></head><body><h1>Hello</h1><a href="/next">next</a></body></html>`)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(Options{Domain: "example.com", UserAgent: "PeregrineBot/1.0"}, logger.NewNop())
	rec, err := f.Crawl(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}
	if rec.StatusCode != 200 || rec.Title != "Home" {
		t.Fatalf("unexpected record: status=%d title=%q", rec.StatusCode, rec.Title)
	}
	if !rec.IsIndexable {
		t.Fatalf("200 HTML page should be indexable")
	}
}

func TestHTTPFetcherRedirectChain(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old":
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
		case "/new":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><head><title>New</title></head><body></body></html>")
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(Options{Domain: "example.com"}, logger.NewNop())
	rec, err := f.Crawl(context.Background(), srv.URL+"/old")
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}
	if len(rec.RedirectChain) != 1 || rec.RedirectChain[0].StatusCode != 301 {
		t.Fatalf("redirect chain = %+v", rec.RedirectChain)
	}
	if rec.URL != srv.URL+"/new" {
		t.Fatalf("final URL = %q", rec.URL)
	}
}

func TestHTTPFetcherNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4")
	}))
	defer srv.Close()

	f := NewHTTPFetcher(Options{Domain: "example.com"}, logger.NewNop())
	rec, err := f.Crawl(context.Background(), srv.URL+"/doc.pdf")
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}
	if rec.IsIndexable || rec.IndexabilityReason != "Not HTML content" {
		t.Fatalf("non-HTML response should be unindexable: %+v", rec)
	}
}

func TestHTTPFetcherPermanentFailureRecord(t *testing.T) {
	f := NewHTTPFetcher(Options{Domain: "example.com", Retry: RetryPolicy{MaxRetries: 0, InitialBackoff: time.Millisecond, Multiplier: 2}}, logger.NewNop())

	rec, err := f.Crawl(context.Background(), "http://127.0.0.1:1/unreachable")
	if err == nil {
		t.Fatalf("expected error for unreachable host")
	}
	if rec == nil {
		t.Fatalf("failure must still yield an error-shaped record")
	}
	if rec.StatusCode != 0 || rec.IsIndexable {
		t.Fatalf("error record: status=%d indexable=%v", rec.StatusCode, rec.IsIndexable)
	}
}
