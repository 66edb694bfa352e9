package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"peregrine/internal/extractor"
	"peregrine/internal/logger"
	"peregrine/internal/metrics"
	"peregrine/internal/model"
)

// HTTPFetcher is the non-rendering engine: a plain HTTP GET per URL. It
// satisfies the same contract as RodFetcher (redirect chain, final URL,
// status, extracted record) and backs tests and browserless deployments.
type HTTPFetcher struct {
	client *http.Client
	opts   Options
	log    logger.Logger

	// chains collects redirect hops per initial request via CheckRedirect.
	// Crawl is called sequentially within a job, so a single slot suffices.
	chain []model.RedirectHop
}

func NewHTTPFetcher(opts Options, log logger.Logger) *HTTPFetcher {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}

	f := &HTTPFetcher{opts: opts, log: log}
	f.client = &http.Client{
		Timeout: opts.NavTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			if resp := req.Response; resp != nil {
				f.chain = append(f.chain, model.RedirectHop{
					URL:        via[len(via)-1].URL.String(),
					StatusCode: resp.StatusCode,
				})
			}
			return nil
		},
	}
	return f
}

func (f *HTTPFetcher) Close() {}

func (f *HTTPFetcher) Crawl(ctx context.Context, url string) (*model.PageRecord, error) {
	var lastErr error

	for attempt := 0; attempt <= f.opts.Retry.MaxRetries; attempt++ {
		rec, err := f.fetch(ctx, url)
		if err == nil {
			return rec, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			break
		}
		if attempt < f.opts.Retry.MaxRetries {
			metrics.RecordFetchRetry()
			select {
			case <-ctx.Done():
				return extractor.NewErrorRecord(url, 0, "", "Cancelled", 0), ctx.Err()
			case <-time.After(f.opts.Retry.Backoff(attempt)):
			}
		}
	}

	return extractor.NewErrorRecord(url, 0, "", "Navigation failed: "+lastErr.Error(), 0), lastErr
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) (*model.PageRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	f.chain = nil
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	elapsed := time.Since(start).Milliseconds()

	finalURL := resp.Request.URL.String()
	contentType := resp.Header.Get("Content-Type")
	redirects := append([]model.RedirectHop(nil), f.chain...)

	if !isHTMLContentType(contentType) {
		return extractor.NewErrorRecord(finalURL, resp.StatusCode, contentType, "Not HTML content", elapsed), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return extractor.Extract(extractor.Input{
		URL:            finalURL,
		HTML:           string(body),
		StatusCode:     resp.StatusCode,
		ContentType:    contentType,
		ResponseTimeMs: elapsed,
		RedirectChain:  redirects,
		ProjectDomain:  f.opts.Domain,
	}), nil
}
