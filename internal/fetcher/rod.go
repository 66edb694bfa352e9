package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"peregrine/internal/extractor"
	"peregrine/internal/logger"
	"peregrine/internal/metrics"
	"peregrine/internal/model"
)

// Options configures a fetcher for one crawl job.
type Options struct {
	Domain           string
	UserAgent        string
	RenderJavascript bool
	NavTimeout       time.Duration
	Retry            RetryPolicy
	ControlURL       string
}

// RodFetcher drives a shared headless browser. The browser lives for the
// whole job; each Crawl opens a fresh page and closes it on every exit path.
type RodFetcher struct {
	browser *rod.Browser
	opts    Options
	log     logger.Logger
}

// NewRodFetcher connects to the browser. A connect failure is fatal for the
// job (taxonomy class 6).
func NewRodFetcher(ctx context.Context, opts Options, log logger.Logger) (*RodFetcher, error) {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}

	browser := rod.New().Context(ctx)
	if opts.ControlURL != "" {
		browser = browser.ControlURL(opts.ControlURL)
	}
	if err := browser.Connect(); err != nil {
		return nil, err
	}

	return &RodFetcher{browser: browser, opts: opts, log: log}, nil
}

func (f *RodFetcher) Close() {
	_ = f.browser.Close()
}

// Crawl navigates the URL with retry for transient network failures. A
// permanent failure returns an error-shaped record plus the error.
func (f *RodFetcher) Crawl(ctx context.Context, url string) (*model.PageRecord, error) {
	var lastErr error

	for attempt := 0; attempt <= f.opts.Retry.MaxRetries; attempt++ {
		rec, err := f.navigate(ctx, url)
		if err == nil {
			return rec, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			break
		}
		if attempt < f.opts.Retry.MaxRetries {
			metrics.RecordFetchRetry()
			f.log.Debug("retrying navigation",
				logger.String("url", url),
				logger.Int("attempt", attempt+1),
				logger.Err(err))
			select {
			case <-ctx.Done():
				return extractor.NewErrorRecord(url, 0, "", "Cancelled", 0), ctx.Err()
			case <-time.After(f.opts.Retry.Backoff(attempt)):
			}
		}
	}

	return extractor.NewErrorRecord(url, 0, "", "Navigation failed: "+lastErr.Error(), 0), lastErr
}

func (f *RodFetcher) navigate(ctx context.Context, url string) (*model.PageRecord, error) {
	page, err := f.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(f.opts.NavTimeout)

	if f.opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.opts.UserAgent}); err != nil {
			return nil, err
		}
	}

	// Collect responses: every one counts toward the request total, document
	// 3xx hops form the redirect chain, the final document supplies status
	// and content type.
	var mu sync.Mutex
	var chain []model.RedirectHop
	status := 0
	contentType := ""
	requests := 0

	stopEvents := page.EachEvent(func(e *proto.NetworkResponseReceived) {
		mu.Lock()
		defer mu.Unlock()
		requests++
		if e.Type != proto.NetworkResourceTypeDocument {
			return
		}
		if e.Response.Status >= 300 && e.Response.Status < 400 {
			chain = append(chain, model.RedirectHop{URL: e.Response.URL, StatusCode: e.Response.Status})
		} else {
			status = e.Response.Status
			contentType = e.Response.MIMEType
		}
	})
	go stopEvents()

	waitEvent := proto.PageLifecycleEventNameDOMContentLoaded
	if f.opts.RenderJavascript {
		waitEvent = proto.PageLifecycleEventNameNetworkIdle
	}

	start := time.Now()
	wait := page.WaitNavigation(waitEvent)
	if err := page.Navigate(url); err != nil {
		return nil, err
	}
	wait()
	elapsed := time.Since(start).Milliseconds()

	info, err := page.Info()
	if err != nil {
		return nil, err
	}
	finalURL := info.URL

	mu.Lock()
	finalStatus := status
	finalType := contentType
	finalRequests := requests
	redirects := append([]model.RedirectHop(nil), chain...)
	mu.Unlock()

	if finalStatus == 0 {
		finalStatus = 200
	}

	if !isHTMLContentType(finalType) {
		return extractor.NewErrorRecord(finalURL, finalStatus, finalType, "Not HTML content", elapsed), nil
	}

	html, err := page.HTML()
	if err != nil {
		return nil, err
	}

	rec := extractor.Extract(extractor.Input{
		URL:            finalURL,
		HTML:           html,
		StatusCode:     finalStatus,
		ContentType:    finalType,
		ResponseTimeMs: elapsed,
		RedirectChain:  redirects,
		ProjectDomain:  f.opts.Domain,
	})
	rec.RequestCount = finalRequests

	if f.opts.RenderJavascript {
		f.collectWebVitals(page, rec)
		f.collectMobileSignals(page, rec)
	}

	return rec, nil
}

// collectWebVitals evaluates the page's performance entries. Every metric is
// best-effort: anything unobservable stays nil.
func (f *RodFetcher) collectWebVitals(page *rod.Page, rec *model.PageRecord) {
	res, err := page.Eval(webVitalsJS)
	if err != nil {
		f.log.Debug("web vitals evaluation failed", logger.String("url", rec.URL), logger.Err(err))
		return
	}

	cwv := &model.CoreWebVitals{}
	val := res.Value
	read := func(key string) *float64 {
		entry := val.Get(key)
		if entry.Nil() {
			return nil
		}
		num := entry.Num()
		return &num
	}

	cwv.LCPMs = read("lcp")
	cwv.FCPMs = read("fcp")
	cwv.TTFBMs = read("ttfb")
	cwv.CLS = read("cls")

	if cwv.LCPMs != nil || cwv.FCPMs != nil || cwv.TTFBMs != nil || cwv.CLS != nil {
		rec.CoreWebVitals = cwv
	}
}

// collectMobileSignals re-measures the page at a phone viewport: layout
// overflow and undersized tap targets are only observable after render. Runs
// after collectWebVitals so the override cannot skew the timing entries.
func (f *RodFetcher) collectMobileSignals(page *rod.Page, rec *model.PageRecord) {
	if rec.Mobile == nil {
		return
	}

	err := proto.EmulationSetDeviceMetricsOverride{
		Width: 375, Height: 667, DeviceScaleFactor: 2, Mobile: true,
	}.Call(page)
	if err != nil {
		f.log.Debug("mobile emulation failed", logger.String("url", rec.URL), logger.Err(err))
		return
	}

	res, err := page.Eval(mobileSignalsJS)
	if err != nil {
		f.log.Debug("mobile signals evaluation failed", logger.String("url", rec.URL), logger.Err(err))
		return
	}
	rec.Mobile.ContentWiderThanView = res.Value.Get("wider").Bool()
	rec.Mobile.SmallTapTargets = int(res.Value.Get("smallTargets").Num())
}

const mobileSignalsJS = `() => {
	const out = { wider: false, smallTargets: 0 };
	try {
		out.wider = document.documentElement.scrollWidth > window.innerWidth + 8;
	} catch (e) {}
	try {
		const targets = document.querySelectorAll('a, button, [role="button"], input, select, textarea');
		for (const el of targets) {
			const r = el.getBoundingClientRect();
			if (r.width === 0 || r.height === 0) continue;
			if (r.width < 24 || r.height < 24) out.smallTargets++;
		}
	} catch (e) {}
	return out;
}`

const webVitalsJS = `() => {
	const out = { lcp: null, fcp: null, ttfb: null, cls: null };
	try {
		const nav = performance.getEntriesByType('navigation')[0];
		if (nav && nav.responseStart > 0) out.ttfb = nav.responseStart;
	} catch (e) {}
	try {
		const paints = performance.getEntriesByType('paint');
		const fcp = paints.find(p => p.name === 'first-contentful-paint');
		if (fcp) out.fcp = fcp.startTime;
	} catch (e) {}
	try {
		const lcps = performance.getEntriesByType('largest-contentful-paint');
		if (lcps.length > 0) out.lcp = lcps[lcps.length - 1].startTime;
	} catch (e) {}
	try {
		let cls = 0;
		for (const e of performance.getEntriesByType('layout-shift')) {
			if (!e.hadRecentInput) cls += e.value;
		}
		out.cls = cls;
	} catch (e) {}
	return out;
}`
