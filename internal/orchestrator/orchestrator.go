package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"peregrine/internal/extractor"
	"peregrine/internal/fetcher"
	"peregrine/internal/issues"
	"peregrine/internal/logger"
	"peregrine/internal/metrics"
	"peregrine/internal/model"
	"peregrine/internal/oracle"
	"peregrine/internal/robots"
	"peregrine/internal/sitemap"
	"peregrine/internal/store"
	"peregrine/internal/urlutil"
)

// Storage is the slice of the job store the orchestrator writes through.
type Storage interface {
	UpsertPage(ctx context.Context, crawlID uuid.UUID, rec *model.PageRecord) (uuid.UUID, error)
	RecordPageIssue(ctx context.Context, crawlID, pageID uuid.UUID, definitionID string, details map[string]any) (bool, error)
	UpdateJobProgress(ctx context.Context, id uuid.UUID, crawled, failed, discovered, progress int, currentURL string) error
	UpdateInternalLinksReceived(ctx context.Context, crawlID uuid.UUID, counts map[string]int) error
	PagesForAnalysis(ctx context.Context, crawlID uuid.UUID) ([]store.AnalysisPage, error)
	PagesWithIssues(ctx context.Context, crawlID uuid.UUID) (int, error)
	IssueCounts(ctx context.Context, crawlID uuid.UUID) (store.SeverityCounts, map[string]store.SeverityCounts, error)
	FinalizeJobCounters(ctx context.Context, id uuid.UUID, health, total, errors, warnings, notices, passed int, categoryScores json.RawMessage) error
	InsertPerformanceAudit(ctx context.Context, a store.PerformanceAudit) error
}

// FetcherFactory builds the navigation engine for one job.
type FetcherFactory func(ctx context.Context, opts fetcher.Options) (fetcher.Fetcher, error)

// frontierEntry is one queued URL awaiting fetch.
type frontierEntry struct {
	URL    string
	Depth  int
	Parent string
	Source string
}

// Orchestrator runs one crawl job end to end: frontier management,
// sequential fetching, per-page issue detection, and the post-crawl pass.
// All frontier state is single-writer because page processing is sequential.
type Orchestrator struct {
	jobID    uuid.UUID
	domain   string
	settings model.CrawlSettings

	st       Storage
	detector *issues.Detector
	oracle   *oracle.Client
	log      logger.Logger

	newFetcher FetcherFactory
	userAgent  string

	// overridable in tests
	fetchRobots    func(ctx context.Context, domain, ua string) *robots.Policy
	collectSitemap func(ctx context.Context, candidates []string, cap int) []sitemap.Entry
	probeClient    probeDoer

	frontier   []frontierEntry
	discovered map[string]struct{}
	visited    map[string]struct{}
	incoming   map[string]int

	// pageIDs and pageLinks index persisted pages by url_hash for the
	// post-crawl broken-link pass.
	pageIDs   map[string]uuid.UUID
	pageLinks map[string][]string
	broken    map[string]struct{}

	robotsPolicy   *robots.Policy
	effectiveDelay time.Duration

	pagesCrawled    int
	pagesFailed     int
	pagesDiscovered int

	cancelled atomic.Bool
}

// Config carries the per-job wiring for New.
type Config struct {
	JobID      uuid.UUID
	Domain     string
	Settings   model.CrawlSettings
	Store      Storage
	Detector   *issues.Detector
	Oracle     *oracle.Client
	UserAgent  string
	NewFetcher FetcherFactory
	Log        logger.Logger
}

func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		jobID:      cfg.JobID,
		domain:     cfg.Domain,
		settings:   cfg.Settings,
		st:         cfg.Store,
		detector:   cfg.Detector,
		oracle:     cfg.Oracle,
		userAgent:  cfg.UserAgent,
		newFetcher: cfg.NewFetcher,
		log:        cfg.Log,
		discovered: make(map[string]struct{}),
		visited:    make(map[string]struct{}),
		incoming:   make(map[string]int),
		pageIDs:    make(map[string]uuid.UUID),
		pageLinks:  make(map[string][]string),
		broken:     make(map[string]struct{}),
	}
	if o.settings.UserAgent != "" {
		o.userAgent = o.settings.UserAgent
	}
	o.fetchRobots = robots.Fetch
	reader := sitemap.NewReader(cfg.Domain, o.userAgent)
	o.collectSitemap = reader.Collect
	return o
}

// Cancel requests a cooperative stop. The in-flight fetch completes, then the
// loop exits before finalization.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
}

// Cancelled reports whether the run stopped on request.
func (o *Orchestrator) Cancelled() bool {
	return o.cancelled.Load()
}

// admit applies the admission gauntlet, in order: normalization, dedup,
// depth bound, page budget, robots, include/exclude patterns, domain match,
// SEO relevance. Admission appends to the frontier exactly once per URL.
func (o *Orchestrator) admit(rawURL string, depth int, parent, source string) bool {
	normalized, ok := urlutil.Normalize(rawURL)
	if !ok {
		return false
	}
	if _, seen := o.visited[normalized]; seen {
		return false
	}
	if _, seen := o.discovered[normalized]; seen {
		return false
	}
	if depth > o.settings.MaxDepth {
		return false
	}
	if len(o.discovered) >= o.settings.MaxPages {
		return false
	}
	if o.settings.RespectRobotsTxt && o.robotsPolicy != nil && !o.robotsPolicy.IsAllowed(normalized) {
		return false
	}
	if len(o.settings.IncludePatterns) > 0 && !matchesAny(normalized, o.settings.IncludePatterns) {
		return false
	}
	if matchesAny(normalized, o.settings.ExcludePatterns) {
		return false
	}
	if !hostMatchesDomain(normalized, o.domain, o.settings.FollowSubdomains) {
		return false
	}
	if relevant, _ := urlutil.IsSeoRelevant(normalized); !relevant {
		return false
	}

	o.frontier = append(o.frontier, frontierEntry{URL: normalized, Depth: depth, Parent: parent, Source: source})
	o.discovered[normalized] = struct{}{}
	o.pagesDiscovered++
	return true
}

func matchesAny(url string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(url, p) {
			return true
		}
	}
	return false
}

func hostMatchesDomain(rawURL, domain string, followSubdomains bool) bool {
	host := rawURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?"); i >= 0 {
		host = host[:i]
	}
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	return urlutil.SameDomain(host, domain, followSubdomains)
}

// Run executes the whole job. The returned error is fatal (browser launch,
// frontier exhaustion is not an error). Cancellation is not an error either:
// callers check Cancelled().
func (o *Orchestrator) Run(ctx context.Context) error {
	o.applySettingsDefaults()

	// Robots is fetched regardless of respect_robots_txt: the crawl delay
	// and the AI-bot flags are read even when the allow rules are ignored.
	o.robotsPolicy = o.fetchRobots(ctx, o.domain, o.userAgent)

	o.effectiveDelay = time.Duration(o.settings.CrawlDelayMs) * time.Millisecond
	if robotsDelay := o.robotsPolicy.CrawlDelay(); robotsDelay > o.effectiveDelay {
		o.effectiveDelay = robotsDelay
	}

	o.preloadResumeState()

	o.admit("https://"+o.domain, 0, "", model.DiscoveredViaSeed)

	for _, entry := range o.collectSitemap(ctx, o.robotsPolicy.Sitemaps(), o.settings.MaxPages) {
		o.admit(entry.Loc, 1, "", model.DiscoveredViaSitemap)
	}

	engine, err := o.newFetcher(ctx, fetcher.Options{
		Domain:           o.domain,
		UserAgent:        o.userAgent,
		RenderJavascript: o.settings.RenderJavascript,
		Retry:            fetcher.DefaultRetryPolicy(),
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	for len(o.frontier) > 0 {
		if o.cancelled.Load() || ctx.Err() != nil {
			o.log.Info("crawl cancelled",
				logger.String("job_id", o.jobID.String()),
				logger.Int("pages_crawled", o.pagesCrawled))
			return nil
		}

		entry := o.frontier[0]
		o.frontier = o.frontier[1:]

		if _, seen := o.visited[entry.URL]; seen {
			continue
		}
		o.visited[entry.URL] = struct{}{}

		o.processPage(ctx, engine, entry)

		if len(o.frontier) > 0 && o.effectiveDelay > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(o.effectiveDelay):
			}
		}
	}

	if o.cancelled.Load() || ctx.Err() != nil {
		return nil
	}
	o.analyze(ctx)
	return nil
}

func (o *Orchestrator) applySettingsDefaults() {
	if o.settings.MaxPages <= 0 {
		o.settings.MaxPages = 500
	}
	if o.settings.MaxDepth <= 0 {
		o.settings.MaxDepth = 10
	}
}

// preloadResumeState marks every URL the predecessor already fetched as
// visited and discovered so it is never re-fetched, and carries the prior
// counters forward.
func (o *Orchestrator) preloadResumeState() {
	resume := o.settings.ResumeInfo
	if resume == nil {
		return
	}

	for _, skipURL := range resume.SkipURLs {
		normalized, ok := urlutil.Normalize(skipURL)
		if !ok {
			continue
		}
		o.visited[normalized] = struct{}{}
		o.discovered[normalized] = struct{}{}
	}
	o.pagesDiscovered = resume.OriginalPagesDiscovered
	o.pagesCrawled = resume.OriginalPagesCrawled
	o.pagesFailed = resume.OriginalPagesFailed

	o.log.Info("resuming crawl",
		logger.String("job_id", o.jobID.String()),
		logger.String("resumed_from", resume.ResumedFrom),
		logger.Int("skip_urls", len(resume.SkipURLs)))
}

func (o *Orchestrator) processPage(ctx context.Context, engine fetcher.Fetcher, entry frontierEntry) {
	rec, fetchErr := engine.Crawl(ctx, entry.URL)
	if rec == nil {
		rec = extractor.NewErrorRecord(entry.URL, 0, "", "Navigation failed", 0)
	}
	rec.PageDepth = entry.Depth
	rec.DiscoveredVia = entry.Source

	o.pagesCrawled++
	failed := fetchErr != nil || rec.StatusCode >= 400 || rec.StatusCode == 0
	if failed {
		o.pagesFailed++
		o.broken[entry.URL] = struct{}{}
	}
	metrics.RecordPageCrawled(failed)

	if fetchErr != nil {
		o.log.Warn("page fetch failed",
			logger.String("url", entry.URL),
			logger.Int("depth", entry.Depth),
			logger.Err(fetchErr))
	}

	pageID, err := o.st.UpsertPage(ctx, o.jobID, rec)
	if err != nil {
		o.log.Error("page persist failed",
			logger.String("url", rec.URL),
			logger.Err(err))
		o.updateProgress(ctx, entry.URL)
		return
	}
	o.pageIDs[rec.URLHash] = pageID

	var outbound []string
	for _, link := range rec.InternalLinks {
		normalized, ok := urlutil.Normalize(link)
		if !ok {
			continue
		}
		outbound = append(outbound, normalized)
		o.incoming[normalized]++
		o.admit(link, entry.Depth+1, entry.URL, model.DiscoveredViaCrawl)
	}
	o.pageLinks[rec.URLHash] = outbound

	for _, finding := range o.detector.Detect(rec) {
		o.persistFinding(ctx, pageID, finding)
	}

	o.updateProgress(ctx, entry.URL)
}

// persistFinding writes one issue tuple. Failures are logged and skipped,
// never fatal to the crawl.
func (o *Orchestrator) persistFinding(ctx context.Context, pageID uuid.UUID, finding issues.Finding) {
	def, ok := o.detector.Definition(finding.Code)
	if !ok {
		return
	}
	inserted, err := o.st.RecordPageIssue(ctx, o.jobID, pageID, def.ID, finding.Details)
	if err != nil {
		o.log.Warn("issue persist failed",
			logger.String("code", finding.Code),
			logger.Err(err))
		return
	}
	if inserted {
		metrics.RecordIssueDetected(def.Severity)
	}
}

func (o *Orchestrator) updateProgress(ctx context.Context, currentURL string) {
	progress := 0
	if o.pagesDiscovered > 0 {
		progress = o.pagesCrawled * 100 / o.pagesDiscovered
	}
	if progress > 99 {
		progress = 99
	}
	_ = o.st.UpdateJobProgress(ctx, o.jobID, o.pagesCrawled, o.pagesFailed, o.pagesDiscovered, progress, currentURL)
}

// Counters returns the live progress counters.
func (o *Orchestrator) Counters() (crawled, failed, discovered int) {
	return o.pagesCrawled, o.pagesFailed, o.pagesDiscovered
}
