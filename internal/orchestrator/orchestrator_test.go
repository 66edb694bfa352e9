package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"testing"

	"github.com/google/uuid"

	"peregrine/internal/extractor"
	"peregrine/internal/fetcher"
	"peregrine/internal/issues"
	"peregrine/internal/logger"
	"peregrine/internal/model"
	"peregrine/internal/robots"
	"peregrine/internal/sitemap"
	"peregrine/internal/store"
)

// memStore keeps the orchestrator's writes in memory for assertions.
type memStore struct {
	defs      map[string]issues.Definition
	pages     map[string]*model.PageRecord
	pageIDs   map[string]uuid.UUID
	pageIssue map[string]struct{} // pageID|defID
	issueLog  []string            // definition ids in insert order
	incoming  map[string]int
	progress  []int // pages_crawled per update
	finalized bool
	health    int
	audits    []store.PerformanceAudit
}

func newMemStore(defs []issues.Definition) *memStore {
	byCode := make(map[string]issues.Definition, len(defs))
	for _, d := range defs {
		byCode[d.ID] = d
	}
	return &memStore{
		defs:      byCode,
		pages:     make(map[string]*model.PageRecord),
		pageIDs:   make(map[string]uuid.UUID),
		pageIssue: make(map[string]struct{}),
		incoming:  make(map[string]int),
	}
}

func (m *memStore) UpsertPage(_ context.Context, _ uuid.UUID, rec *model.PageRecord) (uuid.UUID, error) {
	m.pages[rec.URLHash] = rec
	if id, ok := m.pageIDs[rec.URLHash]; ok {
		return id, nil
	}
	id := uuid.New()
	m.pageIDs[rec.URLHash] = id
	return id, nil
}

func (m *memStore) RecordPageIssue(_ context.Context, _, pageID uuid.UUID, definitionID string, _ map[string]any) (bool, error) {
	key := pageID.String() + "|" + definitionID
	if _, dup := m.pageIssue[key]; dup {
		return false, nil
	}
	m.pageIssue[key] = struct{}{}
	m.issueLog = append(m.issueLog, definitionID)
	return true, nil
}

func (m *memStore) UpdateJobProgress(_ context.Context, _ uuid.UUID, crawled, _, _, _ int, _ string) error {
	m.progress = append(m.progress, crawled)
	return nil
}

func (m *memStore) UpdateInternalLinksReceived(_ context.Context, _ uuid.UUID, counts map[string]int) error {
	for hash, n := range counts {
		m.incoming[hash] = n
	}
	return nil
}

func (m *memStore) PagesForAnalysis(_ context.Context, _ uuid.UUID) ([]store.AnalysisPage, error) {
	var out []store.AnalysisPage
	for hash, rec := range m.pages {
		out = append(out, store.AnalysisPage{
			ID:                    m.pageIDs[hash],
			URL:                   rec.URL,
			URLHash:               hash,
			StatusCode:            rec.StatusCode,
			PageDepth:             rec.PageDepth,
			InternalLinksCount:    rec.InternalLinksCount,
			InternalLinksReceived: m.incoming[hash],
			IsIndexable:           rec.IsIndexable,
			DiscoveredVia:         rec.DiscoveredVia,
			H1Count:               rec.H1Count,
			H2Count:               rec.H2Count,
			WordCount:             rec.WordCount,
			TitleLength:           rec.TitleLength,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

func (m *memStore) PagesWithIssues(_ context.Context, _ uuid.UUID) (int, error) {
	seen := make(map[string]struct{})
	for key := range m.pageIssue {
		seen[key[:36]] = struct{}{}
	}
	return len(seen), nil
}

func (m *memStore) IssueCounts(_ context.Context, _ uuid.UUID) (store.SeverityCounts, map[string]store.SeverityCounts, error) {
	var total store.SeverityCounts
	byCategory := make(map[string]store.SeverityCounts)
	for _, defID := range m.issueLog {
		def := m.defs[defID]
		counts := byCategory[def.Category]
		switch def.Severity {
		case issues.SeverityError:
			total.Errors++
			counts.Errors++
		case issues.SeverityWarning:
			total.Warnings++
			counts.Warnings++
		case issues.SeverityNotice:
			total.Notices++
			counts.Notices++
		}
		byCategory[def.Category] = counts
	}
	return total, byCategory, nil
}

func (m *memStore) FinalizeJobCounters(_ context.Context, _ uuid.UUID, health, _, _, _, _, _ int, _ json.RawMessage) error {
	m.finalized = true
	m.health = health
	return nil
}

func (m *memStore) InsertPerformanceAudit(_ context.Context, a store.PerformanceAudit) error {
	m.audits = append(m.audits, a)
	return nil
}

func (m *memStore) issueCodes() map[string]int {
	out := make(map[string]int)
	for _, defID := range m.issueLog {
		out[defID]++
	}
	return out
}

// fakeFetcher serves canned records and logs fetch order.
type fakeFetcher struct {
	pages   map[string]*model.PageRecord
	fetched []string
}

func (f *fakeFetcher) Crawl(_ context.Context, url string) (*model.PageRecord, error) {
	f.fetched = append(f.fetched, url)
	if rec, ok := f.pages[url]; ok {
		clone := *rec
		return &clone, nil
	}
	return extractor.NewErrorRecord(url, 404, "text/html", "HTTP 404 error", 5), nil
}

func (f *fakeFetcher) Close() {}

func okPage(url string, links ...string) *model.PageRecord {
	return &model.PageRecord{
		URL:                url,
		URLHash:            extractor.Sha256Hex(url),
		StatusCode:         200,
		IsIndexable:        true,
		InternalLinks:      links,
		InternalLinksCount: len(links),
		Title:              "A reasonably descriptive page title here",
		TitleLength:        41,
		H1Count:            1,
		H2Count:            2,
		WordCount:          500,
	}
}

type failingProbe struct{}

func (failingProbe) Do(*http.Request) (*http.Response, error) {
	return nil, http.ErrHandlerTimeout
}

func testCatalogue() []issues.Definition {
	defs := make([]issues.Definition, len(issues.BuiltinCatalogue))
	copy(defs, issues.BuiltinCatalogue)
	for i := range defs {
		defs[i].ID = defs[i].Code
	}
	return defs
}

func newTestOrchestrator(t *testing.T, settings model.CrawlSettings, ff *fakeFetcher, ms *memStore) *Orchestrator {
	t.Helper()
	o := New(Config{
		JobID:     uuid.New(),
		Domain:    "example.com",
		Settings:  settings,
		Store:     ms,
		Detector:  issues.NewDetector(testCatalogue(), logger.NewNop()),
		UserAgent: "PeregrineBot/1.0",
		NewFetcher: func(context.Context, fetcher.Options) (fetcher.Fetcher, error) {
			return ff, nil
		},
		Log: logger.NewNop(),
	})
	o.fetchRobots = func(context.Context, string, string) *robots.Policy {
		return robots.Parse(nil, "PeregrineBot/1.0")
	}
	o.collectSitemap = func(context.Context, []string, int) []sitemap.Entry { return nil }
	o.probeClient = failingProbe{}
	return o
}

func defaultSettings() model.CrawlSettings {
	return model.CrawlSettings{MaxPages: 100, MaxDepth: 10}
}

func TestCrawlBFSOrderAndDedup(t *testing.T) {
	ff := &fakeFetcher{pages: map[string]*model.PageRecord{
		"https://example.com": okPage("https://example.com",
			"https://example.com/a",
			"https://example.com/a/",
			"https://example.com/b?utm_source=news",
			"https://example.com/b"),
		"https://example.com/a": okPage("https://example.com/a", "https://example.com/c"),
		"https://example.com/b": okPage("https://example.com/b"),
		"https://example.com/c": okPage("https://example.com/c"),
	}}
	ms := newMemStore(testCatalogue())
	o := newTestOrchestrator(t, defaultSettings(), ff, ms)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{
		"https://example.com",
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}
	if len(ff.fetched) != len(want) {
		t.Fatalf("fetched %v, want %v", ff.fetched, want)
	}
	for i, url := range want {
		if ff.fetched[i] != url {
			t.Fatalf("fetch order[%d] = %q, want %q", i, ff.fetched[i], url)
		}
	}
	if !ms.finalized {
		t.Fatalf("post-crawl pass must finalize counters")
	}
	if ms.health < 0 || ms.health > 100 {
		t.Fatalf("health score %d out of range", ms.health)
	}
}

func TestDepthBound(t *testing.T) {
	ff := &fakeFetcher{pages: map[string]*model.PageRecord{
		"https://example.com":   okPage("https://example.com", "https://example.com/a"),
		"https://example.com/a": okPage("https://example.com/a", "https://example.com/b"),
		"https://example.com/b": okPage("https://example.com/b", "https://example.com/c"),
		"https://example.com/c": okPage("https://example.com/c"),
	}}
	settings := defaultSettings()
	settings.MaxDepth = 2
	ms := newMemStore(testCatalogue())
	o := newTestOrchestrator(t, settings, ff, ms)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, url := range ff.fetched {
		if url == "https://example.com/c" {
			t.Fatalf("depth 3 page must not be fetched: %v", ff.fetched)
		}
	}
	if len(ff.fetched) != 3 {
		t.Fatalf("fetched %v, want exactly seed + 2 levels", ff.fetched)
	}
}

func TestPageBudget(t *testing.T) {
	ff := &fakeFetcher{pages: map[string]*model.PageRecord{
		"https://example.com": okPage("https://example.com",
			"https://example.com/a", "https://example.com/b", "https://example.com/c"),
	}}
	settings := defaultSettings()
	settings.MaxPages = 2
	ms := newMemStore(testCatalogue())
	o := newTestOrchestrator(t, settings, ff, ms)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(ff.fetched) != 2 {
		t.Fatalf("fetched %d pages, budget is 2: %v", len(ff.fetched), ff.fetched)
	}
}

func TestResumeSkipsCrawledURLs(t *testing.T) {
	ff := &fakeFetcher{pages: map[string]*model.PageRecord{
		"https://example.com":   okPage("https://example.com", "https://example.com/a", "https://example.com/b"),
		"https://example.com/b": okPage("https://example.com/b"),
	}}
	settings := defaultSettings()
	settings.ResumeInfo = &model.ResumeInfo{
		ResumedFrom:          uuid.NewString(),
		SkipURLs:             []string{"https://example.com/a"},
		OriginalPagesCrawled: 12,
	}
	ms := newMemStore(testCatalogue())
	o := newTestOrchestrator(t, settings, ff, ms)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, url := range ff.fetched {
		if url == "https://example.com/a" {
			t.Fatalf("skip URL was re-fetched: %v", ff.fetched)
		}
	}
	crawled, _, _ := o.Counters()
	if crawled != 12+len(ff.fetched) {
		t.Fatalf("crawled = %d, want prior 12 plus %d new", crawled, len(ff.fetched))
	}
}

func TestRobotsDisallowBlocksAdmission(t *testing.T) {
	ff := &fakeFetcher{pages: map[string]*model.PageRecord{
		"https://example.com": okPage("https://example.com",
			"https://example.com/private/report", "https://example.com/public"),
		"https://example.com/public": okPage("https://example.com/public"),
	}}
	settings := defaultSettings()
	settings.RespectRobotsTxt = true
	ms := newMemStore(testCatalogue())
	o := newTestOrchestrator(t, settings, ff, ms)
	o.fetchRobots = func(context.Context, string, string) *robots.Policy {
		return robots.Parse([]byte("User-agent: *\nDisallow: /private\n"), "PeregrineBot/1.0")
	}

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, url := range ff.fetched {
		if url == "https://example.com/private/report" {
			t.Fatalf("disallowed URL was fetched: %v", ff.fetched)
		}
	}
}

func TestCancelStopsBeforeNextPop(t *testing.T) {
	ff := &fakeFetcher{pages: map[string]*model.PageRecord{
		"https://example.com": okPage("https://example.com", "https://example.com/a"),
	}}
	ms := newMemStore(testCatalogue())
	o := newTestOrchestrator(t, defaultSettings(), ff, ms)
	o.Cancel()

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(ff.fetched) != 0 {
		t.Fatalf("cancelled run fetched %v", ff.fetched)
	}
	if !o.Cancelled() {
		t.Fatalf("Cancelled() must report true")
	}
	if ms.finalized {
		t.Fatalf("cancelled run must skip finalization")
	}
}

func TestSitemapOnlyOrphanDetected(t *testing.T) {
	ff := &fakeFetcher{pages: map[string]*model.PageRecord{
		"https://example.com":        okPage("https://example.com"),
		"https://example.com/lonely": okPage("https://example.com/lonely"),
	}}
	ms := newMemStore(testCatalogue())
	o := newTestOrchestrator(t, defaultSettings(), ff, ms)
	o.collectSitemap = func(context.Context, []string, int) []sitemap.Entry {
		return []sitemap.Entry{{Loc: "https://example.com/lonely"}}
	}

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := ms.issueCodes()
	if got["sitemap_only_page"] != 1 {
		t.Fatalf("expected sitemap_only_page once, got %v", got)
	}
	if got["orphan_page"] != 0 {
		t.Fatalf("sitemap-discovered page must not be a plain orphan: %v", got)
	}
}

func TestBrokenLinkFlagged(t *testing.T) {
	ff := &fakeFetcher{pages: map[string]*model.PageRecord{
		"https://example.com": okPage("https://example.com", "https://example.com/gone"),
	}}
	ms := newMemStore(testCatalogue())
	o := newTestOrchestrator(t, defaultSettings(), ff, ms)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := ms.issueCodes()
	if got["CRAWL_BROKEN_LINKS"] != 1 {
		t.Fatalf("expected CRAWL_BROKEN_LINKS for the linking page, got %v", got)
	}
	if got["CRAWL_4XX_ERROR"] != 1 {
		t.Fatalf("expected CRAWL_4XX_ERROR for the missing page, got %v", got)
	}
}

func TestProgressCountersMonotonic(t *testing.T) {
	ff := &fakeFetcher{pages: map[string]*model.PageRecord{
		"https://example.com":   okPage("https://example.com", "https://example.com/a", "https://example.com/b"),
		"https://example.com/a": okPage("https://example.com/a"),
		"https://example.com/b": okPage("https://example.com/b"),
	}}
	ms := newMemStore(testCatalogue())
	o := newTestOrchestrator(t, defaultSettings(), ff, ms)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i := 1; i < len(ms.progress); i++ {
		if ms.progress[i] < ms.progress[i-1] {
			t.Fatalf("pages_crawled regressed: %v", ms.progress)
		}
	}
}
