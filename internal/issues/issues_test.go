package issues

import (
	"strings"
	"testing"

	"peregrine/internal/logger"
	"peregrine/internal/model"
)

func newDetector() *Detector {
	return NewDetector(BuiltinCatalogue, logger.NewNop())
}

func codes(findings []Finding) map[string]int {
	out := make(map[string]int)
	for _, f := range findings {
		out[f.Code]++
	}
	return out
}

// cleanPage is a page that should trip no content-family rules.
func cleanPage() *model.PageRecord {
	self := true
	mixed := false
	return &model.PageRecord{
		URL:                   "https://example.com/guide",
		Path:                  "/guide",
		StatusCode:            200,
		ResponseTimeMs:        420,
		Title:                 "A complete guide to keeping backyard chickens",
		TitleLength:           45,
		MetaDescription:       strings.Repeat("Learn how to raise chickens. ", 4),
		MetaDescriptionLength: 116,
		CanonicalURL:          "https://example.com/guide",
		IsSelfCanonical:       &self,
		H1Count:               1,
		H2Count:               3,
		HeadingSequence:       []string{"h1", "h2", "h2", "h3", "h2"},
		IsIndexable:           true,
		WordCount:             800,
		TextHTMLRatio:         35,
		ReadingLevel:          &model.ReadingLevel{Grade: 8, Bucket: "intermediate"},
		BodyText:              "a complete guide to keeping backyard chickens and more",
		IsHTTPS:               true,
		HasMixedContent:       &mixed,
		HasSchema:             true,
		OGTitle:               "t", OGDescription: "d", OGImage: "i", TwitterCard: "summary",
		HTMLLang: "en",
		Mobile: &model.MobileSignals{
			HasViewport:       true,
			HasAppleTouchIcon: true,
			HasManifest:       true,
			HasThemeColor:     true,
			UsesMediaQueries:  true,
		},
	}
}

func TestCleanPageHasNoContentIssues(t *testing.T) {
	findings := newDetector().Detect(cleanPage())
	for _, f := range findings {
		if strings.HasPrefix(f.Code, "CONTENT_") {
			t.Fatalf("clean page produced content issue %s (%v)", f.Code, f.Details)
		}
	}
}

func TestErrorPageSkipsExtractionFamilies(t *testing.T) {
	page := &model.PageRecord{
		URL:        "https://example.com/missing",
		StatusCode: 404,
	}
	got := codes(newDetector().Detect(page))
	if got["CRAWL_4XX_ERROR"] != 1 {
		t.Fatalf("expected CRAWL_4XX_ERROR, got %v", got)
	}
	for code := range got {
		if strings.HasPrefix(code, "CONTENT_") || strings.HasPrefix(code, "mobile_") {
			t.Fatalf("error page must not produce %s", code)
		}
	}
}

func TestCrawlabilityThresholds(t *testing.T) {
	page := cleanPage()
	page.ResponseTimeMs = 3500
	page.RedirectChain = []model.RedirectHop{
		{URL: "https://example.com/a", StatusCode: 301},
		{URL: "https://example.com/b", StatusCode: 302},
	}
	got := codes(newDetector().Detect(page))
	for _, want := range []string{"CRAWL_SLOW_RESPONSE", "CRAWL_REDIRECT_CHAIN", "CRAWL_TEMP_REDIRECT"} {
		if got[want] != 1 {
			t.Fatalf("missing %s in %v", want, got)
		}
	}
}

func TestContentThresholds(t *testing.T) {
	page := cleanPage()
	page.Title = "Short"
	page.TitleLength = 5
	page.MetaDescription = ""
	page.MetaDescriptionLength = 0
	page.H1Count = 3
	page.WordCount = 150
	page.KeywordDensity = []model.KeywordStat{{Word: "chicken", Count: 30, Density: 4.2}}
	page.HeadingSequence = []string{"h1", "h3"}
	page.BodyText = "nothing related here"

	got := codes(newDetector().Detect(page))
	for _, want := range []string{
		"CONTENT_TITLE_TOO_SHORT",
		"CONTENT_MISSING_META_DESCRIPTION",
		"CONTENT_MULTIPLE_H1",
		"CONTENT_LOW_WORD_COUNT",
		"CONTENT_KEYWORD_STUFFING",
		"CONTENT_HEADING_HIERARCHY_SKIP",
		"CONTENT_TITLE_BODY_MISMATCH",
	} {
		if got[want] != 1 {
			t.Fatalf("missing %s in %v", want, got)
		}
	}
	if got["CONTENT_VERY_THIN"] != 0 {
		t.Fatalf("150 words is low, not very thin: %v", got)
	}
}

func TestTitleBodyMismatch(t *testing.T) {
	if titleBodyMismatch("Backyard chickens", "we keep backyard hens") {
		t.Fatalf("matching title word must not flag")
	}
	if !titleBodyMismatch("Backyard chickens", "totally unrelated text") {
		t.Fatalf("absent title words must flag")
	}
	if titleBodyMismatch("a an of", "anything") {
		t.Fatalf("titles with no 4-letter words must not flag")
	}
}

func TestPerformanceVitalsThresholds(t *testing.T) {
	page := cleanPage()
	lcp, cls, ttfb := 5200.0, 0.31, 900.0
	page.CoreWebVitals = &model.CoreWebVitals{LCPMs: &lcp, CLS: &cls, TTFBMs: &ttfb}
	page.RenderBlockingResources = 2
	page.HTMLSizeBytes = 150 * 1024
	page.RequestCount = 150

	got := codes(newDetector().Detect(page))
	for _, want := range []string{"PERF_SLOW_LCP", "PERF_HIGH_CLS", "PERF_SLOW_TTFB", "PERF_RENDER_BLOCKING", "PERF_HTML_TOO_LARGE", "PERF_TOO_MANY_REQUESTS"} {
		if got[want] != 1 {
			t.Fatalf("missing %s in %v", want, got)
		}
	}
}

func TestMobileRules(t *testing.T) {
	page := cleanPage()
	page.Mobile = &model.MobileSignals{
		HasViewport:          true,
		IsZoomDisabled:       true,
		FixedElements:        4,
		PhoneNumbersInBody:   2,
		UsesMediaQueries:     true,
		HasAppleTouchIcon:    true,
		HasManifest:          true,
		HasThemeColor:        true,
		SmallTapTargets:      3,
		ContentWiderThanView: true,
	}

	got := codes(newDetector().Detect(page))
	for _, want := range []string{
		"mobile_zoom_disabled",
		"mobile_excessive_fixed_elements",
		"mobile_no_tel_links",
		"mobile_small_tap_targets",
		"mobile_content_wider_than_screen",
	} {
		if got[want] != 1 {
			t.Fatalf("missing %s in %v", want, got)
		}
	}
	if got["mobile_missing_viewport"] != 0 {
		t.Fatalf("viewport present, got %v", got)
	}
}

func TestProductIssueMapping(t *testing.T) {
	page := cleanPage()
	page.ProductIssues = []string{"invalid price", "out of stock", "price expired", "missing brand"}

	got := codes(newDetector().Detect(page))
	for _, want := range []string{
		"product_invalid_price",
		"product_out_of_stock",
		"product_price_expired",
		"product_missing_brand",
	} {
		if got[want] != 1 {
			t.Fatalf("missing %s in %v", want, got)
		}
	}
}

func TestArticleIssueMapping(t *testing.T) {
	page := cleanPage()
	page.ArticleIssues = []string{"missing headline", "missing author", "future datePublished", "invalid dateModified"}

	got := codes(newDetector().Detect(page))
	if got["article_missing_fields"] != 1 || got["article_future_date"] != 1 || got["article_invalid_date"] != 1 {
		t.Fatalf("unexpected article mapping: %v", got)
	}
}

func TestTechnicalRules(t *testing.T) {
	page := cleanPage()
	page.Path = "/blog/page/3"
	page.QueryString = "sort=asc&color=red&size=xl"
	notSelf := false
	page.IsSelfCanonical = &notSelf
	page.CanonicalURL = "https://example.com/blog"

	got := codes(newDetector().Detect(page))
	for _, want := range []string{
		"pagination_missing_rel_links",
		"pagination_canonical_mismatch",
		"excessive_url_parameters",
		"url_session_parameters",
	} {
		if got[want] != 1 {
			t.Fatalf("missing %s in %v", want, got)
		}
	}
}

func TestUnknownCodeDropped(t *testing.T) {
	defs := []Definition{{Code: "CRAWL_4XX_ERROR", Category: "crawlability", Severity: SeverityError, IsActive: true}}
	d := NewDetector(defs, logger.NewNop())

	page := &model.PageRecord{URL: "https://example.com/x", StatusCode: 404, ResponseTimeMs: 9000}
	got := codes(d.Detect(page))
	if got["CRAWL_4XX_ERROR"] != 1 || len(got) != 1 {
		t.Fatalf("only catalogued codes may survive: %v", got)
	}
}

func TestInactiveDefinitionDropped(t *testing.T) {
	defs := []Definition{{Code: "CRAWL_4XX_ERROR", Category: "crawlability", Severity: SeverityError, IsActive: false}}
	d := NewDetector(defs, logger.NewNop())

	page := &model.PageRecord{URL: "https://example.com/x", StatusCode: 404}
	if findings := d.Detect(page); len(findings) != 0 {
		t.Fatalf("inactive definitions must be dropped, got %v", findings)
	}
}

func TestScoreBounds(t *testing.T) {
	tests := []struct {
		errors, warnings, notices int
		want                      int
	}{
		{0, 0, 0, 100},
		{1, 0, 0, 95},
		{0, 1, 0, 98},
		{0, 0, 3, 99},
		{10, 10, 10, 25},
		{50, 0, 0, 0},
		{-1, 0, 0, 100},
	}
	for _, tt := range tests {
		if got := Score(tt.errors, tt.warnings, tt.notices); got != tt.want {
			t.Fatalf("Score(%d,%d,%d) = %d, want %d", tt.errors, tt.warnings, tt.notices, got, tt.want)
		}
	}
}
