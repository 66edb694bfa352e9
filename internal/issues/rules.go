package issues

import (
	"strings"

	"peregrine/internal/model"
)

const (
	slowResponseMs   = 3000
	pageSizeLimit    = 3 * 1024 * 1024
	htmlSizeLimit    = 100 * 1024
	requestLimit     = 100
	lcpLimitMs       = 4000
	clsLimit         = 0.25
	ttfbLimitMs      = 800
	inpLimitMs       = 500
	stuffingDensity  = 3.0
	fixedElemsLimit  = 2
	maxURLParameters = 3
)

// sessionParamKeys mark URLs carrying sorting/session/filter state. Seed URLs
// bypass admission filtering, so the rule still sees them.
var sessionParamKeys = map[string]struct{}{
	"sort": {}, "order": {}, "orderby": {}, "filter": {},
	"sessionid": {}, "session_id": {}, "sid": {}, "phpsessid": {}, "jsessionid": {},
}

type ruleFunc func(p *model.PageRecord, emit func(code string, kv ...any))

// contentRules only runs for successfully fetched HTML pages; crawlability
// and security apply to every record.
var pageRules = []ruleFunc{crawlRules}

var htmlPageRules = []ruleFunc{
	indexabilityRules,
	contentRules,
	performanceRules,
	securityRules,
	imageRules,
	schemaRules,
	mobileRules,
	internationalRules,
	socialRules,
	technicalRules,
	articleRules,
	productRules,
}

func crawlRules(p *model.PageRecord, emit func(string, ...any)) {
	switch {
	case p.StatusCode >= 500:
		emit("CRAWL_5XX_ERROR", "status_code", p.StatusCode)
	case p.StatusCode >= 400:
		emit("CRAWL_4XX_ERROR", "status_code", p.StatusCode)
	}

	if len(p.RedirectChain) > 1 {
		emit("CRAWL_REDIRECT_CHAIN", "hops", len(p.RedirectChain))
	}
	for _, hop := range p.RedirectChain {
		if hop.StatusCode == 302 || hop.StatusCode == 307 {
			emit("CRAWL_TEMP_REDIRECT", "status_code", hop.StatusCode, "url", hop.URL)
			break
		}
	}

	if p.ResponseTimeMs > slowResponseMs {
		emit("CRAWL_SLOW_RESPONSE", "response_time_ms", p.ResponseTimeMs)
	}
}

func indexabilityRules(p *model.PageRecord, emit func(string, ...any)) {
	if !p.IsIndexable && strings.Contains(strings.ToLower(p.IndexabilityReason), "noindex") {
		emit("INDEX_NOINDEX", "reason", p.IndexabilityReason)
	}
	if p.IsIndexable && p.CanonicalURL == "" {
		emit("INDEX_MISSING_CANONICAL")
	}
}

func contentRules(p *model.PageRecord, emit func(string, ...any)) {
	if p.Title == "" {
		emit("CONTENT_MISSING_TITLE")
	} else if p.TitleLength < 30 {
		emit("CONTENT_TITLE_TOO_SHORT", "length", p.TitleLength)
	} else if p.TitleLength > 60 {
		emit("CONTENT_TITLE_TOO_LONG", "length", p.TitleLength)
	}

	if p.MetaDescription == "" {
		emit("CONTENT_MISSING_META_DESCRIPTION")
	} else if p.MetaDescriptionLength < 70 {
		emit("CONTENT_META_DESCRIPTION_TOO_SHORT", "length", p.MetaDescriptionLength)
	} else if p.MetaDescriptionLength > 160 {
		emit("CONTENT_META_DESCRIPTION_TOO_LONG", "length", p.MetaDescriptionLength)
	}

	if p.H1Count == 0 {
		emit("CONTENT_MISSING_H1")
	} else if p.H1Count > 1 {
		emit("CONTENT_MULTIPLE_H1", "count", p.H1Count)
	}

	switch {
	case p.WordCount == 0:
		emit("CONTENT_NO_BODY_TEXT")
	case p.WordCount < 100:
		emit("CONTENT_VERY_THIN", "word_count", p.WordCount)
	case p.WordCount < 300:
		emit("CONTENT_LOW_WORD_COUNT", "word_count", p.WordCount)
	}

	if len(p.KeywordDensity) > 0 && p.KeywordDensity[0].Density > stuffingDensity {
		emit("CONTENT_KEYWORD_STUFFING",
			"word", p.KeywordDensity[0].Word,
			"density", p.KeywordDensity[0].Density)
	}

	if p.WordCount >= 50 && p.TextHTMLRatio < 10 {
		emit("CONTENT_LOW_TEXT_HTML_RATIO", "ratio", p.TextHTMLRatio)
	}

	if p.ReadingLevel != nil && p.ReadingLevel.Grade > 16 && p.ReadingLevel.Bucket == "complex" {
		emit("CONTENT_COMPLEX_READING_LEVEL", "grade", p.ReadingLevel.Grade)
	}

	if skip := headingSkip(p.HeadingSequence); skip != "" {
		emit("CONTENT_HEADING_HIERARCHY_SKIP", "at", skip)
	}

	if titleBodyMismatch(p.Title, p.BodyText) {
		emit("CONTENT_TITLE_BODY_MISMATCH")
	}
}

// headingSkip returns the first heading that jumps more than one level down
// from its predecessor, e.g. an h4 directly after an h2.
func headingSkip(seq []string) string {
	prev := 0
	for _, tag := range seq {
		if len(tag) != 2 || tag[0] != 'h' {
			continue
		}
		level := int(tag[1] - '0')
		if level < 1 || level > 6 {
			continue
		}
		if prev > 0 && level > prev+1 {
			return tag
		}
		prev = level
	}
	return ""
}

// titleBodyMismatch reports whether every title word of 4+ letters is absent
// from the body text.
func titleBodyMismatch(title, body string) bool {
	if title == "" || body == "" {
		return false
	}
	body = strings.ToLower(body)

	checked := 0
	for _, word := range strings.Fields(strings.ToLower(title)) {
		word = strings.Trim(word, ".,;:!?\"'()[]|-")
		if len(word) < 4 {
			continue
		}
		checked++
		if strings.Contains(body, word) {
			return false
		}
	}
	return checked > 0
}

func performanceRules(p *model.PageRecord, emit func(string, ...any)) {
	if p.PageSizeBytes > pageSizeLimit {
		emit("PERF_PAGE_SIZE_LARGE", "bytes", p.PageSizeBytes)
	}
	if p.HTMLSizeBytes > htmlSizeLimit {
		emit("PERF_HTML_TOO_LARGE", "bytes", p.HTMLSizeBytes)
	}
	if p.RequestCount > requestLimit {
		emit("PERF_TOO_MANY_REQUESTS", "requests", p.RequestCount)
	}

	if cwv := p.CoreWebVitals; cwv != nil {
		if cwv.LCPMs != nil && *cwv.LCPMs > lcpLimitMs {
			emit("PERF_SLOW_LCP", "lcp_ms", *cwv.LCPMs)
		}
		if cwv.CLS != nil && *cwv.CLS > clsLimit {
			emit("PERF_HIGH_CLS", "cls", *cwv.CLS)
		}
		if cwv.TTFBMs != nil && *cwv.TTFBMs > ttfbLimitMs {
			emit("PERF_SLOW_TTFB", "ttfb_ms", *cwv.TTFBMs)
		}
		if cwv.INPMs != nil && *cwv.INPMs > inpLimitMs {
			emit("PERF_SLOW_INP", "inp_ms", *cwv.INPMs)
		}
	}

	if p.UnminifiedCSS > 0 {
		emit("PERF_UNMINIFIED_CSS", "count", p.UnminifiedCSS)
	}
	if p.UnminifiedJS > 0 {
		emit("PERF_UNMINIFIED_JS", "count", p.UnminifiedJS)
	}
	if p.RenderBlockingResources > 0 {
		emit("PERF_RENDER_BLOCKING", "count", p.RenderBlockingResources)
	}
}

func securityRules(p *model.PageRecord, emit func(string, ...any)) {
	if !p.IsHTTPS {
		emit("SECURITY_NOT_HTTPS")
	}
	if p.HasMixedContent != nil && *p.HasMixedContent {
		emit("SECURITY_MIXED_CONTENT")
	}
}

func imageRules(p *model.PageRecord, emit func(string, ...any)) {
	if p.ImagesWithoutAlt > 0 {
		emit("IMAGES_MISSING_ALT", "count", p.ImagesWithoutAlt)
	}
	if p.ImagesWithEmptyAlt > 0 {
		emit("IMAGES_EMPTY_ALT", "count", p.ImagesWithEmptyAlt)
	}
}

func schemaRules(p *model.PageRecord, emit func(string, ...any)) {
	if !p.HasSchema {
		emit("SCHEMA_MISSING")
	}
	if len(p.SchemaDiagnostics) > 0 {
		emit("SCHEMA_PARSE_ERROR", "diagnostics", p.SchemaDiagnostics)
	}
}

func mobileRules(p *model.PageRecord, emit func(string, ...any)) {
	m := p.Mobile
	if m == nil {
		return
	}

	if !m.HasViewport {
		emit("mobile_missing_viewport")
	} else {
		if m.IsZoomDisabled {
			emit("mobile_zoom_disabled", "viewport", p.ViewportContent)
		}
		if m.InitialScaleNotOne {
			emit("mobile_initial_scale_not_one", "viewport", p.ViewportContent)
		}
	}

	if m.NonResponsiveImages > 0 {
		emit("mobile_images_not_responsive", "count", m.NonResponsiveImages)
	}
	if m.NonResponsiveTables > 0 {
		emit("mobile_tables_not_responsive", "count", m.NonResponsiveTables)
	}
	if m.FixedElements > fixedElemsLimit {
		emit("mobile_excessive_fixed_elements", "count", m.FixedElements)
	}
	if m.SmallTextElements > 0 {
		emit("mobile_small_font_size", "count", m.SmallTextElements)
	}
	if m.SmallTapTargets > 0 {
		emit("mobile_small_tap_targets", "count", m.SmallTapTargets)
	}
	if m.ContentWiderThanView {
		emit("mobile_content_wider_than_screen")
	}

	if !m.HasAppleTouchIcon {
		emit("mobile_no_apple_touch_icon")
	}
	if !m.HasManifest {
		emit("mobile_no_manifest")
	}
	if !m.HasThemeColor {
		emit("mobile_no_theme_color")
	}

	if m.PhoneNumbersInBody > 0 && !m.HasTelLinks {
		emit("mobile_no_tel_links", "phone_numbers", m.PhoneNumbersInBody)
	}
	if m.LCPCandidateLazy {
		emit("mobile_lcp_lazy_loaded")
	}
	if !m.UsesMediaQueries {
		emit("mobile_no_media_queries")
	}
}

func internationalRules(p *model.PageRecord, emit func(string, ...any)) {
	var invalid []string
	for _, issue := range p.HreflangIssues {
		if issue == "missing self-reference" {
			emit("INTL_HREFLANG_MISSING_SELF")
			continue
		}
		invalid = append(invalid, issue)
	}
	if len(invalid) > 0 {
		emit("INTL_HREFLANG_INVALID", "issues", invalid)
	}

	if p.HTMLLang == "" {
		emit("INTL_MISSING_HTML_LANG")
		emit("A11Y_MISSING_LANG")
	}
}

func socialRules(p *model.PageRecord, emit func(string, ...any)) {
	if p.OGTitle == "" {
		emit("SOCIAL_MISSING_OG_TITLE")
	}
	if p.OGDescription == "" {
		emit("SOCIAL_MISSING_OG_DESCRIPTION")
	}
	if p.OGImage == "" {
		emit("SOCIAL_MISSING_OG_IMAGE")
	}
	if p.TwitterCard == "" {
		emit("SOCIAL_MISSING_TWITTER_CARD")
	}
}

func technicalRules(p *model.PageRecord, emit func(string, ...any)) {
	pathPaginated := strings.Contains(p.Path, "/page/")
	paginated := pathPaginated || p.RelPrev || p.RelNext

	if pathPaginated && !p.RelPrev && !p.RelNext {
		emit("pagination_missing_rel_links")
	}
	if paginated && p.CanonicalURL != "" && p.IsSelfCanonical != nil && !*p.IsSelfCanonical {
		emit("pagination_canonical_mismatch", "canonical", p.CanonicalURL)
	}
	if paginated && strings.Contains(strings.ToLower(p.RobotsMeta), "noindex") {
		emit("pagination_noindex")
	}

	params := queryKeys(p.QueryString)
	if len(params) >= maxURLParameters {
		emit("excessive_url_parameters", "count", len(params))
	}
	for _, key := range params {
		if _, ok := sessionParamKeys[key]; ok {
			emit("url_session_parameters", "parameter", key)
			break
		}
	}
}

func queryKeys(query string) []string {
	if query == "" {
		return nil
	}
	var keys []string
	for _, pair := range strings.Split(query, "&") {
		key, _, _ := strings.Cut(pair, "=")
		if key != "" {
			keys = append(keys, strings.ToLower(key))
		}
	}
	return keys
}

func articleRules(p *model.PageRecord, emit func(string, ...any)) {
	var missing []string
	for _, issue := range p.ArticleIssues {
		switch {
		case issue == "multiple":
			emit("article_multiple", "count", len(p.Articles))
		case issue == "missing word count":
			emit("article_missing_word_count")
		case issue == "headline short" || issue == "headline too long":
			emit("article_headline_length", "finding", issue)
		case issue == "future datePublished":
			emit("article_future_date")
		case issue == "outdated":
			emit("article_outdated")
		case strings.HasPrefix(issue, "invalid "):
			emit("article_invalid_date", "field", strings.TrimPrefix(issue, "invalid "))
		case strings.HasPrefix(issue, "missing "):
			missing = append(missing, strings.TrimPrefix(issue, "missing "))
		}
	}
	if len(missing) > 0 {
		emit("article_missing_fields", "fields", missing)
	}
}

func productRules(p *model.PageRecord, emit func(string, ...any)) {
	fieldCodes := map[string]string{
		"missing name":         "product_missing_name",
		"missing description":  "product_missing_description",
		"missing image":        "product_missing_image",
		"missing sku":          "product_missing_sku",
		"missing brand":        "product_missing_brand",
		"missing offer":        "product_missing_offer",
		"missing price":        "product_missing_price",
		"missing currency":     "product_missing_currency",
		"missing availability": "product_missing_availability",
		"invalid price":        "product_invalid_price",
		"price expired":        "product_price_expired",
		"out of stock":         "product_out_of_stock",
		"multiple":             "product_multiple",
	}
	for _, issue := range p.ProductIssues {
		if code, ok := fieldCodes[issue]; ok {
			emit(code)
		}
	}
}
