package issues

// Severity levels of the issue catalogue.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityNotice  = "notice"
)

// Definition is one row of the issue_definitions catalogue. The catalogue is
// authoritative: findings whose code has no active definition are dropped.
type Definition struct {
	ID       string
	Code     string
	Name     string
	Category string
	Severity string
	IsActive bool
}

// BuiltinCatalogue is seeded into issue_definitions when the table is empty.
// Codes intentionally keep both historical naming styles.
var BuiltinCatalogue = []Definition{
	// crawlability
	{Code: "CRAWL_4XX_ERROR", Name: "Client error (4xx)", Category: "crawlability", Severity: SeverityError},
	{Code: "CRAWL_5XX_ERROR", Name: "Server error (5xx)", Category: "crawlability", Severity: SeverityError},
	{Code: "CRAWL_REDIRECT_CHAIN", Name: "Redirect chain", Category: "crawlability", Severity: SeverityWarning},
	{Code: "CRAWL_TEMP_REDIRECT", Name: "Temporary redirect", Category: "crawlability", Severity: SeverityNotice},
	{Code: "CRAWL_SLOW_RESPONSE", Name: "Slow server response", Category: "crawlability", Severity: SeverityWarning},
	{Code: "CRAWL_BROKEN_LINKS", Name: "Broken internal links", Category: "crawlability", Severity: SeverityError},

	// indexability
	{Code: "INDEX_NOINDEX", Name: "Page excluded by noindex", Category: "indexability", Severity: SeverityNotice},
	{Code: "INDEX_MISSING_CANONICAL", Name: "Indexable page without canonical", Category: "indexability", Severity: SeverityNotice},

	// content
	{Code: "CONTENT_MISSING_TITLE", Name: "Missing title tag", Category: "content", Severity: SeverityError},
	{Code: "CONTENT_TITLE_TOO_SHORT", Name: "Title too short", Category: "content", Severity: SeverityWarning},
	{Code: "CONTENT_TITLE_TOO_LONG", Name: "Title too long", Category: "content", Severity: SeverityWarning},
	{Code: "CONTENT_MISSING_META_DESCRIPTION", Name: "Missing meta description", Category: "content", Severity: SeverityWarning},
	{Code: "CONTENT_META_DESCRIPTION_TOO_SHORT", Name: "Meta description too short", Category: "content", Severity: SeverityNotice},
	{Code: "CONTENT_META_DESCRIPTION_TOO_LONG", Name: "Meta description too long", Category: "content", Severity: SeverityNotice},
	{Code: "CONTENT_MISSING_H1", Name: "Missing H1", Category: "content", Severity: SeverityError},
	{Code: "CONTENT_MULTIPLE_H1", Name: "Multiple H1 tags", Category: "content", Severity: SeverityWarning},
	{Code: "CONTENT_NO_BODY_TEXT", Name: "No body text", Category: "content", Severity: SeverityError},
	{Code: "CONTENT_VERY_THIN", Name: "Very thin content", Category: "content", Severity: SeverityWarning},
	{Code: "CONTENT_LOW_WORD_COUNT", Name: "Low word count", Category: "content", Severity: SeverityNotice},
	{Code: "CONTENT_KEYWORD_STUFFING", Name: "Keyword stuffing", Category: "content", Severity: SeverityWarning},
	{Code: "CONTENT_LOW_TEXT_HTML_RATIO", Name: "Low text-to-HTML ratio", Category: "content", Severity: SeverityNotice},
	{Code: "CONTENT_COMPLEX_READING_LEVEL", Name: "Complex reading level", Category: "content", Severity: SeverityNotice},
	{Code: "CONTENT_HEADING_HIERARCHY_SKIP", Name: "Heading hierarchy skips a level", Category: "content", Severity: SeverityNotice},
	{Code: "CONTENT_TITLE_BODY_MISMATCH", Name: "Title keywords missing from body", Category: "content", Severity: SeverityNotice},

	// performance
	{Code: "PERF_PAGE_SIZE_LARGE", Name: "Page size over 3 MB", Category: "performance", Severity: SeverityWarning},
	{Code: "PERF_HTML_TOO_LARGE", Name: "HTML over 100 KB", Category: "performance", Severity: SeverityNotice},
	{Code: "PERF_TOO_MANY_REQUESTS", Name: "Too many requests", Category: "performance", Severity: SeverityWarning},
	{Code: "PERF_SLOW_LCP", Name: "Slow Largest Contentful Paint", Category: "performance", Severity: SeverityWarning},
	{Code: "PERF_HIGH_CLS", Name: "High Cumulative Layout Shift", Category: "performance", Severity: SeverityWarning},
	{Code: "PERF_SLOW_TTFB", Name: "Slow Time To First Byte", Category: "performance", Severity: SeverityNotice},
	{Code: "PERF_SLOW_INP", Name: "Slow Interaction to Next Paint", Category: "performance", Severity: SeverityWarning},
	{Code: "PERF_UNMINIFIED_CSS", Name: "Unminified CSS", Category: "performance", Severity: SeverityNotice},
	{Code: "PERF_UNMINIFIED_JS", Name: "Unminified JavaScript", Category: "performance", Severity: SeverityNotice},
	{Code: "PERF_RENDER_BLOCKING", Name: "Render-blocking resources", Category: "performance", Severity: SeverityNotice},

	// security
	{Code: "SECURITY_NOT_HTTPS", Name: "Page not served over HTTPS", Category: "security", Severity: SeverityError},
	{Code: "SECURITY_MIXED_CONTENT", Name: "Mixed content", Category: "security", Severity: SeverityError},

	// images
	{Code: "IMAGES_MISSING_ALT", Name: "Images without alt attribute", Category: "images", Severity: SeverityWarning},
	{Code: "IMAGES_EMPTY_ALT", Name: "Images with empty alt attribute", Category: "images", Severity: SeverityNotice},

	// structured data
	{Code: "SCHEMA_MISSING", Name: "No structured data", Category: "structured-data", Severity: SeverityNotice},
	{Code: "SCHEMA_PARSE_ERROR", Name: "Invalid structured data", Category: "structured-data", Severity: SeverityWarning},

	// mobile
	{Code: "mobile_missing_viewport", Name: "Missing viewport meta", Category: "mobile", Severity: SeverityError},
	{Code: "mobile_zoom_disabled", Name: "Zoom disabled", Category: "mobile", Severity: SeverityWarning},
	{Code: "mobile_initial_scale_not_one", Name: "Initial scale is not 1", Category: "mobile", Severity: SeverityNotice},
	{Code: "mobile_images_not_responsive", Name: "Images not responsive", Category: "mobile", Severity: SeverityWarning},
	{Code: "mobile_tables_not_responsive", Name: "Tables without responsive wrapper", Category: "mobile", Severity: SeverityNotice},
	{Code: "mobile_excessive_fixed_elements", Name: "Excessive fixed elements", Category: "mobile", Severity: SeverityNotice},
	{Code: "mobile_small_font_size", Name: "Font size under 12px", Category: "mobile", Severity: SeverityWarning},
	{Code: "mobile_small_tap_targets", Name: "Tap targets too small", Category: "mobile", Severity: SeverityWarning},
	{Code: "mobile_content_wider_than_screen", Name: "Content wider than screen", Category: "mobile", Severity: SeverityWarning},
	{Code: "mobile_no_apple_touch_icon", Name: "Missing apple-touch-icon", Category: "mobile", Severity: SeverityNotice},
	{Code: "mobile_no_manifest", Name: "Missing web app manifest", Category: "mobile", Severity: SeverityNotice},
	{Code: "mobile_no_theme_color", Name: "Missing theme-color", Category: "mobile", Severity: SeverityNotice},
	{Code: "mobile_no_tel_links", Name: "Phone numbers without tel: links", Category: "mobile", Severity: SeverityNotice},
	{Code: "mobile_lcp_lazy_loaded", Name: "LCP candidate lazy-loaded", Category: "mobile", Severity: SeverityWarning},
	{Code: "mobile_no_media_queries", Name: "No media queries detected", Category: "mobile", Severity: SeverityWarning},

	// international
	{Code: "INTL_HREFLANG_INVALID", Name: "Invalid hreflang annotations", Category: "international", Severity: SeverityWarning},
	{Code: "INTL_HREFLANG_MISSING_SELF", Name: "Hreflang set without self-reference", Category: "international", Severity: SeverityNotice},
	{Code: "INTL_MISSING_HTML_LANG", Name: "Missing html lang attribute", Category: "international", Severity: SeverityNotice},

	// social
	{Code: "SOCIAL_MISSING_OG_TITLE", Name: "Missing og:title", Category: "social", Severity: SeverityNotice},
	{Code: "SOCIAL_MISSING_OG_DESCRIPTION", Name: "Missing og:description", Category: "social", Severity: SeverityNotice},
	{Code: "SOCIAL_MISSING_OG_IMAGE", Name: "Missing og:image", Category: "social", Severity: SeverityNotice},
	{Code: "SOCIAL_MISSING_TWITTER_CARD", Name: "Missing twitter:card", Category: "social", Severity: SeverityNotice},

	// technical SEO
	{Code: "pagination_missing_rel_links", Name: "Paginated page without rel prev/next", Category: "technical-seo", Severity: SeverityNotice},
	{Code: "pagination_canonical_mismatch", Name: "Paginated canonical to non-paginated URL", Category: "technical-seo", Severity: SeverityWarning},
	{Code: "pagination_noindex", Name: "Paginated page with noindex", Category: "technical-seo", Severity: SeverityWarning},
	{Code: "excessive_url_parameters", Name: "Excessive URL parameters", Category: "technical-seo", Severity: SeverityWarning},
	{Code: "url_session_parameters", Name: "Session or filter parameters in URL", Category: "technical-seo", Severity: SeverityWarning},

	// site graph (post-crawl)
	{Code: "orphan_page", Name: "Orphan page", Category: "crawlability", Severity: SeverityWarning},
	{Code: "sitemap_only_page", Name: "Page only discoverable via sitemap", Category: "crawlability", Severity: SeverityNotice},
	{Code: "page_too_deep", Name: "Page deeper than 4 clicks", Category: "crawlability", Severity: SeverityNotice},
	{Code: "page_very_deep", Name: "Page deeper than 7 clicks", Category: "crawlability", Severity: SeverityWarning},
	{Code: "dead_end_page", Name: "Page without outgoing internal links", Category: "crawlability", Severity: SeverityNotice},
	{Code: "high_outbound_links", Name: "Excessive outbound links", Category: "crawlability", Severity: SeverityNotice},

	// article
	{Code: "article_missing_fields", Name: "Article schema missing fields", Category: "article", Severity: SeverityWarning},
	{Code: "article_headline_length", Name: "Article headline length", Category: "article", Severity: SeverityNotice},
	{Code: "article_invalid_date", Name: "Article date invalid", Category: "article", Severity: SeverityWarning},
	{Code: "article_future_date", Name: "Article dated in the future", Category: "article", Severity: SeverityWarning},
	{Code: "article_outdated", Name: "Article outdated", Category: "article", Severity: SeverityNotice},
	{Code: "article_multiple", Name: "Multiple article schemas", Category: "article", Severity: SeverityNotice},
	{Code: "article_missing_word_count", Name: "Article body without wordCount", Category: "article", Severity: SeverityNotice},

	// e-commerce
	{Code: "product_missing_name", Name: "Product schema missing name", Category: "e-commerce", Severity: SeverityWarning},
	{Code: "product_missing_description", Name: "Product schema missing description", Category: "e-commerce", Severity: SeverityNotice},
	{Code: "product_missing_image", Name: "Product schema missing image", Category: "e-commerce", Severity: SeverityWarning},
	{Code: "product_missing_sku", Name: "Product schema missing identifier", Category: "e-commerce", Severity: SeverityNotice},
	{Code: "product_missing_brand", Name: "Product schema missing brand", Category: "e-commerce", Severity: SeverityNotice},
	{Code: "product_missing_offer", Name: "Product schema without offer", Category: "e-commerce", Severity: SeverityWarning},
	{Code: "product_missing_price", Name: "Offer missing price", Category: "e-commerce", Severity: SeverityWarning},
	{Code: "product_missing_currency", Name: "Offer missing currency", Category: "e-commerce", Severity: SeverityNotice},
	{Code: "product_missing_availability", Name: "Offer missing availability", Category: "e-commerce", Severity: SeverityNotice},
	{Code: "product_invalid_price", Name: "Offer price invalid", Category: "e-commerce", Severity: SeverityError},
	{Code: "product_price_expired", Name: "Offer price expired", Category: "e-commerce", Severity: SeverityWarning},
	{Code: "product_out_of_stock", Name: "Product out of stock", Category: "e-commerce", Severity: SeverityNotice},
	{Code: "product_multiple", Name: "Multiple product schemas", Category: "e-commerce", Severity: SeverityNotice},

	// accessibility
	{Code: "A11Y_MISSING_LANG", Name: "Document language not declared", Category: "accessibility", Severity: SeverityWarning},

	// ai-search
	{Code: "ai_bots_blocked", Name: "AI crawlers blocked", Category: "ai-search", Severity: SeverityWarning},
	{Code: "ai_missing_llms_txt", Name: "Missing llms.txt", Category: "ai-search", Severity: SeverityNotice},
	{Code: "ai_content_not_optimized", Name: "Content not optimized for AI search", Category: "ai-search", Severity: SeverityNotice},
}

func init() {
	for i := range BuiltinCatalogue {
		BuiltinCatalogue[i].IsActive = true
	}
}
