package model

// Discovery source values recorded on every page.
const (
	DiscoveredViaSeed    = "seed"
	DiscoveredViaSitemap = "sitemap"
	DiscoveredViaCrawl   = "crawl"
)

// RedirectHop is one entry of the redirect chain observed during navigation.
type RedirectHop struct {
	URL        string `json:"url"`
	StatusCode int    `json:"statusCode"`
}

// CoreWebVitals holds best-effort in-page performance timings. Nil means the
// metric was not observable for this navigation.
type CoreWebVitals struct {
	LCPMs  *float64 `json:"lcp_ms,omitempty"`
	FCPMs  *float64 `json:"fcp_ms,omitempty"`
	TTFBMs *float64 `json:"ttfb_ms,omitempty"`
	CLS    *float64 `json:"cls_score,omitempty"`
	INPMs  *float64 `json:"inp_ms,omitempty"`
}

// ImageInfo describes one <img> element.
type ImageInfo struct {
	Src      string  `json:"src"`
	Alt      *string `json:"alt,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	HasAlt   bool    `json:"has_alt"`
	EmptyAlt bool    `json:"empty_alt"`
}

// HreflangEntry is one <link rel="alternate" hreflang> element.
type HreflangEntry struct {
	Lang string `json:"lang"`
	Href string `json:"href"`
}

// KeywordStat is one row of the keyword density table.
type KeywordStat struct {
	Word    string  `json:"word"`
	Count   int     `json:"count"`
	Density float64 `json:"density"`
}

// ReadingLevel is the Flesch-Kincaid grade with its bucket.
type ReadingLevel struct {
	Grade  int    `json:"grade"`
	Bucket string `json:"bucket"`
}

// SchemaObject is one structured-data node found on the page, either a
// JSON-LD node or a microdata itemtype. A JSON-LD node may declare several
// @type names; it is still a single object.
type SchemaObject struct {
	Types []string       `json:"types"`
	Raw   map[string]any `json:"-"`
}

// ArticlePerson covers schema.org author/publisher shapes.
type ArticlePerson struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// ArticleData is the normalized article schema extracted from JSON-LD.
type ArticleData struct {
	Type             string         `json:"type"`
	Headline         string         `json:"headline,omitempty"`
	Description      string         `json:"description,omitempty"`
	Body             string         `json:"body,omitempty"`
	DatePublished    string         `json:"datePublished,omitempty"`
	DateModified     string         `json:"dateModified,omitempty"`
	Image            string         `json:"image,omitempty"`
	Author           *ArticlePerson `json:"author,omitempty"`
	Publisher        *ArticlePerson `json:"publisher,omitempty"`
	WordCount        int            `json:"wordCount,omitempty"`
	InLanguage       string         `json:"inLanguage,omitempty"`
	MainEntityOfPage string         `json:"mainEntityOfPage,omitempty"`
}

// ProductOffer is one normalized offer on a product schema.
type ProductOffer struct {
	Price           *float64 `json:"price,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	Availability    string   `json:"availability,omitempty"`
	PriceValidUntil string   `json:"priceValidUntil,omitempty"`
}

// ProductRating is the aggregateRating block of a product schema.
type ProductRating struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// ProductData is the normalized product schema extracted from JSON-LD.
type ProductData struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	SKU         string         `json:"sku,omitempty"`
	Brand       string         `json:"brand,omitempty"`
	Image       string         `json:"image,omitempty"`
	Rating      *ProductRating `json:"rating,omitempty"`
	Condition   string         `json:"condition,omitempty"`
	Offers      []ProductOffer `json:"offers,omitempty"`
}

// MobileSignals is the result of the viewport/mobile analysis.
type MobileSignals struct {
	HasViewport          bool `json:"has_viewport"`
	IsZoomDisabled       bool `json:"is_zoom_disabled"`
	InitialScaleNotOne   bool `json:"initial_scale_not_one"`
	HasAppleTouchIcon    bool `json:"has_apple_touch_icon"`
	HasManifest          bool `json:"has_manifest"`
	HasThemeColor        bool `json:"has_theme_color"`
	NonResponsiveImages  int  `json:"non_responsive_images"`
	NonResponsiveTables  int  `json:"non_responsive_tables"`
	FixedElements        int  `json:"fixed_elements"`
	HasTelLinks          bool `json:"has_tel_links"`
	PhoneNumbersInBody   int  `json:"phone_numbers_in_body"`
	LCPCandidateLazy     bool `json:"lcp_candidate_lazy"`
	UsesMediaQueries     bool `json:"uses_media_queries"`
	SmallTextElements    int  `json:"small_text_elements"`
	SmallTapTargets      int  `json:"small_tap_targets"`
	ContentWiderThanView bool `json:"content_wider_than_view"`
}

// PageRecord is the uniform output of extraction for one crawled page. The
// json-tagged fields mirror the crawled_pages columns; the untagged analysis
// fields feed issue detection and the post-crawl pass.
type PageRecord struct {
	URL           string        `json:"url"`
	URLHash       string        `json:"url_hash"`
	Path          string        `json:"path"`
	QueryString   string        `json:"query_string,omitempty"`
	StatusCode    int           `json:"status_code"`
	RedirectURL   string        `json:"redirect_url,omitempty"`
	RedirectChain []RedirectHop `json:"redirect_chain,omitempty"`
	ContentType   string        `json:"content_type,omitempty"`

	ResponseTimeMs int64 `json:"response_time_ms"`
	PageSizeBytes  int64 `json:"page_size_bytes"`
	HTMLSizeBytes  int64 `json:"html_size_bytes"`
	RequestCount   int   `json:"request_count"`
	PageDepth      int   `json:"page_depth"`

	Title                 string `json:"title,omitempty"`
	TitleLength           int    `json:"title_length"`
	MetaDescription       string `json:"meta_description,omitempty"`
	MetaDescriptionLength int    `json:"meta_description_length"`
	CanonicalURL          string `json:"canonical_url,omitempty"`
	IsSelfCanonical       *bool  `json:"is_self_canonical,omitempty"`

	H1Tags          []string `json:"h1_tags,omitempty"`
	H2Tags          []string `json:"h2_tags,omitempty"`
	H1Count         int      `json:"h1_count"`
	H2Count         int      `json:"h2_count"`
	HeadingSequence []string `json:"-"`

	RobotsMeta         string `json:"robots_meta,omitempty"`
	IsIndexable        bool   `json:"is_indexable"`
	IndexabilityReason string `json:"indexability_reason,omitempty"`

	InternalLinks         []string `json:"-"`
	ExternalLinks         []string `json:"-"`
	InternalLinksCount    int      `json:"internal_links_count"`
	ExternalLinksCount    int      `json:"external_links_count"`
	InternalLinksReceived int      `json:"internal_links_received"`

	Images             []ImageInfo `json:"-"`
	ImagesCount        int         `json:"images_count"`
	ImagesWithoutAlt   int         `json:"images_without_alt"`
	ImagesWithEmptyAlt int         `json:"images_with_empty_alt"`

	WordCount      int           `json:"word_count"`
	TextHTMLRatio  int           `json:"text_html_ratio"`
	KeywordDensity []KeywordStat `json:"keyword_density,omitempty"`
	ReadingLevel   *ReadingLevel `json:"reading_level,omitempty"`

	CoreWebVitals *CoreWebVitals `json:"core_web_vitals,omitempty"`

	IsMobileFriendly   *bool          `json:"is_mobile_friendly,omitempty"`
	ViewportConfigured bool           `json:"viewport_configured"`
	ViewportContent    string         `json:"-"`
	Mobile             *MobileSignals `json:"-"`

	SchemaTypes       []string       `json:"schema_types,omitempty"`
	HasSchema         bool           `json:"has_schema"`
	StructuredData    []SchemaObject `json:"-"`
	SchemaDiagnostics []string       `json:"-"`

	Articles      []ArticleData `json:"-"`
	ArticleIssues []string      `json:"-"`
	Products      []ProductData `json:"-"`
	ProductIssues []string      `json:"-"`

	HreflangTags   []HreflangEntry `json:"hreflang_tags,omitempty"`
	HreflangIssues []string        `json:"-"`

	OGTitle       string `json:"og_title,omitempty"`
	OGDescription string `json:"og_description,omitempty"`
	OGImage       string `json:"og_image,omitempty"`
	TwitterCard   string `json:"twitter_card,omitempty"`

	IsHTTPS         bool  `json:"is_https"`
	HasMixedContent *bool `json:"has_mixed_content,omitempty"`

	HTMLLang string `json:"html_lang,omitempty"`

	RenderBlockingResources int  `json:"-"`
	UnminifiedCSS           int  `json:"-"`
	UnminifiedJS            int  `json:"-"`
	RelPrev                 bool `json:"-"`
	RelNext                 bool `json:"-"`

	ContentHash   string `json:"content_hash,omitempty"`
	BodyText      string `json:"body_text,omitempty"`
	DiscoveredVia string `json:"discovered_via"`
}

// ResumeInfo is carried on a resume job's settings snapshot: the URLs the
// predecessor already fetched plus its final counters.
type ResumeInfo struct {
	ResumedFrom             string   `json:"resumed_from"`
	SkipURLs                []string `json:"skip_urls"`
	OriginalPagesCrawled    int      `json:"original_pages_crawled"`
	OriginalPagesFailed     int      `json:"original_pages_failed"`
	OriginalPagesDiscovered int      `json:"original_pages_discovered"`
}

// CrawlSettings is the per-job policy snapshot read from the job row.
type CrawlSettings struct {
	MaxPages         int         `json:"max_pages" validate:"gte=1,lte=50000"`
	MaxDepth         int         `json:"max_depth" validate:"gte=0,lte=100"`
	CrawlDelayMs     int         `json:"crawl_delay_ms" validate:"gte=0,lte=60000"`
	RespectRobotsTxt bool        `json:"respect_robots_txt"`
	FollowSubdomains bool        `json:"follow_subdomains"`
	RenderJavascript bool        `json:"render_javascript"`
	UserAgent        string      `json:"user_agent,omitempty"`
	IncludePatterns  []string    `json:"include_patterns,omitempty"`
	ExcludePatterns  []string    `json:"exclude_patterns,omitempty"`
	ResumeInfo       *ResumeInfo `json:"resume_info,omitempty"`
}
