package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"peregrine/internal/model"
)

// jsonbOrNull encodes v as a nullable jsonb parameter. Nil and empty values
// become SQL NULL.
func jsonbOrNull(v any) pqtype.NullRawMessage {
	if v == nil {
		return pqtype.NullRawMessage{}
	}
	raw, err := json.Marshal(v)
	if err != nil || string(raw) == "null" || string(raw) == "[]" || string(raw) == "{}" {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}
}

// UpsertPage writes one crawled page keyed by (crawl_id, url_hash) and
// returns the row id. Retries and resumed runs hit the conflict arm, so the
// write is idempotent.
func (s *Store) UpsertPage(ctx context.Context, crawlID uuid.UUID, rec *model.PageRecord) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO crawled_pages (
			id, crawl_id, url, url_hash, path, query_string,
			status_code, redirect_url, redirect_chain, content_type,
			response_time_ms, page_size_bytes, html_size_bytes, request_count, page_depth,
			title, title_length, meta_description, meta_description_length,
			canonical_url, is_self_canonical,
			h1_tags, h2_tags, h1_count, h2_count,
			robots_meta, is_indexable, indexability_reason,
			internal_links_count, external_links_count,
			images_count, images_without_alt, images_with_empty_alt,
			word_count, text_html_ratio, keyword_density, reading_level,
			core_web_vitals, is_mobile_friendly, viewport_configured,
			schema_types, has_schema, hreflang_tags,
			og_title, og_description, og_image, twitter_card,
			is_https, has_mixed_content, html_lang,
			content_hash, body_text, discovered_via, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
			$31, $32, $33, $34, $35, $36, $37, $38, $39, $40,
			$41, $42, $43, $44, $45, $46, $47, $48, $49, $50,
			$51, $52, $53, now()
		)
		ON CONFLICT (crawl_id, url_hash) DO UPDATE SET
			status_code = EXCLUDED.status_code,
			redirect_url = EXCLUDED.redirect_url,
			redirect_chain = EXCLUDED.redirect_chain,
			content_type = EXCLUDED.content_type,
			response_time_ms = EXCLUDED.response_time_ms,
			page_size_bytes = EXCLUDED.page_size_bytes,
			html_size_bytes = EXCLUDED.html_size_bytes,
			request_count = EXCLUDED.request_count,
			page_depth = EXCLUDED.page_depth,
			title = EXCLUDED.title,
			title_length = EXCLUDED.title_length,
			meta_description = EXCLUDED.meta_description,
			meta_description_length = EXCLUDED.meta_description_length,
			canonical_url = EXCLUDED.canonical_url,
			is_self_canonical = EXCLUDED.is_self_canonical,
			h1_tags = EXCLUDED.h1_tags,
			h2_tags = EXCLUDED.h2_tags,
			h1_count = EXCLUDED.h1_count,
			h2_count = EXCLUDED.h2_count,
			robots_meta = EXCLUDED.robots_meta,
			is_indexable = EXCLUDED.is_indexable,
			indexability_reason = EXCLUDED.indexability_reason,
			internal_links_count = EXCLUDED.internal_links_count,
			external_links_count = EXCLUDED.external_links_count,
			images_count = EXCLUDED.images_count,
			images_without_alt = EXCLUDED.images_without_alt,
			images_with_empty_alt = EXCLUDED.images_with_empty_alt,
			word_count = EXCLUDED.word_count,
			text_html_ratio = EXCLUDED.text_html_ratio,
			keyword_density = EXCLUDED.keyword_density,
			reading_level = EXCLUDED.reading_level,
			core_web_vitals = EXCLUDED.core_web_vitals,
			is_mobile_friendly = EXCLUDED.is_mobile_friendly,
			viewport_configured = EXCLUDED.viewport_configured,
			schema_types = EXCLUDED.schema_types,
			has_schema = EXCLUDED.has_schema,
			hreflang_tags = EXCLUDED.hreflang_tags,
			og_title = EXCLUDED.og_title,
			og_description = EXCLUDED.og_description,
			og_image = EXCLUDED.og_image,
			twitter_card = EXCLUDED.twitter_card,
			is_https = EXCLUDED.is_https,
			has_mixed_content = EXCLUDED.has_mixed_content,
			html_lang = EXCLUDED.html_lang,
			content_hash = EXCLUDED.content_hash,
			body_text = EXCLUDED.body_text,
			discovered_via = EXCLUDED.discovered_via
		RETURNING id`,
		uuid.New(), crawlID, rec.URL, rec.URLHash, rec.Path, rec.QueryString,
		rec.StatusCode, rec.RedirectURL, jsonbOrNull(rec.RedirectChain), rec.ContentType,
		rec.ResponseTimeMs, rec.PageSizeBytes, rec.HTMLSizeBytes, rec.RequestCount, rec.PageDepth,
		rec.Title, rec.TitleLength, rec.MetaDescription, rec.MetaDescriptionLength,
		rec.CanonicalURL, rec.IsSelfCanonical,
		jsonbOrNull(rec.H1Tags), jsonbOrNull(rec.H2Tags), rec.H1Count, rec.H2Count,
		rec.RobotsMeta, rec.IsIndexable, rec.IndexabilityReason,
		rec.InternalLinksCount, rec.ExternalLinksCount,
		rec.ImagesCount, rec.ImagesWithoutAlt, rec.ImagesWithEmptyAlt,
		rec.WordCount, rec.TextHTMLRatio, jsonbOrNull(rec.KeywordDensity), jsonbOrNull(rec.ReadingLevel),
		jsonbOrNull(rec.CoreWebVitals), rec.IsMobileFriendly, rec.ViewportConfigured,
		jsonbOrNull(rec.SchemaTypes), rec.HasSchema, jsonbOrNull(rec.HreflangTags),
		rec.OGTitle, rec.OGDescription, rec.OGImage, rec.TwitterCard,
		rec.IsHTTPS, rec.HasMixedContent, rec.HTMLLang,
		rec.ContentHash, rec.BodyText, rec.DiscoveredVia,
	).Scan(&id)
	return id, err
}

// UpdateInternalLinksReceived flushes the back-reference counts after the
// crawl, batched in one transaction keyed by url_hash.
func (s *Store) UpdateInternalLinksReceived(ctx context.Context, crawlID uuid.UUID, counts map[string]int) error {
	if len(counts) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE crawled_pages SET internal_links_received = $3
		 WHERE crawl_id = $1 AND url_hash = $2`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for hash, count := range counts {
		if _, err := stmt.ExecContext(ctx, crawlID, hash, count); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CrawledURLs lists every URL a job fetched, for resume skip lists.
func (s *Store) CrawledURLs(ctx context.Context, crawlID uuid.UUID) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT url FROM crawled_pages WHERE crawl_id = $1`, crawlID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// AnalysisPage is the slice of a crawled_pages row the post-crawl analyzer
// needs.
type AnalysisPage struct {
	ID                    uuid.UUID
	URL                   string
	URLHash               string
	StatusCode            int
	PageDepth             int
	InternalLinksCount    int
	InternalLinksReceived int
	IsIndexable           bool
	DiscoveredVia         string
	H1Count               int
	H2Count               int
	WordCount             int
	TitleLength           int
	SchemaTypes           pqtype.NullRawMessage
}

// PagesForAnalysis loads the analyzer's view of every page in a crawl.
func (s *Store) PagesForAnalysis(ctx context.Context, crawlID uuid.UUID) ([]AnalysisPage, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, url, url_hash, status_code, page_depth, internal_links_count,
		   internal_links_received, is_indexable, discovered_via, h1_count,
		   h2_count, word_count, title_length, schema_types
		 FROM crawled_pages WHERE crawl_id = $1`, crawlID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []AnalysisPage
	for rows.Next() {
		var p AnalysisPage
		if err := rows.Scan(&p.ID, &p.URL, &p.URLHash, &p.StatusCode, &p.PageDepth,
			&p.InternalLinksCount, &p.InternalLinksReceived, &p.IsIndexable,
			&p.DiscoveredVia, &p.H1Count, &p.H2Count, &p.WordCount,
			&p.TitleLength, &p.SchemaTypes); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
