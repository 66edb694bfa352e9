package orchestrator

import (
	"context"
	"encoding/json"
	"sync"

	"peregrine/internal/extractor"
	"peregrine/internal/issues"
	"peregrine/internal/logger"
	"peregrine/internal/metrics"
	"peregrine/internal/model"
	"peregrine/internal/oracle"
	"peregrine/internal/store"
)

const (
	deepPageThreshold     = 4
	veryDeepPageThreshold = 7
	outboundLinksLimit    = 150
)

// analyze runs the post-crawl pass: back-reference flush, graph issues,
// orphan detection, health score, external performance audit, AI-search
// scoring. Every sub-analyzer failure is logged and skipped; the job's
// terminal status is not affected.
func (o *Orchestrator) analyze(ctx context.Context) {
	o.flushIncomingLinks(ctx)

	pages, err := o.st.PagesForAnalysis(ctx, o.jobID)
	if err != nil {
		o.log.Error("post-crawl page load failed", logger.Err(err))
		return
	}

	for _, page := range pages {
		o.graphIssues(ctx, page)
	}
	o.brokenLinkIssues(ctx, pages)

	aiReport := o.aiSearchReport(ctx, pages)
	o.persistAIIssues(ctx, pages, aiReport)

	o.finalizeScores(ctx, len(pages), aiReport)
	o.runPerformanceAudits(ctx)
}

func (o *Orchestrator) flushIncomingLinks(ctx context.Context) {
	if len(o.incoming) == 0 {
		return
	}
	counts := make(map[string]int, len(o.incoming))
	for url, n := range o.incoming {
		counts[extractor.Sha256Hex(url)] = n
	}
	if err := o.st.UpdateInternalLinksReceived(ctx, o.jobID, counts); err != nil {
		o.log.Error("incoming link flush failed", logger.Err(err))
	}
}

// graphIssues flags depth, dead-end, outbound and orphan findings for one
// page. Error records are skipped: a 404 has no link graph worth judging.
func (o *Orchestrator) graphIssues(ctx context.Context, page store.AnalysisPage) {
	if page.StatusCode < 200 || page.StatusCode >= 400 {
		return
	}

	emit := func(code string, details map[string]any) {
		o.persistFinding(ctx, page.ID, issues.Finding{Code: code, Details: details})
	}

	switch {
	case page.PageDepth > veryDeepPageThreshold:
		emit("page_very_deep", map[string]any{"depth": page.PageDepth})
	case page.PageDepth > deepPageThreshold:
		emit("page_too_deep", map[string]any{"depth": page.PageDepth})
	}

	if page.StatusCode < 300 {
		if page.InternalLinksCount == 0 {
			emit("dead_end_page", nil)
		}
		if page.InternalLinksCount > outboundLinksLimit {
			emit("high_outbound_links", map[string]any{"count": page.InternalLinksCount})
		}
	}

	// Orphans: nothing on the site links here, it is not the seed, and it
	// did resolve. Sitemap-discovered pages get the softer code.
	if page.InternalLinksReceived == 0 && page.PageDepth > 0 {
		switch page.DiscoveredVia {
		case model.DiscoveredViaSitemap:
			emit("sitemap_only_page", nil)
		case model.DiscoveredViaSeed:
		default:
			emit("orphan_page", nil)
		}
	}
}

// brokenLinkIssues flags pages that link to URLs whose fetch failed.
func (o *Orchestrator) brokenLinkIssues(ctx context.Context, pages []store.AnalysisPage) {
	if len(o.broken) == 0 {
		return
	}

	for _, page := range pages {
		if page.StatusCode < 200 || page.StatusCode >= 300 {
			continue
		}
		var brokenTargets []string
		for _, target := range o.pageLinks[page.URLHash] {
			if _, bad := o.broken[target]; bad {
				brokenTargets = append(brokenTargets, target)
			}
		}
		if len(brokenTargets) > 0 {
			o.persistFinding(ctx, page.ID, issues.Finding{
				Code:    "CRAWL_BROKEN_LINKS",
				Details: map[string]any{"broken_links": brokenTargets},
			})
		}
	}
}

func (o *Orchestrator) finalizeScores(ctx context.Context, pageCount int, aiReport AISearchReport) {
	total, byCategory, err := o.st.IssueCounts(ctx, o.jobID)
	if err != nil {
		o.log.Error("issue count aggregation failed", logger.Err(err))
		return
	}

	health := issues.Score(total.Errors, total.Warnings, total.Notices)

	categoryScores := make(map[string]int, len(byCategory)+1)
	for category, counts := range byCategory {
		categoryScores[category] = issues.Score(counts.Errors, counts.Warnings, counts.Notices)
	}
	categoryScores["ai-search"] = aiReport.Score

	scoresJSON, err := json.Marshal(categoryScores)
	if err != nil {
		scoresJSON = nil
	}

	flagged, err := o.st.PagesWithIssues(ctx, o.jobID)
	if err != nil {
		o.log.Warn("passed-page count failed", logger.Err(err))
		flagged = pageCount
	}
	passed := pageCount - flagged
	if passed < 0 {
		passed = 0
	}

	if err := o.st.FinalizeJobCounters(ctx, o.jobID, health,
		total.Total(), total.Errors, total.Warnings, total.Notices, passed, scoresJSON); err != nil {
		o.log.Error("job counter finalize failed", logger.Err(err))
		return
	}

	o.log.Info("crawl analysis complete",
		logger.String("job_id", o.jobID.String()),
		logger.Int("health_score", health),
		logger.Int("total_issues", total.Total()),
		logger.Int("ai_search_score", aiReport.Score))
}

// runPerformanceAudits asks the external oracle about the homepage, mobile
// and desktop in parallel. Entirely best-effort.
func (o *Orchestrator) runPerformanceAudits(ctx context.Context) {
	if o.oracle == nil || !o.oracle.Enabled() {
		return
	}

	homepage := "https://" + o.domain

	var wg sync.WaitGroup
	for _, strategy := range []string{oracle.StrategyMobile, oracle.StrategyDesktop} {
		wg.Add(1)
		go func(strategy string) {
			defer wg.Done()

			audit, err := o.oracle.Analyze(ctx, homepage, strategy)
			metrics.RecordOracleAudit(strategy, err == nil)
			if err != nil {
				o.log.Warn("performance audit failed",
					logger.String("strategy", strategy),
					logger.Err(err))
				return
			}

			if err := o.st.InsertPerformanceAudit(ctx, store.PerformanceAudit{
				CrawlID:          o.jobID,
				URL:              audit.URL,
				Strategy:         audit.Strategy,
				PerformanceScore: audit.PerformanceScore,
				LCPMs:            audit.LCPMs,
				FCPMs:            audit.FCPMs,
				CLS:              audit.CLS,
				TBTMs:            audit.TBTMs,
				SpeedIndexMs:     audit.SpeedIndexMs,
				FieldData:        audit.FieldData,
				Opportunities:    audit.Opportunities,
				Diagnostics:      audit.Diagnostics,
			}); err != nil {
				o.log.Warn("performance audit persist failed",
					logger.String("strategy", strategy),
					logger.Err(err))
			}
		}(strategy)
	}
	wg.Wait()
}
