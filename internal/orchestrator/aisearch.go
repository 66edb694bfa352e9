package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"peregrine/internal/issues"
	"peregrine/internal/logger"
	"peregrine/internal/robots"
	"peregrine/internal/store"
)

const probeTimeout = 10 * time.Second

type probeDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AISearchReport scores how discoverable the site is for AI search crawlers.
type AISearchReport struct {
	Score          int
	HasLlmsTxt     bool
	HasAiTxt       bool
	BlockedBots    []string
	OptimizedRatio float64
	EligiblePages  int
	AnswerSchemas  int
}

// aiSearchReport combines robots AI-bot flags, llms.txt/ai.txt probes, the
// per-page optimization heuristic, and answer-schema counts into a 0-100
// score. Starts at 100 and deducts per a fixed penalty table.
func (o *Orchestrator) aiSearchReport(ctx context.Context, pages []store.AnalysisPage) AISearchReport {
	report := AISearchReport{
		HasLlmsTxt: o.probeTextFile(ctx, "https://"+o.domain+"/llms.txt"),
		HasAiTxt:   o.probeTextFile(ctx, "https://"+o.domain+"/ai.txt"),
	}

	if o.robotsPolicy != nil {
		for bot, access := range o.robotsPolicy.AIBotAccess() {
			if access == robots.BotDisallowed {
				report.BlockedBots = append(report.BlockedBots, bot)
			}
		}
	}

	optimized := 0
	for _, page := range pages {
		if page.StatusCode < 200 || page.StatusCode >= 300 || !page.IsIndexable {
			continue
		}
		report.EligiblePages++
		if page.H1Count == 1 && page.H2Count >= 2 && page.WordCount >= 300 && page.TitleLength >= 20 {
			optimized++
		}
		report.AnswerSchemas += answerSchemaCount(page.SchemaTypes.RawMessage)
	}
	if report.EligiblePages > 0 {
		report.OptimizedRatio = float64(optimized) / float64(report.EligiblePages)
	}

	score := 100
	if !report.HasLlmsTxt {
		score -= 15
	}
	if !report.HasAiTxt {
		score -= 5
	}
	blockedPenalty := 5 * len(report.BlockedBots)
	if blockedPenalty > 25 {
		blockedPenalty = 25
	}
	score -= blockedPenalty
	if report.EligiblePages > 0 {
		switch {
		case report.OptimizedRatio < 0.3:
			score -= 20
		case report.OptimizedRatio < 0.7:
			score -= 10
		}
	}
	if report.AnswerSchemas == 0 {
		score -= 10
	}
	if score < 0 {
		score = 0
	}
	report.Score = score
	return report
}

// probeTextFile fetches a well-known text file and validates its structure:
// non-empty, at least 50 chars, and a title or URL marker.
func (o *Orchestrator) probeTextFile(ctx context.Context, fileURL string) bool {
	client := o.probeClient
	if client == nil {
		client = &http.Client{Timeout: probeTimeout}
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, fileURL, nil)
	if err != nil {
		return false
	}
	if o.userAgent != "" {
		req.Header.Set("User-Agent", o.userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return false
	}

	text := strings.TrimSpace(string(body))
	if len(text) < 50 {
		return false
	}
	return strings.Contains(text, "#") || strings.Contains(text, "http")
}

var answerSchemaTypes = map[string]struct{}{
	"FAQPage":   {},
	"HowTo":     {},
	"Speakable": {},
	"QAPage":    {},
}

func answerSchemaCount(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var types []string
	if err := json.Unmarshal(raw, &types); err != nil {
		return 0
	}
	count := 0
	for _, t := range types {
		if _, ok := answerSchemaTypes[t]; ok {
			count++
		}
	}
	return count
}

// persistAIIssues attaches the site-level AI findings to the homepage record.
func (o *Orchestrator) persistAIIssues(ctx context.Context, pages []store.AnalysisPage, report AISearchReport) {
	var homepage *store.AnalysisPage
	for i := range pages {
		if pages[i].PageDepth == 0 {
			homepage = &pages[i]
			break
		}
	}
	if homepage == nil {
		if len(pages) == 0 {
			return
		}
		homepage = &pages[0]
	}

	emit := func(code string, details map[string]any) {
		o.persistFinding(ctx, homepage.ID, issues.Finding{Code: code, Details: details})
	}

	if len(report.BlockedBots) > 0 {
		emit("ai_bots_blocked", map[string]any{"bots": report.BlockedBots})
	}
	if !report.HasLlmsTxt {
		emit("ai_missing_llms_txt", nil)
	}
	if report.EligiblePages > 0 && report.OptimizedRatio < 0.3 {
		emit("ai_content_not_optimized", map[string]any{"optimized_ratio": report.OptimizedRatio})
	}

	o.log.Debug("ai search analysis",
		logger.Int("score", report.Score),
		logger.Bool("llms_txt", report.HasLlmsTxt),
		logger.Int("blocked_bots", len(report.BlockedBots)))
}
