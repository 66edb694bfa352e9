package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Strategies accepted by Analyze.
const (
	StrategyMobile  = "mobile"
	StrategyDesktop = "desktop"
)

// Audit is the normalized result of one performance analysis run.
type Audit struct {
	URL              string
	Strategy         string
	PerformanceScore int
	LCPMs            *float64
	FCPMs            *float64
	CLS              *float64
	TBTMs            *float64
	SpeedIndexMs     *float64
	FieldData        json.RawMessage
	Opportunities    json.RawMessage
	Diagnostics      json.RawMessage
}

// Opportunity is one improvement suggestion from the lab report.
type Opportunity struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	SavingsMs   float64 `json:"savings_ms,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Client calls the external PageSpeed-style performance oracle. A client
// without an API key is disabled: Analyze returns ErrDisabled and callers
// skip the audit.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// ErrDisabled marks a client constructed without an API key.
var ErrDisabled = fmt.Errorf("performance oracle disabled: no API key")

// New builds a client. baseURL may be empty to use the public endpoint.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether the oracle can be called.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// pagespeedResponse models only the subset of the oracle response we persist.
type pagespeedResponse struct {
	LoadingExperience struct {
		Metrics json.RawMessage `json:"metrics"`
	} `json:"loadingExperience"`
	LighthouseResult struct {
		Categories struct {
			Performance struct {
				Score float64 `json:"score"`
			} `json:"performance"`
		} `json:"categories"`
		Audits map[string]struct {
			Title        string          `json:"title"`
			Score        *float64        `json:"score"`
			NumericValue *float64        `json:"numericValue"`
			Description  string          `json:"description"`
			Details      json.RawMessage `json:"details"`
		} `json:"audits"`
	} `json:"lighthouseResult"`
}

// Analyze runs the oracle for one URL and strategy.
func (c *Client) Analyze(ctx context.Context, pageURL, strategy string) (*Audit, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if strategy != StrategyMobile && strategy != StrategyDesktop {
		return nil, fmt.Errorf("ORACLE_STRATEGY: unsupported strategy %q", strategy)
	}

	values := url.Values{}
	values.Set("url", pageURL)
	values.Set("strategy", strategy)
	values.Set("category", "performance")
	values.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ORACLE_STATUS: analysis failed with status %d", resp.StatusCode)
	}

	var payload pagespeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("ORACLE_DECODE: %w", err)
	}

	audit := &Audit{
		URL:              pageURL,
		Strategy:         strategy,
		PerformanceScore: int(payload.LighthouseResult.Categories.Performance.Score*100 + 0.5),
		FieldData:        payload.LoadingExperience.Metrics,
	}

	audits := payload.LighthouseResult.Audits
	metric := func(id string) *float64 {
		if a, ok := audits[id]; ok {
			return a.NumericValue
		}
		return nil
	}
	audit.LCPMs = metric("largest-contentful-paint")
	audit.FCPMs = metric("first-contentful-paint")
	audit.CLS = metric("cumulative-layout-shift")
	audit.TBTMs = metric("total-blocking-time")
	audit.SpeedIndexMs = metric("speed-index")

	var opportunities, diagnostics []Opportunity
	for id, a := range audits {
		if a.Score == nil || *a.Score >= 0.9 {
			continue
		}
		entry := Opportunity{ID: id, Title: a.Title, Description: a.Description}
		if a.NumericValue != nil {
			entry.SavingsMs = *a.NumericValue
		}
		if isOpportunity(a.Details) {
			opportunities = append(opportunities, entry)
		} else {
			diagnostics = append(diagnostics, entry)
		}
	}
	if len(opportunities) > 0 {
		audit.Opportunities, _ = json.Marshal(opportunities)
	}
	if len(diagnostics) > 0 {
		audit.Diagnostics, _ = json.Marshal(diagnostics)
	}

	return audit, nil
}

func isOpportunity(details json.RawMessage) bool {
	if len(details) == 0 {
		return false
	}
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(details, &meta); err != nil {
		return false
	}
	return meta.Type == "opportunity"
}
