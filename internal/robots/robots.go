package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	robotstxt "github.com/temoto/robotstxt"
)

// AIBots is the fixed list of AI crawler user agents classified from
// robots.txt directives.
var AIBots = []string{
	"GPTBot",
	"ChatGPT-User",
	"Google-Extended",
	"anthropic-ai",
	"Claude-Web",
	"PerplexityBot",
	"Amazonbot",
	"OAI-SearchBot",
	"cohere-ai",
	"FacebookBot",
}

// BotAccess is the tri-state classification of one AI bot's robots.txt entry.
type BotAccess string

const (
	BotAllowed     BotAccess = "allowed"
	BotDisallowed  BotAccess = "disallowed"
	BotUnmentioned BotAccess = "unmentioned"
)

// Policy answers robots.txt questions for one domain. A Policy built from a
// failed fetch is fully permissive.
type Policy struct {
	data       *robotstxt.RobotsData
	userAgent  string
	crawlDelay time.Duration
	sitemaps   []string
	aiAccess   map[string]BotAccess
	permissive bool
}

// Fetch downloads and parses https://{domain}/robots.txt with the given user
// agent. On any network error or non-2xx response the returned policy allows
// everything, per the fail-open contract.
func Fetch(ctx context.Context, domain, userAgent string) *Policy {
	permissive := &Policy{userAgent: userAgent, permissive: true, aiAccess: map[string]BotAccess{}}

	robotsURL := fmt.Sprintf("https://%s/robots.txt", domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return permissive
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return permissive
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return permissive
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return permissive
	}

	return Parse(body, userAgent)
}

// Parse builds a Policy from raw robots.txt bytes. Exposed separately so
// tests and probes can classify without the HTTP round trip.
func Parse(body []byte, userAgent string) *Policy {
	data, err := robotstxt.FromStatusAndBytes(http.StatusOK, body)
	if err != nil {
		return &Policy{userAgent: userAgent, permissive: true, aiAccess: map[string]BotAccess{}}
	}

	p := &Policy{
		data:      data,
		userAgent: userAgent,
		aiAccess:  scanAIBotAccess(string(body)),
	}

	if grp := data.FindGroup(userAgent); grp != nil {
		p.crawlDelay = grp.CrawlDelay
	}

	for _, line := range strings.Split(string(body), "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) >= 8 && strings.EqualFold(trimmed[:8], "sitemap:") {
			if loc := strings.TrimSpace(trimmed[8:]); loc != "" {
				p.sitemaps = append(p.sitemaps, loc)
			}
		}
	}

	return p
}

// IsAllowed reports whether the configured user agent may fetch the URL.
func (p *Policy) IsAllowed(rawURL string) bool {
	if p.permissive || p.data == nil {
		return true
	}
	return p.data.TestAgent(rawURL, p.userAgent)
}

// CrawlDelay returns the robots-declared delay for the configured user
// agent, zero when none is declared.
func (p *Policy) CrawlDelay() time.Duration {
	return p.crawlDelay
}

// Sitemaps returns Sitemap: directives in file order.
func (p *Policy) Sitemaps() []string {
	return p.sitemaps
}

// AIBotAccess returns the tri-state access classification for every entry
// of AIBots.
func (p *Policy) AIBotAccess() map[string]BotAccess {
	out := make(map[string]BotAccess, len(AIBots))
	for _, bot := range AIBots {
		if access, ok := p.aiAccess[bot]; ok {
			out[bot] = access
		} else {
			out[bot] = BotUnmentioned
		}
	}
	return out
}

// scanAIBotAccess walks the raw file looking for a User-agent line naming one
// of the AI bots, then classifies it from the first full-site Disallow/Allow
// directive before the next blank line, comment, or User-agent line.
func scanAIBotAccess(body string) map[string]BotAccess {
	access := make(map[string]BotAccess)
	lines := strings.Split(body, "\n")

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !hasDirective(trimmed, "user-agent:") {
			continue
		}
		agent := strings.TrimSpace(trimmed[len("user-agent:"):])

		var matched string
		for _, bot := range AIBots {
			if strings.EqualFold(agent, bot) {
				matched = bot
				break
			}
		}
		if matched == "" {
			continue
		}

		for j := i + 1; j < len(lines); j++ {
			next := strings.TrimSpace(lines[j])
			if next == "" || strings.HasPrefix(next, "#") || hasDirective(next, "user-agent:") {
				break
			}
			if hasDirective(next, "disallow:") {
				if strings.TrimSpace(next[len("disallow:"):]) == "/" {
					access[matched] = BotDisallowed
					break
				}
			}
			if hasDirective(next, "allow:") {
				if strings.TrimSpace(next[len("allow:"):]) == "/" {
					access[matched] = BotAllowed
					break
				}
			}
		}
	}

	return access
}

func hasDirective(line, prefix string) bool {
	return len(line) >= len(prefix) && strings.EqualFold(line[:len(prefix)], prefix)
}
