package extractor

import (
	"net/url"
	"regexp"
	"strings"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// consentContainerHints are id/class substrings marking cookie and consent
// chrome that must not leak into the body view.
var consentContainerHints = []string{
	"cookie", "consent", "gdpr", "privacy-banner", "privacy-notice",
	"cmp-container", "cc-window", "cc-banner",
}

// consentVendorSelectors are well-known consent-vendor mount points.
var consentVendorSelectors = []string{
	"#onetrust-consent-sdk", "#onetrust-banner-sdk", "#CybotCookiebotDialog",
	"#usercentrics-root", "#didomi-host", "#cmpbox", "#qc-cmp2-container",
	"#truste-consent-track", "#sp_message_container", ".osano-cm-window",
	".cky-consent-container", ".termly-styles-root",
}

// boilerplateLineRes match lines of consent boilerplate that survive DOM
// stripping (for example when rendered inside ordinary content containers).
var boilerplateLineRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)we value your privacy`),
	regexp.MustCompile(`(?i)this (web)?site uses cookies`),
	regexp.MustCompile(`(?i)accept (all )?cookies`),
	regexp.MustCompile(`(?i)reject (all )?cookies`),
	regexp.MustCompile(`(?i)manage (your )?(cookie )?(preferences|settings|choices)`),
	regexp.MustCompile(`(?i)^(strictly necessary|functional|performance|targeting|advertising|analytics) cookies$`),
	regexp.MustCompile(`(?i)cookie (policy|settings|preferences|declaration)`),
	regexp.MustCompile(`(?i)consent leg\.?interest`),
	regexp.MustCompile(`(?i)(powered by )?(onetrust|cookiebot|usercentrics|didomi|quantcast|trustarc|osano)`),
	regexp.MustCompile(`(?i)iab transparency`),
	regexp.MustCompile(`(?i)your privacy choices`),
	regexp.MustCompile(`(?i)do not sell (or share )?my (personal )?information`),
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// ExtractMarkdown renders the page body as Markdown with navigation, cookie,
// and consent boilerplate removed.
func ExtractMarkdown(html string, base *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	body := doc.Find("body").Clone()
	if body.Length() == 0 {
		return ""
	}

	body.Find(nonContentTags).Remove()
	removeConsentContainers(body)

	cleaned, err := goquery.OuterHtml(body)
	if err != nil {
		return ""
	}

	domain := ""
	if base != nil {
		domain = base.Hostname()
	}
	converter := htmlmd.NewConverter(domain, true, nil)
	markdown, err := converter.ConvertString(cleaned)
	if err != nil {
		return ""
	}

	return tidyMarkdown(markdown)
}

func removeConsentContainers(body *goquery.Selection) {
	for _, sel := range consentVendorSelectors {
		body.Find(sel).Remove()
	}

	body.Find("div, section, aside").Each(func(_ int, sel *goquery.Selection) {
		idAndClass := strings.ToLower(sel.AttrOr("id", "") + " " + sel.AttrOr("class", ""))
		for _, hint := range consentContainerHints {
			if strings.Contains(idAndClass, hint) {
				sel.Remove()
				return
			}
		}
	})
}

// tidyMarkdown drops boilerplate lines, collapses blank runs, and strips a
// leading privacy block that slipped past container removal.
func tidyMarkdown(markdown string) string {
	lines := strings.Split(markdown, "\n")
	kept := make([]string, 0, len(lines))

outer:
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, re := range boilerplateLineRes {
			if re.MatchString(trimmed) {
				continue outer
			}
		}
		kept = append(kept, line)
	}

	out := strings.TrimSpace(blankRunRe.ReplaceAllString(strings.Join(kept, "\n"), "\n\n"))

	if idx := strings.Index(strings.ToLower(out), "we value your privacy"); idx == 0 {
		if end := strings.Index(out, "\n\n"); end > 0 {
			out = strings.TrimSpace(out[end:])
		}
	}

	return out
}
