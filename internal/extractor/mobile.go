package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"peregrine/internal/model"
)

var (
	phoneRe    = regexp.MustCompile(`(\+?\d{1,3}[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)
	fontSizeRe = regexp.MustCompile(`font-size\s*:\s*([\d.]+)\s*(px|pt|em|rem)`)
)

// Class tokens that indicate a responsive CSS framework is in play.
var mediaQueryClassTokens = []string{"col-sm", "col-md", "col-lg", "md:", "lg:", "sm:", "d-sm-", "d-md-", "@screen"}

// Stylesheet hrefs mentioning these names imply media-query support.
var responsiveFrameworks = []string{"bootstrap", "tailwind", "foundation", "bulma", "materialize"}

// Wrapper classes that make a table acceptable on small screens.
var responsiveTableClasses = []string{"overflow", "responsive", "scroll", "data-responsive"}

// Selectors commonly styled as fixed/sticky chrome.
var fixedSelectors = []string{".fixed", ".sticky", ".navbar-fixed", ".fixed-top", ".fixed-bottom", "#cookie-banner", ".sticky-header"}

// extractMobile runs the viewport and mobile-usability analysis.
func extractMobile(doc *goquery.Document, rec *model.PageRecord) {
	m := &model.MobileSignals{}
	rec.Mobile = m

	m.HasViewport = rec.ViewportConfigured
	viewport := parseViewport(rec.ViewportContent)

	if scalable, ok := viewport["user-scalable"]; ok && (scalable == "no" || scalable == "0") {
		m.IsZoomDisabled = true
	}
	if maxScale, ok := viewport["maximum-scale"]; ok {
		if f, err := strconv.ParseFloat(maxScale, 64); err == nil && f <= 1 {
			m.IsZoomDisabled = true
		}
	}
	if initScale, ok := viewport["initial-scale"]; ok {
		if f, err := strconv.ParseFloat(initScale, 64); err == nil && f != 1 {
			m.InitialScaleNotOne = true
		}
	}

	m.HasAppleTouchIcon = doc.Find(`link[rel="apple-touch-icon"], link[rel="apple-touch-icon-precomposed"]`).Length() > 0
	m.HasManifest = doc.Find("link[rel=manifest]").Length() > 0
	m.HasThemeColor = doc.Find("meta[name=theme-color]").Length() > 0

	countNonResponsiveImages(doc, m)
	countNonResponsiveTables(doc, m)
	countFixedElements(doc, m)
	detectTelLinks(doc, m)
	detectLazyLCP(doc, m)
	m.UsesMediaQueries = detectMediaQueries(doc)
	countSmallText(doc, m)

	friendly := m.HasViewport && !m.IsZoomDisabled
	rec.IsMobileFriendly = &friendly
}

// parseViewport splits a viewport content attribute into key/value pairs.
func parseViewport(content string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(content, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) == 2 {
			out[strings.ToLower(strings.TrimSpace(kv[0]))] = strings.ToLower(strings.TrimSpace(kv[1]))
		}
	}
	return out
}

// countNonResponsiveImages flags images over 50px on either side that carry
// no srcset and are not wrapped in <picture>.
func countNonResponsiveImages(doc *goquery.Document, m *model.MobileSignals) {
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		w, _ := strconv.Atoi(sel.AttrOr("width", "0"))
		h, _ := strconv.Atoi(sel.AttrOr("height", "0"))
		if w <= 50 && h <= 50 {
			return
		}
		if _, hasSrcset := sel.Attr("srcset"); hasSrcset {
			return
		}
		if sel.ParentsFiltered("picture").Length() > 0 {
			return
		}
		m.NonResponsiveImages++
	})
}

func countNonResponsiveTables(doc *goquery.Document, m *model.MobileSignals) {
	doc.Find("table").Each(func(_ int, sel *goquery.Selection) {
		wrapped := false
		sel.Parents().EachWithBreak(func(_ int, parent *goquery.Selection) bool {
			class := strings.ToLower(parent.AttrOr("class", ""))
			for _, token := range responsiveTableClasses {
				if strings.Contains(class, token) {
					wrapped = true
					return false
				}
			}
			return true
		})
		if !wrapped {
			m.NonResponsiveTables++
		}
	})
}

func countFixedElements(doc *goquery.Document, m *model.MobileSignals) {
	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		style := strings.ToLower(sel.AttrOr("style", ""))
		if strings.Contains(style, "position:fixed") || strings.Contains(style, "position: fixed") ||
			strings.Contains(style, "position:sticky") || strings.Contains(style, "position: sticky") {
			m.FixedElements++
		}
	})
	for _, selector := range fixedSelectors {
		m.FixedElements += doc.Find(selector).Length()
	}
}

func detectTelLinks(doc *goquery.Document, m *model.MobileSignals) {
	m.HasTelLinks = doc.Find(`a[href^="tel:"]`).Length() > 0

	body := doc.Find("body").Clone()
	body.Find(nonContentTags).Remove()
	m.PhoneNumbersInBody = len(phoneRe.FindAllString(body.Text(), -1))
}

// detectLazyLCP flags a lazy-loaded likely-LCP image: the first image under
// the page header or hero region carrying loading=lazy.
func detectLazyLCP(doc *goquery.Document, m *model.MobileSignals) {
	candidate := doc.Find("header img, .hero img, .banner img, .jumbotron img, main img").First()
	if candidate.Length() == 0 {
		candidate = doc.Find("img").First()
	}
	if candidate.Length() > 0 && strings.EqualFold(candidate.AttrOr("loading", ""), "lazy") {
		m.LCPCandidateLazy = true
	}
}

// detectMediaQueries looks for inline @media rules, well-known framework
// stylesheets, or responsive utility class tokens.
func detectMediaQueries(doc *goquery.Document) bool {
	found := false

	doc.Find("style").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.Contains(sel.Text(), "@media") {
			found = true
			return false
		}
		return true
	})
	if found {
		return true
	}

	doc.Find("link[rel=stylesheet]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href := strings.ToLower(sel.AttrOr("href", ""))
		for _, fw := range responsiveFrameworks {
			if strings.Contains(href, fw) {
				found = true
				return false
			}
		}
		return true
	})
	if found {
		return true
	}

	doc.Find("[class]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		class := sel.AttrOr("class", "")
		for _, token := range mediaQueryClassTokens {
			if strings.Contains(class, token) {
				found = true
				return false
			}
		}
		return true
	})

	return found
}

// countSmallText counts elements whose inline font-size resolves below 12px
// (1pt = 1.333px; 1em/rem = 16px).
func countSmallText(doc *goquery.Document, m *model.MobileSignals) {
	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		match := fontSizeRe.FindStringSubmatch(strings.ToLower(sel.AttrOr("style", "")))
		if match == nil {
			return
		}
		size, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return
		}
		px := size
		switch match[2] {
		case "pt":
			px = size * 1.333
		case "em", "rem":
			px = size * 16
		}
		if px < 12 {
			m.SmallTextElements++
		}
	})
}
