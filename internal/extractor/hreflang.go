package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"peregrine/internal/model"
	"peregrine/internal/urlutil"
)

// ISO 639-1 language codes accepted in hreflang annotations.
var validLangCodes = map[string]struct{}{
	"aa": {}, "ab": {}, "af": {}, "am": {}, "ar": {}, "as": {}, "az": {},
	"be": {}, "bg": {}, "bn": {}, "bs": {}, "ca": {}, "cs": {}, "cy": {},
	"da": {}, "de": {}, "el": {}, "en": {}, "eo": {}, "es": {}, "et": {},
	"eu": {}, "fa": {}, "fi": {}, "fr": {}, "ga": {}, "gl": {}, "gu": {},
	"he": {}, "hi": {}, "hr": {}, "hu": {}, "hy": {}, "id": {}, "is": {},
	"it": {}, "ja": {}, "ka": {}, "kk": {}, "km": {}, "kn": {}, "ko": {},
	"ku": {}, "ky": {}, "la": {}, "lb": {}, "lo": {}, "lt": {}, "lv": {},
	"mk": {}, "ml": {}, "mn": {}, "mr": {}, "ms": {}, "mt": {}, "my": {},
	"ne": {}, "nl": {}, "no": {}, "pa": {}, "pl": {}, "ps": {}, "pt": {},
	"ro": {}, "ru": {}, "sd": {}, "si": {}, "sk": {}, "sl": {}, "sq": {},
	"sr": {}, "sv": {}, "sw": {}, "ta": {}, "te": {}, "th": {}, "tl": {},
	"tr": {}, "uk": {}, "ur": {}, "uz": {}, "vi": {}, "zh": {}, "zu": {},
}

// ISO 3166-1 alpha-2 region codes accepted in hreflang annotations.
var validRegionCodes = map[string]struct{}{
	"AD": {}, "AE": {}, "AR": {}, "AT": {}, "AU": {}, "BA": {}, "BD": {},
	"BE": {}, "BG": {}, "BR": {}, "CA": {}, "CH": {}, "CL": {}, "CN": {},
	"CO": {}, "CZ": {}, "DE": {}, "DK": {}, "EE": {}, "EG": {}, "ES": {},
	"FI": {}, "FR": {}, "GB": {}, "GR": {}, "HK": {}, "HR": {}, "HU": {},
	"ID": {}, "IE": {}, "IL": {}, "IN": {}, "IS": {}, "IT": {}, "JP": {},
	"KE": {}, "KR": {}, "KW": {}, "LT": {}, "LU": {}, "LV": {}, "MA": {},
	"MT": {}, "MX": {}, "MY": {}, "NG": {}, "NL": {}, "NO": {}, "NZ": {},
	"PE": {}, "PH": {}, "PK": {}, "PL": {}, "PT": {}, "QA": {}, "RO": {},
	"RS": {}, "RU": {}, "SA": {}, "SE": {}, "SG": {}, "SI": {}, "SK": {},
	"TH": {}, "TR": {}, "TW": {}, "UA": {}, "US": {}, "VN": {}, "ZA": {},
}

// extractHreflang collects <link rel="alternate" hreflang> entries and
// validates language/region codes, duplicates, and the self-reference.
func extractHreflang(doc *goquery.Document, base *url.URL, rec *model.PageRecord) {
	seen := make(map[string]int)

	doc.Find("link[rel=alternate][hreflang]").Each(func(_ int, sel *goquery.Selection) {
		lang := strings.TrimSpace(sel.AttrOr("hreflang", ""))
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if lang == "" {
			return
		}

		if href != "" && base != nil {
			if hu, err := url.Parse(href); err == nil && !hu.IsAbs() {
				href = base.ResolveReference(hu).String()
			}
		}

		rec.HreflangTags = append(rec.HreflangTags, model.HreflangEntry{Lang: lang, Href: href})
		seen[strings.ToLower(lang)]++
	})

	if len(rec.HreflangTags) == 0 {
		return
	}

	for lang, count := range seen {
		if count > 1 {
			rec.HreflangIssues = append(rec.HreflangIssues, "duplicate hreflang '"+lang+"'")
		}
	}

	for _, entry := range rec.HreflangTags {
		// x-default carries no language to validate.
		if strings.EqualFold(entry.Lang, "x-default") {
			continue
		}
		parts := strings.SplitN(entry.Lang, "-", 2)
		langCode := strings.ToLower(parts[0])
		if _, ok := validLangCodes[langCode]; !ok {
			rec.HreflangIssues = append(rec.HreflangIssues, "invalid language code '"+entry.Lang+"'")
			continue
		}
		if len(parts) == 2 {
			region := strings.ToUpper(parts[1])
			if _, ok := validRegionCodes[region]; !ok {
				rec.HreflangIssues = append(rec.HreflangIssues, "invalid region code '"+entry.Lang+"'")
			}
		}
	}

	selfNorm, _ := urlutil.Normalize(rec.URL)
	hasSelf := false
	for _, entry := range rec.HreflangTags {
		if norm, ok := urlutil.Normalize(entry.Href); ok && norm == selfNorm {
			hasSelf = true
			break
		}
	}
	if !hasSelf {
		rec.HreflangIssues = append(rec.HreflangIssues, "missing self-reference")
	}
}
