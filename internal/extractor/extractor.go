package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"peregrine/internal/model"
	"peregrine/internal/urlutil"
)

// Input carries the final navigation outcome into extraction. Extraction is
// pure: no network calls, no clock reads beyond article date checks.
type Input struct {
	URL            string
	HTML           string
	StatusCode     int
	ContentType    string
	ResponseTimeMs int64
	RedirectChain  []model.RedirectHop
	PageDepth      int
	ProjectDomain  string
}

// Extract parses the HTML and produces the uniform PageRecord.
func Extract(in Input) *model.PageRecord {
	rec := newBaseRecord(in)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in.HTML))
	if err != nil {
		rec.IsIndexable = false
		rec.IndexabilityReason = "Unparseable HTML"
		return rec
	}

	base, _ := url.Parse(in.URL)

	extractHead(doc, rec)
	extractIndexability(rec)
	extractCanonical(doc, base, rec)
	extractHeadings(doc, rec)
	extractLinks(doc, base, in.ProjectDomain, rec)
	extractImages(doc, base, rec)
	extractContent(doc, in.HTML, rec)
	extractStructuredData(doc, rec)
	extractArticles(rec)
	extractProducts(rec)
	extractHreflang(doc, base, rec)
	extractMobile(doc, rec)
	extractSecurity(doc, base, rec)
	extractPerformanceSignals(doc, rec)
	extractPagination(doc, rec)

	rec.BodyText = ExtractMarkdown(in.HTML, base)

	return rec
}

// NewErrorRecord builds the minimal unindexable record used for navigation
// failures and non-HTML responses.
func NewErrorRecord(rawURL string, status int, contentType, reason string, responseTimeMs int64) *model.PageRecord {
	rec := newBaseRecord(Input{
		URL:            rawURL,
		StatusCode:     status,
		ContentType:    contentType,
		ResponseTimeMs: responseTimeMs,
	})
	rec.IsIndexable = false
	rec.IndexabilityReason = reason
	return rec
}

func newBaseRecord(in Input) *model.PageRecord {
	rec := &model.PageRecord{
		URL:            in.URL,
		URLHash:        Sha256Hex(in.URL),
		StatusCode:     in.StatusCode,
		ContentType:    in.ContentType,
		ResponseTimeMs: in.ResponseTimeMs,
		PageSizeBytes:  int64(len(in.HTML)),
		HTMLSizeBytes:  int64(len(in.HTML)),
		PageDepth:      in.PageDepth,
		RedirectChain:  in.RedirectChain,
		IsIndexable:    true,
	}

	if u, err := url.Parse(in.URL); err == nil {
		rec.Path = u.Path
		rec.QueryString = u.RawQuery
		rec.IsHTTPS = u.Scheme == "https"
	}

	if n := len(in.RedirectChain); n > 0 {
		rec.RedirectURL = in.RedirectChain[n-1].URL
	}

	return rec
}

// Sha256Hex returns the lower-case hex SHA-256 of s. Used for url_hash and
// content_hash.
func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func extractHead(doc *goquery.Document, rec *model.PageRecord) {
	rec.Title = strings.TrimSpace(doc.Find("title").First().Text())
	rec.TitleLength = len(rec.Title)

	rec.MetaDescription = strings.TrimSpace(doc.Find("meta[name=description]").AttrOr("content", ""))
	rec.MetaDescriptionLength = len(rec.MetaDescription)

	rec.RobotsMeta = doc.Find("meta[name=robots]").AttrOr("content", "")
	if rec.RobotsMeta == "" {
		rec.RobotsMeta = doc.Find("meta[name=googlebot]").AttrOr("content", "")
	}

	rec.HTMLLang, _ = doc.Find("html").First().Attr("lang")
	rec.ViewportContent = doc.Find("meta[name=viewport]").AttrOr("content", "")
	rec.ViewportConfigured = rec.ViewportContent != ""

	rec.OGTitle = doc.Find("meta[property='og:title']").AttrOr("content", "")
	rec.OGDescription = doc.Find("meta[property='og:description']").AttrOr("content", "")
	rec.OGImage = doc.Find("meta[property='og:image']").AttrOr("content", "")
	rec.TwitterCard = doc.Find("meta[name='twitter:card']").AttrOr("content", "")
}

func extractIndexability(rec *model.PageRecord) {
	switch {
	case rec.StatusCode >= 400:
		rec.IsIndexable = false
		rec.IndexabilityReason = fmt.Sprintf("HTTP %d error", rec.StatusCode)
	case rec.StatusCode >= 300:
		rec.IsIndexable = false
		rec.IndexabilityReason = "Redirect"
	case strings.Contains(strings.ToLower(rec.RobotsMeta), "noindex"):
		rec.IsIndexable = false
		rec.IndexabilityReason = "noindex directive"
	}
}

func extractCanonical(doc *goquery.Document, base *url.URL, rec *model.PageRecord) {
	href := strings.TrimSpace(doc.Find("link[rel=canonical]").First().AttrOr("href", ""))
	if href == "" || base == nil {
		return
	}

	cu, err := url.Parse(href)
	if err != nil {
		return
	}
	if !cu.IsAbs() {
		cu = base.ResolveReference(cu)
	}
	rec.CanonicalURL = cu.String()

	self := canonicalCompareForm(base.String())
	selfRef := canonicalCompareForm(rec.CanonicalURL) == self
	rec.IsSelfCanonical = &selfRef
}

// canonicalCompareForm strips the fragment and any trailing slash so that
// "/about" and "/about/" compare equal for self-canonical detection.
func canonicalCompareForm(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String()
}

func extractHeadings(doc *goquery.Document, rec *model.PageRecord) {
	doc.Find("h1").Each(func(_ int, sel *goquery.Selection) {
		rec.H1Tags = append(rec.H1Tags, strings.TrimSpace(sel.Text()))
	})
	doc.Find("h2").Each(func(_ int, sel *goquery.Selection) {
		rec.H2Tags = append(rec.H2Tags, strings.TrimSpace(sel.Text()))
	})
	rec.H1Count = len(rec.H1Tags)
	rec.H2Count = len(rec.H2Tags)

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		rec.HeadingSequence = append(rec.HeadingSequence, goquery.NodeName(sel))
	})
}

func extractLinks(doc *goquery.Document, base *url.URL, domain string, rec *model.PageRecord) {
	seenInternal := make(map[string]struct{})
	seenExternal := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		linkURL, err := url.Parse(href)
		if err != nil {
			return
		}
		if !linkURL.IsAbs() && base != nil {
			linkURL = base.ResolveReference(linkURL)
		}
		if linkURL.Scheme != "http" && linkURL.Scheme != "https" {
			return
		}
		linkURL.Fragment = ""
		final := linkURL.String()

		if urlutil.SameDomain(linkURL.Hostname(), domain, true) {
			if _, dup := seenInternal[final]; !dup {
				seenInternal[final] = struct{}{}
				rec.InternalLinks = append(rec.InternalLinks, final)
			}
		} else {
			if _, dup := seenExternal[final]; !dup {
				seenExternal[final] = struct{}{}
				rec.ExternalLinks = append(rec.ExternalLinks, final)
			}
		}
	})

	rec.InternalLinksCount = len(rec.InternalLinks)
	rec.ExternalLinksCount = len(rec.ExternalLinks)
}

func extractImages(doc *goquery.Document, base *url.URL, rec *model.PageRecord) {
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src := strings.TrimSpace(sel.AttrOr("src", ""))
		if src != "" && base != nil {
			if su, err := url.Parse(src); err == nil && !su.IsAbs() {
				src = base.ResolveReference(su).String()
			}
		}

		img := model.ImageInfo{Src: src}
		if alt, ok := sel.Attr("alt"); ok {
			img.HasAlt = true
			img.Alt = &alt
			img.EmptyAlt = strings.TrimSpace(alt) == ""
		}
		if w, err := strconv.Atoi(sel.AttrOr("width", "")); err == nil {
			img.Width = w
		}
		if h, err := strconv.Atoi(sel.AttrOr("height", "")); err == nil {
			img.Height = h
		}

		rec.Images = append(rec.Images, img)
		rec.ImagesCount++
		if !img.HasAlt {
			rec.ImagesWithoutAlt++
		} else if img.EmptyAlt {
			rec.ImagesWithEmptyAlt++
		}
	})
}

func extractSecurity(doc *goquery.Document, base *url.URL, rec *model.PageRecord) {
	if !rec.IsHTTPS {
		return
	}

	mixed := false
	check := func(val string) {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(val)), "http://") {
			mixed = true
		}
	}
	doc.Find("img[src], script[src], iframe[src], audio[src], video[src], source[src]").Each(func(_ int, sel *goquery.Selection) {
		check(sel.AttrOr("src", ""))
	})
	doc.Find("link[rel=stylesheet]").Each(func(_ int, sel *goquery.Selection) {
		check(sel.AttrOr("href", ""))
	})
	rec.HasMixedContent = &mixed
}

// extractPerformanceSignals counts render-blocking resources and roughly
// classifies linked CSS/JS as unminified by filename.
func extractPerformanceSignals(doc *goquery.Document, rec *model.PageRecord) {
	doc.Find("head link[rel=stylesheet]").Each(func(_ int, sel *goquery.Selection) {
		if sel.AttrOr("media", "") == "print" {
			return
		}
		rec.RenderBlockingResources++
		if isUnminifiedAsset(sel.AttrOr("href", ""), ".css") {
			rec.UnminifiedCSS++
		}
	})
	doc.Find("head script[src]").Each(func(_ int, sel *goquery.Selection) {
		if _, async := sel.Attr("async"); async {
			return
		}
		if _, deferred := sel.Attr("defer"); deferred {
			return
		}
		rec.RenderBlockingResources++
		if isUnminifiedAsset(sel.AttrOr("src", ""), ".js") {
			rec.UnminifiedJS++
		}
	})
	doc.Find("body script[src]").Each(func(_ int, sel *goquery.Selection) {
		if isUnminifiedAsset(sel.AttrOr("src", ""), ".js") {
			rec.UnminifiedJS++
		}
	})
}

func isUnminifiedAsset(src, ext string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	return strings.HasSuffix(p, ext) && !strings.HasSuffix(p, ".min"+ext)
}

func extractPagination(doc *goquery.Document, rec *model.PageRecord) {
	rec.RelPrev = doc.Find("link[rel=prev]").Length() > 0
	rec.RelNext = doc.Find("link[rel=next]").Length() > 0
}
