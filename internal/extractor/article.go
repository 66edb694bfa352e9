package extractor

import (
	"regexp"
	"time"

	"peregrine/internal/model"
)

var articleTypes = map[string]struct{}{
	"Article":          {},
	"NewsArticle":      {},
	"BlogPosting":      {},
	"TechArticle":      {},
	"ScholarlyArticle": {},
}

var iso8601Re = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}(:\d{2})?(\.\d+)?(Z|[+-]\d{2}:\d{2})?)?$`)

// extractArticles pulls article-family schema objects out of the structured
// data and validates them. Validation findings are plain strings consumed by
// the article rules.
func extractArticles(rec *model.PageRecord) {
	for _, obj := range rec.StructuredData {
		if obj.Raw == nil {
			continue
		}
		typ := articleType(obj.Types)
		if typ == "" {
			continue
		}
		rec.Articles = append(rec.Articles, parseArticle(typ, obj.Raw))
	}

	if len(rec.Articles) == 0 {
		return
	}
	if len(rec.Articles) > 1 {
		rec.ArticleIssues = append(rec.ArticleIssues, "multiple")
	}
	for _, a := range rec.Articles {
		validateArticle(a, rec)
	}
}

// articleType returns the first article-family name a node declares, or "".
func articleType(types []string) string {
	for _, t := range types {
		if _, ok := articleTypes[t]; ok {
			return t
		}
	}
	return ""
}

func parseArticle(typ string, raw map[string]any) model.ArticleData {
	a := model.ArticleData{Type: typ}

	a.Headline = asString(raw["headline"])
	if a.Headline == "" {
		a.Headline = asString(raw["name"])
	}
	a.Description = asString(raw["description"])
	if a.Description == "" {
		a.Description = asString(raw["abstract"])
	}
	a.Body = asString(raw["articleBody"])
	a.DatePublished = asString(raw["datePublished"])
	a.DateModified = asString(raw["dateModified"])
	a.Image = firstImage(raw["image"])
	a.Author = parsePerson(raw["author"])
	a.Publisher = parsePublisher(raw["publisher"])
	a.WordCount, _ = asInt(raw["wordCount"])
	a.InLanguage = asString(raw["inLanguage"])
	a.MainEntityOfPage = asString(raw["mainEntityOfPage"])
	if a.MainEntityOfPage == "" {
		if obj, ok := raw["mainEntityOfPage"].(map[string]any); ok {
			a.MainEntityOfPage = asString(obj["@id"])
		}
	}

	return a
}

func parsePerson(v any) *model.ArticlePerson {
	switch p := v.(type) {
	case string:
		if p == "" {
			return nil
		}
		return &model.ArticlePerson{Name: p}
	case []any:
		if len(p) > 0 {
			return parsePerson(p[0])
		}
	case map[string]any:
		return &model.ArticlePerson{Name: asString(p["name"]), URL: asString(p["url"])}
	}
	return nil
}

func parsePublisher(v any) *model.ArticlePerson {
	switch p := v.(type) {
	case string:
		if p == "" {
			return nil
		}
		return &model.ArticlePerson{Name: p}
	case map[string]any:
		pub := &model.ArticlePerson{Name: asString(p["name"])}
		if logo, ok := p["logo"].(map[string]any); ok {
			pub.URL = asString(logo["url"])
		}
		return pub
	}
	return nil
}

func validateArticle(a model.ArticleData, rec *model.PageRecord) {
	add := func(issue string) {
		rec.ArticleIssues = append(rec.ArticleIssues, issue)
	}

	if a.Headline == "" {
		add("missing headline")
	} else if len(a.Headline) < 30 {
		add("headline short")
	} else if len(a.Headline) > 110 {
		add("headline too long")
	}

	if a.DatePublished == "" {
		add("missing datePublished")
	} else if !validISODate(a.DatePublished) {
		add("invalid datePublished")
	} else {
		published := parseISODate(a.DatePublished)
		now := time.Now()
		if published.After(now) {
			add("future datePublished")
		} else if now.Sub(published) > 2*365*24*time.Hour && a.DateModified == "" {
			add("outdated")
		}
	}

	if a.DateModified != "" && !validISODate(a.DateModified) {
		add("invalid dateModified")
	}

	if a.Author == nil || a.Author.Name == "" {
		add("missing author")
	}
	if a.Image == "" {
		add("missing image")
	}
	if a.Body != "" && a.WordCount == 0 {
		add("missing word count")
	}
}

// validISODate requires both the ISO-8601 shape and a real calendar date.
func validISODate(s string) bool {
	if !iso8601Re.MatchString(s) {
		return false
	}
	return !parseISODate(s).IsZero()
}

func parseISODate(s string) time.Time {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
