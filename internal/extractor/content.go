package extractor

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"peregrine/internal/model"
)

// nonContentTags are removed before any body-text measurement.
const nonContentTags = "script, style, noscript, nav, footer, header, aside"

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	wordRe       = regexp.MustCompile(`\b[a-z]{3,}\b`)
	sentenceRe   = regexp.MustCompile(`[.!?]+`)
	vowelGroupRe = regexp.MustCompile(`[aeiouy]+`)
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "have": {}, "him": {},
	"his": {}, "how": {}, "its": {}, "may": {}, "new": {}, "now": {},
	"old": {}, "see": {}, "two": {}, "way": {}, "who": {}, "did": {},
	"get": {}, "that": {}, "this": {}, "with": {}, "they": {}, "from": {},
	"she": {}, "will": {}, "would": {}, "there": {}, "their": {},
	"what": {}, "about": {}, "which": {}, "when": {}, "your": {},
	"said": {}, "each": {}, "them": {}, "then": {}, "were": {},
	"been": {}, "more": {}, "some": {}, "these": {}, "also": {},
	"into": {}, "other": {}, "than": {}, "only": {}, "most": {},
	"over": {}, "such": {}, "just": {}, "like": {}, "very": {},
}

func extractContent(doc *goquery.Document, html string, rec *model.PageRecord) {
	body := doc.Find("body").Clone()
	body.Find(nonContentTags).Remove()

	text := strings.TrimSpace(whitespaceRe.ReplaceAllString(body.Text(), " "))

	words := strings.Fields(text)
	rec.WordCount = len(words)

	if len(html) > 0 {
		rec.TextHTMLRatio = int(math.Round(100 * float64(len(text)) / float64(len(html))))
	}

	if text != "" {
		rec.ContentHash = Sha256Hex(text)
	}

	rec.KeywordDensity = keywordDensity(text)
	rec.ReadingLevel = readingLevel(text)
}

// keywordDensity returns the top-10 non-stop-words with count >= 3, sorted by
// density. Pages with fewer than 50 tokens are skipped entirely.
func keywordDensity(text string) []model.KeywordStat {
	tokens := wordRe.FindAllString(strings.ToLower(text), -1)
	if len(tokens) < 50 {
		return nil
	}

	counts := make(map[string]int)
	total := 0
	for _, tok := range tokens {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		counts[tok]++
		total++
	}
	if total == 0 {
		return nil
	}

	stats := make([]model.KeywordStat, 0, len(counts))
	for word, count := range counts {
		if count < 3 {
			continue
		}
		density := math.Round(float64(count)/float64(total)*1000) / 10
		stats = append(stats, model.KeywordStat{Word: word, Count: count, Density: density})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Density != stats[j].Density {
			return stats[i].Density > stats[j].Density
		}
		return stats[i].Word < stats[j].Word
	})

	if len(stats) > 10 {
		stats = stats[:10]
	}
	return stats
}

// readingLevel computes the Flesch-Kincaid grade over the plain text.
func readingLevel(text string) *model.ReadingLevel {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	sentences := len(sentenceRe.FindAllString(text, -1))
	if sentences == 0 {
		sentences = 1
	}

	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	grade := 0.39*(float64(len(words))/float64(sentences)) +
		11.8*(float64(syllables)/float64(len(words))) - 15.59
	rounded := int(math.Round(grade))

	bucket := "complex"
	switch {
	case rounded <= 6:
		bucket = "basic"
	case rounded <= 10:
		bucket = "intermediate"
	case rounded <= 14:
		bucket = "advanced"
	}

	return &model.ReadingLevel{Grade: rounded, Bucket: bucket}
}

// countSyllables approximates syllables as vowel groups with a final
// silent-e adjustment, minimum one per word.
func countSyllables(word string) int {
	w := strings.TrimFunc(strings.ToLower(word), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
	if w == "" {
		return 1
	}

	n := len(vowelGroupRe.FindAllString(w, -1))
	if strings.HasSuffix(w, "e") && n > 1 {
		n--
	}
	if n < 1 {
		n = 1
	}
	return n
}
