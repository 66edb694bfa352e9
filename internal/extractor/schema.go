package extractor

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"peregrine/internal/model"
)

// extractStructuredData collects every JSON-LD script plus microdata
// itemtype attributes. Parse failures become diagnostics, never errors.
func extractStructuredData(doc *goquery.Document, rec *model.PageRecord) {
	seenTypes := make(map[string]struct{})

	// record adds one object per node, however many @type names it declares.
	record := func(types []string, raw map[string]any) {
		var names []string
		for _, typ := range types {
			typ = strings.TrimSpace(typ)
			if typ == "" {
				continue
			}
			names = append(names, typ)
			if _, dup := seenTypes[typ]; !dup {
				seenTypes[typ] = struct{}{}
				rec.SchemaTypes = append(rec.SchemaTypes, typ)
			}
		}
		if len(names) == 0 {
			return
		}
		rec.StructuredData = append(rec.StructuredData, model.SchemaObject{Types: names, Raw: raw})
	}

	recordNode := func(node map[string]any) {
		record(typeNames(node["@type"]), node)
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, sel *goquery.Selection) {
		var parsed any
		if err := json.Unmarshal([]byte(sel.Text()), &parsed); err != nil {
			rec.SchemaDiagnostics = append(rec.SchemaDiagnostics,
				"invalid JSON-LD in script #"+strconv.Itoa(i+1)+": "+err.Error())
			return
		}

		nodes := []any{parsed}
		if arr, ok := parsed.([]any); ok {
			nodes = arr
		}

		for _, n := range nodes {
			obj, ok := n.(map[string]any)
			if !ok {
				continue
			}
			if graph, ok := obj["@graph"].([]any); ok {
				for _, gn := range graph {
					if gobj, ok := gn.(map[string]any); ok {
						recordNode(gobj)
					}
				}
				continue
			}
			recordNode(obj)
		}
	})

	doc.Find("[itemtype]").Each(func(_ int, sel *goquery.Selection) {
		itemtype := sel.AttrOr("itemtype", "")
		if idx := strings.LastIndex(itemtype, "/"); idx >= 0 {
			itemtype = itemtype[idx+1:]
		}
		record([]string{itemtype}, nil)
	})

	rec.HasSchema = len(rec.SchemaTypes) > 0
}

// hasType reports whether a node's @type list contains the given name.
func hasType(types []string, name string) bool {
	for _, t := range types {
		if t == name {
			return true
		}
	}
	return false
}

// typeNames normalizes the @type field, which may be a string or an array.
func typeNames(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		var names []string
		for _, e := range t {
			if s, ok := e.(string); ok {
				names = append(names, s)
			}
		}
		return names
	}
	return nil
}

// JSON-LD values arrive as string | number | array | object; the helpers
// below coerce the shapes the schema extractors care about.

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	}
	return ""
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	f, ok := asNumber(v)
	return int(f), ok
}

// firstImage handles image fields that may be a string, an array, or an
// ImageObject with a url property.
func firstImage(v any) string {
	switch img := v.(type) {
	case string:
		return strings.TrimSpace(img)
	case []any:
		if len(img) > 0 {
			return firstImage(img[0])
		}
	case map[string]any:
		return asString(img["url"])
	}
	return ""
}

// normalizeAvailability strips schema.org URL prefixes, keeping the short
// form like "InStock".
func normalizeAvailability(v any) string {
	s := asString(v)
	s = strings.TrimPrefix(s, "https://schema.org/")
	s = strings.TrimPrefix(s, "http://schema.org/")
	s = strings.TrimPrefix(s, "schema.org/")
	return s
}
