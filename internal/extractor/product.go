package extractor

import (
	"strings"
	"time"

	"peregrine/internal/model"
)

// extractProducts pulls Product schema objects out of the structured data
// and validates them for the e-commerce rule family.
func extractProducts(rec *model.PageRecord) {
	for _, obj := range rec.StructuredData {
		if obj.Raw == nil || !hasType(obj.Types, "Product") {
			continue
		}
		rec.Products = append(rec.Products, parseProduct(obj.Raw))
	}

	if len(rec.Products) == 0 {
		return
	}
	if len(rec.Products) > 1 {
		rec.ProductIssues = append(rec.ProductIssues, "multiple")
	}
	for _, p := range rec.Products {
		validateProduct(p, rec)
	}
}

func parseProduct(raw map[string]any) model.ProductData {
	p := model.ProductData{
		Name:        asString(raw["name"]),
		Description: asString(raw["description"]),
		Image:       firstImage(raw["image"]),
		Condition:   normalizeAvailability(raw["itemCondition"]),
	}

	for _, key := range []string{"sku", "gtin", "gtin8", "gtin12", "gtin13", "gtin14", "mpn"} {
		if id := asString(raw[key]); id != "" {
			p.SKU = id
			break
		}
	}

	switch brand := raw["brand"].(type) {
	case string:
		p.Brand = brand
	case map[string]any:
		p.Brand = asString(brand["name"])
	}

	if rating, ok := raw["aggregateRating"].(map[string]any); ok {
		value, okV := asNumber(rating["ratingValue"])
		count, okC := asInt(rating["reviewCount"])
		if !okC {
			count, okC = asInt(rating["ratingCount"])
		}
		if okV || okC {
			p.Rating = &model.ProductRating{Value: value, Count: count}
		}
	}

	p.Offers = parseOffers(raw["offers"])
	return p
}

// parseOffers accepts a single offer object, an array of offers, or an
// AggregateOffer carrying lowPrice/highPrice.
func parseOffers(v any) []model.ProductOffer {
	switch offers := v.(type) {
	case []any:
		var out []model.ProductOffer
		for _, o := range offers {
			if obj, ok := o.(map[string]any); ok {
				out = append(out, parseOffer(obj))
			}
		}
		return out
	case map[string]any:
		types := typeNames(offers["@type"])
		for _, t := range types {
			if t == "AggregateOffer" {
				return parseAggregateOffer(offers)
			}
		}
		return []model.ProductOffer{parseOffer(offers)}
	}
	return nil
}

func parseOffer(raw map[string]any) model.ProductOffer {
	o := model.ProductOffer{
		Currency:        asString(raw["priceCurrency"]),
		Availability:    normalizeAvailability(raw["availability"]),
		PriceValidUntil: asString(raw["priceValidUntil"]),
	}
	if price, ok := asNumber(raw["price"]); ok {
		o.Price = &price
	}
	return o
}

func parseAggregateOffer(raw map[string]any) []model.ProductOffer {
	o := model.ProductOffer{
		Currency:     asString(raw["priceCurrency"]),
		Availability: normalizeAvailability(raw["availability"]),
	}
	if low, ok := asNumber(raw["lowPrice"]); ok {
		o.Price = &low
	} else if high, ok := asNumber(raw["highPrice"]); ok {
		o.Price = &high
	}
	return []model.ProductOffer{o}
}

func validateProduct(p model.ProductData, rec *model.PageRecord) {
	add := func(issue string) {
		rec.ProductIssues = append(rec.ProductIssues, issue)
	}

	if p.Name == "" {
		add("missing name")
	}
	if p.Description == "" {
		add("missing description")
	}
	if p.Image == "" {
		add("missing image")
	}
	if p.SKU == "" {
		add("missing sku")
	}
	if p.Brand == "" {
		add("missing brand")
	}

	if len(p.Offers) == 0 {
		add("missing offer")
		return
	}

	for _, o := range p.Offers {
		if o.Price == nil {
			add("missing price")
		} else if *o.Price < 0 {
			add("invalid price")
		}
		if o.Currency == "" {
			add("missing currency")
		}
		if o.Availability == "" {
			add("missing availability")
		} else {
			lower := strings.ToLower(o.Availability)
			if strings.Contains(lower, "outofstock") || strings.Contains(lower, "discontinued") {
				add("out of stock")
			}
		}
		if o.PriceValidUntil != "" {
			if until := parseISODate(o.PriceValidUntil); !until.IsZero() && until.Before(time.Now()) {
				add("price expired")
			}
		}
	}
}
