package issues

import (
	"peregrine/internal/logger"
	"peregrine/internal/model"
)

// Finding is one detected issue occurrence on a page.
type Finding struct {
	Code    string
	Details map[string]any
}

// Detector runs the rule families against a PageRecord and filters the
// output through the loaded catalogue. It holds no per-page state, so one
// detector serves a whole job.
type Detector struct {
	defs map[string]Definition
	log  logger.Logger
}

func NewDetector(defs []Definition, log logger.Logger) *Detector {
	byCode := make(map[string]Definition, len(defs))
	for _, def := range defs {
		byCode[def.Code] = def
	}
	return &Detector{defs: byCode, log: log}
}

// Definition looks up a catalogue entry by code.
func (d *Detector) Definition(code string) (Definition, bool) {
	def, ok := d.defs[code]
	return def, ok
}

// Detect evaluates every rule family against the page. Findings whose code
// is missing from the catalogue or inactive are dropped with a debug log,
// never an error.
func (d *Detector) Detect(page *model.PageRecord) []Finding {
	var findings []Finding
	emit := func(code string, kv ...any) {
		def, ok := d.defs[code]
		if !ok || !def.IsActive {
			d.log.Debug("dropping finding without active definition",
				logger.String("code", code),
				logger.String("url", page.URL))
			return
		}
		findings = append(findings, Finding{Code: code, Details: detailMap(kv)})
	}

	for _, rule := range pageRules {
		rule(page, emit)
	}

	// Extraction-level families only make sense on successfully fetched
	// HTML pages; an error or redirect record has nothing to inspect.
	if page.StatusCode >= 200 && page.StatusCode < 300 {
		for _, rule := range htmlPageRules {
			rule(page, emit)
		}
	}

	return findings
}

func detailMap(kv []any) map[string]any {
	if len(kv) == 0 {
		return nil
	}
	details := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		details[key] = kv[i+1]
	}
	return details
}
