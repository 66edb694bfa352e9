package bootstrap

import (
	"context"

	"peregrine/internal/issues"
	"peregrine/internal/logger"
	"peregrine/internal/store"
)

// Run seeds the issue catalogue when the table is empty. Operators edit the
// catalogue rows after first boot (disable codes, tweak severities), so an
// existing catalogue is never touched.
func Run(ctx context.Context, st *store.Store, log logger.Logger) error {
	seeded, err := st.SeedIssueDefinitions(ctx, issues.BuiltinCatalogue)
	if err != nil {
		return err
	}
	if seeded {
		log.Info("seeded issue catalogue",
			logger.Int("definitions", len(issues.BuiltinCatalogue)))
	}
	return nil
}
