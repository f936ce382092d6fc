package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/voyagen/fiootv/internal/catalog"
	"github.com/voyagen/fiootv/internal/store"
)

// ResolveCategories merges the canonical names with the categories present
// in the store and returns them in navigation order. A store failure is
// logged and the canonical names are used alone.
func ResolveCategories(ctx context.Context, names catalog.NameSource, s store.Store, log zerolog.Logger) ([]string, error) {
	canonical, err := names.Names()
	if err != nil {
		return nil, err
	}
	observed, err := s.DistinctCategories(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("distinct categories unavailable, using names file only")
		observed = nil
	}
	return catalog.Sort(catalog.Merge(canonical, observed)), nil
}
