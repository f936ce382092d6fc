package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/voyagen/fiootv/internal/models"
	"github.com/voyagen/fiootv/internal/store"
)

// Uncategorized groups channels that have no category.
const Uncategorized = "Uncategorized"

// ChannelQuery filters the channel listing.
type ChannelQuery struct {
	Search   string
	Category string
	PageSize int // rows per store request; clamped to store.MaxPageRows
}

// ChannelListing is the grouped channel directory.
type ChannelListing struct {
	Channels      map[string][]models.Channel `json:"channels"`
	Total         int                         `json:"total"`
	CategoryCount int                         `json:"categoryCount"`
}

// ListChannels reads every matching channel, one store page at a time, and
// groups the rows by category. Any page error aborts the listing.
func ListChannels(ctx context.Context, s store.Store, q ChannelQuery, log zerolog.Logger) (*ChannelListing, error) {
	filter := store.ChannelFilter{Search: q.Search, Category: q.Category, Limit: q.PageSize}
	pageSize := filter.PageLimit()
	filter.Limit = pageSize

	var (
		rows    []models.Channel
		dbTotal int
	)
	for page := 0; ; page++ {
		filter.Offset = page * pageSize
		batch, total, err := s.ListChannels(ctx, filter)
		if err != nil {
			log.Error().Err(err).Int("page", page).Msg("channel page failed")
			return nil, err
		}
		if page == 0 {
			dbTotal = total
			log.Debug().Int("total", total).Msg("channels in store")
		}
		rows = append(rows, batch...)
		if len(batch) < pageSize {
			break
		}
	}

	grouped := make(map[string][]models.Channel)
	for _, ch := range rows {
		cat := ch.CategoryName()
		if cat == "" {
			cat = Uncategorized
		}
		grouped[cat] = append(grouped[cat], ch)
	}
	log.Info().Int("fetched", len(rows)).Int("total", dbTotal).Int("categories", len(grouped)).Msg("channels listed")

	return &ChannelListing{
		Channels:      grouped,
		Total:         len(rows),
		CategoryCount: len(grouped),
	}, nil
}
