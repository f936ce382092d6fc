package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/voyagen/fiootv/internal/catalog"
	"github.com/voyagen/fiootv/internal/credentials"
	"github.com/voyagen/fiootv/internal/logging"
	"github.com/voyagen/fiootv/internal/metrics"
	"github.com/voyagen/fiootv/internal/models"
	"github.com/voyagen/fiootv/internal/store"
	"github.com/voyagen/fiootv/internal/upstream"
)

// ChannelSource fetches one page of upstream channels for a genre.
type ChannelSource interface {
	FetchPage(ctx context.Context, cookie string, q upstream.Query) (*upstream.Page, error)
}

// RunLock serializes sync runs. TryAcquire returns an error (cache.ErrLocked
// when another run holds it) or a func that releases the lock.
type RunLock interface {
	TryAcquire(ctx context.Context) (unlock func(), err error)
}

// Syncer copies every canonical category from the upstream source into the
// channel store. Categories are processed one at a time, in list order.
type Syncer struct {
	Source      ChannelSource
	Store       store.Store
	Credentials credentials.Provider
	Names       catalog.NameSource
	Lock        RunLock // optional

	PageDelay     time.Duration // pause after each page request before the next one
	CategoryDelay time.Duration // pause between categories

	Log zerolog.Logger
}

// NewSyncer creates a Syncer logging under the "sync" component.
func NewSyncer(src ChannelSource, s store.Store, creds credentials.Provider, names catalog.NameSource) *Syncer {
	return &Syncer{
		Source:      src,
		Store:       s,
		Credentials: creds,
		Names:       names,
		Log:         logging.WithComponent("sync"),
	}
}

// CategoryResult is the outcome for one category. Total is set on success.
type CategoryResult struct {
	Category string `json:"category"`
	Total    *int   `json:"total,omitempty"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// Report summarizes a sync run.
type Report struct {
	Successful  int              `json:"successful"`
	Failed      int              `json:"failed"`
	TotalGenres int              `json:"totalGenres"`
	Results     []CategoryResult `json:"results"`
}

// Message is the human-readable summary returned to the admin UI.
func (r *Report) Message() string {
	return fmt.Sprintf("Sync completed. %d genres successful, %d failed.", r.Successful, r.Failed)
}

// Run syncs every category. It fails only when the run cannot start (lock
// held, names unreadable); per-category failures are recorded in the report.
// Cancelling ctx stops the run between requests and marks the remaining
// categories failed.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	if s.Lock != nil {
		unlock, err := s.Lock.TryAcquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire sync lock: %w", err)
		}
		defer unlock()
	}

	names, err := s.Names.Names()
	if err != nil {
		return nil, err
	}
	cookie := s.Credentials.Get().Combined()
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SyncDuration)

	s.Log.Info().Int("categories", len(names)).Msg("starting channel sync")

	report := &Report{TotalGenres: len(names), Results: make([]CategoryResult, 0, len(names))}
	for i, name := range names {
		if i > 0 {
			// A cancelled wait falls through; the next fetch fails fast.
			_ = sleep(ctx, s.CategoryDelay)
		}
		res := s.syncCategory(ctx, cookie, name)
		if res.Success {
			report.Successful++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, res)
	}

	s.Log.Info().
		Int("successful", report.Successful).
		Int("failed", report.Failed).
		Dur("took", timer.Duration()).
		Msg("channel sync finished")
	return report, nil
}

func (s *Syncer) syncCategory(ctx context.Context, cookie, category string) CategoryResult {
	log := s.Log.With().Str("category", category).Logger()
	channels, fetched, err := s.fetchCategory(ctx, cookie, category, log)
	if err == nil {
		err = s.Store.UpsertChannels(ctx, channels)
	}
	metrics.SyncCategoriesTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		log.Error().Err(err).Msg("category sync failed")
		return CategoryResult{Category: category, Error: err.Error()}
	}
	metrics.SyncRowsUpserted.Add(float64(len(channels)))
	if dup := fetched - len(channels); dup > 0 {
		log.Debug().Int("fetched", fetched).Int("collapsed", dup).Msg("duplicate records in category")
	}
	return CategoryResult{Category: category, Total: &fetched, Success: true}
}

// fetchCategory pages through one category and returns the deduplicated
// batch ready for upsert along with the number of records fetched.
func (s *Syncer) fetchCategory(ctx context.Context, cookie, category string, log zerolog.Logger) ([]models.Channel, int, error) {
	pace := newPacer(s.PageDelay)

	first, err := s.fetch(ctx, pace, cookie, category, 1)
	if err != nil {
		return nil, 0, err
	}
	records := append([]upstream.Record(nil), first.Data...)

	total := first.TotalCount()
	perPage := len(first.Data)
	totalPages := 1
	if perPage > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(perPage)))
	}
	log.Debug().Int("total", total).Int("per_page", perPage).Int("pages", totalPages).Msg("category paging")

	for page := 2; page <= totalPages; page++ {
		p, err := s.fetch(ctx, pace, cookie, category, page)
		if err != nil {
			return nil, 0, err
		}
		if len(p.Data) == 0 {
			break
		}
		records = append(records, p.Data...)
	}
	return toChannels(records, category), len(records), nil
}

func (s *Syncer) fetch(ctx context.Context, pace *pacer, cookie, category string, page int) (*upstream.Page, error) {
	if err := pace.wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for genre %s, page %d: %w", category, page, err)
	}
	p, err := s.Source.FetchPage(ctx, cookie, upstream.Query{Genre: category, Page: page})
	pace.done()
	if err != nil {
		return nil, err
	}
	metrics.SyncPagesFetched.Inc()
	return p, nil
}

// toChannels maps upstream records to rows for category. When a key repeats,
// the later record wins and keeps the position of the first.
func toChannels(records []upstream.Record, category string) []models.Channel {
	out := make([]models.Channel, 0, len(records))
	index := make(map[models.ChannelKey]int, len(records))
	for _, r := range records {
		cat := category
		ch := models.Channel{
			ChannelNumber: r.Number.String(),
			Title:         r.Title,
			Genre:         r.Genre,
			Category:      &cat,
		}
		if i, ok := index[ch.Key()]; ok {
			out[i] = ch
			continue
		}
		index[ch.Key()] = len(out)
		out = append(out, ch)
	}
	return out
}

// pacer holds each request back until a full delay has passed since the
// previous one completed. A non-positive delay disables pacing.
type pacer struct {
	delay   time.Duration
	limiter *rate.Limiter
}

func newPacer(delay time.Duration) *pacer {
	return &pacer{delay: delay}
}

// wait blocks until the pause started by the last done has elapsed.
func (p *pacer) wait(ctx context.Context) error {
	if p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

// done starts the pause: the fresh limiter's single token is taken now, so
// the next wait lasts one full delay.
func (p *pacer) done() {
	if p.delay <= 0 {
		return
	}
	p.limiter = rate.NewLimiter(rate.Every(p.delay), 1)
	p.limiter.AllowN(time.Now(), 1)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
