package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/voyagen/fiootv/internal/models"
)

// MaxPageRows is the most rows ListChannels returns for one request,
// regardless of the requested limit.
const MaxPageRows = 1000

// Store defines persistence for channels, orders and contact submissions.
type Store interface {
	// UpsertChannels inserts channels or overwrites title/category of rows
	// with the same (channel_number, genre).
	UpsertChannels(ctx context.Context, channels []models.Channel) error
	// ListChannels returns one page of channels matching the filter, ordered by
	// category then genre, and the total number of matching rows.
	ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error)
	// DistinctCategories returns every non-empty category present in the table.
	DistinctCategories(ctx context.Context) ([]string, error)

	// CreateOrder stores an order and returns its id.
	CreateOrder(ctx context.Context, o *models.Order) (uuid.UUID, error)
	// CreateContactSubmission stores a contact form message and returns its id.
	CreateContactSubmission(ctx context.Context, c *models.ContactSubmission) (int64, error)
}

// ChannelFilter holds optional filters for listing channels.
type ChannelFilter struct {
	Search   string // case-insensitive substring match on title or genre
	Category string // exact match
	Limit    int    // clamped to MaxPageRows
	Offset   int
}

// PageLimit returns the effective limit for the filter.
func (f ChannelFilter) PageLimit() int {
	if f.Limit <= 0 || f.Limit > MaxPageRows {
		return MaxPageRows
	}
	return f.Limit
}

// Error carries database diagnostics so callers can report them verbatim.
type Error struct {
	Op      string
	Message string
	Details string
	Hint    string
	Code    string
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
