// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/voyagen/fiootv/internal/models"
	"github.com/voyagen/fiootv/internal/store"
)

// Memory is a store.Store backed by maps. Like Postgres it rejects a batch
// that names the same (channel_number, genre) twice, and like the hosted
// database it never returns more than store.MaxPageRows rows per call.
type Memory struct {
	mu       sync.Mutex
	channels map[models.ChannelKey]models.Channel
	orders   []models.Order
	contacts []models.ContactSubmission

	// Failure injection. A nil func never fails.
	UpsertErr   func(batch []models.Channel) error
	ListErr     func(call int, filter store.ChannelFilter) error
	DistinctErr error
	OrderErr    error
	ContactErr  error

	listCalls int
	batches   [][]models.Channel
}

// NewMemory creates an empty store, optionally seeded with channels.
func NewMemory(seed ...models.Channel) *Memory {
	m := &Memory{channels: make(map[models.ChannelKey]models.Channel)}
	for _, ch := range seed {
		m.channels[ch.Key()] = ch
	}
	return m
}

var _ store.Store = (*Memory)(nil)

// ErrDuplicateInBatch mirrors Postgres' "ON CONFLICT DO UPDATE command cannot
// affect row a second time".
var ErrDuplicateInBatch = &store.Error{
	Op:      "UpsertChannels",
	Message: "ON CONFLICT DO UPDATE command cannot affect row a second time",
	Hint:    "Ensure that no rows proposed for insertion within the same command have duplicate constrained values.",
	Code:    "21000",
}

func (m *Memory) UpsertChannels(_ context.Context, channels []models.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := append([]models.Channel(nil), channels...)
	m.batches = append(m.batches, batch)
	if m.UpsertErr != nil {
		if err := m.UpsertErr(batch); err != nil {
			return err
		}
	}
	seen := make(map[models.ChannelKey]bool, len(channels))
	for _, ch := range channels {
		if seen[ch.Key()] {
			return ErrDuplicateInBatch
		}
		seen[ch.Key()] = true
	}
	for _, ch := range channels {
		m.channels[ch.Key()] = ch
	}
	return nil
}

func (m *Memory) ListChannels(_ context.Context, filter store.ChannelFilter) ([]models.Channel, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.ListErr != nil {
		if err := m.ListErr(m.listCalls, filter); err != nil {
			return nil, 0, err
		}
	}

	search := strings.ToLower(filter.Search)
	var matched []models.Channel
	for _, ch := range m.channels {
		if filter.Category != "" && ch.CategoryName() != filter.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(ch.Title), search) &&
			!strings.Contains(strings.ToLower(ch.Genre), search) {
			continue
		}
		matched = append(matched, ch)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		// NULL categories sort last, as in Postgres ASC.
		if (a.Category == nil) != (b.Category == nil) {
			return b.Category == nil
		}
		if a.CategoryName() != b.CategoryName() {
			return a.CategoryName() < b.CategoryName()
		}
		if a.Genre != b.Genre {
			return a.Genre < b.Genre
		}
		return a.ChannelNumber < b.ChannelNumber
	})

	total := len(matched)
	offset := max(filter.Offset, 0)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+filter.PageLimit(), total)
	return append([]models.Channel(nil), matched[offset:end]...), total, nil
}

func (m *Memory) DistinctCategories(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DistinctErr != nil {
		return nil, m.DistinctErr
	}
	set := make(map[string]bool)
	for _, ch := range m.channels {
		if c := ch.CategoryName(); c != "" {
			set[c] = true
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) CreateOrder(_ context.Context, o *models.Order) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OrderErr != nil {
		return uuid.Nil, m.OrderErr
	}
	if o.ID == uuid.Nil {
		return uuid.Nil, errors.New("order id is required")
	}
	m.orders = append(m.orders, *o)
	return o.ID, nil
}

func (m *Memory) CreateContactSubmission(_ context.Context, c *models.ContactSubmission) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ContactErr != nil {
		return 0, m.ContactErr
	}
	s := *c
	s.ID = int64(len(m.contacts) + 1)
	m.contacts = append(m.contacts, s)
	return s.ID, nil
}

// ListCalls returns how many times ListChannels was called.
func (m *Memory) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// Batches returns every batch passed to UpsertChannels, including failed ones.
func (m *Memory) Batches() [][]models.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]models.Channel(nil), m.batches...)
}

// Channels returns all stored channels in no particular order.
func (m *Memory) Channels() []models.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch)
	}
	return out
}

// Orders returns stored orders.
func (m *Memory) Orders() []models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Order(nil), m.orders...)
}

// Contacts returns stored contact submissions.
func (m *Memory) Contacts() []models.ContactSubmission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ContactSubmission(nil), m.contacts...)
}
