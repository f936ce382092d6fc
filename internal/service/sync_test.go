package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/fiootv/internal/cache"
	"github.com/voyagen/fiootv/internal/catalog"
	"github.com/voyagen/fiootv/internal/credentials"
	"github.com/voyagen/fiootv/internal/models"
	"github.com/voyagen/fiootv/internal/store/storetest"
	"github.com/voyagen/fiootv/internal/upstream"
)

// fakeSource serves fixed pages per genre and records every request.
type fakeSource struct {
	mu    sync.Mutex
	total map[string]int
	pages map[string][][]upstream.Record
	fail  map[string]error
	calls []upstream.Query
	seen  []string // cookies

	latency time.Duration
	spans   []fetchSpan
}

// fetchSpan is when one page request started and finished.
type fetchSpan struct {
	genre      string
	start, end time.Time
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		total: make(map[string]int),
		pages: make(map[string][][]upstream.Record),
		fail:  make(map[string]error),
	}
}

// add registers n channels for genre split into pages of perPage.
func (f *fakeSource) add(genre string, n, perPage int) {
	f.total[genre] = n
	var page []upstream.Record
	for i := 0; i < n; i++ {
		page = append(page, upstream.Record{
			Number: models.FlexString(fmt.Sprintf("%d", i+1)),
			Title:  genre + " feed",
			Genre:  fmt.Sprintf("%s channel %d", genre, i+1),
		})
		if len(page) == perPage {
			f.pages[genre] = append(f.pages[genre], page)
			page = nil
		}
	}
	if len(page) > 0 {
		f.pages[genre] = append(f.pages[genre], page)
	}
}

func (f *fakeSource) FetchPage(_ context.Context, cookie string, q upstream.Query) (*upstream.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := time.Now()
	if f.latency > 0 {
		time.Sleep(f.latency)
	}
	defer func() { f.spans = append(f.spans, fetchSpan{genre: q.Genre, start: start, end: time.Now()}) }()
	f.calls = append(f.calls, q)
	f.seen = append(f.seen, cookie)
	if err := f.fail[q.Genre]; err != nil {
		return nil, err
	}
	p := &upstream.Page{Total: json.Number(strconv.Itoa(f.total[q.Genre]))}
	if q.Page-1 < len(f.pages[q.Genre]) {
		p.Data = f.pages[q.Genre][q.Page-1]
	}
	return p, nil
}

func (f *fakeSource) callsFor(genre string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pages []int
	for _, c := range f.calls {
		if c.Genre == genre {
			pages = append(pages, c.Page)
		}
	}
	return pages
}

type staticCreds credentials.Record

func (c staticCreds) Get() credentials.Record { return credentials.Record(c) }

func newTestSyncer(src *fakeSource, mem *storetest.Memory, names ...string) *Syncer {
	s := NewSyncer(src, mem, staticCreds{Session: "s", Cookie: "c"}, catalog.StaticNames(names))
	s.Log = zerolog.Nop()
	return s
}

func TestSyncer_Idempotent(t *testing.T) {
	src := newFakeSource()
	src.add("ENGLISH", 25, 10)
	src.add("HINDI", 7, 10)
	mem := storetest.NewMemory()
	s := newTestSyncer(src, mem, "ENGLISH", "HINDI")

	first, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Successful)
	once := snapshot(mem.Channels())

	second, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, once, snapshot(mem.Channels()))
	assert.Len(t, once, 32)
}

func TestSyncer_FailureIsolation(t *testing.T) {
	src := newFakeSource()
	names := []string{"ENGLISH", "HINDI", "URDU", "TAMIL", "SPORTS"}
	for _, n := range names {
		src.add(n, 3, 10)
	}
	src.fail["URDU"] = errors.New("Failed to fetch data for genre URDU, page 1: 503 Service Unavailable")
	mem := storetest.NewMemory()

	report, err := newTestSyncer(src, mem, names...).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Successful)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 5, report.TotalGenres)
	require.Len(t, report.Results, 5)
	for i, res := range report.Results {
		assert.Equal(t, names[i], res.Category)
	}
	failed := report.Results[2]
	assert.False(t, failed.Success)
	assert.Nil(t, failed.Total)
	assert.Contains(t, failed.Error, "genre URDU, page 1")

	byCategory := make(map[string]int)
	for _, ch := range mem.Channels() {
		byCategory[ch.CategoryName()]++
	}
	assert.Equal(t, map[string]int{"ENGLISH": 3, "HINDI": 3, "TAMIL": 3, "SPORTS": 3}, byCategory)
}

func TestSyncer_StoreFailureIsolated(t *testing.T) {
	src := newFakeSource()
	src.add("ENGLISH", 2, 10)
	src.add("HINDI", 2, 10)
	mem := storetest.NewMemory()
	mem.UpsertErr = func(batch []models.Channel) error {
		if batch[0].CategoryName() == "ENGLISH" {
			return errors.New("connection reset")
		}
		return nil
	}

	report, err := newTestSyncer(src, mem, "ENGLISH", "HINDI").Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, "connection reset", report.Results[0].Error)
	assert.True(t, report.Results[1].Success)
}

func TestSyncer_Pagination(t *testing.T) {
	src := newFakeSource()
	src.add("ENGLISH", 25, 10)
	mem := storetest.NewMemory()

	report, err := newTestSyncer(src, mem, "ENGLISH").Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, src.callsFor("ENGLISH"))
	require.NotNil(t, report.Results[0].Total)
	assert.Equal(t, 25, *report.Results[0].Total)
	require.Len(t, mem.Batches(), 1)
	assert.Len(t, mem.Batches()[0], 25)
	assert.Equal(t, []string{"ci_session=s; _cookie=c"}, unique(src.seen))
}

func TestSyncer_StopsOnEmptyPage(t *testing.T) {
	src := newFakeSource()
	src.add("HINDI", 10, 5)
	src.total["HINDI"] = 50 // claims 10 pages, serves 2

	report, err := newTestSyncer(src, storetest.NewMemory(), "HINDI").Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, src.callsFor("HINDI"))
	assert.Equal(t, 10, *report.Results[0].Total)
}

func TestSyncer_EmptyCategory(t *testing.T) {
	src := newFakeSource()
	mem := storetest.NewMemory()

	report, err := newTestSyncer(src, mem, "ADULT").Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, src.callsFor("ADULT"))
	assert.True(t, report.Results[0].Success)
	assert.Equal(t, 0, *report.Results[0].Total)
}

func TestSyncer_DedupesBatch(t *testing.T) {
	src := newFakeSource()
	src.total["ENGLISH"] = 3
	src.pages["ENGLISH"] = [][]upstream.Record{
		{{Number: "1", Title: "old", Genre: "BBC"}, {Number: "2", Title: "x", Genre: "CNN"}},
		{{Number: "1", Title: "new", Genre: "BBC"}},
	}
	mem := storetest.NewMemory()

	report, err := newTestSyncer(src, mem, "ENGLISH").Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Results[0].Success, report.Results[0].Error)
	assert.Equal(t, 3, *report.Results[0].Total, "total counts fetched records")

	batch := mem.Batches()[0]
	require.Len(t, batch, 2)
	assert.Equal(t, "BBC", batch[0].Genre)
	assert.Equal(t, "new", batch[0].Title)
}

func TestSyncer_NamesError(t *testing.T) {
	s := NewSyncer(newFakeSource(), storetest.NewMemory(), staticCreds{}, catalog.NamesFile("/does/not/exist"))
	s.Log = zerolog.Nop()
	_, err := s.Run(context.Background())
	assert.Error(t, err)
}

type heldLock struct{}

func (heldLock) TryAcquire(context.Context) (func(), error) { return nil, cache.ErrLocked }

func TestSyncer_LockHeld(t *testing.T) {
	src := newFakeSource()
	s := newTestSyncer(src, storetest.NewMemory(), "ENGLISH")
	s.Lock = heldLock{}

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, cache.ErrLocked)
	assert.Empty(t, src.callsFor("ENGLISH"))
}

func TestSyncer_Cancelled(t *testing.T) {
	src := newFakeSource()
	src.add("ENGLISH", 1, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestSyncer(src, storetest.NewMemory(), "ENGLISH", "HINDI").Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
}

func TestSyncer_PausesAfterEachRequest(t *testing.T) {
	src := newFakeSource()
	src.add("ENGLISH", 3, 1)
	src.add("HINDI", 1, 1)
	src.latency = 30 * time.Millisecond
	s := newTestSyncer(src, storetest.NewMemory(), "ENGLISH", "HINDI")
	s.PageDelay = 50 * time.Millisecond
	s.CategoryDelay = 80 * time.Millisecond

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Successful)

	// The upstream is slower than the page delay, so the pause must be
	// measured from the end of each request, not its start.
	require.Len(t, src.spans, 4)
	for i := 1; i < len(src.spans); i++ {
		prev, next := src.spans[i-1], src.spans[i]
		want := s.PageDelay
		if prev.genre != next.genre {
			want = s.CategoryDelay
		}
		// A millisecond of slack absorbs the limiter's float rounding.
		assert.GreaterOrEqual(t, next.start.Sub(prev.end), want-time.Millisecond, "gap before request %d", i)
	}
}

func TestPacer_Disabled(t *testing.T) {
	p := newPacer(0)
	p.done()
	start := time.Now()
	require.NoError(t, p.wait(context.Background()))
	assert.Less(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.wait(ctx), context.Canceled)
}

func TestReportMessage(t *testing.T) {
	r := &Report{Successful: 4, Failed: 1}
	assert.Equal(t, "Sync completed. 4 genres successful, 1 failed.", r.Message())
}

func snapshot(chs []models.Channel) []string {
	out := make([]string, 0, len(chs))
	for _, ch := range chs {
		out = append(out, fmt.Sprintf("%s|%s|%s|%s", ch.ChannelNumber, ch.Genre, ch.Title, ch.CategoryName()))
	}
	sort.Strings(out)
	return out
}

func unique(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
