package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagen/fiootv/internal/models"
)

// testRedis connects to TEST_REDIS_URL or skips.
func testRedis(t *testing.T) *Redis {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	r, err := New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestKey(t *testing.T) {
	assert.Equal(t, "fiootv:lock:sync", Key(SyncLockKey))
	assert.Equal(t, "fiootv:channels:abc", Key("channels", "abc"))
}

func TestJSONRoundTripAndPatternDelete(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()
	ns := "test:" + uuid.NewString()

	_, found, err := GetJSON[[]string](ctx, r, ns+":missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, r, ns+":a", []string{"ENGLISH"}, time.Minute))
	require.NoError(t, SetJSON(ctx, r, ns+":b", []string{"HINDI"}, time.Minute))

	v, found, err := GetJSON[[]string](ctx, r, ns+":a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"ENGLISH"}, v)

	n, err := DeletePattern(ctx, r, ns+":*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAcquire(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()
	key := "test:lock:" + uuid.NewString()

	lease, err := Acquire(ctx, r, key, time.Minute)
	require.NoError(t, err)

	_, err = Acquire(ctx, r, key, time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	ok, err := lease.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lease.Release(ctx))
	held, err := Held(ctx, r, key)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestQueue(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()
	queue := "test:queue:" + uuid.NewString()

	require.NoError(t, Enqueue(ctx, r, queue, models.Notification{
		Kind:    models.NotificationContact,
		Contact: &models.ContactSubmission{FirstName: "Ada", Email: "ada@example.com"},
	}))
	pending, err := QueueLength(ctx, r, queue)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)

	n, err := Dequeue(ctx, r, queue, time.Second)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, models.NotificationContact, n.Kind)
	assert.Equal(t, "Ada", n.Contact.FirstName)

	n, err = Dequeue(ctx, r, queue, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestCounter(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()
	key := "test:counter:" + uuid.NewString()

	n, err := Counter(ctx, r, key)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = Incr(ctx, r, key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = Counter(ctx, r, key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = DeletePattern(ctx, r, key)
	require.NoError(t, err)
}
