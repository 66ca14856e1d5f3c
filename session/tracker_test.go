package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestTracker(opts ...TrackerOption) (*Tracker, *fakeClock) {
	clock := &fakeClock{now: time.Now()}
	tr := NewTracker(NewMemoryStore(), opts...)
	tr.now = clock.Now
	return tr, clock
}

func TestTracker_CreateResolveDestroy(t *testing.T) {
	tr, _ := newTestTracker()

	token, expiresAt, err := tr.Create("admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.False(t, expiresAt.IsZero())

	user, ok := tr.Resolve(token)
	require.True(t, ok)
	assert.Equal(t, "admin", user)

	tr.Destroy(token)
	_, ok = tr.Resolve(token)
	assert.False(t, ok)

	// Idempotent.
	tr.Destroy(token)
	tr.Destroy("")
	tr.Destroy("never-issued")
}

func TestTracker_TokensAreDistinct(t *testing.T) {
	tr, _ := newTestTracker()
	a, _, err := tr.Create("admin")
	require.NoError(t, err)
	b, _, err := tr.Create("admin")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	// Destroying one login leaves the other intact.
	tr.Destroy(a)
	user, ok := tr.Resolve(b)
	require.True(t, ok)
	assert.Equal(t, "admin", user)
}

func TestTracker_ResolveUnknown(t *testing.T) {
	tr, _ := newTestTracker()
	_, ok := tr.Resolve("")
	assert.False(t, ok)
	_, ok = tr.Resolve("forged")
	assert.False(t, ok)
}

func TestTracker_CreateRequiresUsername(t *testing.T) {
	tr, _ := newTestTracker()
	_, _, err := tr.Create("")
	assert.ErrorIs(t, err, ErrEmptyUsername)
}

func TestTracker_Expiry(t *testing.T) {
	tr, clock := newTestTracker(WithDuration(time.Hour))
	assert.Equal(t, time.Hour, tr.Duration())

	token, expiresAt, err := tr.Create("yam")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour), expiresAt)

	clock.Advance(59 * time.Minute)
	_, ok := tr.Resolve(token)
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)
	_, ok = tr.Resolve(token)
	assert.False(t, ok)
}

func TestTracker_IdleTimeout(t *testing.T) {
	tr, clock := newTestTracker(WithIdleTimeout(10 * time.Minute))

	token, _, err := tr.Create("admin")
	require.NoError(t, err)

	// Regular activity keeps the session alive.
	for i := 0; i < 5; i++ {
		clock.Advance(9 * time.Minute)
		_, ok := tr.Resolve(token)
		require.True(t, ok, "iteration %d", i)
	}

	clock.Advance(11 * time.Minute)
	_, ok := tr.Resolve(token)
	assert.False(t, ok)
}

func TestTracker_NonPositiveDurationKeepsDefault(t *testing.T) {
	tr := NewTracker(NewMemoryStore(), WithDuration(0))
	assert.Equal(t, DefaultDuration, tr.Duration())
}

func TestTracker_ConcurrentUse(t *testing.T) {
	tr, _ := newTestTracker(WithIdleTimeout(time.Hour))
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, _, err := tr.Create("admin")
			if !assert.NoError(t, err) {
				return
			}
			user, ok := tr.Resolve(token)
			assert.True(t, ok)
			assert.Equal(t, "admin", user)
			tr.Destroy(token)
			_, ok = tr.Resolve(token)
			assert.False(t, ok)
		}()
	}
	wg.Wait()
}
