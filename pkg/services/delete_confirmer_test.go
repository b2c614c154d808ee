package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
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
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestConfirmer(window time.Duration) (*memoryDeleteConfirmer, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	return newMemoryDeleteConfirmer(window, clock.Now), clock
}

func TestMemoryDeleteConfirmer_ArmThenConfirm(t *testing.T) {
	c, clock := newTestConfirmer(time.Minute)
	ctx := context.Background()
	a := uuid.New()

	first, err := c.Request(ctx, "admin", a)
	require.NoError(t, err)
	assert.False(t, first.Confirmed)
	assert.Equal(t, clock.Now().Add(time.Minute), first.ExpiresAt)

	second, err := c.Request(ctx, "admin", a)
	require.NoError(t, err)
	assert.True(t, second.Confirmed)

	_, armed := c.armedFor("admin")
	assert.False(t, armed, "confirming consumes the arm")
}

func TestMemoryDeleteConfirmer_OtherIDMovesArm(t *testing.T) {
	c, _ := newTestConfirmer(time.Minute)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	_, _ = c.Request(ctx, "admin", a)
	decision, err := c.Request(ctx, "admin", b)
	require.NoError(t, err)
	assert.False(t, decision.Confirmed)

	id, armed := c.armedFor("admin")
	require.True(t, armed)
	assert.Equal(t, b, id)

	// A is no longer armed, so requesting it arms it afresh.
	decision, _ = c.Request(ctx, "admin", a)
	assert.False(t, decision.Confirmed)
}

func TestMemoryDeleteConfirmer_ExpiredArmReArms(t *testing.T) {
	c, clock := newTestConfirmer(time.Minute)
	ctx := context.Background()
	a := uuid.New()

	_, _ = c.Request(ctx, "admin", a)
	clock.Advance(time.Minute + time.Millisecond)

	decision, err := c.Request(ctx, "admin", a)
	require.NoError(t, err)
	assert.False(t, decision.Confirmed, "an expired arm never confirms")
	assert.Equal(t, clock.Now().Add(time.Minute), decision.ExpiresAt)
}

func TestMemoryDeleteConfirmer_TimerClearsArm(t *testing.T) {
	c := newMemoryDeleteConfirmer(20*time.Millisecond, time.Now)
	_, _ = c.Request(context.Background(), "admin", uuid.New())

	assert.Eventually(t, func() bool {
		_, armed := c.armedFor("admin")
		return !armed
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryDeleteConfirmer_Disarm(t *testing.T) {
	c, _ := newTestConfirmer(time.Minute)
	ctx := context.Background()
	a := uuid.New()

	_, _ = c.Request(ctx, "admin", a)
	require.NoError(t, c.Disarm(ctx, "admin"))

	decision, _ := c.Request(ctx, "admin", a)
	assert.False(t, decision.Confirmed)
}

func TestMemoryDeleteConfirmer_ActorsAreIndependent(t *testing.T) {
	c, _ := newTestConfirmer(time.Minute)
	ctx := context.Background()
	a := uuid.New()

	_, _ = c.Request(ctx, "alice", a)
	decision, _ := c.Request(ctx, "bob", a)
	assert.False(t, decision.Confirmed, "bob's first request only arms")

	decision, _ = c.Request(ctx, "alice", a)
	assert.True(t, decision.Confirmed)
}
