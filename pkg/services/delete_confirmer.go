package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultDeleteWindow is how long a delete stays armed waiting for its
// confirming call.
const DefaultDeleteWindow = 3 * time.Second

// DeleteDecision is the outcome of one delete request.
type DeleteDecision struct {
	// Confirmed is true when the request confirmed a live arm for the same id.
	Confirmed bool
	// ExpiresAt is when the new arm lapses. Zero when Confirmed.
	ExpiresAt time.Time
}

// DeleteConfirmer tracks, per actor, which assembly is armed for deletion.
// Each actor is either idle or armed for exactly one id until the window
// elapses, a confirming request consumes the arm, or Disarm is called.
type DeleteConfirmer interface {
	// Request confirms when id is armed for actor and the window has not
	// elapsed. Otherwise it arms id, replacing any other armed id.
	Request(ctx context.Context, actor string, id uuid.UUID) (DeleteDecision, error)
	// Disarm returns actor to idle.
	Disarm(ctx context.Context, actor string) error
}

// ============================================================================
// In-memory confirmer
// ============================================================================

type deleteArm struct {
	id        uuid.UUID
	expiresAt time.Time
	timer     *time.Timer
}

type memoryDeleteConfirmer struct {
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	armed map[string]*deleteArm
}

var _ DeleteConfirmer = (*memoryDeleteConfirmer)(nil)

// NewMemoryDeleteConfirmer creates a process-local confirmer. Every arm owns
// one timer that clears it on expiry.
func NewMemoryDeleteConfirmer(window time.Duration) DeleteConfirmer {
	return newMemoryDeleteConfirmer(window, time.Now)
}

func newMemoryDeleteConfirmer(window time.Duration, now func() time.Time) *memoryDeleteConfirmer {
	if window <= 0 {
		window = DefaultDeleteWindow
	}
	return &memoryDeleteConfirmer{
		window: window,
		now:    now,
		armed:  make(map[string]*deleteArm),
	}
}

func (c *memoryDeleteConfirmer) Request(ctx context.Context, actor string, id uuid.UUID) (DeleteDecision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if prev, ok := c.armed[actor]; ok {
		prev.timer.Stop()
		delete(c.armed, actor)
		// The clock check covers a timer that has fired but not yet run.
		if prev.id == id && now.Before(prev.expiresAt) {
			return DeleteDecision{Confirmed: true}, nil
		}
	}

	arm := &deleteArm{id: id, expiresAt: now.Add(c.window)}
	arm.timer = time.AfterFunc(c.window, func() { c.expire(actor, arm) })
	c.armed[actor] = arm
	return DeleteDecision{ExpiresAt: arm.expiresAt}, nil
}

func (c *memoryDeleteConfirmer) Disarm(ctx context.Context, actor string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.armed[actor]; ok {
		prev.timer.Stop()
		delete(c.armed, actor)
	}
	return nil
}

func (c *memoryDeleteConfirmer) expire(actor string, arm *deleteArm) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.armed[actor] == arm {
		delete(c.armed, actor)
	}
}

// armedFor reports the armed id for actor. Test hook.
func (c *memoryDeleteConfirmer) armedFor(actor string) (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	arm, ok := c.armed[actor]
	if !ok {
		return uuid.Nil, false
	}
	return arm.id, true
}

// ============================================================================
// Redis confirmer
// ============================================================================

// DeleteArmKeyPrefix prefixes the per-actor arm key in Redis.
const DeleteArmKeyPrefix = "factory:delete-arm:"

type redisDeleteConfirmer struct {
	client *redis.Client
	window time.Duration
	now    func() time.Time
}

var _ DeleteConfirmer = (*redisDeleteConfirmer)(nil)

// NewRedisDeleteConfirmer stores arms in Redis so they survive restarts and
// are shared by every server instance. The key TTL is the confirmation window.
func NewRedisDeleteConfirmer(client *redis.Client, window time.Duration) DeleteConfirmer {
	if window <= 0 {
		window = DefaultDeleteWindow
	}
	return &redisDeleteConfirmer{client: client, window: window, now: time.Now}
}

func (c *redisDeleteConfirmer) Request(ctx context.Context, actor string, id uuid.UUID) (DeleteDecision, error) {
	key := DeleteArmKeyPrefix + actor

	// GETDEL consumes the arm atomically, so two racing confirmations
	// cannot both delete.
	prev, err := c.client.GetDel(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return DeleteDecision{}, fmt.Errorf("failed to read pending delete: %w", err)
	}
	if prev == id.String() {
		return DeleteDecision{Confirmed: true}, nil
	}

	if err := c.client.Set(ctx, key, id.String(), c.window).Err(); err != nil {
		return DeleteDecision{}, fmt.Errorf("failed to arm delete: %w", err)
	}
	return DeleteDecision{ExpiresAt: c.now().Add(c.window)}, nil
}

func (c *redisDeleteConfirmer) Disarm(ctx context.Context, actor string) error {
	if err := c.client.Del(ctx, DeleteArmKeyPrefix+actor).Err(); err != nil {
		return fmt.Errorf("failed to disarm delete: %w", err)
	}
	return nil
}
