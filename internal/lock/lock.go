// Package lock provides the distributed per-campaign mutex the
// dispatcher takes before running a campaign's send loop, so two
// worker invocations racing on the same campaign never both claim
// messages at once (spec.md §4.5's per-campaign serialization note).
// It follows the same redis/go-redis/v9 client-construction idiom the
// pack's insider-messaging-service cache package uses.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder already owns the lock.
var ErrNotAcquired = errors.New("lock: not acquired")

const keyPrefix = "campaign-dispatcher:lock:campaign:"

type CampaignLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("invalid redis addr: %q", addr)
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// New builds a CampaignLock with ttl as the lock's automatic expiry, a
// safety net against a worker crashing mid-hold (§4.5's BUDGET note
// applies here too: no invocation legitimately holds a lock longer
// than the wall-clock budget).
func New(client *redis.Client, ttl time.Duration) *CampaignLock {
	return &CampaignLock{client: client, ttl: ttl}
}

// Held is a single acquisition; Release only clears the key if it
// still holds this token, so a lock that already expired and was
// re-acquired by someone else is never stolen back.
type Held struct {
	key   string
	token string
	lock  *CampaignLock
}

func (l *CampaignLock) key(campaignID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, campaignID)
}

// Unlocker is the narrow release surface the dispatcher's
// CampaignLocker interface expects back from an acquisition;
// dispatcher.Unlocker is a type alias of this so *CampaignLock
// satisfies it without either package importing the other's
// interface definitions circularly.
type Unlocker interface {
	Release(ctx context.Context) error
}

// AcquireHeld attempts a non-blocking SET NX EX; returns ErrNotAcquired
// if another invocation already holds the campaign.
func (l *CampaignLock) AcquireHeld(ctx context.Context, campaignID int64) (*Held, error) {
	token := uuid.NewString()
	key := l.key(campaignID)
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Held{key: key, token: token, lock: l}, nil
}

// Acquire adapts AcquireHeld to the dispatcher.CampaignLocker shape
// (Acquire returning an interface rather than *Held), so *CampaignLock
// can be passed directly as a dispatcher.CampaignLocker.
func (l *CampaignLock) Acquire(ctx context.Context, campaignID int64) (Unlocker, error) {
	return l.AcquireHeld(ctx, campaignID)
}

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Release drops the lock, but only if it is still the current holder.
func (h *Held) Release(ctx context.Context) error {
	return h.lock.client.Eval(ctx, releaseScript, []string{h.key}, h.token).Err()
}

// Extend refreshes the TTL to ttl, but only if this holder still owns
// the lock. The dispatcher does not call it; its locks rely on the ttl
// passed to New.
func (h *Held) Extend(ctx context.Context, ttl time.Duration) error {
	const extendScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`
	return h.lock.client.Eval(ctx, extendScript, []string{h.key}, h.token, ttl.Milliseconds()).Err()
}
