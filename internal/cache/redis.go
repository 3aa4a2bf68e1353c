package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"dcspace-backend/internal/config"
	"dcspace-backend/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache keys
const (
	RentKeyPrefix = "rent:view:"
	LockKeyPrefix = "lock:"
)

// RentViewTTL bounds how long a cached rent view may be served.
const RentViewTTL = 5 * time.Minute

var client *redis.Client

// releaseScript deletes a lock only if it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	fillMode  = "fill"
	storeMode = "store"
)

// writeViewScript stores a rent view as a {v, data} hash. A fill never
// replaces an existing view; a store skips views older than the cached one.
var writeViewScript = redis.NewScript(`
local cur = redis.call("HGET", KEYS[1], "v")
if cur then
	if ARGV[4] == "fill" or tonumber(cur) > tonumber(ARGV[2]) then
		return 0
	end
end
redis.call("HSET", KEYS[1], "v", ARGV[2], "data", ARGV[1])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`)

// Init connects to Redis. On failure the client stays nil and every helper
// degrades to a no-op.
func Init(cfg *config.Config) error {
	client = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		client = nil
		return err
	}
	log.Printf("[Redis] Connected to %s", cfg.Redis.Addr)
	return nil
}

// SetClient replaces the package client (nil disables caching).
func SetClient(c *redis.Client) {
	client = c
}

func GetClient() *redis.Client {
	return client
}

// Close releases the connection pool.
func Close() {
	if client != nil {
		client.Close()
		client = nil
	}
}

// IsHealthy returns true if Redis connection is working
func IsHealthy() bool {
	if client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err() == nil
}

// ============================================
// Rent view cache
// ============================================

// RentViews caches rent read models. It satisfies services.RentCache.
type RentViews struct {
	TTL time.Duration
}

func NewRentViews() *RentViews {
	return &RentViews{TTL: RentViewTTL}
}

// Get returns the cached view of rentID.
func (c *RentViews) Get(ctx context.Context, rentID string) (*models.RentWithInvoice, bool) {
	if client == nil {
		return nil, false
	}
	data, err := client.HGet(ctx, RentKeyPrefix+rentID, "data").Bytes()
	if err != nil {
		return nil, false
	}
	var view models.RentWithInvoice
	if err := json.Unmarshal(data, &view); err != nil {
		log.Printf("[Redis] Dropping unreadable rent view %s: %v", rentID, err)
		client.Del(ctx, RentKeyPrefix+rentID)
		return nil, false
	}
	return &view, true
}

// Fill caches a view only when none is cached for the rent.
func (c *RentViews) Fill(ctx context.Context, view *models.RentWithInvoice) {
	if err := c.write(ctx, view, fillMode); err != nil {
		log.Printf("[Redis] Failed to fill rent view: %v", err)
	}
}

// Store caches a committed view unless a newer one is already cached.
func (c *RentViews) Store(ctx context.Context, view *models.RentWithInvoice) error {
	return c.write(ctx, view, storeMode)
}

func (c *RentViews) Invalidate(ctx context.Context, rentID string) {
	if client == nil {
		return
	}
	client.Del(ctx, RentKeyPrefix+rentID)
}

func (c *RentViews) write(ctx context.Context, view *models.RentWithInvoice, mode string) error {
	if client == nil || view == nil {
		return nil
	}
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return writeViewScript.Run(ctx, client, []string{RentKeyPrefix + view.ID},
		data, ViewVersion(view), c.TTL.Milliseconds(), mode).Err()
}

// ViewVersion orders views of the same rent by their last committed change.
func ViewVersion(view *models.RentWithInvoice) int64 {
	version := view.UpdatedAt
	if view.Invoice != nil && view.Invoice.UpdatedAt.After(version) {
		version = view.Invoice.UpdatedAt
	}
	return version.UnixMilli()
}

// ============================================
// Distributed lock
// ============================================

// Locker hands out short-lived locks via SET NX. It satisfies
// services.Locker. Without Redis every lock is granted, which is correct
// for a single replica.
type Locker struct{}

func (Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if client == nil {
		return func() {}, true, nil
	}

	token := uuid.NewString()
	ok, err := client.SetNX(ctx, LockKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, client, []string{LockKeyPrefix + key}, token).Err(); err != nil {
			log.Printf("[Redis] Failed to release lock %s: %v", key, err)
		}
	}
	return release, true, nil
}
