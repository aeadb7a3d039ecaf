package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"photohunter/models"
)

// CachedUsers is a read-through Redis cache in front of a UserRepository.
// Users are stored BSON-encoded under "user:<id>", with "user-email:<email>"
// pointing at the id. Every write drops the affected entries and fences
// off refills of that user for a short while.
type CachedUsers struct {
	inner UserRepository
	redis *redis.Client
	ttl   time.Duration
	fence time.Duration
}

// defaultFillFence bounds how long a read may take between loading a user
// from the inner repository and caching it.
const defaultFillFence = 30 * time.Second

func NewCachedUsers(inner UserRepository, client *redis.Client, ttl time.Duration) *CachedUsers {
	return &CachedUsers{inner: inner, redis: client, ttl: ttl, fence: defaultFillFence}
}

func userKey(id string) string { return "user:" + id }
func emailKey(email string) string { return "user-email:" + strings.ToLower(email) }
func dirtyKey(id string) string { return "user-dirty:" + id }

func (c *CachedUsers) load(ctx context.Context, id string) (models.User, bool) {
	raw, err := c.redis.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			glog.Warningf("Redis get for user %s failed: %v", id, err)
		}
		return models.User{}, false
	}
	var u models.User
	if err := bson.Unmarshal(raw, &u); err != nil {
		glog.Warningf("Failed to decode cached user %s: %v", id, err)
		return models.User{}, false
	}
	return u, true
}

// store fills the cache unless the user was written within the fill
// fence. The fence closes the window where a reader that loaded the user
// before a write caches it after the write's invalidation.
func (c *CachedUsers) store(ctx context.Context, u models.User) {
	raw, err := bson.Marshal(u)
	if err != nil {
		glog.Warningf("Failed to encode user %s for cache: %v", u.ID, err)
		return
	}
	dirty := dirtyKey(u.ID)
	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, dirty).Result()
		if err != nil || n > 0 {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey(u.ID), raw, c.ttl)
			pipe.Set(ctx, emailKey(u.Email), u.ID, c.ttl)
			return nil
		})
		return err
	}, dirty)
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		glog.Warningf("Failed to cache user %s: %v", u.ID, err)
	}
}

func (c *CachedUsers) invalidate(ctx context.Context, id string) {
	keys := []string{userKey(id)}
	if u, ok := c.load(ctx, id); ok {
		keys = append(keys, emailKey(u.Email))
	}
	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, dirtyKey(id), 1, c.fence)
	pipe.Del(ctx, keys...)
	if _, err := pipe.Exec(ctx); err != nil {
		glog.Warningf("Failed to drop cached user %s: %v", id, err)
	}
}

func (c *CachedUsers) Create(ctx context.Context, u *models.User) error {
	return c.inner.Create(ctx, u)
}

func (c *CachedUsers) FindByID(ctx context.Context, id string) (models.User, error) {
	if u, ok := c.load(ctx, id); ok {
		return u, nil
	}
	u, err := c.inner.FindByID(ctx, id)
	if err != nil {
		return u, err
	}
	c.store(ctx, u)
	return u, nil
}

func (c *CachedUsers) FindByEmail(ctx context.Context, email string) (models.User, error) {
	if id, err := c.redis.Get(ctx, emailKey(email)).Result(); err == nil {
		if u, ok := c.load(ctx, id); ok {
			return u, nil
		}
	}
	u, err := c.inner.FindByEmail(ctx, email)
	if err != nil {
		return u, err
	}
	c.store(ctx, u)
	return u, nil
}

func (c *CachedUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return c.inner.ExistsByEmail(ctx, email)
}

func (c *CachedUsers) SetEnabled(ctx context.Context, id string, enabled bool) error {
	defer c.invalidate(ctx, id)
	return c.inner.SetEnabled(ctx, id, enabled)
}

func (c *CachedUsers) AddFavorite(ctx context.Context, userID, locationID string) error {
	defer c.invalidate(ctx, userID)
	return c.inner.AddFavorite(ctx, userID, locationID)
}

func (c *CachedUsers) RemoveFavorite(ctx context.Context, userID, locationID string) error {
	defer c.invalidate(ctx, userID)
	return c.inner.RemoveFavorite(ctx, userID, locationID)
}

func (c *CachedUsers) DeleteAll(ctx context.Context) error {
	if err := c.inner.DeleteAll(ctx); err != nil {
		return err
	}
	for _, pattern := range []string{"user:*", "user-email:*", "user-dirty:*"} {
		iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			c.redis.Del(ctx, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}
	return nil
}
