// Package cache keeps rendered list responses in Redis so repeated
// directory and load queries skip the database. Entries carry the ids
// they contain, so a single entity change invalidates exactly the
// pages that showed it.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "machtms/internal/errors"
	"machtms/pkg/logger"
)

// Entry is one cached list response.
type Entry struct {
	Data   json.RawMessage `json:"data"`
	Hash   string          `json:"hash"`
	IDList []string        `json:"id_list"`
}

// Contains reports whether the entry's page included the entity.
func (e Entry) Contains(id string) bool {
	for _, candidate := range e.IDList {
		if candidate == id {
			return true
		}
	}
	return false
}

// Cache is the Redis-backed response cache.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    *slog.Logger
}

// New builds a Cache. TTL zero means entries live until invalidated.
func New(client redis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, log: logger.Named("cache")}
}

// Key renders the cache key for one organization, route, and query
// string combination.
func Key(orgID, route, query string) string {
	if orgID == "" {
		orgID = "_"
	}
	return orgID + ":" + route + ":" + query
}

// HashOf fingerprints a rendered response so unchanged payloads skip
// the write.
func HashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached entry, or nil on a miss.
func (c *Cache) Get(ctx context.Context, orgID, route, query string) (*Entry, error) {
	raw, err := c.client.Get(ctx, Key(orgID, route, query)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.CodeExternalService, err, "cache read")
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Corrupt entries behave like misses.
		c.log.Warn("dropping unreadable cache entry", "route", route, "error", err)
		_ = c.client.Del(ctx, Key(orgID, route, query)).Err()
		return nil, nil
	}
	return &entry, nil
}

// Save stores a rendered response. When the fingerprint matches the
// existing entry the write is skipped and Save reports false.
func (c *Cache) Save(ctx context.Context, orgID, route, query string, data []byte, idList []string) (bool, error) {
	key := Key(orgID, route, query)
	hash := HashOf(data)

	if existing, err := c.Get(ctx, orgID, route, query); err == nil && existing != nil && existing.Hash == hash {
		return false, nil
	}

	entry := Entry{Data: data, Hash: hash, IDList: idList}
	encoded, err := json.Marshal(entry)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeInvalidArgument, err, "encode cache entry")
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		return false, apperrors.Wrap(apperrors.CodeExternalService, err, "cache write")
	}
	return true, nil
}

// Invalidate deletes the organization's entries for a route that
// contained the entity. An empty id clears the whole route. Returns
// the number of entries removed.
func (c *Cache) Invalidate(ctx context.Context, orgID, route, id string) (int, error) {
	pattern := Key(orgID, route, "*")
	removed := 0

	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if id != "" {
			raw, err := c.client.Get(ctx, key).Bytes()
			if err != nil {
				continue
			}
			var entry Entry
			if err := json.Unmarshal(raw, &entry); err == nil && !entry.Contains(id) {
				continue
			}
		}
		if err := c.client.Del(ctx, key).Err(); err != nil {
			return removed, apperrors.Wrap(apperrors.CodeExternalService, err, "cache delete")
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, apperrors.Wrap(apperrors.CodeExternalService, err, "cache scan")
	}
	return removed, nil
}
