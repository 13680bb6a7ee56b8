// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// document.go provides the Valkey-backed metadata document cache (L2).
// Documents are content-addressed, so a cached body never goes stale; the
// TTL only bounds memory use.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// documentKeyPrefix is the Valkey key prefix for cached documents.
	documentKeyPrefix = "ipfsdoc:"

	// DefaultDocumentTTL is how long a fetched document stays cached.
	DefaultDocumentTTL = 24 * time.Hour
)

// DocumentCache stores raw metadata documents keyed by content hash.
type DocumentCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewDocumentCache creates a document cache backed by the given Valkey client.
func NewDocumentCache(client redis.UniversalClient, ttl time.Duration) *DocumentCache {
	if ttl == 0 {
		ttl = DefaultDocumentTTL
	}
	return &DocumentCache{client: client, ttl: ttl}
}

// Get returns the cached document for hash. Errors count as a miss.
func (dc *DocumentCache) Get(ctx context.Context, hash string) ([]byte, bool) {
	val, err := dc.client.Get(ctx, documentKeyPrefix+hash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("document cache get error", "hash", hash, "error", err)
		return nil, false
	}
	slog.Debug("document cache hit", "hash", hash)
	return val, true
}

// Set stores a document under its content hash.
func (dc *DocumentCache) Set(ctx context.Context, hash string, doc []byte) {
	if err := dc.client.Set(ctx, documentKeyPrefix+hash, doc, dc.ttl).Err(); err != nil {
		slog.Warn("document cache set error", "hash", hash, "error", err)
	}
}
