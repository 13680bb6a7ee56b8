// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ipfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"proofpress/internal/metrics"
)

// DefaultL1Size is the number of documents kept in process memory.
const DefaultL1Size = 512

// DocumentCache is the shared (L2) cache keyed by content hash.
type DocumentCache interface {
	Get(ctx context.Context, hash string) ([]byte, bool)
	Set(ctx context.Context, hash string, doc []byte)
}

// Archive is a durable mirror of uploaded documents. Get returns (nil, nil)
// for unknown hashes.
type Archive interface {
	Put(ctx context.Context, hash string, doc []byte) error
	Get(ctx context.Context, hash string) ([]byte, error)
}

// Client uploads documents and reads them back through the cache tiers.
// Content-addressed documents never change, so entries are never
// invalidated.
type Client struct {
	pinner  Pinner
	origin  Fetcher
	l1      *lru.Cache[string, []byte]
	l2      DocumentCache
	archive Archive
	group   singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithDocumentCache adds a shared L2 cache.
func WithDocumentCache(dc DocumentCache) Option {
	return func(c *Client) { c.l2 = dc }
}

// WithArchive mirrors uploads into an archive and reads from it when the
// origin fails.
func WithArchive(a Archive) Option {
	return func(c *Client) { c.archive = a }
}

// WithL1Size changes the in-process cache size.
func WithL1Size(n int) Option {
	return func(c *Client) {
		if l1, err := lru.New[string, []byte](n); err == nil {
			c.l1 = l1
		}
	}
}

// NewClient creates a Client that pins through pinner and reads through origin.
func NewClient(pinner Pinner, origin Fetcher, opts ...Option) *Client {
	l1, _ := lru.New[string, []byte](DefaultL1Size)
	c := &Client{pinner: pinner, origin: origin, l1: l1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload pins doc and returns its content hash. The uploaded bytes prime
// every cache tier so the registration step can read them back without a
// gateway round trip. Mirror failures are logged, not returned.
func (c *Client) Upload(ctx context.Context, name string, doc []byte) (string, error) {
	start := time.Now()
	pin, err := c.pinner.PinJSON(ctx, name, doc)
	metrics.ObserveUpstream("pinata", start, err)
	if err != nil {
		return "", fmt.Errorf("upload document: %w", err)
	}

	slog.Info("document pinned", "hash", pin.Hash, "size", pin.Size, "duplicate", pin.IsDuplicate)

	c.l1.Add(pin.Hash, doc)
	if c.l2 != nil {
		c.l2.Set(ctx, pin.Hash, doc)
	}
	if c.archive != nil {
		if err := c.archive.Put(ctx, pin.Hash, doc); err != nil {
			slog.Warn("document mirror failed", "hash", pin.Hash, "error", err)
		}
	}
	return pin.Hash, nil
}

// Fetch returns the document stored under hash. Concurrent misses for the
// same hash share one origin request.
func (c *Client) Fetch(ctx context.Context, hash string) ([]byte, error) {
	if doc, ok := c.l1.Get(hash); ok {
		metrics.RecordCacheLookup("l1")
		return doc, nil
	}
	if c.l2 != nil {
		if doc, ok := c.l2.Get(ctx, hash); ok {
			metrics.RecordCacheLookup("l2")
			c.l1.Add(hash, doc)
			return doc, nil
		}
	}

	v, err, _ := c.group.Do(hash, func() (any, error) {
		return c.fetchOrigin(ctx, hash)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) fetchOrigin(ctx context.Context, hash string) ([]byte, error) {
	start := time.Now()
	doc, err := c.origin.Fetch(ctx, hash)
	metrics.ObserveUpstream("gateway", start, err)
	tier := "origin"

	if err != nil && c.archive != nil {
		slog.Warn("gateway fetch failed, trying archive", "hash", hash, "error", err)
		mirrored, archiveErr := c.archive.Get(ctx, hash)
		switch {
		case archiveErr != nil:
			return nil, errors.Join(err, archiveErr)
		case mirrored != nil:
			doc, err, tier = mirrored, nil, "archive"
		}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}

	metrics.RecordCacheLookup(tier)
	c.l1.Add(hash, doc)
	if c.l2 != nil {
		c.l2.Set(ctx, hash, doc)
	}
	return doc, nil
}
