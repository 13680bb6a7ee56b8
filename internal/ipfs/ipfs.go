// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package ipfs uploads article metadata documents to IPFS through a pinning
// service and reads them back through an HTTP gateway. Reads go through an
// in-process LRU, the shared Valkey document cache and, when the gateway
// fails, an optional S3 mirror.
package ipfs

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when no tier can produce the requested document.
var ErrNotFound = errors.New("ipfs document not found")

// Pin describes a document pinned by the pinning service.
type Pin struct {
	Hash        string
	Size        int64
	Timestamp   string
	IsDuplicate bool
}

// Pinner pins a JSON document and returns its content hash.
type Pinner interface {
	PinJSON(ctx context.Context, name string, doc []byte) (*Pin, error)
}

// Fetcher retrieves a document by content hash.
type Fetcher interface {
	Fetch(ctx context.Context, hash string) ([]byte, error)
}

// URI returns the ipfs:// URI for a content hash.
func URI(hash string) string {
	return "ipfs://" + hash
}

// HashFromURI strips an ipfs:// prefix if present.
func HashFromURI(uri string) string {
	return strings.TrimPrefix(uri, "ipfs://")
}
