// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ipfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxDocumentSize bounds how much of a gateway response is read.
const maxDocumentSize = 1 << 20

// Gateway reads documents from an IPFS HTTP gateway (GET /ipfs/{hash}).
type Gateway struct {
	baseURL string
	client  *http.Client
}

// NewGateway creates a gateway client. host may be a bare host name
// ("gateway.pinata.cloud") or a full base URL.
func NewGateway(host string, timeout time.Duration) *Gateway {
	base := strings.TrimRight(host, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Gateway{baseURL: base, client: &http.Client{Timeout: timeout}}
}

// URL returns the gateway URL of a content hash.
func (g *Gateway) URL(hash string) string {
	return g.baseURL + "/ipfs/" + hash
}

// Fetch downloads the document stored under hash.
func (g *Gateway) Fetch(ctx context.Context, hash string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL(hash), nil)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("gateway %s: %w", hash, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway error (status %d) for %s", resp.StatusCode, hash)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("gateway read body: %w", err)
	}
	return body, nil
}
