// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultPinataURL is the Pinata pinning API base URL.
const DefaultPinataURL = "https://api.pinata.cloud"

// PinataConfig holds the credentials and settings for the Pinata client.
type PinataConfig struct {
	JWT     string
	BaseURL string
	Timeout time.Duration
}

// Pinata pins JSON documents through the Pinata API
// (POST /pinning/pinJSONToIPFS).
type Pinata struct {
	config PinataConfig
	client *http.Client
}

// NewPinata creates a Pinata client.
func NewPinata(cfg PinataConfig) *Pinata {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultPinataURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Pinata{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// PinJSON pins doc, which must be a JSON object, under the given name.
func (p *Pinata) PinJSON(ctx context.Context, name string, doc []byte) (*Pin, error) {
	body := pinataRequest{
		Content:  json.RawMessage(doc),
		Metadata: pinataMetadata{Name: name},
		Options:  pinataOptions{CIDVersion: 0},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("pinata marshal: %w", err)
	}

	url := p.config.BaseURL + "/pinning/pinJSONToIPFS"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("pinata request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.JWT)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pinata http: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("pinata read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pinata API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result pinataResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("pinata unmarshal: %w", err)
	}
	if result.IpfsHash == "" {
		return nil, fmt.Errorf("pinata: empty hash in response")
	}

	return &Pin{
		Hash:        result.IpfsHash,
		Size:        result.PinSize,
		Timestamp:   result.Timestamp,
		IsDuplicate: result.IsDuplicate,
	}, nil
}

// --- Pinata API types ---

type pinataMetadata struct {
	Name string `json:"name"`
}

type pinataOptions struct {
	CIDVersion int `json:"cidVersion"`
}

type pinataRequest struct {
	Content  json.RawMessage `json:"pinataContent"`
	Metadata pinataMetadata  `json:"pinataMetadata"`
	Options  pinataOptions   `json:"pinataOptions"`
}

type pinataResponse struct {
	IpfsHash    string `json:"IpfsHash"`
	PinSize     int64  `json:"PinSize"`
	Timestamp   string `json:"Timestamp"`
	IsDuplicate bool   `json:"isDuplicate"`
}
