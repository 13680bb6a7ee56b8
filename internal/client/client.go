// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package client is a typed HTTP client for the ProofPress JSON API. Error
// replies are mapped back onto the apperr kinds the server produced them
// from, so callers can branch with errors.Is.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"proofpress/internal/apperr"
	"proofpress/internal/models"
	"proofpress/internal/publish"
)

// PrincipalHeader carries the caller identity. It matches the header the
// API's identity gateway sets.
const PrincipalHeader = "X-User-Id"

// maxErrorBody bounds how much of an error reply is read.
const maxErrorBody = 64 << 10

// Article is an article as the API returns it, with its workflow state.
type Article struct {
	models.Article
	State publish.State `json:"state"`
}

// Client talks to one ProofPress server as one principal.
type Client struct {
	baseURL    string
	principal  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPrincipal sets the identity sent with every request.
func WithPrincipal(principal string) Option {
	return func(c *Client) { c.principal = principal }
}

// New creates a client for the API served at baseURL (for example
// http://localhost:8080).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateArticle creates an article. With Status "published" the server
// starts the publish workflow before replying.
func (c *Client) CreateArticle(ctx context.Context, in publish.CreateInput) (*Article, error) {
	var out Article
	if err := c.do(ctx, http.MethodPost, "/api/articles", in, &out); err != nil {
		return nil, fmt.Errorf("create article: %w", err)
	}
	return &out, nil
}

// GetArticle fetches one article.
func (c *Client) GetArticle(ctx context.Context, id uuid.UUID) (*Article, error) {
	var out Article
	if err := c.do(ctx, http.MethodGet, "/api/articles/"+url.PathEscape(id.String()), nil, &out); err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return &out, nil
}

// PublishArticle moves a draft to published.
func (c *Client) PublishArticle(ctx context.Context, id uuid.UUID) (*Article, error) {
	var out Article
	if err := c.do(ctx, http.MethodPost, "/api/articles/"+url.PathEscape(id.String())+"/publish", nil, &out); err != nil {
		return nil, fmt.Errorf("publish article: %w", err)
	}
	return &out, nil
}

// ResumeArticle re-runs the server-side workflow of a published article.
func (c *Client) ResumeArticle(ctx context.Context, id uuid.UUID) (*Article, error) {
	var out Article
	if err := c.do(ctx, http.MethodPost, "/api/articles/"+url.PathEscape(id.String())+"/resume", nil, &out); err != nil {
		return nil, fmt.Errorf("resume article: %w", err)
	}
	return &out, nil
}

// AttachRegistration reports a registration signed by the caller's wallet.
func (c *Client) AttachRegistration(ctx context.Context, id uuid.UUID, in publish.RegistrationInput) (*Article, error) {
	var out Article
	if err := c.do(ctx, http.MethodPatch, "/api/articles/"+url.PathEscape(id.String())+"/registration", in, &out); err != nil {
		return nil, fmt.Errorf("attach registration: %w", err)
	}
	return &out, nil
}

// Registrations lists the audit records of an article.
func (c *Client) Registrations(ctx context.Context, id uuid.UUID) ([]models.Registration, error) {
	var out struct {
		Registrations []models.Registration `json:"registrations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/articles/"+url.PathEscape(id.String())+"/registrations", nil, &out); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return out.Registrations, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.principal != "" {
		req.Header.Set(PrincipalHeader, c.principal)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.New(apperr.ErrUpstream, "request %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError turns an error reply into an apperr carrying the server's
// message.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return apperr.New(kindFor(resp.StatusCode), "%s", msg)
}

func kindFor(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return apperr.ErrUnauthorized
	case http.StatusForbidden:
		return apperr.ErrForbidden
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusConflict:
		return apperr.ErrConflict
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return apperr.ErrInvalid
	case http.StatusGatewayTimeout:
		return apperr.ErrTimeout
	default:
		return apperr.ErrUpstream
	}
}
