// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package poller drives registration from the author's side when the
// server does not hold a signing key. It waits for the server to upload the
// metadata document, signs the registration with the author's own key and
// reports the identifiers back to the API.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"proofpress/internal/apperr"
	"proofpress/internal/canonical"
	"proofpress/internal/client"
	"proofpress/internal/ipfs"
	"proofpress/internal/ledger"
	"proofpress/internal/models"
	"proofpress/internal/publish"
)

const (
	// DefaultAttempts is how many times the article is fetched while
	// waiting for its content hash.
	DefaultAttempts = 30
	// DefaultInterval is the spacing between attempts.
	DefaultInterval = time.Second
)

// SlowRegistrationMessage is the message of the timeout returned when the
// content hash does not appear in time.
const SlowRegistrationMessage = "registration is taking longer than expected"

// API is the part of the HTTP client the poller uses.
type API interface {
	CreateArticle(ctx context.Context, in publish.CreateInput) (*client.Article, error)
	GetArticle(ctx context.Context, id uuid.UUID) (*client.Article, error)
	AttachRegistration(ctx context.Context, id uuid.UUID, in publish.RegistrationInput) (*client.Article, error)
}

// Poller waits for uploads and registers them with the author's key.
type Poller struct {
	api       API
	documents ipfs.Fetcher
	registrar ledger.Registrar
	chainID   int64
	attempts  int
	interval  time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures a Poller.
type Option func(*Poller)

// WithAttempts bounds the wait for the content hash. Values below 1 are
// ignored.
func WithAttempts(n int) Option {
	return func(p *Poller) {
		if n >= 1 {
			p.attempts = n
		}
	}
}

// WithInterval sets the spacing between attempts.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// New creates a poller. registrar must be a user-held signer variant;
// chainID is recorded with the registration when the registrar does not
// report one.
func New(api API, documents ipfs.Fetcher, registrar ledger.Registrar, chainID int64, opts ...Option) *Poller {
	p := &Poller{
		api:       api,
		documents: documents,
		registrar: registrar,
		chainID:   chainID,
		attempts:  DefaultAttempts,
		interval:  DefaultInterval,
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WaitForContentHash fetches the article until it carries a content hash.
// It makes exactly the configured number of attempts and then returns an
// apperr.ErrTimeout. Fetch errors are returned immediately.
func (p *Poller) WaitForContentHash(ctx context.Context, id uuid.UUID) (*client.Article, error) {
	for attempt := 1; attempt <= p.attempts; attempt++ {
		a, err := p.api.GetArticle(ctx, id)
		if err != nil {
			return nil, err
		}
		if a.HasContentHash() {
			slog.Debug("content hash observed", "id", id, "attempt", attempt)
			return a, nil
		}
		if attempt == p.attempts {
			break
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return nil, err
		}
	}
	return nil, apperr.New(apperr.ErrTimeout, SlowRegistrationMessage)
}

// Register waits for the upload of a published article, signs its
// registration and attaches the result. An article that is already
// registered is returned unchanged.
func (p *Poller) Register(ctx context.Context, id uuid.UUID) (*client.Article, error) {
	a, err := p.WaitForContentHash(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsRegistered() {
		return a, nil
	}
	hash := *a.ContentHash

	doc, err := p.documents.Fetch(ctx, hash)
	if err != nil {
		return nil, apperr.New(apperr.ErrUpstream, "fetch metadata document %s: %v", hash, err)
	}
	digest, err := canonical.Sum(doc)
	if err != nil {
		return nil, fmt.Errorf("digest metadata document: %w", err)
	}

	res, err := p.registrar.Register(ctx, ledger.Request{
		MetadataURI: ipfs.URI(hash),
		Digest:      digest,
		Title:       a.Title,
		OnSubmitted: func(tx string) {
			slog.Info("registration submitted", "id", id, "tx", tx)
		},
	})
	if txHash, unknown := ledger.IsOutcomeUnknown(err); unknown {
		return nil, apperr.New(apperr.ErrTimeout,
			"registration transaction %s was submitted but not confirmed; check it on the explorer before retrying", txHash)
	}
	if errors.Is(err, ledger.ErrWrongNetwork) {
		return nil, apperr.New(apperr.ErrInvalid, "switch your wallet to chain %d and retry: %v", p.chainID, err)
	}
	if err != nil {
		return nil, apperr.New(apperr.ErrUpstream, "register on ledger: %v", err)
	}

	chainID := res.ChainID
	if chainID == 0 {
		chainID = p.chainID
	}
	updated, err := p.api.AttachRegistration(ctx, id, publish.RegistrationInput{
		ContentHash:    hash,
		AssetID:        res.AssetID,
		TokenID:        res.TokenID,
		LicenseTermsID: res.LicenseTermsID,
		TxHash:         res.TxHash,
		ChainID:        chainID,
	})
	if err != nil {
		// The asset exists on chain; the tx hash lets the author retry
		// the write-back without minting again.
		return nil, fmt.Errorf("record registration (tx %s): %w", res.TxHash, err)
	}
	slog.Info("article registered", "id", id, "asset", res.AssetID, "tx", res.TxHash)
	return updated, nil
}

// Publish creates a published article and registers it.
func (p *Poller) Publish(ctx context.Context, in publish.CreateInput) (*client.Article, error) {
	in.Status = models.ArticleStatusPublished
	a, err := p.api.CreateArticle(ctx, in)
	if err != nil {
		return nil, err
	}
	slog.Info("article published", "id", a.ID, "slug", a.Slug)
	return p.Register(ctx, a.ID)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
