// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package publish drives an article from draft to a registered IP asset:
// it uploads the metadata document to IPFS, records the returned hash,
// registers the document on the ledger and records the ledger identifiers.
// Each external step runs at most once per article; a later run resumes
// from whatever the article already carries.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"proofpress/internal/apperr"
	"proofpress/internal/cache"
	"proofpress/internal/canonical"
	"proofpress/internal/ipfs"
	"proofpress/internal/ledger"
	"proofpress/internal/metrics"
	"proofpress/internal/models"
)

// Default step timeouts.
const (
	DefaultUploadTimeout   = 30 * time.Second
	DefaultRegisterTimeout = 3 * time.Minute
)

// ErrBusy means another worker holds the publish lock of the article.
var ErrBusy = errors.New("publish workflow already running")

// WorkflowRepository is the article persistence the workflow needs.
type WorkflowRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Article, error)
	SetContentHash(ctx context.Context, id uuid.UUID, hash string) (bool, error)
	SetPendingTx(ctx context.Context, id uuid.UUID, txHash string) error
	RecordRegistration(ctx context.Context, id uuid.UUID, f models.RegistrationFields, rec *models.Registration) (*models.Article, error)
}

// DocumentStore uploads and fetches metadata documents.
type DocumentStore interface {
	Upload(ctx context.Context, name string, doc []byte) (string, error)
	Fetch(ctx context.Context, hash string) ([]byte, error)
}

// RegistrarSource yields the currently configured registrar.
type RegistrarSource interface {
	Active() (ledger.Registrar, error)
}

// Locker serializes workflow runs across processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Options tunes an Orchestrator.
type Options struct {
	UploadTimeout   time.Duration
	RegisterTimeout time.Duration
	License         ledger.LicenseTerms
	// ChainID is stored on registration records when the registrar does
	// not report one.
	ChainID int64
}

// Orchestrator runs the publish workflow. Concurrent runs for the same
// article collapse into one inside a process, and the optional Locker
// extends that across processes.
type Orchestrator struct {
	articles   WorkflowRepository
	documents  DocumentStore
	registrars RegistrarSource
	locker     Locker
	opts       Options
	group      singleflight.Group
	wg         sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator. locker may be nil.
func NewOrchestrator(articles WorkflowRepository, documents DocumentStore, registrars RegistrarSource, locker Locker, opts Options) *Orchestrator {
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = DefaultUploadTimeout
	}
	if opts.RegisterTimeout <= 0 {
		opts.RegisterTimeout = DefaultRegisterTimeout
	}
	return &Orchestrator{
		articles:   articles,
		documents:  documents,
		registrars: registrars,
		locker:     locker,
		opts:       opts,
	}
}

// Start runs the workflow in the background. The run is detached from the
// cancellation of ctx so that it outlives the request that triggered it.
func (o *Orchestrator) Start(ctx context.Context, id uuid.UUID) {
	runCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		state, err := o.Run(runCtx, id)
		if err != nil {
			slog.Error("publish workflow stopped", "article_id", id, "state", state, "error", err)
			return
		}
		slog.Info("publish workflow finished", "article_id", id, "state", state)
	}()
}

// Wait blocks until every background run has returned or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run advances the article as far as it can and returns the state it
// stopped in. Steps already reflected on the article are skipped.
func (o *Orchestrator) Run(ctx context.Context, id uuid.UUID) (State, error) {
	v, err, _ := o.group.Do(id.String(), func() (any, error) {
		if o.locker != nil {
			release, err := o.locker.Acquire(ctx, id.String())
			if errors.Is(err, cache.ErrLocked) {
				return StatePublishRequested, ErrBusy
			}
			if err != nil {
				return StatePublishRequested, fmt.Errorf("acquire publish lock: %w", err)
			}
			defer release()
		}
		return o.run(ctx, id)
	})
	state, _ := v.(State)
	return state, err
}

func (o *Orchestrator) run(ctx context.Context, id uuid.UUID) (State, error) {
	a, err := o.articles.FindByID(ctx, id)
	if err != nil {
		return StatePublishRequested, err
	}
	if a == nil {
		return StatePublishRequested, apperr.New(apperr.ErrNotFound, "Article not found")
	}
	if !a.IsPublished() {
		return StateDraft, nil
	}
	if a.IsRegistered() {
		return StateRegistered, nil
	}

	if !a.HasContentHash() {
		if a, err = o.upload(ctx, a); err != nil {
			transition(StateUploadFailed)
			return StateUploadFailed, err
		}
		transition(StateUploadDone)
	}

	transition(StateRegistrationPending)
	if a.PendingTxHash != nil && *a.PendingTxHash != "" {
		state, err := o.reconcile(ctx, a)
		if state != "" || err != nil {
			return state, err
		}
		// The pending transaction reverted; nothing was minted.
	}
	return o.register(ctx, a)
}

// upload pins the metadata document and records its hash. When another
// run recorded a hash first, that hash wins and the article is reloaded.
func (o *Orchestrator) upload(ctx context.Context, a *models.Article) (*models.Article, error) {
	transition(StateUploadPending)

	doc, err := BuildDocument(a, o.opts.License)
	if err != nil {
		return nil, err
	}
	body, err := doc.Bytes()
	if err != nil {
		return nil, err
	}

	uploadCtx, cancel := context.WithTimeout(ctx, o.opts.UploadTimeout)
	defer cancel()

	hash, err := o.documents.Upload(uploadCtx, a.Slug+".json", body)
	if err != nil {
		return nil, fmt.Errorf("%w: upload metadata: %w", apperr.ErrUpstream, err)
	}

	changed, err := o.articles.SetContentHash(ctx, a.ID, hash)
	if err != nil {
		return nil, err
	}
	if !changed {
		slog.Warn("content hash already recorded", "article_id", a.ID, "discarded_hash", hash)
		fresh, err := o.articles.FindByID(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if fresh == nil {
			return nil, apperr.New(apperr.ErrNotFound, "Article not found")
		}
		return fresh, nil
	}

	a.ContentHash = &hash
	slog.Info("metadata uploaded", "article_id", a.ID, "content_hash", hash)
	return a, nil
}

// register submits a fresh registration for the uploaded document.
func (o *Orchestrator) register(ctx context.Context, a *models.Article) (State, error) {
	registrar, err := o.registrars.Active()
	if err != nil {
		transition(StateRegistrationFailed)
		return StateRegistrationFailed, err
	}
	if registrar.Name() == string(ledger.ModeUser) {
		slog.Info("registration left to the author", "article_id", a.ID)
		return StateRegistrationPending, nil
	}

	regCtx, cancel := context.WithTimeout(ctx, o.opts.RegisterTimeout)
	defer cancel()

	hash := *a.ContentHash
	digest, err := o.digest(regCtx, hash)
	if err != nil {
		transition(StateRegistrationFailed)
		return StateRegistrationFailed, err
	}

	persistCtx := context.WithoutCancel(ctx)
	res, err := registrar.Register(regCtx, ledger.Request{
		MetadataURI: ipfs.URI(hash),
		Digest:      digest,
		Title:       a.Title,
		OnSubmitted: func(txHash string) {
			if err := o.articles.SetPendingTx(persistCtx, a.ID, txHash); err != nil {
				slog.Error("failed to record pending transaction", "article_id", a.ID, "tx_hash", txHash, "error", err)
			}
		},
	})
	switch {
	case errors.Is(err, ledger.ErrRequiresUserSignature):
		slog.Info("registration left to the author", "article_id", a.ID)
		return StateRegistrationPending, nil
	case err != nil:
		if txHash, ok := ledger.IsOutcomeUnknown(err); ok {
			transition(StateRegistrationUnknown)
			slog.Warn("registration outcome unknown", "article_id", a.ID, "tx_hash", txHash, "error", err)
			return StateRegistrationUnknown, fmt.Errorf("%w: %w", apperr.ErrTimeout, err)
		}
		transition(StateRegistrationFailed)
		return StateRegistrationFailed, fmt.Errorf("%w: register: %w", apperr.ErrUpstream, err)
	}

	return o.record(persistCtx, a, registrar.Name(), res, registrationMetadata{
		Digest:      digest.Hex(),
		MetadataURI: ipfs.URI(hash),
		Registrar:   registrar.Name(),
		License:     o.opts.License,
	})
}

// reconcile resolves a previously submitted transaction. It returns an
// empty state and nil error when the transaction reverted, in which case
// the caller may submit again.
func (o *Orchestrator) reconcile(ctx context.Context, a *models.Article) (State, error) {
	txHash := *a.PendingTxHash
	registrar, err := o.registrars.Active()
	if err != nil {
		return StateRegistrationUnknown, err
	}
	reconciler, ok := registrar.(ledger.Reconciler)
	if !ok {
		slog.Warn("active registrar cannot reconcile", "article_id", a.ID, "tx_hash", txHash, "registrar", registrar.Name())
		return StateRegistrationUnknown, nil
	}

	regCtx, cancel := context.WithTimeout(ctx, o.opts.RegisterTimeout)
	defer cancel()

	res, err := reconciler.Reconcile(regCtx, txHash)
	switch {
	case errors.Is(err, ledger.ErrReverted):
		slog.Warn("pending registration reverted", "article_id", a.ID, "tx_hash", txHash)
		if err := o.articles.SetPendingTx(ctx, a.ID, ""); err != nil {
			return StateRegistrationUnknown, err
		}
		a.PendingTxHash = nil
		return "", nil
	case errors.Is(err, ledger.ErrPending):
		transition(StateRegistrationUnknown)
		return StateRegistrationUnknown, fmt.Errorf("%w: transaction %s: %w", apperr.ErrTimeout, txHash, err)
	case err != nil:
		transition(StateRegistrationUnknown)
		return StateRegistrationUnknown, fmt.Errorf("%w: reconcile %s: %w", apperr.ErrUpstream, txHash, err)
	}

	meta := registrationMetadata{
		MetadataURI: ipfs.URI(*a.ContentHash),
		Registrar:   registrar.Name(),
		License:     o.opts.License,
	}
	if digest, err := o.digest(regCtx, *a.ContentHash); err != nil {
		slog.Warn("reconciled registration recorded without digest", "article_id", a.ID, "tx_hash", txHash, "error", err)
	} else {
		meta.Digest = digest.Hex()
	}
	return o.record(context.WithoutCancel(ctx), a, registrar.Name(), res, meta)
}

// digest reads the uploaded metadata document back and hashes its
// canonical form.
func (o *Orchestrator) digest(ctx context.Context, hash string) (canonical.Digest, error) {
	doc, err := o.documents.Fetch(ctx, hash)
	if err != nil {
		return canonical.Digest{}, fmt.Errorf("%w: fetch metadata %s: %w", apperr.ErrUpstream, hash, err)
	}
	d, err := canonical.Sum(doc)
	if err != nil {
		return canonical.Digest{}, fmt.Errorf("digest metadata %s: %w", hash, err)
	}
	return d, nil
}

func (o *Orchestrator) record(ctx context.Context, a *models.Article, registrar string, res *ledger.Result, meta registrationMetadata) (State, error) {
	fields := models.RegistrationFields{
		AssetID:        res.AssetID,
		TokenID:        res.TokenID,
		LicenseTermsID: res.LicenseTermsID,
		TxHash:         res.TxHash,
	}
	chainID := res.ChainID
	if chainID == 0 {
		chainID = o.opts.ChainID
	}

	updated, err := o.articles.RecordRegistration(ctx, a.ID, fields, &models.Registration{
		AssetID:        res.AssetID,
		TokenID:        res.TokenID,
		LicenseTermsID: res.LicenseTermsID,
		ContentHash:    *a.ContentHash,
		TxHash:         res.TxHash,
		ChainID:        chainID,
		Metadata:       meta.raw(),
	})
	if err != nil {
		// The asset exists on the ledger; keep the transaction so the
		// next run reconciles it.
		if perr := o.articles.SetPendingTx(ctx, a.ID, res.TxHash); perr != nil {
			slog.Error("failed to keep pending transaction", "article_id", a.ID, "tx_hash", res.TxHash, "error", perr)
		}
		transition(StateRegistrationUnknown)
		return StateRegistrationUnknown, err
	}
	if updated == nil {
		slog.Warn("article already registered", "article_id", a.ID, "tx_hash", res.TxHash)
	}

	transition(StateRegistered)
	slog.Info("article registered",
		"article_id", a.ID,
		"registrar", registrar,
		"asset_id", res.AssetID,
		"token_id", res.TokenID,
		"tx_hash", res.TxHash,
	)
	return StateRegistered, nil
}

func transition(s State) {
	metrics.RecordTransition(string(s))
}
