package publish

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"proofpress/internal/apperr"
	"proofpress/internal/ledger"
	"proofpress/internal/models"
)

// memRepo is an in-memory ArticleRepository with the same conditional
// update semantics as the Postgres store.
type memRepo struct {
	mu            sync.Mutex
	articles      map[uuid.UUID]*models.Article
	registrations []models.Registration
	mutations     int
	recordErr     error
	// hashRace, when set, is recorded by SetContentHash instead of the
	// caller's hash, as if another worker won the race.
	hashRace string
	// publishRace, when set, publishes the article inside MarkPublished
	// before the draft guard runs, as if another request got there first.
	publishRace bool
}

func newMemRepo() *memRepo {
	return &memRepo{articles: map[uuid.UUID]*models.Article{}}
}

func (r *memRepo) put(a *models.Article) *models.Article {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
		a.UpdatedAt = a.CreatedAt
	}
	if a.IsPublished() && a.PublishedAt == nil {
		now := time.Now()
		a.PublishedAt = &now
	}
	r.articles[a.ID] = a
	c := *a
	return &c
}

func (r *memRepo) get(id uuid.UUID) *models.Article {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.articles[id]
	if !ok {
		return nil
	}
	c := *a
	return &c
}

func (r *memRepo) mutationCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutations
}

func (r *memRepo) registrationCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.registrations)
}

func (r *memRepo) Create(_ context.Context, a *models.Article) (*models.Article, error) {
	r.mu.Lock()
	for _, existing := range r.articles {
		if existing.Slug == a.Slug {
			r.mu.Unlock()
			return nil, apperr.New(apperr.ErrConflict, "An article with this slug already exists")
		}
	}
	r.mutations++
	r.mu.Unlock()
	c := *a
	return r.put(&c), nil
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Article, error) {
	return r.get(id), nil
}

func (r *memRepo) FindBySlug(_ context.Context, slug string) (*models.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.articles {
		if a.Slug == slug {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memRepo) SlugExists(_ context.Context, slug string, exclude uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.articles {
		if a.Slug == slug && a.ID != exclude {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) ListPublished(_ context.Context, limit, offset int) ([]models.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Article
	for _, a := range r.articles {
		if a.IsPublished() {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(*out[j].PublishedAt) })
	if offset >= len(out) {
		return []models.Article{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) ListByOwner(_ context.Context, principal string) ([]models.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Article{}
	for _, a := range r.articles {
		if a.OwnerID == principal {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) Update(_ context.Context, id uuid.UUID, p models.ArticlePatch) (*models.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.articles[id]
	if !ok {
		return nil, nil
	}
	r.mutations++
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Slug != nil {
		a.Slug = *p.Slug
	}
	if p.Content != nil {
		a.Content = *p.Content
	}
	if p.Excerpt != nil {
		e := *p.Excerpt
		a.Excerpt = &e
	}
	if p.CoverImage != nil {
		if *p.CoverImage == "" {
			a.CoverImage = nil
		} else {
			c := *p.CoverImage
			a.CoverImage = &c
		}
	}
	a.UpdatedAt = time.Now()
	c := *a
	return &c, nil
}

func (r *memRepo) MarkPublished(_ context.Context, id uuid.UUID) (*models.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.articles[id]
	if ok && r.publishRace && !a.IsPublished() {
		now := time.Now()
		a.Status = models.ArticleStatusPublished
		a.PublishedAt = &now
	}
	if !ok || a.IsPublished() {
		return nil, nil
	}
	r.mutations++
	now := time.Now()
	a.Status = models.ArticleStatusPublished
	a.PublishedAt = &now
	c := *a
	return &c, nil
}

func (r *memRepo) SetContentHash(_ context.Context, id uuid.UUID, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.articles[id]
	if !ok {
		return false, nil
	}
	if r.hashRace != "" && a.ContentHash == nil {
		h := r.hashRace
		a.ContentHash = &h
		return false, nil
	}
	if a.ContentHash != nil {
		return false, nil
	}
	r.mutations++
	a.ContentHash = &hash
	return true, nil
}

func (r *memRepo) SetPendingTx(_ context.Context, id uuid.UUID, txHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.articles[id]
	if !ok {
		return nil
	}
	r.mutations++
	if txHash == "" {
		a.PendingTxHash = nil
	} else {
		a.PendingTxHash = &txHash
	}
	return nil
}

func (r *memRepo) RecordRegistration(_ context.Context, id uuid.UUID, f models.RegistrationFields, rec *models.Registration) (*models.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return nil, r.recordErr
	}
	a, ok := r.articles[id]
	if !ok || a.LedgerAssetID != nil {
		return nil, nil
	}
	r.mutations++
	a.LedgerAssetID = &f.AssetID
	a.LedgerTokenID = &f.TokenID
	a.LicenseTermsID = &f.LicenseTermsID
	a.TxHash = &f.TxHash
	a.PendingTxHash = nil

	rec.ID = uuid.New()
	rec.ArticleID = id
	rec.CreatedAt = time.Now()
	r.registrations = append(r.registrations, *rec)
	c := *a
	return &c, nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations++
	delete(r.articles, id)
	return nil
}

func (r *memRepo) IncrementViews(_ context.Context, slug string) (*models.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.articles {
		if a.Slug == slug && a.IsPublished() {
			a.Views++
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListByArticle(_ context.Context, articleID uuid.UUID) ([]models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Registration{}
	for _, rec := range r.registrations {
		if rec.ArticleID == articleID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// fakeDocs stands in for the IPFS client.
type fakeDocs struct {
	mu        sync.Mutex
	docs      map[string][]byte
	uploads   int
	fetches   int
	uploadErr error
	fetchErr  error
	// gate, when set, blocks uploads until it is closed.
	gate chan struct{}
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[string][]byte{}}
}

func (d *fakeDocs) Upload(ctx context.Context, _ string, doc []byte) (string, error) {
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uploads++
	if d.uploadErr != nil {
		return "", d.uploadErr
	}
	hash := fmt.Sprintf("bafytest%d", d.uploads)
	d.docs[hash] = doc
	return hash, nil
}

func (d *fakeDocs) Fetch(_ context.Context, hash string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fetches++
	if d.fetchErr != nil {
		return nil, d.fetchErr
	}
	doc, ok := d.docs[hash]
	if !ok {
		return nil, errors.New("document not found")
	}
	return doc, nil
}

func (d *fakeDocs) fetchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fetches
}

func (d *fakeDocs) uploadCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uploads
}

// fakeRegistrar records every request and answers with register or
// reconcile when set.
type fakeRegistrar struct {
	mu         sync.Mutex
	requests   []ledger.Request
	reconciled []string
	register   func(req ledger.Request) (*ledger.Result, error)
	reconcile  func(txHash string) (*ledger.Result, error)
}

func (f *fakeRegistrar) Name() string { return string(ledger.ModeService) }

func (f *fakeRegistrar) Register(_ context.Context, req ledger.Request) (*ledger.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.register
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return okResult("0xtx1"), nil
}

func (f *fakeRegistrar) Reconcile(_ context.Context, txHash string) (*ledger.Result, error) {
	f.mu.Lock()
	f.reconciled = append(f.reconciled, txHash)
	fn := f.reconcile
	f.mu.Unlock()
	if fn != nil {
		return fn(txHash)
	}
	return okResult(txHash), nil
}

func (f *fakeRegistrar) registerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func okResult(txHash string) *ledger.Result {
	return &ledger.Result{
		AssetID:        "0x00000000000000000000000000000000000000a1",
		TokenID:        "7",
		LicenseTermsID: "1",
		TxHash:         txHash,
		ChainID:        ledger.AeneidChainID,
	}
}

func registryWith(reg ledger.Registrar) *ledger.Registry {
	r := ledger.NewRegistry(ledger.ModeService)
	r.Add(ledger.ModeService, reg)
	return r
}

// fakeLocker fails every acquisition with err.
type fakeLocker struct{ err error }

func (l fakeLocker) Acquire(context.Context, string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	return func() {}, nil
}

// recordingRunner captures Start calls instead of running the workflow.
type recordingRunner struct {
	mu      sync.Mutex
	started []uuid.UUID
}

func (r *recordingRunner) Start(_ context.Context, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, id)
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started)
}

func publishedArticle(repo *memRepo) *models.Article {
	excerpt := "A short summary."
	return repo.put(&models.Article{
		Title:   "On Provenance",
		Slug:    "on-provenance",
		Content: "<p>Every word has an origin.</p>",
		Excerpt: &excerpt,
		OwnerID: "did:privy:alice",
		Status:  models.ArticleStatusPublished,
	})
}
