package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proofpress/internal/apperr"
	"proofpress/internal/canonical"
	"proofpress/internal/client"
	"proofpress/internal/ledger"
	"proofpress/internal/models"
	"proofpress/internal/publish"
)

// fakeAPI serves one article whose content hash appears after hashAfter
// fetches (never when hashAfter is 0).
type fakeAPI struct {
	mu        sync.Mutex
	article   client.Article
	hashAfter int
	gets      int
	getErr    error
	attached  []publish.RegistrationInput
	attachErr error
	created   []publish.CreateInput
}

func (f *fakeAPI) CreateArticle(_ context.Context, in publish.CreateInput) (*client.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	f.article.Title = in.Title
	f.article.Status = in.Status
	a := f.article
	return &a, nil
}

func (f *fakeAPI) GetArticle(_ context.Context, id uuid.UUID) (*client.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.hashAfter > 0 && f.gets >= f.hashAfter {
		hash := "bafkreitest"
		f.article.ContentHash = &hash
	}
	a := f.article
	a.ID = id
	return &a, nil
}

func (f *fakeAPI) AttachRegistration(_ context.Context, id uuid.UUID, in publish.RegistrationInput) (*client.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	f.attached = append(f.attached, in)
	a := f.article
	a.ID = id
	a.LedgerAssetID, a.LedgerTokenID, a.LicenseTermsID, a.TxHash = &in.AssetID, &in.TokenID, &in.LicenseTermsID, &in.TxHash
	a.State = publish.StateRegistered
	return &a, nil
}

type fakeDocs struct {
	doc     []byte
	err     error
	fetched []string
}

func (f *fakeDocs) Fetch(_ context.Context, hash string) ([]byte, error) {
	f.fetched = append(f.fetched, hash)
	return f.doc, f.err
}

type fakeRegistrar struct {
	requests []ledger.Request
	result   *ledger.Result
	err      error
}

func (f *fakeRegistrar) Name() string { return "user" }

func (f *fakeRegistrar) Register(_ context.Context, req ledger.Request) (*ledger.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if req.OnSubmitted != nil {
		req.OnSubmitted(f.result.TxHash)
	}
	return f.result, nil
}

func newTestPoller(api *fakeAPI, docs *fakeDocs, reg *fakeRegistrar, attempts int) (*Poller, *int) {
	p := New(api, docs, reg, ledger.AeneidChainID, WithAttempts(attempts), WithInterval(time.Second))
	sleeps := 0
	p.sleep = func(ctx context.Context, _ time.Duration) error {
		sleeps++
		return ctx.Err()
	}
	return p, &sleeps
}

func defaultFakes() (*fakeAPI, *fakeDocs, *fakeRegistrar) {
	api := &fakeAPI{article: client.Article{Article: models.Article{
		Title: "On Provenance", Status: models.ArticleStatusPublished,
	}}}
	docs := &fakeDocs{doc: []byte(`{"title":"On Provenance","author":"did:privy:alice"}`)}
	reg := &fakeRegistrar{result: &ledger.Result{
		AssetID: "0x00000000000000000000000000000000000000a1", TokenID: "7",
		LicenseTermsID: "1", TxHash: "0xfeed",
	}}
	return api, docs, reg
}

func TestWaitForContentHashTimesOutAfterExactlyNAttempts(t *testing.T) {
	for _, n := range []int{1, 5, 30} {
		t.Run(fmt.Sprintf("%d attempts", n), func(t *testing.T) {
			api, docs, reg := defaultFakes()
			p, sleeps := newTestPoller(api, docs, reg, n)

			_, err := p.WaitForContentHash(context.Background(), uuid.New())
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrTimeout))
			assert.Equal(t, SlowRegistrationMessage, apperr.Message(err))
			assert.Equal(t, n, api.gets)
			assert.Equal(t, n-1, *sleeps)
		})
	}
}

func TestWaitForContentHashReturnsOnceUploaded(t *testing.T) {
	api, docs, reg := defaultFakes()
	api.hashAfter = 3
	p, sleeps := newTestPoller(api, docs, reg, 30)

	a, err := p.WaitForContentHash(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "bafkreitest", *a.ContentHash)
	assert.Equal(t, 3, api.gets)
	assert.Equal(t, 2, *sleeps)
}

func TestWaitForContentHashSurfacesFetchErrors(t *testing.T) {
	api, docs, reg := defaultFakes()
	api.getErr = apperr.New(apperr.ErrNotFound, "Article not found")
	p, _ := newTestPoller(api, docs, reg, 30)

	_, err := p.WaitForContentHash(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, 1, api.gets)
}

func TestWaitForContentHashHonorsCancellation(t *testing.T) {
	api, docs, reg := defaultFakes()
	p := New(api, docs, reg, ledger.AeneidChainID, WithAttempts(30), WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.WaitForContentHash(ctx, uuid.New())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, api.gets)
}

func TestRegisterHappyPath(t *testing.T) {
	api, docs, reg := defaultFakes()
	api.hashAfter = 1
	p, _ := newTestPoller(api, docs, reg, 30)
	id := uuid.New()

	a, err := p.Register(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, publish.StateRegistered, a.State)

	assert.Equal(t, []string{"bafkreitest"}, docs.fetched)
	require.Len(t, reg.requests, 1)
	want, err := canonical.Sum(docs.doc)
	require.NoError(t, err)
	assert.Equal(t, [32]byte(want), reg.requests[0].Digest)
	assert.Equal(t, "ipfs://bafkreitest", reg.requests[0].MetadataURI)

	require.Len(t, api.attached, 1)
	got := api.attached[0]
	assert.Equal(t, "bafkreitest", got.ContentHash)
	assert.Equal(t, "7", got.TokenID)
	assert.Equal(t, "0xfeed", got.TxHash)
	assert.Equal(t, int64(ledger.AeneidChainID), got.ChainID)
}

func TestRegisterSkipsRegisteredArticle(t *testing.T) {
	api, docs, reg := defaultFakes()
	hash, id := "bafkreidone", "1"
	api.article.ContentHash = &hash
	api.article.LedgerAssetID, api.article.LedgerTokenID, api.article.LicenseTermsID, api.article.TxHash = &id, &id, &id, &id
	p, _ := newTestPoller(api, docs, reg, 30)

	_, err := p.Register(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, reg.requests)
	assert.Empty(t, api.attached)
}

func TestRegisterFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*fakeDocs, *fakeRegistrar)
		kind    error
		attempt bool
	}{
		{"document fetch", func(d *fakeDocs, _ *fakeRegistrar) { d.err = errors.New("gateway 502") }, apperr.ErrUpstream, false},
		{"not json", func(d *fakeDocs, _ *fakeRegistrar) { d.doc = []byte("<html>") }, canonical.ErrInvalidJSON, false},
		{"outcome unknown", func(_ *fakeDocs, r *fakeRegistrar) {
			r.err = &ledger.OutcomeUnknownError{TxHash: "0xabc", Err: context.DeadlineExceeded}
		}, apperr.ErrTimeout, true},
		{"wrong network", func(_ *fakeDocs, r *fakeRegistrar) {
			r.err = fmt.Errorf("%w: rpc serves chain 1", ledger.ErrWrongNetwork)
		}, apperr.ErrInvalid, true},
		{"reverted", func(_ *fakeDocs, r *fakeRegistrar) { r.err = ledger.ErrReverted }, apperr.ErrUpstream, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, docs, reg := defaultFakes()
			api.hashAfter = 1
			tt.setup(docs, reg)
			p, _ := newTestPoller(api, docs, reg, 3)

			_, err := p.Register(context.Background(), uuid.New())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			assert.Equal(t, tt.attempt, len(reg.requests) == 1)
			assert.Empty(t, api.attached)
		})
	}
}

func TestRegisterOutcomeUnknownNamesTransaction(t *testing.T) {
	api, docs, reg := defaultFakes()
	api.hashAfter = 1
	reg.err = &ledger.OutcomeUnknownError{TxHash: "0xabc", Err: context.DeadlineExceeded}
	p, _ := newTestPoller(api, docs, reg, 3)

	_, err := p.Register(context.Background(), uuid.New())
	assert.Contains(t, apperr.Message(err), "0xabc")
}

func TestRegisterWriteBackFailureKeepsTxHash(t *testing.T) {
	api, docs, reg := defaultFakes()
	api.hashAfter = 1
	api.attachErr = apperr.New(apperr.ErrConflict, "This article is already registered")
	p, _ := newTestPoller(api, docs, reg, 3)

	_, err := p.Register(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Contains(t, err.Error(), "0xfeed")
}

func TestPublishCreatesPublishedArticle(t *testing.T) {
	api, docs, reg := defaultFakes()
	api.hashAfter = 2
	p, _ := newTestPoller(api, docs, reg, 5)

	a, err := p.Publish(context.Background(), publish.CreateInput{Title: "Hello World!", Content: "<p>x</p>"})
	require.NoError(t, err)
	require.Len(t, api.created, 1)
	assert.Equal(t, models.ArticleStatusPublished, api.created[0].Status)
	assert.Equal(t, publish.StateRegistered, a.State)
}
