// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests: an
// in-memory article service and profile store, request helpers, and a live
// database helper for integration tests that skip when PostgreSQL is
// unavailable.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"proofpress/internal/apperr"
	"proofpress/internal/database"
	"proofpress/internal/middleware"
	"proofpress/internal/models"
	"proofpress/internal/publish"
)

// stubService implements ArticleService with overridable functions.
// Unset functions answer ErrNotFound.
type stubService struct {
	mu    sync.Mutex
	calls []string

	create   func(principal string, in publish.CreateInput) (*models.Article, error)
	update   func(id uuid.UUID, principal string, in publish.UpdateInput) (*models.Article, error)
	publish  func(id uuid.UUID, principal string) (*models.Article, error)
	del      func(id uuid.UUID, principal string) error
	get      func(id uuid.UUID, principal string) (*models.Article, error)
	bySlug   func(slug string) (*models.Article, error)
	list     func(limit, offset int) ([]models.Article, error)
	mine     func(principal string) ([]models.Article, error)
	attach   func(id uuid.UUID, principal string, in publish.RegistrationInput) (*models.Article, error)
	resume   func(id uuid.UUID, principal string) (*models.Article, error)
	listRegs func(id uuid.UUID, principal string) ([]models.Registration, error)
}

var errStubNotFound = apperr.New(apperr.ErrNotFound, "Article not found")

func (s *stubService) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
}

func (s *stubService) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubService) Create(_ context.Context, principal string, in publish.CreateInput) (*models.Article, error) {
	s.record("Create")
	if s.create == nil {
		return nil, errStubNotFound
	}
	return s.create(principal, in)
}

func (s *stubService) Update(_ context.Context, id uuid.UUID, principal string, in publish.UpdateInput) (*models.Article, error) {
	s.record("Update")
	if s.update == nil {
		return nil, errStubNotFound
	}
	return s.update(id, principal, in)
}

func (s *stubService) Publish(_ context.Context, id uuid.UUID, principal string) (*models.Article, error) {
	s.record("Publish")
	if s.publish == nil {
		return nil, errStubNotFound
	}
	return s.publish(id, principal)
}

func (s *stubService) Delete(_ context.Context, id uuid.UUID, principal string) error {
	s.record("Delete")
	if s.del == nil {
		return errStubNotFound
	}
	return s.del(id, principal)
}

func (s *stubService) Get(_ context.Context, id uuid.UUID, principal string) (*models.Article, error) {
	s.record("Get")
	if s.get == nil {
		return nil, errStubNotFound
	}
	return s.get(id, principal)
}

func (s *stubService) ReadBySlug(_ context.Context, slug string) (*models.Article, error) {
	s.record("ReadBySlug")
	if s.bySlug == nil {
		return nil, errStubNotFound
	}
	return s.bySlug(slug)
}

func (s *stubService) ListPublished(_ context.Context, limit, offset int) ([]models.Article, error) {
	s.record("ListPublished")
	if s.list == nil {
		return nil, nil
	}
	return s.list(limit, offset)
}

func (s *stubService) ListMine(_ context.Context, principal string) ([]models.Article, error) {
	s.record("ListMine")
	if s.mine == nil {
		return nil, nil
	}
	return s.mine(principal)
}

func (s *stubService) AttachRegistration(_ context.Context, id uuid.UUID, principal string, in publish.RegistrationInput) (*models.Article, error) {
	s.record("AttachRegistration")
	if s.attach == nil {
		return nil, errStubNotFound
	}
	return s.attach(id, principal, in)
}

func (s *stubService) Resume(_ context.Context, id uuid.UUID, principal string) (*models.Article, error) {
	s.record("Resume")
	if s.resume == nil {
		return nil, errStubNotFound
	}
	return s.resume(id, principal)
}

func (s *stubService) ListRegistrations(_ context.Context, id uuid.UUID, principal string) ([]models.Registration, error) {
	s.record("ListRegistrations")
	if s.listRegs == nil {
		return nil, errStubNotFound
	}
	return s.listRegs(id, principal)
}

// memProfiles is an in-memory ProfileStore keyed by principal.
type memProfiles struct {
	mu       sync.Mutex
	byID     map[string]*models.Profile
	writes   int
	findErr  error
	createFn func(p *models.Profile) error
}

func newMemProfiles() *memProfiles {
	return &memProfiles{byID: map[string]*models.Profile{}}
}

func (m *memProfiles) FindByPrincipal(_ context.Context, principal string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.byID[principal]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) Create(_ context.Context, p *models.Profile) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createFn != nil {
		if err := m.createFn(p); err != nil {
			return nil, err
		}
	}
	m.writes++
	cp := *p
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.byID[p.PrincipalID] = &cp
	out := cp
	return &out, nil
}

func (m *memProfiles) Update(_ context.Context, principal string, patch models.ProfilePatch) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[principal]
	if !ok {
		return nil, nil
	}
	m.writes++
	if patch.FirstName != nil {
		p.FirstName = *patch.FirstName
	}
	if patch.Surname != nil {
		p.Surname = *patch.Surname
	}
	if patch.Email != nil {
		p.Email = *patch.Email
	}
	if patch.AvatarURL != nil {
		p.AvatarURL = nonEmptyPtr(patch.AvatarURL)
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) SetWallet(_ context.Context, principal, address string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[principal]
	if !ok {
		return nil, nil
	}
	m.writes++
	p.WalletAddress = &address
	p.WalletProvisioned = true
	cp := *p
	return &cp, nil
}

// newRequest builds a request with an optional JSON body and principal.
func newRequest(method, target, body, principal string) *http.Request {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, rd)
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if principal != "" {
		r = r.WithContext(middleware.WithPrincipal(r.Context(), principal))
	}
	return r
}

// withChiURLParam adds a chi URL parameter to a request.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeBody unmarshals a recorded JSON response into a generic map.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a pool to the test PostgreSQL and runs migrations. The test
// is skipped when the database is unreachable.
func testDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "proofpress")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "proofpress")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable&connect_timeout=2"

	pool, err := database.Connect(context.Background(), dsn)
	if err != nil {
		t.Skipf("skipping: DB not reachable: %v", err)
	}
	if err := database.Migrate(pool); err != nil {
		pool.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// sampleArticle returns a published article owned by principal.
func sampleArticle(principal string) *models.Article {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return &models.Article{
		ID:          uuid.New(),
		Title:       "Notes on Provenance",
		Slug:        "notes-on-provenance",
		Content:     "<p>Body</p>",
		OwnerID:     principal,
		Status:      models.ArticleStatusPublished,
		PublishedAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
