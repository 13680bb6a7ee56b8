// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package publish

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"proofpress/internal/apperr"
	"proofpress/internal/content"
	"proofpress/internal/models"
	"proofpress/internal/slug"
)

// Listing bounds for the public feed.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ArticleRepository is the article persistence used by the Service.
type ArticleRepository interface {
	WorkflowRepository
	Create(ctx context.Context, a *models.Article) (*models.Article, error)
	FindBySlug(ctx context.Context, slug string) (*models.Article, error)
	SlugExists(ctx context.Context, slug string, exclude uuid.UUID) (bool, error)
	ListPublished(ctx context.Context, limit, offset int) ([]models.Article, error)
	ListByOwner(ctx context.Context, principal string) ([]models.Article, error)
	Update(ctx context.Context, id uuid.UUID, p models.ArticlePatch) (*models.Article, error)
	MarkPublished(ctx context.Context, id uuid.UUID) (*models.Article, error)
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementViews(ctx context.Context, slug string) (*models.Article, error)
}

// RegistrationLister reads the audit trail of an article.
type RegistrationLister interface {
	ListByArticle(ctx context.Context, articleID uuid.UUID) ([]models.Registration, error)
}

// Runner starts the publish workflow of an article.
type Runner interface {
	Start(ctx context.Context, id uuid.UUID)
}

// CreateInput is the payload of a new article.
type CreateInput struct {
	Title      string               `json:"title"`
	Content    string               `json:"content"`
	Excerpt    *string              `json:"excerpt"`
	CoverImage *string              `json:"cover_image"`
	Status     models.ArticleStatus `json:"status"`
}

// UpdateInput is a partial edit. Nil fields are left untouched.
type UpdateInput struct {
	Title      *string               `json:"title"`
	Content    *string               `json:"content"`
	Excerpt    *string               `json:"excerpt"`
	CoverImage *string               `json:"cover_image"`
	Status     *models.ArticleStatus `json:"status"`
}

// RegistrationInput carries identifiers from a registration the author
// signed with their own wallet.
type RegistrationInput struct {
	ContentHash    string `json:"content_hash"`
	AssetID        string `json:"ledger_asset_id"`
	TokenID        string `json:"ledger_token_id"`
	LicenseTermsID string `json:"license_terms_id"`
	TxHash         string `json:"transaction_hash"`
	ChainID        int64  `json:"chain_id"`
}

func (in RegistrationInput) fields() models.RegistrationFields {
	return models.RegistrationFields{
		AssetID:        strings.TrimSpace(in.AssetID),
		TokenID:        strings.TrimSpace(in.TokenID),
		LicenseTermsID: strings.TrimSpace(in.LicenseTermsID),
		TxHash:         strings.TrimSpace(in.TxHash),
	}
}

// Service implements the article operations exposed over HTTP. Every
// mutation checks ownership before touching storage.
type Service struct {
	articles      ArticleRepository
	registrations RegistrationLister
	runner        Runner
	sanitizer     *content.Sanitizer
	chainID       int64
}

// NewService creates a Service. chainID is recorded on registrations
// attached by authors.
func NewService(articles ArticleRepository, registrations RegistrationLister, runner Runner, chainID int64) *Service {
	return &Service{
		articles:      articles,
		registrations: registrations,
		runner:        runner,
		sanitizer:     content.NewSanitizer(),
		chainID:       chainID,
	}
}

// Create stores a new article owned by principal. A published article
// starts the workflow in the background and is returned before any
// external step has run.
func (s *Service) Create(ctx context.Context, principal string, in CreateInput) (*models.Article, error) {
	if principal == "" {
		return nil, apperr.New(apperr.ErrUnauthorized, "Authentication required")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.New(apperr.ErrInvalid, "Title is required")
	}
	status := in.Status
	if status == "" {
		status = models.ArticleStatusDraft
	}
	if !status.Valid() {
		return nil, apperr.New(apperr.ErrInvalid, "Status must be draft or published")
	}

	body := s.sanitizer.Sanitize(in.Content)
	if status == models.ArticleStatusPublished && content.PlainText(body) == "" {
		return nil, apperr.New(apperr.ErrInvalid, "Content is required to publish")
	}

	articleSlug, err := s.uniqueSlug(ctx, title, uuid.Nil)
	if err != nil {
		return nil, err
	}
	cover, err := normalizeCover(in.CoverImage)
	if err != nil {
		return nil, err
	}

	a, err := s.articles.Create(ctx, &models.Article{
		Title:      title,
		Slug:       articleSlug,
		Content:    body,
		Excerpt:    s.excerpt(in.Excerpt, body),
		CoverImage: cover,
		OwnerID:    principal,
		Status:     status,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("article created", "article_id", a.ID, "slug", a.Slug, "status", a.Status, "owner", principal)
	if a.IsPublished() {
		s.runner.Start(ctx, a.ID)
	}
	return a, nil
}

// Update applies a partial edit. Setting status to published publishes a
// draft; published articles can never go back to draft.
func (s *Service) Update(ctx context.Context, id uuid.UUID, principal string, in UpdateInput) (*models.Article, error) {
	a, err := s.owned(ctx, id, principal)
	if err != nil {
		return nil, err
	}

	publish := false
	if in.Status != nil {
		switch {
		case !in.Status.Valid():
			return nil, apperr.New(apperr.ErrInvalid, "Status must be draft or published")
		case *in.Status == models.ArticleStatusDraft && a.IsPublished():
			return nil, apperr.New(apperr.ErrInvalid, "Published articles cannot be unpublished")
		case *in.Status == models.ArticleStatusPublished && !a.IsPublished():
			publish = true
		}
	}

	var patch models.ArticlePatch
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apperr.New(apperr.ErrInvalid, "Title is required")
		}
		if title != a.Title {
			patch.Title = &title
			articleSlug, err := s.uniqueSlug(ctx, title, a.ID)
			if err != nil {
				return nil, err
			}
			if articleSlug != a.Slug {
				patch.Slug = &articleSlug
			}
		}
	}
	body := a.Content
	if in.Content != nil {
		body = s.sanitizer.Sanitize(*in.Content)
		patch.Content = &body
	}
	if in.Excerpt != nil {
		patch.Excerpt = s.excerpt(in.Excerpt, body)
	}
	if in.CoverImage != nil {
		cover, err := normalizeCover(in.CoverImage)
		if err != nil {
			return nil, err
		}
		empty := ""
		if cover == nil {
			cover = &empty
		}
		patch.CoverImage = cover
	}

	if publish && content.PlainText(body) == "" {
		return nil, apperr.New(apperr.ErrInvalid, "Content is required to publish")
	}

	if !patch.Empty() {
		if a, err = s.articles.Update(ctx, id, patch); err != nil {
			return nil, err
		}
		if a == nil {
			return nil, apperr.New(apperr.ErrNotFound, "Article not found")
		}
	}

	if publish {
		published, err := s.markPublished(ctx, id)
		if !errors.Is(err, apperr.ErrConflict) {
			return published, err
		}
		// A concurrent publish won; the edit is already saved.
		slog.Info("article published concurrently, edit kept", "article_id", id)
		if a, err = s.articles.FindByID(ctx, id); err != nil {
			return nil, err
		}
		if a == nil {
			return nil, apperr.New(apperr.ErrNotFound, "Article not found")
		}
	}
	return a, nil
}

// Publish moves a draft to published and starts the workflow.
func (s *Service) Publish(ctx context.Context, id uuid.UUID, principal string) (*models.Article, error) {
	a, err := s.owned(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	if a.IsPublished() {
		return nil, apperr.New(apperr.ErrConflict, "Article is already published")
	}
	if content.PlainText(a.Content) == "" {
		return nil, apperr.New(apperr.ErrInvalid, "Content is required to publish")
	}
	return s.markPublished(ctx, id)
}

func (s *Service) markPublished(ctx context.Context, id uuid.UUID) (*models.Article, error) {
	a, err := s.articles.MarkPublished(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperr.New(apperr.ErrConflict, "Article is already published")
	}
	slog.Info("article published", "article_id", a.ID, "slug", a.Slug)
	s.runner.Start(ctx, a.ID)
	return a, nil
}

// Delete removes an article owned by principal.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, principal string) error {
	if _, err := s.owned(ctx, id, principal); err != nil {
		return err
	}
	if err := s.articles.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("article deleted", "article_id", id, "owner", principal)
	return nil
}

// Get returns an article by ID. Drafts are only visible to their owner.
func (s *Service) Get(ctx context.Context, id uuid.UUID, principal string) (*models.Article, error) {
	a, err := s.articles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil || (!a.IsPublished() && !a.IsOwnedBy(principal)) {
		return nil, apperr.New(apperr.ErrNotFound, "Article not found")
	}
	return a, nil
}

// ReadBySlug returns a published article and counts the view.
func (s *Service) ReadBySlug(ctx context.Context, articleSlug string) (*models.Article, error) {
	if !slug.Valid(articleSlug) {
		return nil, apperr.New(apperr.ErrNotFound, "Article not found")
	}
	a, err := s.articles.IncrementViews(ctx, articleSlug)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperr.New(apperr.ErrNotFound, "Article not found")
	}
	return a, nil
}

// ListPublished returns a page of the public feed, newest first.
func (s *Service) ListPublished(ctx context.Context, limit, offset int) ([]models.Article, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.articles.ListPublished(ctx, limit, offset)
}

// ListMine returns every article of principal, drafts included.
func (s *Service) ListMine(ctx context.Context, principal string) ([]models.Article, error) {
	if principal == "" {
		return nil, apperr.New(apperr.ErrUnauthorized, "Authentication required")
	}
	return s.articles.ListByOwner(ctx, principal)
}

// AttachRegistration records a registration the author submitted from
// their own wallet. Repeating the same identifiers is a no-op; different
// identifiers on a registered article are a conflict.
func (s *Service) AttachRegistration(ctx context.Context, id uuid.UUID, principal string, in RegistrationInput) (*models.Article, error) {
	a, err := s.owned(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	if !a.IsPublished() {
		return nil, apperr.New(apperr.ErrInvalid, "Only published articles can be registered")
	}

	fields := in.fields()
	if !fields.Complete() {
		return nil, apperr.New(apperr.ErrInvalid, "ledger_asset_id, ledger_token_id, license_terms_id and transaction_hash are required")
	}
	if a.IsRegistered() {
		if fields.Matches(a) {
			return a, nil
		}
		return nil, apperr.New(apperr.ErrConflict, "Article is already registered")
	}

	hash := strings.TrimSpace(in.ContentHash)
	switch {
	case a.HasContentHash() && hash != "" && hash != *a.ContentHash:
		return nil, apperr.New(apperr.ErrConflict, "Content hash does not match the uploaded document")
	case !a.HasContentHash() && hash == "":
		return nil, apperr.New(apperr.ErrInvalid, "Metadata has not been uploaded yet")
	case !a.HasContentHash():
		if _, err := s.articles.SetContentHash(ctx, id, hash); err != nil {
			return nil, err
		}
	default:
		hash = *a.ContentHash
	}

	chainID := in.ChainID
	if chainID == 0 {
		chainID = s.chainID
	}
	meta, _ := json.Marshal(map[string]string{"registrar": "user"})

	updated, err := s.articles.RecordRegistration(ctx, id, fields, &models.Registration{
		AssetID:        fields.AssetID,
		TokenID:        fields.TokenID,
		LicenseTermsID: fields.LicenseTermsID,
		ContentHash:    hash,
		TxHash:         fields.TxHash,
		ChainID:        chainID,
		Metadata:       meta,
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// Registered concurrently; accept only an identical registration.
		current, err := s.articles.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current != nil && fields.Matches(current) {
			return current, nil
		}
		return nil, apperr.New(apperr.ErrConflict, "Article is already registered")
	}

	slog.Info("registration attached", "article_id", id, "asset_id", fields.AssetID, "tx_hash", fields.TxHash)
	return updated, nil
}

// Resume restarts the workflow of a published article that has not
// finished registering. The run happens in the background.
func (s *Service) Resume(ctx context.Context, id uuid.UUID, principal string) (*models.Article, error) {
	a, err := s.owned(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	if !a.IsPublished() {
		return nil, apperr.New(apperr.ErrInvalid, "Only published articles can be registered")
	}
	if a.IsRegistered() {
		return a, nil
	}
	slog.Info("publish workflow resumed", "article_id", id, "owner", principal)
	s.runner.Start(ctx, id)
	return a, nil
}

// ListRegistrations returns the audit records of an article visible to
// principal.
func (s *Service) ListRegistrations(ctx context.Context, id uuid.UUID, principal string) ([]models.Registration, error) {
	if _, err := s.Get(ctx, id, principal); err != nil {
		return nil, err
	}
	return s.registrations.ListByArticle(ctx, id)
}

// owned loads an article and checks that principal may modify it.
func (s *Service) owned(ctx context.Context, id uuid.UUID, principal string) (*models.Article, error) {
	if principal == "" {
		return nil, apperr.New(apperr.ErrUnauthorized, "Authentication required")
	}
	a, err := s.articles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperr.New(apperr.ErrNotFound, "Article not found")
	}
	if !a.IsOwnedBy(principal) {
		return nil, apperr.New(apperr.ErrForbidden, "You do not own this article")
	}
	return a, nil
}

func (s *Service) uniqueSlug(ctx context.Context, title string, exclude uuid.UUID) (string, error) {
	articleSlug := slug.Generate(title)
	if articleSlug == "" {
		return "", apperr.New(apperr.ErrInvalid, "Title must contain letters or digits")
	}
	taken, err := s.articles.SlugExists(ctx, articleSlug, exclude)
	if err != nil {
		return "", err
	}
	if taken {
		return "", apperr.New(apperr.ErrConflict, "An article with this slug already exists")
	}
	return articleSlug, nil
}

// excerpt keeps an explicit excerpt or derives one from the body.
func (s *Service) excerpt(explicit *string, body string) *string {
	if explicit != nil {
		if e := strings.TrimSpace(content.PlainText(*explicit)); e != "" {
			return &e
		}
	}
	derived := content.Excerpt(body, content.DefaultExcerptLength)
	if derived == "" {
		return nil
	}
	return &derived
}

func normalizeCover(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*raw)
	if v == "" {
		return nil, nil
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperr.New(apperr.ErrInvalid, "Cover image must be an http(s) URL")
	}
	return &v, nil
}
