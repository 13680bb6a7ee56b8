// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"proofpress/internal/middleware"
	"proofpress/internal/models"
	"proofpress/internal/publish"
)

// ArticleService is the subset of publish.Service the article handlers use.
type ArticleService interface {
	Create(ctx context.Context, principal string, in publish.CreateInput) (*models.Article, error)
	Update(ctx context.Context, id uuid.UUID, principal string, in publish.UpdateInput) (*models.Article, error)
	Publish(ctx context.Context, id uuid.UUID, principal string) (*models.Article, error)
	Delete(ctx context.Context, id uuid.UUID, principal string) error
	Get(ctx context.Context, id uuid.UUID, principal string) (*models.Article, error)
	ReadBySlug(ctx context.Context, slug string) (*models.Article, error)
	ListPublished(ctx context.Context, limit, offset int) ([]models.Article, error)
	ListMine(ctx context.Context, principal string) ([]models.Article, error)
	AttachRegistration(ctx context.Context, id uuid.UUID, principal string, in publish.RegistrationInput) (*models.Article, error)
	Resume(ctx context.Context, id uuid.UUID, principal string) (*models.Article, error)
	ListRegistrations(ctx context.Context, id uuid.UUID, principal string) ([]models.Registration, error)
}

// Articles groups the article endpoints.
type Articles struct {
	service ArticleService
}

// NewArticles creates the article handlers.
func NewArticles(service ArticleService) *Articles {
	return &Articles{service: service}
}

// articleResponse is an article plus its derived workflow state.
type articleResponse struct {
	*models.Article
	State publish.State `json:"state"`
}

func newArticleResponse(a *models.Article) articleResponse {
	return articleResponse{Article: a, State: publish.StateOf(a)}
}

func newArticleList(articles []models.Article) []articleResponse {
	out := make([]articleResponse, 0, len(articles))
	for i := range articles {
		out = append(out, newArticleResponse(&articles[i]))
	}
	return out
}

// Create handles POST /articles.
func (h *Articles) Create(w http.ResponseWriter, r *http.Request) {
	var in publish.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if msg := validateArticle(&in.Title, &in.Content, in.Excerpt, in.CoverImage); msg != "" {
		writeError(w, r, fieldError(msg))
		return
	}

	a, err := h.service.Create(r.Context(), middleware.PrincipalFromCtx(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newArticleResponse(a))
}

// List handles GET /articles, the public feed of published articles.
func (h *Articles) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", publish.DefaultPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	articles, err := h.service.ListPublished(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": newArticleList(articles)})
}

// Mine handles GET /articles/mine.
func (h *Articles) Mine(w http.ResponseWriter, r *http.Request) {
	articles, err := h.service.ListMine(r.Context(), middleware.PrincipalFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": newArticleList(articles)})
}

// BySlug handles GET /articles/slug/{slug} and counts a view.
func (h *Articles) BySlug(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.ReadBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newArticleResponse(a))
}

// Get handles GET /articles/{id}. Drafts are only visible to their author.
func (h *Articles) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.service.Get(r.Context(), id, middleware.PrincipalFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newArticleResponse(a))
}

// Update handles PATCH /articles/{id}.
func (h *Articles) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in publish.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if msg := validateArticle(in.Title, in.Content, in.Excerpt, in.CoverImage); msg != "" {
		writeError(w, r, fieldError(msg))
		return
	}

	a, err := h.service.Update(r.Context(), id, middleware.PrincipalFromCtx(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newArticleResponse(a))
}

// Delete handles DELETE /articles/{id}.
func (h *Articles) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, middleware.PrincipalFromCtx(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Publish handles POST /articles/{id}/publish. The registration workflow
// continues after the response, so the reply is 202.
func (h *Articles) Publish(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.service.Publish(r.Context(), id, middleware.PrincipalFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newArticleResponse(a))
}

// Resume handles POST /articles/{id}/resume.
func (h *Articles) Resume(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.service.Resume(r.Context(), id, middleware.PrincipalFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newArticleResponse(a))
}

// AttachRegistration handles PATCH /articles/{id}/registration, the
// write-back of a registration signed by the author's own wallet.
func (h *Articles) AttachRegistration(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in publish.RegistrationInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if msg := validateRegistration(in.ContentHash, in.AssetID, in.TokenID, in.LicenseTermsID, in.TxHash); msg != "" {
		writeError(w, r, fieldError(msg))
		return
	}

	a, err := h.service.AttachRegistration(r.Context(), id, middleware.PrincipalFromCtx(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newArticleResponse(a))
}

// Registrations handles GET /articles/{id}/registrations.
func (h *Articles) Registrations(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	regs, err := h.service.ListRegistrations(r.Context(), id, middleware.PrincipalFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if regs == nil {
		regs = []models.Registration{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"registrations": regs})
}
