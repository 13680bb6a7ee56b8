// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"proofpress/internal/apperr"
	"proofpress/internal/middleware"
	"proofpress/internal/models"
)

// ProfileStore is the persistence the profile handlers need.
type ProfileStore interface {
	FindByPrincipal(ctx context.Context, principal string) (*models.Profile, error)
	Create(ctx context.Context, p *models.Profile) (*models.Profile, error)
	Update(ctx context.Context, principal string, patch models.ProfilePatch) (*models.Profile, error)
	SetWallet(ctx context.Context, principal, address string) (*models.Profile, error)
}

// Profiles groups the author profile endpoints. Every route requires a
// principal.
type Profiles struct {
	profiles ProfileStore
}

// NewProfiles creates the profile handlers.
func NewProfiles(profiles ProfileStore) *Profiles {
	return &Profiles{profiles: profiles}
}

type profileResponse struct {
	*models.Profile
	ProfileCompleted bool `json:"profile_completed"`
}

func newProfileResponse(p *models.Profile) profileResponse {
	return profileResponse{Profile: p, ProfileCompleted: p.Complete()}
}

type createProfileInput struct {
	FirstName string  `json:"first_name"`
	Surname   string  `json:"surname"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatar_url"`
}

type updateProfileInput struct {
	FirstName *string `json:"first_name"`
	Surname   *string `json:"surname"`
	Email     *string `json:"email"`
	AvatarURL *string `json:"avatar_url"`
}

type walletInput struct {
	Address string `json:"address"`
}

// Get handles GET /profile. A principal without a profile gets null.
func (h *Profiles) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.FindByPrincipal(r.Context(), middleware.PrincipalFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(p))
}

// Create handles POST /profile. First name, surname and email are required
// together.
func (h *Profiles) Create(w http.ResponseWriter, r *http.Request) {
	var in createProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if msg := validateProfile(&in.FirstName, &in.Surname, &in.Email, false); msg != "" {
		writeError(w, r, fieldError(msg))
		return
	}
	if msg := validateAvatar(in.AvatarURL); msg != "" {
		writeError(w, r, fieldError(msg))
		return
	}

	principal := middleware.PrincipalFromCtx(r.Context())
	existing, err := h.profiles.FindByPrincipal(r.Context(), principal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if existing != nil {
		writeError(w, r, apperr.New(apperr.ErrConflict, "Profile already exists"))
		return
	}

	p, err := h.profiles.Create(r.Context(), &models.Profile{
		PrincipalID: principal,
		FirstName:   strings.TrimSpace(in.FirstName),
		Surname:     strings.TrimSpace(in.Surname),
		Email:       normalizeEmail(in.Email),
		AvatarURL:   nonEmptyPtr(in.AvatarURL),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("profile created", "principal", principal)
	writeJSON(w, http.StatusCreated, newProfileResponse(p))
}

// Update handles PATCH /profile.
func (h *Profiles) Update(w http.ResponseWriter, r *http.Request) {
	var in updateProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if msg := validateProfile(in.FirstName, in.Surname, in.Email, true); msg != "" {
		writeError(w, r, fieldError(msg))
		return
	}
	if msg := validateAvatar(in.AvatarURL); msg != "" {
		writeError(w, r, fieldError(msg))
		return
	}

	patch := models.ProfilePatch{AvatarURL: in.AvatarURL}
	if in.FirstName != nil {
		v := strings.TrimSpace(*in.FirstName)
		patch.FirstName = &v
	}
	if in.Surname != nil {
		v := strings.TrimSpace(*in.Surname)
		patch.Surname = &v
	}
	if in.Email != nil {
		v := normalizeEmail(*in.Email)
		patch.Email = &v
	}

	p, err := h.profiles.Update(r.Context(), middleware.PrincipalFromCtx(r.Context()), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p == nil {
		writeError(w, r, apperr.New(apperr.ErrNotFound, "Profile not found"))
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(p))
}

// SetWallet handles PUT /profile/wallet. It records the wallet provisioned
// for the principal so every device sees the same flag.
func (h *Profiles) SetWallet(w http.ResponseWriter, r *http.Request) {
	var in walletInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if msg := validateWallet(in.Address); msg != "" {
		writeError(w, r, fieldError(msg))
		return
	}

	principal := middleware.PrincipalFromCtx(r.Context())
	address := common.HexToAddress(strings.TrimSpace(in.Address)).Hex()
	p, err := h.profiles.SetWallet(r.Context(), principal, address)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p == nil {
		writeError(w, r, apperr.New(apperr.ErrNotFound, "Profile not found"))
		return
	}
	slog.Info("wallet provisioned", "principal", principal, "address", address)
	writeJSON(w, http.StatusOK, newProfileResponse(p))
}

func validateAvatar(raw *string) string {
	if raw == nil || *raw == "" {
		return ""
	}
	if len(*raw) > maxURLLen {
		return "Avatar URL is too long."
	}
	u, err := url.Parse(*raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "Avatar URL must be an http(s) URL."
	}
	return ""
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nonEmptyPtr(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
