// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// ArticleStatus represents the publishing state of an article. The only
// allowed transition is draft -> published.
type ArticleStatus string

const (
	ArticleStatusDraft     ArticleStatus = "draft"
	ArticleStatusPublished ArticleStatus = "published"
)

// Valid reports whether s is one of the known statuses.
func (s ArticleStatus) Valid() bool {
	return s == ArticleStatusDraft || s == ArticleStatusPublished
}

// Article is a creator's piece of writing. Registration fields are filled in
// progressively by the publish workflow and are nil until the matching
// external step has succeeded.
type Article struct {
	ID          uuid.UUID     `json:"id"`
	Title       string        `json:"title"`
	Slug        string        `json:"slug"`
	Content     string        `json:"content"`
	Excerpt     *string       `json:"excerpt,omitempty"`
	CoverImage  *string       `json:"cover_image,omitempty"`
	OwnerID     string        `json:"owner_id"`
	Status      ArticleStatus `json:"status"`
	Views       int64         `json:"views"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	ContentHash    *string `json:"content_hash,omitempty"`
	LedgerAssetID  *string `json:"ledger_asset_id,omitempty"`
	LedgerTokenID  *string `json:"ledger_token_id,omitempty"`
	LicenseTermsID *string `json:"license_terms_id,omitempty"`
	TxHash         *string `json:"transaction_hash,omitempty"`

	// PendingTxHash is set while a submitted registration transaction has
	// not been confirmed. It is cleared once the registration is recorded.
	PendingTxHash *string `json:"pending_tx_hash,omitempty"`
}

// IsPublished returns true if the article is in published status.
func (a *Article) IsPublished() bool {
	return a.Status == ArticleStatusPublished
}

// HasContentHash reports whether the metadata document has been uploaded.
func (a *Article) HasContentHash() bool {
	return a.ContentHash != nil && *a.ContentHash != ""
}

// IsRegistered reports whether all four ledger identifiers are present.
func (a *Article) IsRegistered() bool {
	return nonEmpty(a.LedgerAssetID) && nonEmpty(a.LedgerTokenID) &&
		nonEmpty(a.LicenseTermsID) && nonEmpty(a.TxHash)
}

// IsOwnedBy reports whether principal is the article's author.
func (a *Article) IsOwnedBy(principal string) bool {
	return principal != "" && a.OwnerID == principal
}

// RegistrationFields are the identifiers returned by a successful ledger
// registration.
type RegistrationFields struct {
	AssetID        string `json:"ledger_asset_id"`
	TokenID        string `json:"ledger_token_id"`
	LicenseTermsID string `json:"license_terms_id"`
	TxHash         string `json:"transaction_hash"`
}

// Complete reports whether every identifier is set.
func (f RegistrationFields) Complete() bool {
	return f.AssetID != "" && f.TokenID != "" && f.LicenseTermsID != "" && f.TxHash != ""
}

// Matches reports whether the article already carries exactly these identifiers.
func (f RegistrationFields) Matches(a *Article) bool {
	return a.IsRegistered() &&
		*a.LedgerAssetID == f.AssetID && *a.LedgerTokenID == f.TokenID &&
		*a.LicenseTermsID == f.LicenseTermsID && *a.TxHash == f.TxHash
}

// ArticlePatch is a partial update. Nil fields are left untouched.
type ArticlePatch struct {
	Title      *string
	Slug       *string
	Content    *string
	Excerpt    *string
	CoverImage *string
}

// Empty reports whether the patch changes nothing.
func (p ArticlePatch) Empty() bool {
	return p.Title == nil && p.Slug == nil && p.Content == nil && p.Excerpt == nil && p.CoverImage == nil
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}
