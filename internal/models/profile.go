// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profile is the author profile attached 1:1 to an external wallet-identity
// principal. A row only exists once first name, surname and email are all
// known; principals without a profile may still own draft articles.
type Profile struct {
	ID                uuid.UUID `json:"id"`
	PrincipalID       string    `json:"principal_id"`
	FirstName         string    `json:"first_name"`
	Surname           string    `json:"surname"`
	Email             string    `json:"email"`
	AvatarURL         *string   `json:"avatar_url,omitempty"`
	WalletAddress     *string   `json:"wallet_address,omitempty"`
	WalletProvisioned bool      `json:"wallet_provisioned"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Complete returns true when first name, surname and email are all set.
func (p *Profile) Complete() bool {
	return strings.TrimSpace(p.FirstName) != "" &&
		strings.TrimSpace(p.Surname) != "" &&
		strings.TrimSpace(p.Email) != ""
}

// DisplayName joins first name and surname.
func (p *Profile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.Surname)
}

// ProfilePatch is a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	FirstName *string
	Surname   *string
	Email     *string
	AvatarURL *string
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.Surname == nil && p.Email == nil && p.AvatarURL == nil
}
