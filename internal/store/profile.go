// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"proofpress/internal/apperr"
	"proofpress/internal/models"
)

const profileColumns = `id, principal_id, first_name, surname, email, avatar_url,
	wallet_address, wallet_provisioned, created_at, updated_at`

// ProfileStore handles all profile-related database operations.
type ProfileStore struct {
	db DBTX
}

// NewProfileStore creates a new ProfileStore with the given connection.
func NewProfileStore(db DBTX) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(row pgx.Row, op string) (*models.Profile, error) {
	p := &models.Profile{}
	err := row.Scan(
		&p.ID, &p.PrincipalID, &p.FirstName, &p.Surname, &p.Email, &p.AvatarURL,
		&p.WalletAddress, &p.WalletProvisioned, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if _, dup := isUniqueViolation(err); dup {
		return nil, apperr.New(apperr.ErrConflict, "This email is already in use")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// FindByPrincipal retrieves the profile of an identity principal.
func (s *ProfileStore) FindByPrincipal(ctx context.Context, principal string) (*models.Profile, error) {
	return scanProfile(s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE principal_id = $1`, principal,
	), "find profile by principal")
}

// Create inserts a new profile. A duplicate email (or principal) yields an
// apperr.ErrConflict.
func (s *ProfileStore) Create(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	return scanProfile(s.db.QueryRow(ctx, `
		INSERT INTO profiles (principal_id, first_name, surname, email, avatar_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+profileColumns,
		p.PrincipalID, p.FirstName, p.Surname, p.Email, p.AvatarURL,
	), "create profile")
}

// Update applies a partial update and returns the new row, or nil when the
// principal has no profile.
func (s *ProfileStore) Update(ctx context.Context, principal string, patch models.ProfilePatch) (*models.Profile, error) {
	if patch.Empty() {
		return s.FindByPrincipal(ctx, principal)
	}

	b := psql.Update("profiles").Set("updated_at", sq.Expr("NOW()"))
	if patch.FirstName != nil {
		b = b.Set("first_name", *patch.FirstName)
	}
	if patch.Surname != nil {
		b = b.Set("surname", *patch.Surname)
	}
	if patch.Email != nil {
		b = b.Set("email", *patch.Email)
	}
	if patch.AvatarURL != nil {
		b = b.Set("avatar_url", nullIfEmpty(*patch.AvatarURL))
	}

	query, args, err := b.Where(sq.Eq{"principal_id": principal}).
		Suffix("RETURNING " + profileColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update profile: %w", err)
	}
	return scanProfile(s.db.QueryRow(ctx, query, args...), "update profile")
}

// SetWallet records the provisioned wallet address for a principal and
// flips wallet_provisioned. Returns nil when there is no profile.
func (s *ProfileStore) SetWallet(ctx context.Context, principal, address string) (*models.Profile, error) {
	return scanProfile(s.db.QueryRow(ctx, `
		UPDATE profiles
		SET wallet_address = $2, wallet_provisioned = TRUE, updated_at = NOW()
		WHERE principal_id = $1
		RETURNING `+profileColumns, principal, address,
	), "set wallet")
}
