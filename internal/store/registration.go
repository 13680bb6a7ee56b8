// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"proofpress/internal/models"
)

// RegistrationStore handles the append-only ip_registrations log.
type RegistrationStore struct {
	db DBTX
}

// NewRegistrationStore creates a new RegistrationStore with the given connection.
func NewRegistrationStore(db DBTX) *RegistrationStore {
	return &RegistrationStore{db: db}
}

// Append inserts a registration record and returns it with its generated
// ID and timestamp.
func (s *RegistrationStore) Append(ctx context.Context, r *models.Registration) (*models.Registration, error) {
	metadata := r.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	out := *r
	err := s.db.QueryRow(ctx, `
		INSERT INTO ip_registrations (article_id, ledger_asset_id, ledger_token_id,
		                              license_terms_id, content_hash, transaction_hash,
		                              chain_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, r.ArticleID, r.AssetID, r.TokenID, r.LicenseTermsID, r.ContentHash,
		r.TxHash, r.ChainID, metadata,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append registration: %w", err)
	}
	out.Metadata = metadata
	return &out, nil
}

// ListByArticle returns the registration history of an article, newest first.
func (s *RegistrationStore) ListByArticle(ctx context.Context, articleID uuid.UUID) ([]models.Registration, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, article_id, ledger_asset_id, ledger_token_id, license_terms_id,
		       content_hash, transaction_hash, chain_id, metadata, created_at
		FROM ip_registrations
		WHERE article_id = $1
		ORDER BY created_at DESC
	`, articleID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	items := []models.Registration{}
	for rows.Next() {
		var r models.Registration
		if err := rows.Scan(
			&r.ID, &r.ArticleID, &r.AssetID, &r.TokenID, &r.LicenseTermsID,
			&r.ContentHash, &r.TxHash, &r.ChainID, &r.Metadata, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
