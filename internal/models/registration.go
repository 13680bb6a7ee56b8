// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Registration is an append-only audit record written once per successful
// ledger registration. It duplicates the identifiers stored on the article.
type Registration struct {
	ID             uuid.UUID       `json:"id"`
	ArticleID      uuid.UUID       `json:"article_id"`
	AssetID        string          `json:"ledger_asset_id"`
	TokenID        string          `json:"ledger_token_id"`
	LicenseTermsID string          `json:"license_terms_id"`
	ContentHash    string          `json:"content_hash"`
	TxHash         string          `json:"transaction_hash"`
	ChainID        int64           `json:"chain_id"`
	Metadata       json.RawMessage `json:"metadata"`
	CreatedAt      time.Time       `json:"created_at"`
}
