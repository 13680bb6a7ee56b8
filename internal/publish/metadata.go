// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package publish

import (
	"encoding/json"
	"fmt"
	"time"

	"proofpress/internal/content"
	"proofpress/internal/ledger"
	"proofpress/internal/models"
)

// Document is the metadata document uploaded to IPFS for a published
// article. Its canonical digest is what the ledger registration commits to.
type Document struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Content     string              `json:"content"`
	Author      string              `json:"author"`
	PublishedAt string              `json:"publishedAt"`
	CoverImage  string              `json:"coverImage,omitempty"`
	License     ledger.LicenseTerms `json:"license"`
}

// BuildDocument assembles the metadata document of a published article.
func BuildDocument(a *models.Article, terms ledger.LicenseTerms) (*Document, error) {
	if a.PublishedAt == nil {
		return nil, fmt.Errorf("build document: article %s is not published", a.ID)
	}

	description := ""
	if a.Excerpt != nil && *a.Excerpt != "" {
		description = *a.Excerpt
	} else {
		description = content.Excerpt(a.Content, content.DefaultExcerptLength)
	}

	doc := &Document{
		Title:       a.Title,
		Description: description,
		Content:     a.Content,
		Author:      a.OwnerID,
		PublishedAt: a.PublishedAt.UTC().Format(time.RFC3339),
		License:     terms,
	}
	if a.CoverImage != nil {
		doc.CoverImage = *a.CoverImage
	}
	return doc, nil
}

// Bytes encodes the document as JSON.
func (d *Document) Bytes() ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

// registrationMetadata is stored with each registration record.
type registrationMetadata struct {
	Digest      string              `json:"digest,omitempty"`
	MetadataURI string              `json:"metadata_uri"`
	Registrar   string              `json:"registrar"`
	License     ledger.LicenseTerms `json:"license"`
}

func (m registrationMetadata) raw() json.RawMessage {
	b, err := json.Marshal(m)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
