// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"proofpress/internal/apperr"
	"proofpress/internal/models"
)

const articleColumns = `id, title, slug, content, excerpt, cover_image, owner_id,
	status, views, published_at, created_at, updated_at,
	content_hash, ledger_asset_id, ledger_token_id, license_terms_id,
	transaction_hash, pending_tx_hash`

// ArticleStore handles all article-related database operations.
type ArticleStore struct {
	db DBTX
}

// NewArticleStore creates a new ArticleStore with the given connection.
func NewArticleStore(db DBTX) *ArticleStore {
	return &ArticleStore{db: db}
}

func scanArticle(row pgx.Row) (*models.Article, error) {
	a := &models.Article{}
	err := row.Scan(
		&a.ID, &a.Title, &a.Slug, &a.Content, &a.Excerpt, &a.CoverImage, &a.OwnerID,
		&a.Status, &a.Views, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt,
		&a.ContentHash, &a.LedgerAssetID, &a.LedgerTokenID, &a.LicenseTermsID,
		&a.TxHash, &a.PendingTxHash,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// scanOne scans a single-row result, mapping pgx.ErrNoRows to (nil, nil).
func scanOne(row pgx.Row, op string) (*models.Article, error) {
	a, err := scanArticle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

func collectArticles(rows pgx.Rows, op string) ([]models.Article, error) {
	defer rows.Close()

	items := []models.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", op, err)
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

// Create inserts a new article and returns it with the generated ID. A
// published article gets published_at in the same statement. A slug that
// is already taken yields an apperr.ErrConflict.
func (s *ArticleStore) Create(ctx context.Context, a *models.Article) (*models.Article, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO articles (title, slug, content, excerpt, cover_image, owner_id, status, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CASE WHEN $7 = 'published' THEN NOW() END)
		RETURNING `+articleColumns,
		a.Title, a.Slug, a.Content, a.Excerpt, a.CoverImage, a.OwnerID, string(a.Status),
	)
	created, err := scanArticle(row)
	if _, dup := isUniqueViolation(err); dup {
		return nil, apperr.New(apperr.ErrConflict, "An article with this slug already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("create article: %w", err)
	}
	return created, nil
}

// FindByID retrieves an article by its UUID regardless of status.
func (s *ArticleStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Article, error) {
	return scanOne(s.db.QueryRow(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = $1`, id,
	), "find article by id")
}

// FindBySlug retrieves an article by slug regardless of status.
func (s *ArticleStore) FindBySlug(ctx context.Context, slug string) (*models.Article, error) {
	return scanOne(s.db.QueryRow(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE slug = $1`, slug,
	), "find article by slug")
}

// SlugExists reports whether any article other than exclude uses slug.
// Pass uuid.Nil to check against every article.
func (s *ArticleStore) SlugExists(ctx context.Context, slug string, exclude uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM articles WHERE slug = $1 AND id <> $2)`, slug, exclude,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug exists: %w", err)
	}
	return exists, nil
}

// ListPublished returns published articles, newest first.
func (s *ArticleStore) ListPublished(ctx context.Context, limit, offset int) ([]models.Article, error) {
	query, args, err := psql.Select(articleColumns).
		From("articles").
		Where(sq.Eq{"status": string(models.ArticleStatusPublished)}).
		OrderBy("published_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list published: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list published articles: %w", err)
	}
	return collectArticles(rows, "published articles")
}

// ListByOwner returns every article owned by principal, drafts included,
// most recently created first.
func (s *ArticleStore) ListByOwner(ctx context.Context, principal string) ([]models.Article, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+articleColumns+`
		FROM articles
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, principal)
	if err != nil {
		return nil, fmt.Errorf("list articles by owner: %w", err)
	}
	return collectArticles(rows, "owner articles")
}

// Update applies a partial update and returns the new row, or nil if the
// article does not exist. An empty patch returns the current row.
func (s *ArticleStore) Update(ctx context.Context, id uuid.UUID, p models.ArticlePatch) (*models.Article, error) {
	if p.Empty() {
		return s.FindByID(ctx, id)
	}

	b := psql.Update("articles").Set("updated_at", sq.Expr("NOW()"))
	if p.Title != nil {
		b = b.Set("title", *p.Title)
	}
	if p.Slug != nil {
		b = b.Set("slug", *p.Slug)
	}
	if p.Content != nil {
		b = b.Set("content", *p.Content)
	}
	if p.Excerpt != nil {
		b = b.Set("excerpt", *p.Excerpt)
	}
	if p.CoverImage != nil {
		b = b.Set("cover_image", nullIfEmpty(*p.CoverImage))
	}

	query, args, err := b.Where(sq.Eq{"id": id}).Suffix("RETURNING " + articleColumns).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update article: %w", err)
	}

	a, err := scanOne(s.db.QueryRow(ctx, query, args...), "update article")
	if _, dup := isUniqueViolation(err); dup {
		return nil, apperr.New(apperr.ErrConflict, "An article with this slug already exists")
	}
	return a, err
}

// MarkPublished moves a draft to published and stamps published_at. It
// returns nil when the article is missing or was not a draft, so two
// concurrent publishes cannot both succeed.
func (s *ArticleStore) MarkPublished(ctx context.Context, id uuid.UUID) (*models.Article, error) {
	return scanOne(s.db.QueryRow(ctx, `
		UPDATE articles
		SET status = 'published', published_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'draft'
		RETURNING `+articleColumns, id,
	), "mark article published")
}

// SetContentHash records the content-addressed pointer. It never overwrites
// an existing hash and reports whether the row changed.
func (s *ArticleStore) SetContentHash(ctx context.Context, id uuid.UUID, hash string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE articles SET content_hash = $2, updated_at = NOW()
		WHERE id = $1 AND content_hash IS NULL
	`, id, hash)
	if err != nil {
		return false, fmt.Errorf("set content hash: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetPendingTx remembers a submitted registration transaction whose outcome
// is not yet known. An empty hash clears it.
func (s *ArticleStore) SetPendingTx(ctx context.Context, id uuid.UUID, txHash string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE articles SET pending_tx_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, id, nullIfEmpty(txHash))
	if err != nil {
		return fmt.Errorf("set pending tx: %w", err)
	}
	return nil
}

// RecordRegistration stores the four ledger identifiers on the article,
// clears the pending transaction and appends the audit record, all in one
// transaction. It returns nil when the article already carries a
// registration, leaving both tables untouched.
func (s *ArticleStore) RecordRegistration(ctx context.Context, id uuid.UUID, f models.RegistrationFields, rec *models.Registration) (*models.Article, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin record registration: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	a, err := scanOne(tx.QueryRow(ctx, `
		UPDATE articles
		SET ledger_asset_id = $2, ledger_token_id = $3, license_terms_id = $4,
		    transaction_hash = $5, pending_tx_hash = NULL, updated_at = NOW()
		WHERE id = $1 AND ledger_asset_id IS NULL
		RETURNING `+articleColumns,
		id, f.AssetID, f.TokenID, f.LicenseTermsID, f.TxHash,
	), "record registration")
	if err != nil || a == nil {
		return nil, err
	}

	rec.ArticleID = id
	if _, err := NewRegistrationStore(tx).Append(ctx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit record registration: %w", err)
	}
	return a, nil
}

// Delete removes an article by ID. Registration records cascade.
func (s *ArticleStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return nil
}

// IncrementViews bumps the view counter of a published article and returns
// the updated row. Drafts are never counted and yield nil.
func (s *ArticleStore) IncrementViews(ctx context.Context, slug string) (*models.Article, error) {
	return scanOne(s.db.QueryRow(ctx, `
		UPDATE articles SET views = views + 1
		WHERE slug = $1 AND status = 'published'
		RETURNING `+articleColumns, slug,
	), "increment views")
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
