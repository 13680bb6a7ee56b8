// store_test.go provides the shared helpers for store tests: a live database
// helper for integration tests (skipped when PostgreSQL is unreachable) and
// row builders for pgxmock-backed unit tests.
package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"proofpress/internal/database"
	"proofpress/internal/models"
)

// testDSN returns the PostgreSQL connection string for testing.
// Uses environment variables with defaults matching docker-compose.yml.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "proofpress")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "proofpress")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable&connect_timeout=2"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a pool to the test database and runs migrations. If the
// database is unavailable, the test is skipped.
func testDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	pool, err := database.Connect(context.Background(), testDSN())
	if err != nil {
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}

	if err := database.Migrate(pool); err != nil {
		pool.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(pool.Close)
	return pool
}

// cleanArticles removes test articles by slug. Call in t.Cleanup().
func cleanArticles(t *testing.T, db DBTX, slugs ...string) {
	t.Helper()
	for _, slug := range slugs {
		db.Exec(context.Background(), "DELETE FROM articles WHERE slug = $1", slug) //nolint:errcheck
	}
}

// cleanProfiles removes test profiles by principal. Call in t.Cleanup().
func cleanProfiles(t *testing.T, db DBTX, principals ...string) {
	t.Helper()
	for _, p := range principals {
		db.Exec(context.Background(), "DELETE FROM profiles WHERE principal_id = $1", p) //nolint:errcheck
	}
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

var articleCols = []string{
	"id", "title", "slug", "content", "excerpt", "cover_image", "owner_id",
	"status", "views", "published_at", "created_at", "updated_at",
	"content_hash", "ledger_asset_id", "ledger_token_id", "license_terms_id",
	"transaction_hash", "pending_tx_hash",
}

// articleRows renders articles as pgxmock rows in articleColumns order.
func articleRows(articles ...models.Article) *pgxmock.Rows {
	rows := pgxmock.NewRows(articleCols)
	for _, a := range articles {
		rows.AddRow(
			a.ID, a.Title, a.Slug, a.Content, a.Excerpt, a.CoverImage, a.OwnerID,
			a.Status, a.Views, a.PublishedAt, a.CreatedAt, a.UpdatedAt,
			a.ContentHash, a.LedgerAssetID, a.LedgerTokenID, a.LicenseTermsID,
			a.TxHash, a.PendingTxHash,
		)
	}
	return rows
}

func sampleArticle(status models.ArticleStatus) models.Article {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := models.Article{
		ID:        uuid.New(),
		Title:     "Hello World!",
		Slug:      "hello-world",
		Content:   "<p>Body</p>",
		OwnerID:   "did:privy:alice",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status == models.ArticleStatusPublished {
		a.PublishedAt = &now
	}
	return a
}

func strPtr(s string) *string { return &s }
