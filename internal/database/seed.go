package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DemoPrincipal is the principal id owning the development seed data.
const DemoPrincipal = "did:privy:demo-creator"

// Seed populates the database with initial development data.
// It creates a demo profile and a welcome draft if no profiles exist.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM profiles").Scan(&count); err != nil {
		return fmt.Errorf("seed check profiles: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO profiles (principal_id, first_name, surname, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (principal_id) DO NOTHING
	`, DemoPrincipal, "Demo", "Creator", "demo@proofpress.local")
	if err != nil {
		return fmt.Errorf("seed insert profile: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO articles (title, slug, content, excerpt, owner_id, status)
		VALUES ($1, $2, $3, $4, $5, 'draft')
		ON CONFLICT (slug) DO NOTHING
	`, "Welcome to ProofPress", "welcome-to-proofpress",
		"<p>Drafts stay private until you publish them.</p>",
		"Drafts stay private until you publish them.", DemoPrincipal)
	if err != nil {
		return fmt.Errorf("seed insert article: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with demo profile", "principal", DemoPrincipal)
	return nil
}
