// Package db provides database schema migration management.
package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of schema migrations. Migrations are
// compiled into the binary: the terminal must be able to initialize its
// store with no files around it.
var migrations = []Migration{
	{
		Version:     1,
		Description: "base schema",
		SQL: `
		CREATE TABLE IF NOT EXISTS produits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code_barre TEXT NOT NULL UNIQUE,
			nom TEXT NOT NULL,
			prix_achat REAL NOT NULL DEFAULT 0,
			prix_vente REAL NOT NULL DEFAULT 0,
			stock REAL NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS utilisateurs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			nom TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'caissier',
			mot_de_passe TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS ventes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			numero TEXT NOT NULL UNIQUE,
			date TEXT NOT NULL,
			total REAL NOT NULL DEFAULT 0,
			mode_paiement TEXT NOT NULL DEFAULT '',
			utilisateur TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS details_ventes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			vente_id INTEGER NOT NULL REFERENCES ventes(id) ON DELETE CASCADE,
			code_barre TEXT NOT NULL,
			quantite REAL NOT NULL,
			prix_unitaire REAL NOT NULL
		);

		CREATE TABLE IF NOT EXISTS historique_stock (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ref TEXT NOT NULL UNIQUE,
			code_barre TEXT NOT NULL,
			quantite REAL NOT NULL,
			motif TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS parametres (
			cle TEXT PRIMARY KEY,
			valeur TEXT NOT NULL
		);
		`,
	},
	{
		Version:     2,
		Description: "sync watermark indexes",
		SQL: `
		CREATE INDEX IF NOT EXISTS idx_produits_updated ON produits(updated_at);
		CREATE INDEX IF NOT EXISTS idx_utilisateurs_updated ON utilisateurs(updated_at);
		CREATE INDEX IF NOT EXISTS idx_ventes_date ON ventes(date);
		CREATE INDEX IF NOT EXISTS idx_details_ventes_vente ON details_ventes(vente_id);
		CREATE INDEX IF NOT EXISTS idx_historique_created ON historique_stock(created_at);
		`,
	},
}

// Migrator handles database schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Up applies all pending migrations in order.
func (m *Migrator) Up() error {
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}

	current, err := m.CurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, mig := range migrations {
		if mig.Version <= current {
			continue
		}

		tx, err := m.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", mig.Version, err)
		}

		if _, err := tx.Exec(mig.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", mig.Version, mig.Description, err)
		}

		sum := sha256.Sum256([]byte(mig.SQL))
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (?, ?, ?, ?)",
			mig.Version, time.Now().Unix(), mig.Description, hex.EncodeToString(sum[:]),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", mig.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", mig.Version, err)
		}
	}

	return nil
}
