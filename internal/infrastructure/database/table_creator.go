// Package database provides schema instantiation
package database

import (
	"database/sql"
	"fmt"
)

// TableCreator handles the creation of the database schema for a fresh deployment.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateCatalogSchema executes all necessary queries to build the catalog
// database tables and indexes. Holds the accounts, profiles, interests and
// the category/tag tree backing the onboarding wizard.
func (tc *TableCreator) CreateCatalogSchema(db *sql.DB) error {
	for _, tableSQL := range catalogTables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range catalogIndexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

// CreateLocalStoreSchema builds the single key/value table backing the
// durable local cache store.
func (tc *TableCreator) CreateLocalStoreSchema(db *sql.DB) error {
	for _, tableSQL := range localStoreTables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}
	return nil
}

// SeedCatalogContent adds a minimal category tree and tag set so a fresh
// install can run the onboarding wizard end to end. Idempotent on name.
func (tc *TableCreator) SeedCatalogContent(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		return fmt.Errorf("failed to check categories: %w", err)
	}
	if count > 0 {
		return nil
	}

	seed := []struct {
		name   string
		parent string
	}{
		{"Digital Goods", ""},
		{"Services", ""},
		{"Templates", "Digital Goods"},
		{"Datasets", "Digital Goods"},
		{"Consulting", "Services"},
		{"Automation", "Services"},
	}

	parentIDs := make(map[string]int64)
	for _, c := range seed {
		var parentID any
		if c.parent != "" {
			parentID = parentIDs[c.parent]
		}
		res, err := db.Exec(`INSERT INTO categories (name, parent_id) VALUES (?, ?)`, c.name, parentID)
		if err != nil {
			return fmt.Errorf("failed to seed category %q: %w", c.name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read seeded category id: %w", err)
		}
		parentIDs[c.name] = id
	}

	for _, tag := range []string{"open-source", "commercial", "beginner-friendly", "enterprise"} {
		if _, err := db.Exec(`INSERT INTO tags (name) VALUES (?)`, tag); err != nil {
			return fmt.Errorf("failed to seed tag %q: %w", tag, err)
		}
	}

	return nil
}

var catalogTables = []string{
	`CREATE TABLE IF NOT EXISTS accounts (id TEXT PRIMARY KEY, email TEXT NOT NULL UNIQUE, password_hash TEXT NOT NULL, name TEXT, avatar_url TEXT, provider TEXT NOT NULL DEFAULT 'local', created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY, email TEXT NOT NULL, name TEXT, nickname TEXT, avatar_url TEXT, provider TEXT, role TEXT NOT NULL DEFAULT 'BUYER', created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS categories (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, parent_id INTEGER REFERENCES categories(id))`,
	`CREATE TABLE IF NOT EXISTS tags (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL UNIQUE)`,
	`CREATE TABLE IF NOT EXISTS user_interests (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id TEXT NOT NULL REFERENCES users(id), interest_id INTEGER NOT NULL, created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP, UNIQUE(user_id, interest_id))`,
}

var catalogIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email)`,
	`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
	`CREATE INDEX IF NOT EXISTS idx_categories_parent_id ON categories(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_user_interests_user_id ON user_interests(user_id)`,
}

var localStoreTables = []string{
	`CREATE TABLE IF NOT EXISTS local_state (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
}
