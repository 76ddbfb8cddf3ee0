// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credential

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schemaKV = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteSlot stores the credential under SlotKey in a small key-value table.
// Useful when several clientdesk profiles share one state database.
type SQLiteSlot struct {
	db  *sql.DB
	key string
}

// OpenSQLiteSlot opens (or creates) the database at path.
func OpenSQLiteSlot(path string) (*SQLiteSlot, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	// Single writer keeps SQLite from returning SQLITE_BUSY under concurrent Set/Clear
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaKV); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &SQLiteSlot{db: db, key: SlotKey}, nil
}

func (s *SQLiteSlot) Read() (string, error) {
	var token string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", s.key).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

func (s *SQLiteSlot) Write(token string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, token, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write credential: %w", err)
	}
	return nil
}

func (s *SQLiteSlot) Remove() error {
	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", s.key); err != nil {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteSlot) Close() error {
	return s.db.Close()
}
