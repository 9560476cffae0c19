// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// SQLStorage persists one named bank as a single row of raw bytes in a SQL
// database. The driver (e.g. sqlite3, mysql, postgres) must be imported
// for side effects by the caller; SQLStorage only ever refers to it by name.
type SQLStorage struct {
	driver string
	dsn    string
	name   string

	db *sql.DB
}

// NewSQLStorage creates a new SQLStorage for the bank called name, reached
// through the given driver/dsn.
func NewSQLStorage(driver, dsn, name string) *SQLStorage {
	return &SQLStorage{driver: driver, dsn: dsn, name: name}
}

// Load connects to the database, creates the backing table if needed, and
// returns the bank's stored bytes resized to size (zero-filled if the row
// doesn't exist yet or is short).
func (s *SQLStorage) Load(size int) (*Bank, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	s.db = db

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS modbus_banks (name TEXT PRIMARY KEY, data BLOB)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	data := make([]byte, size)
	var stored []byte
	err = db.QueryRow(`SELECT data FROM modbus_banks WHERE name = ?`, s.name).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		// leave data zeroed; Save/OnWrite will insert the row on first write
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("failed to query bank %q: %w", s.name, err)
	default:
		copy(data, stored)
	}
	return NewBankFromBytes(data), nil
}

// Save upserts the full bank contents.
func (s *SQLStorage) Save(bank *Bank) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO modbus_banks (name, data) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data`,
		s.name, bank.Bytes(),
	)
	return err
}

// OnWrite re-upserts the bank after every write. A descriptor-addressed
// slave's banks are small enough that a full rewrite is cheap.
func (s *SQLStorage) OnWrite(bank *Bank, offset, length int) {
	if err := s.Save(bank); err != nil {
		slog.Error("failed to persist bank to sql", "name", s.name, "err", err)
	}
}

// Close releases the database handle.
func (s *SQLStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
