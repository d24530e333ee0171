package tasks

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion must be bumped with every change to schema.sql. Existing
// databases are not migrated.
const schemaVersion = 2

// ErrSchemaMismatch is returned by Open when the database was written by a
// different schema version.
var ErrSchemaMismatch = errors.New("tasks: schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	found, err := s.recordedVersion(ctx)
	if err != nil {
		return err
	}
	switch found {
	case 0:
		return s.applySchema(ctx)
	case schemaVersion:
		return nil
	default:
		return fmt.Errorf("%w: %s is at version %d, this build expects %d", ErrSchemaMismatch, s.path, found, schemaVersion)
	}
}

// recordedVersion returns 0 for a fresh database.
func (s *Store) recordedVersion(ctx context.Context) (int, error) {
	var tables int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'",
	).Scan(&tables); err != nil {
		return 0, fmt.Errorf("inspect schema: %w", err)
	}
	if tables == 0 {
		return 0, nil
	}
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) applySchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("reset schema version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}
