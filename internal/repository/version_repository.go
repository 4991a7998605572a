package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/draftsync/internal/domain"
)

// versionRepository implements VersionRepository over Postgres.
type versionRepository struct {
	pool *pgxpool.Pool
}

// NewVersionRepository creates a new Postgres-backed version repository.
func NewVersionRepository(pool *pgxpool.Pool) VersionRepository {
	return &versionRepository{pool: pool}
}

const versionColumns = "id, document_id, version, changes, author_id, created_at"

// GetLatest retrieves the document tip, nil when the document is unwritten.
func (r *versionRepository) GetLatest(ctx context.Context, documentID string) (*domain.DocumentVersion, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+versionColumns+`
		FROM document_versions
		WHERE document_id = $1
		ORDER BY version DESC
		LIMIT 1`, documentID)

	version, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	return &version, nil
}

// Commit performs the atomic conditional append. The guard subquery and
// the insert run as one statement, and the unique index on
// (document_id, version) backstops writers that pass the guard
// concurrently. Both paths surface as domain.ErrVersionMismatch.
func (r *versionRepository) Commit(ctx context.Context, documentID string, expectedPriorVersion int64, changes domain.ChangeSet, authorID string) (domain.DocumentVersion, error) {
	changesJSON, err := changes.AsJSONB()
	if err != nil {
		return domain.DocumentVersion{}, fmt.Errorf("failed to marshal changes: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO document_versions (document_id, version, changes, author_id)
		SELECT $1, $2 + 1, $3, $4
		WHERE (
			SELECT COALESCE(MAX(version), 0)
			FROM document_versions
			WHERE document_id = $1
		) = $2
		RETURNING `+versionColumns,
		documentID, expectedPriorVersion, changesJSON, authorID)

	version, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DocumentVersion{}, domain.ErrVersionMismatch
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.DocumentVersion{}, domain.ErrVersionMismatch
		}
		return domain.DocumentVersion{}, fmt.Errorf("failed to commit version: %w", err)
	}
	return version, nil
}

// Get retrieves one specific version, nil when absent.
func (r *versionRepository) Get(ctx context.Context, documentID string, version int64) (*domain.DocumentVersion, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+versionColumns+`
		FROM document_versions
		WHERE document_id = $1 AND version = $2`, documentID, version)

	result, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return &result, nil
}

// List retrieves up to limit versions, newest first.
func (r *versionRepository) List(ctx context.Context, documentID string, limit int) ([]domain.DocumentVersion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+versionColumns+`
		FROM document_versions
		WHERE document_id = $1
		ORDER BY version DESC
		LIMIT $2`, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	versions := make([]domain.DocumentVersion, 0, limit)
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

func scanVersion(row pgx.Row) (domain.DocumentVersion, error) {
	var version domain.DocumentVersion
	var changesJSON json.RawMessage
	if err := row.Scan(&version.ID, &version.DocumentID, &version.Version, &changesJSON, &version.AuthorID, &version.CreatedAt); err != nil {
		return domain.DocumentVersion{}, err
	}

	changes, err := domain.ChangeSetFromJSONB(changesJSON)
	if err != nil {
		return domain.DocumentVersion{}, fmt.Errorf("failed to decode changes: %w", err)
	}
	version.Changes = changes
	return version, nil
}
