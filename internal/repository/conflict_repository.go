package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/draftsync/internal/domain"
)

// conflictRepository implements ConflictRepository over Postgres.
type conflictRepository struct {
	pool *pgxpool.Pool
}

// NewConflictRepository creates a new Postgres-backed conflict repository.
func NewConflictRepository(pool *pgxpool.Pool) ConflictRepository {
	return &conflictRepository{pool: pool}
}

const conflictColumns = "id, document_id, base_version, changes, resolution, state, resolved, created_at"

// Insert persists a conflict record, resolved or pending.
func (r *conflictRepository) Insert(ctx context.Context, conflict domain.Conflict) (domain.Conflict, error) {
	changesJSON, err := json.Marshal(conflict.Changes)
	if err != nil {
		return domain.Conflict{}, fmt.Errorf("failed to marshal conflicting changes: %w", err)
	}

	var resolutionJSON []byte
	if conflict.Resolution != nil {
		resolutionJSON, err = json.Marshal(conflict.Resolution)
		if err != nil {
			return domain.Conflict{}, fmt.Errorf("failed to marshal resolution: %w", err)
		}
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO conflicts (id, document_id, base_version, changes, resolution, state, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+conflictColumns,
		conflict.ID, conflict.DocumentID, conflict.BaseVersion, changesJSON,
		resolutionJSON, string(conflict.State), conflict.Resolved, conflict.CreatedAt)

	inserted, err := scanConflict(row)
	if err != nil {
		return domain.Conflict{}, fmt.Errorf("failed to insert conflict: %w", err)
	}
	return inserted, nil
}

// GetByID retrieves a conflict, nil when absent.
func (r *conflictRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conflict, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+conflictColumns+`
		FROM conflicts
		WHERE id = $1`, id)

	conflict, err := scanConflict(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}
	return &conflict, nil
}

// AttachResolution sets the resolution exactly once. The resolved guard
// lives in the WHERE clause so concurrent resolvers cannot both win.
func (r *conflictRepository) AttachResolution(ctx context.Context, id uuid.UUID, resolution domain.Resolution) error {
	resolutionJSON, err := json.Marshal(resolution)
	if err != nil {
		return fmt.Errorf("failed to marshal resolution: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE conflicts
		SET resolution = $2, state = $3, resolved = TRUE
		WHERE id = $1 AND resolved = FALSE`,
		id, resolutionJSON, string(domain.ConflictStateResolved))
	if err != nil {
		return fmt.Errorf("failed to attach resolution: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrConflictNotFound
	}
	return domain.ErrConflictAlreadyResolved
}

// ListByDocument retrieves the document's conflicts, newest first.
func (r *conflictRepository) ListByDocument(ctx context.Context, documentID string, pendingOnly bool) ([]domain.Conflict, error) {
	query := `
		SELECT ` + conflictColumns + `
		FROM conflicts
		WHERE document_id = $1
		ORDER BY created_at DESC`
	if pendingOnly {
		query = `
		SELECT ` + conflictColumns + `
		FROM conflicts
		WHERE document_id = $1 AND resolved = FALSE
		ORDER BY created_at DESC`
	}

	rows, err := r.pool.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer rows.Close()

	conflicts := []domain.Conflict{}
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		conflicts = append(conflicts, conflict)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	return conflicts, nil
}

func scanConflict(row pgx.Row) (domain.Conflict, error) {
	var conflict domain.Conflict
	var changesJSON json.RawMessage
	var resolutionJSON []byte
	var state string

	if err := row.Scan(&conflict.ID, &conflict.DocumentID, &conflict.BaseVersion,
		&changesJSON, &resolutionJSON, &state, &conflict.Resolved, &conflict.CreatedAt); err != nil {
		return domain.Conflict{}, err
	}

	if err := json.Unmarshal(changesJSON, &conflict.Changes); err != nil {
		return domain.Conflict{}, fmt.Errorf("failed to decode conflicting changes: %w", err)
	}
	if len(resolutionJSON) > 0 {
		var resolution domain.Resolution
		if err := json.Unmarshal(resolutionJSON, &resolution); err != nil {
			return domain.Conflict{}, fmt.Errorf("failed to decode resolution: %w", err)
		}
		conflict.Resolution = &resolution
	}
	conflict.State = domain.ConflictState(state)
	return conflict, nil
}
