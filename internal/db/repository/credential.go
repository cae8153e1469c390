package repository

import (
	"context"
	"database/sql"
	"fmt"

	"duck-intake/internal/domain"
)

// CredentialRepo implements credential.Store. Writes go through the
// single-connection write pool, listing through the read pool.
type CredentialRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewCredentialRepo creates a new CredentialRepo.
func NewCredentialRepo(writeDB, readDB *sql.DB) *CredentialRepo {
	return &CredentialRepo{writeDB: writeDB, readDB: readDB}
}

// ListGrants returns every grant ordered by key prefix then collection.
func (r *CredentialRepo) ListGrants(ctx context.Context) ([]domain.CredentialGrant, error) {
	rows, err := r.readDB.QueryContext(ctx, `
		SELECT token_hash, key_prefix, collection, created_at
		FROM credential_grants
		ORDER BY key_prefix, collection`)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.CredentialGrant
	for rows.Next() {
		var g domain.CredentialGrant
		var createdAt string
		if err := rows.Scan(&g.TokenHash, &g.KeyPrefix, &g.Collection, &createdAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		g.CreatedAt = parseTime(createdAt)
		out = append(out, g)
	}
	return out, rows.Err()
}

// CreateGrant stores g. Granting an existing pair is a no-op.
func (r *CredentialRepo) CreateGrant(ctx context.Context, g domain.CredentialGrant) error {
	_, err := r.writeDB.ExecContext(ctx, `
		INSERT INTO credential_grants (token_hash, key_prefix, collection, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (token_hash, collection) DO NOTHING`,
		g.TokenHash, g.KeyPrefix, g.Collection, g.CreatedAt.UTC().Format(timeLayout))
	return mapDBError(err)
}

// DeleteGrant removes one grant. Deleting a missing grant is a NotFoundError.
func (r *CredentialRepo) DeleteGrant(ctx context.Context, tokenHash, collection string) error {
	res, err := r.writeDB.ExecContext(ctx,
		`DELETE FROM credential_grants WHERE token_hash = ? AND collection = ?`,
		tokenHash, collection)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("grant for collection %q not found", collection)
	}
	return nil
}
