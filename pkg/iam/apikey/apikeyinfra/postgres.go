package apikeyinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/egoauth/ego/pkg/errx"
	"github.com/egoauth/ego/pkg/iam/apikey"
	"github.com/egoauth/ego/pkg/iam/scope"
	"github.com/egoauth/ego/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresAPIKeyRepository is the PostgreSQL implementation of APIKeyRepository.
type PostgresAPIKeyRepository struct {
	db *sqlx.DB
}

// NewPostgresAPIKeyRepository creates a new repository instance.
func NewPostgresAPIKeyRepository(db *sqlx.DB) apikey.APIKeyRepository {
	return &PostgresAPIKeyRepository{db: db}
}

// Save inserts a freshly issued key.
func (r *PostgresAPIKeyRepository) Save(ctx context.Context, key apikey.APIKey) error {
	query := `
		INSERT INTO api_keys (
			id, name, owner_id, issue_date, expiry_date, revoked, description, scopes
		) VALUES (
			:id, :name, :owner_id, :issue_date, :expiry_date, :revoked, :description, :scopes
		)`

	_, err := r.db.NamedExecContext(ctx, query, toPersistence(key))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return errx.Wrap(err, "api key secret collision", errx.TypeConflict).
				WithDetail("key_id", key.ID)
		}
		return errx.Wrap(err, "failed to save API key", errx.TypeInternal).
			WithDetail("key_id", key.ID)
	}
	return nil
}

// FindBySecret looks a key up by its opaque secret.
func (r *PostgresAPIKeyRepository) FindBySecret(ctx context.Context, secret string) (*apikey.APIKey, error) {
	var row apiKeyPersistence
	query := `SELECT * FROM api_keys WHERE name = $1`
	err := r.db.GetContext(ctx, &row, query, secret)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apikey.ErrInvalidApiKey().WithDetail("reason", "not found")
		}
		return nil, errx.Wrap(err, "failed to find API key by secret", errx.TypeInternal)
	}
	key, err := toDomain(row)
	if err != nil {
		return nil, err
	}
	return key, nil
}

// FindByOwner returns every key the user owns, revoked ones included.
func (r *PostgresAPIKeyRepository) FindByOwner(ctx context.Context, ownerID kernel.UserID) ([]*apikey.APIKey, error) {
	var rows []apiKeyPersistence
	query := `SELECT * FROM api_keys WHERE owner_id = $1 ORDER BY issue_date DESC`
	err := r.db.SelectContext(ctx, &rows, query, ownerID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find API keys by owner", errx.TypeInternal)
	}

	keys := make([]*apikey.APIKey, 0, len(rows))
	for _, row := range rows {
		key, err := toDomain(row)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Revoke flips the revoked flag with a single conditional UPDATE. The
// revoked = false guard makes concurrent revokes linearize: one caller
// wins, every other observes already-revoked.
func (r *PostgresAPIKeyRepository) Revoke(ctx context.Context, secret string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET revoked = true WHERE name = $1 AND revoked = false`, secret)
	if err != nil {
		return errx.Wrap(err, "failed to revoke API key", errx.TypeInternal)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on revoke", errx.TypeInternal)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	err = r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM api_keys WHERE name = $1)`, secret)
	if err != nil {
		return errx.Wrap(err, "failed to check API key existence", errx.TypeInternal)
	}
	if exists {
		return apikey.ErrInvalidApiKey().WithDetail("reason", "already revoked")
	}
	return apikey.ErrInvalidApiKey().WithDetail("reason", "not found")
}

// apiKeyPersistence maps the entity onto DB-specific types.
type apiKeyPersistence struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	OwnerID     kernel.UserID  `db:"owner_id"`
	IssueDate   time.Time      `db:"issue_date"`
	ExpiryDate  time.Time      `db:"expiry_date"`
	Revoked     bool           `db:"revoked"`
	Description sql.NullString `db:"description"`
	Scopes      pq.StringArray `db:"scopes"`
}

func toPersistence(key apikey.APIKey) apiKeyPersistence {
	return apiKeyPersistence{
		ID:          key.ID,
		Name:        key.Name,
		OwnerID:     key.OwnerID,
		IssueDate:   key.IssueDate,
		ExpiryDate:  key.ExpiryDate,
		Revoked:     key.Revoked,
		Description: sql.NullString{String: key.Description, Valid: key.Description != ""},
		Scopes:      key.ScopeStrings(),
	}
}

func toDomain(p apiKeyPersistence) (*apikey.APIKey, error) {
	scopes, err := scope.ParseAll(p.Scopes)
	if err != nil {
		return nil, errx.Wrap(err, "stored scope is malformed", errx.TypeInternal).
			WithDetail("key_id", p.ID)
	}
	return &apikey.APIKey{
		ID:          p.ID,
		Name:        p.Name,
		OwnerID:     p.OwnerID,
		IssueDate:   p.IssueDate,
		ExpiryDate:  p.ExpiryDate,
		Revoked:     p.Revoked,
		Description: p.Description.String,
		Scopes:      scopes,
	}, nil
}
