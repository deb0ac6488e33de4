package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/pygate/internal/apperror"
	"github.com/sakif/pygate/internal/model"
	"github.com/sakif/pygate/internal/repository"
)

var _ repository.ClientRepository = (*DB)(nil)

// CreateClient stores a client. The caller hashes the secret first.
func (db *DB) CreateClient(ctx context.Context, client *model.Client) error {
	client.ID = xid.New().String()
	client.CreatedAt = time.Now().UTC()
	client.LastUsedAt = nil

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO clients (id, name, secret_hash, created_at) VALUES (?, ?, ?, ?)`,
		client.ID, client.Name, client.SecretHash, client.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating client: %w", err)
	}
	return nil
}

func (db *DB) GetClient(ctx context.Context, id string) (*model.Client, error) {
	var c model.Client
	var lastUsed sql.NullTime
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, secret_hash, created_at, last_used_at FROM clients WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.SecretHash, &c.CreatedAt, &lastUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("client", id)
		}
		return nil, fmt.Errorf("sqlite: getting client %s: %w", id, err)
	}
	if lastUsed.Valid {
		c.LastUsedAt = &lastUsed.Time
	}
	return &c, nil
}

// TouchClient records that the client just exchanged its credentials.
func (db *DB) TouchClient(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE clients SET last_used_at = ? WHERE id = ?`, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: touching client %s: %w", id, err)
	}
	return expectOneRow(result, "client", id)
}
