package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rezkam/torque/internal/domain"
)

func (s *Store) CreateApplication(ctx context.Context, app domain.Application) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO applications (id, name) VALUES ($1, $2)`, app.ID, app.Name)
	if err != nil {
		return fmt.Errorf("inserting application: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, key *domain.APIKey) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_keys (id, application_id, key_type, service, version, short_token, long_secret_hash, name, is_active, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, key.ID, key.ApplicationID, key.KeyType, key.Service, key.Version, key.ShortToken, key.LongSecretHash, key.Name, key.IsActive, key.CreatedAt, key.ExpiresAt)
	if err != nil {
		return fmt.Errorf("inserting API key: %w", err)
	}
	return nil
}

func (s *Store) FindByShortToken(ctx context.Context, shortToken string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := s.pool.QueryRow(ctx, `
		SELECT id, application_id, key_type, service, version, short_token, long_secret_hash, name, is_active, created_at, last_used_at, expires_at
		FROM api_keys WHERE short_token = $1
	`, shortToken).Scan(
		&key.ID, &key.ApplicationID, &key.KeyType, &key.Service, &key.Version, &key.ShortToken,
		&key.LongSecretHash, &key.Name, &key.IsActive, &key.CreatedAt, &key.LastUsed, &key.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding API key: %w", err)
	}
	return &key, nil
}

func (s *Store) UpdateLastUsed(ctx context.Context, keyID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, keyID, at)
	if err != nil {
		return fmt.Errorf("updating API key last_used_at: %w", err)
	}
	return nil
}
