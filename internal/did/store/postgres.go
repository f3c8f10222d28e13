package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"civicid/internal/did/models"
	"civicid/internal/platform/postgres"
	"civicid/pkg/domain"
	"civicid/pkg/platform/sentinel"
	"civicid/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, rec *models.UserDID) error {
	_, err := tx.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO user_prism_dids (user_id, did, fallback, created_at)
		VALUES ($1, $2, $3, $4)`,
		rec.UserID.String(), rec.DID.String(), rec.Fallback, rec.CreatedAt,
	)
	if err == nil {
		return nil
	}
	if _, ok := postgres.UniqueViolation(err); ok {
		return sentinel.ErrAlreadyUsed
	}
	return fmt.Errorf("insert user prism did: %w", err)
}

func (s *PostgresStore) FindByUser(ctx context.Context, userID domain.UserID) (*models.UserDID, error) {
	var (
		rec      models.UserDID
		uid, did string
	)
	err := tx.Use(ctx, s.db).QueryRowContext(ctx, `
		SELECT user_id, did, fallback, created_at
		FROM user_prism_dids WHERE user_id = $1`, userID.String(),
	).Scan(&uid, &did, &rec.Fallback, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user prism did: %w", err)
	}
	rec.UserID = domain.UserID(uid)
	rec.DID = domain.DID(did)
	return &rec, nil
}
