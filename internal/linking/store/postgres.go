package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"civicid/internal/linking/models"
	"civicid/internal/platform/postgres"
	"civicid/pkg/domain"
	"civicid/pkg/platform/sentinel"
	"civicid/pkg/platform/tx"
)

const (
	userConstraint = "user_did_links_user_id_key"
	didConstraint  = "user_did_links_did_key"
)

// PostgresStore relies on the user_id and did unique constraints of
// user_did_links; there is no check-then-insert.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, link *models.UserDIDLink) error {
	_, err := tx.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO user_did_links (id, user_id, did, connection_id, linked_at)
		VALUES ($1, $2, $3, $4, $5)`,
		link.ID, link.UserID.String(), link.DID.String(), uuid.UUID(link.ConnectionID), link.LinkedAt,
	)
	if err == nil {
		return nil
	}
	if constraint, ok := postgres.UniqueViolation(err); ok {
		switch constraint {
		case didConstraint:
			return ErrDIDAlreadyLinked
		case userConstraint:
			return ErrUserAlreadyLinked
		default:
			return sentinel.ErrAlreadyUsed
		}
	}
	return fmt.Errorf("insert user did link: %w", err)
}

func (s *PostgresStore) FindByUser(ctx context.Context, userID domain.UserID) (*models.UserDIDLink, error) {
	row := tx.Use(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, user_id, did, connection_id, linked_at
		FROM user_did_links WHERE user_id = $1`, userID.String())
	return scanLink(row, "find link by user")
}

func (s *PostgresStore) FindByDID(ctx context.Context, did domain.DID) (*models.UserDIDLink, error) {
	row := tx.Use(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, user_id, did, connection_id, linked_at
		FROM user_did_links WHERE did = $1`, did.String())
	return scanLink(row, "find link by did")
}

func (s *PostgresStore) DeleteByUser(ctx context.Context, userID domain.UserID) (*models.UserDIDLink, error) {
	row := tx.Use(ctx, s.db).QueryRowContext(ctx, `
		DELETE FROM user_did_links WHERE user_id = $1
		RETURNING id, user_id, did, connection_id, linked_at`, userID.String())
	return scanLink(row, "delete link")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner, op string) (*models.UserDIDLink, error) {
	var (
		link         models.UserDIDLink
		userID, did  string
		connectionID uuid.UUID
	)
	if err := row.Scan(&link.ID, &userID, &did, &connectionID, &link.LinkedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	link.UserID = domain.UserID(userID)
	link.DID = domain.DID(did)
	link.ConnectionID = domain.ConnectionID(connectionID)
	return &link, nil
}
