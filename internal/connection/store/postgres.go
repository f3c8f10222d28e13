package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"civicid/internal/connection/models"
	"civicid/internal/platform/postgres"
	"civicid/pkg/domain"
	"civicid/pkg/platform/sentinel"
	"civicid/pkg/platform/tx"
)

const connectionColumns = `id, exchange_id, state, role, user_id, my_did, their_did,
	invitation_url, invitation_payload, metadata, created_at, updated_at`

// PostgresStore persists connections in the did_connections table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, conn *models.Connection) error {
	metadata, err := json.Marshal(conn.Metadata)
	if err != nil {
		return fmt.Errorf("marshal connection metadata: %w", err)
	}
	var payload any
	if len(conn.InvitationPayload) > 0 {
		payload = []byte(conn.InvitationPayload)
	}
	_, err = tx.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO did_connections (`+connectionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.UUID(conn.ID), conn.ExchangeID, string(conn.State), string(conn.Role),
		nullString(conn.UserID.String()), conn.MyDID.String(), nullString(conn.TheirDID.String()),
		conn.InvitationURL, payload, metadata, conn.CreatedAt, conn.UpdatedAt,
	)
	if err != nil {
		if _, dup := postgres.UniqueViolation(err); dup {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert connection: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ConnectionID) (*models.Connection, error) {
	row := tx.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM did_connections WHERE id = $1`, uuid.UUID(id))
	return scanOne(row, "find connection by id")
}

func (s *PostgresStore) FindByExchangeID(ctx context.Context, exchangeID string) (*models.Connection, error) {
	row := tx.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM did_connections WHERE exchange_id = $1`, exchangeID)
	return scanOne(row, "find connection by exchange id")
}

func (s *PostgresStore) FindLatestForUser(ctx context.Context, userID domain.UserID, states ...models.State) (*models.Connection, error) {
	filter := make([]string, 0, len(states))
	for _, st := range states {
		filter = append(filter, string(st))
	}
	row := tx.Use(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+connectionColumns+` FROM did_connections
		WHERE user_id = $1 AND (cardinality($2::text[]) = 0 OR state = ANY($2::text[]))
		ORDER BY created_at DESC
		LIMIT 1`,
		userID.String(), pq.Array(filter))
	return scanOne(row, "find latest connection for user")
}

func (s *PostgresStore) ListForUser(ctx context.Context, userID domain.UserID) ([]*models.Connection, error) {
	rows, err := tx.Use(ctx, s.db).QueryContext(ctx, `
		SELECT `+connectionColumns+` FROM did_connections
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list connections for user: %w", err)
	}
	defer rows.Close()

	var out []*models.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		out = append(out, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}
	return out, nil
}

// CompareAndSwapState writes next's state, peer DID and metadata only if the
// row is still in state from. invitation_payload is never written here.
func (s *PostgresStore) CompareAndSwapState(ctx context.Context, exchangeID string, from models.State, next *models.Connection) error {
	metadata, err := json.Marshal(next.Metadata)
	if err != nil {
		return fmt.Errorf("marshal connection metadata: %w", err)
	}
	res, err := tx.Use(ctx, s.db).ExecContext(ctx, `
		UPDATE did_connections
		SET state = $3, their_did = COALESCE(their_did, $4), metadata = $5, updated_at = $6
		WHERE exchange_id = $1 AND state = $2`,
		exchangeID, string(from), string(next.State), nullString(next.TheirDID.String()), metadata, next.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update connection state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update connection state: %w", err)
	}
	if n == 0 {
		if _, err := s.FindByExchangeID(ctx, exchangeID); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(row rowScanner, op string) (*models.Connection, error) {
	conn, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return conn, nil
}

func scanConnection(row rowScanner) (*models.Connection, error) {
	var (
		id                 uuid.UUID
		state, role, myDID string
		userID, theirDID   sql.NullString
		payload, metadata  []byte
		conn               models.Connection
	)
	err := row.Scan(&id, &conn.ExchangeID, &state, &role, &userID, &myDID, &theirDID,
		&conn.InvitationURL, &payload, &metadata, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return nil, err
	}
	conn.ID = domain.ConnectionID(id)
	conn.State = models.State(state)
	conn.Role = models.Role(role)
	conn.UserID = domain.UserID(userID.String)
	conn.MyDID = domain.DID(myDID)
	conn.TheirDID = domain.DID(theirDID.String)
	if len(payload) > 0 {
		conn.InvitationPayload = json.RawMessage(payload)
	}
	conn.Metadata = map[string]string{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &conn.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal connection metadata: %w", err)
		}
	}
	return &conn, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
