package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clearwell-health/therabill/internal/payer"
)

// ErrNotFound reports that an org has no stored credential for a payer.
var ErrNotFound = errors.New("credentials: not found")

// PgxPool is the subset of pgxpool.Pool the store needs.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Record is one stored payer credential. Ciphertext is opaque to the store.
type Record struct {
	ID         uuid.UUID
	OrgID      string
	PayerCode  string
	Ciphertext []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store persists encrypted payer credentials in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		panic("credentials: pgx pool required")
	}
	return &Store{pool: pool}
}

// Upsert writes the credential for (org, payer), replacing any previous one.
func (s *Store) Upsert(ctx context.Context, orgID, payerCode string, ciphertext []byte) (uuid.UUID, error) {
	id := uuid.New()
	query := `
		INSERT INTO payer_credentials (id, org_id, payer_code, ciphertext)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_id, payer_code)
		DO UPDATE SET ciphertext = EXCLUDED.ciphertext, updated_at = now()
		RETURNING id
	`
	if err := s.pool.QueryRow(ctx, query, id, orgID, payerCode, ciphertext).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("credentials: upsert: %w", err)
	}
	return id, nil
}

// Get fetches the credential ciphertext for (org, payer).
func (s *Store) Get(ctx context.Context, orgID, payerCode string) (Record, error) {
	query := `
		SELECT id, org_id, payer_code, ciphertext, created_at, updated_at
		FROM payer_credentials
		WHERE org_id = $1 AND payer_code = $2
	`
	var rec Record
	err := s.pool.QueryRow(ctx, query, orgID, payerCode).Scan(
		&rec.ID, &rec.OrgID, &rec.PayerCode, &rec.Ciphertext, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("credentials: get: %w", err)
	}
	return rec, nil
}

// Delete removes the credential for (org, payer).
func (s *Store) Delete(ctx context.Context, orgID, payerCode string) (bool, error) {
	query := `DELETE FROM payer_credentials WHERE org_id = $1 AND payer_code = $2`
	ct, err := s.pool.Exec(ctx, query, orgID, payerCode)
	if err != nil {
		return false, fmt.Errorf("credentials: delete: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// ListPayers returns the payer codes an org has credentials for.
func (s *Store) ListPayers(ctx context.Context, orgID string) ([]string, error) {
	query := `
		SELECT payer_code
		FROM payer_credentials
		WHERE org_id = $1
		ORDER BY payer_code
	`
	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("credentials: list payers: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("credentials: scan payer code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// Source resolves decrypted credentials for the orchestrator: store lookup
// plus decryption in one call.
type Source struct {
	store   *Store
	manager *Manager
}

func NewSource(store *Store, manager *Manager) *Source {
	return &Source{store: store, manager: manager}
}

// Resolve returns the decrypted credential for (org, payer).
func (s *Source) Resolve(ctx context.Context, orgID, payerCode string) (payer.Credential, error) {
	rec, err := s.store.Get(ctx, orgID, payerCode)
	if err != nil {
		return payer.Credential{}, err
	}
	return s.manager.Decrypt(rec.Ciphertext)
}
