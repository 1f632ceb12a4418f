package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carevault/internal/integrity"
	"carevault/pkg/ledger"
)

// IntegrityStore is the durable integrity.RecordStore. The UNIQUE
// constraint on record_hash makes Insert the atomic insert-if-absent
// the coordinator's uniqueness invariant rests on.
type IntegrityStore struct{ db *pgxpool.Pool }

func NewIntegrityStore(s *Store) *IntegrityStore { return &IntegrityStore{db: s.DB} }

func (s *IntegrityStore) Insert(ctx context.Context, rec integrity.Record) error {
	tag, err := s.db.Exec(ctx, `
INSERT INTO integrity_records(id,record_hash,ledger_kind,tx_ref,block_ref,status,created_at)
VALUES($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (record_hash) DO NOTHING
`, rec.ID, rec.RecordHash, string(rec.Kind), rec.TxRef, nullable(rec.BlockRef), rec.Status, rec.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return integrity.ErrDuplicateHash
	}
	return nil
}

const integrityColumns = `id,record_hash,ledger_kind,tx_ref,COALESCE(block_ref,''),status,created_at`

func scanIntegrity(row pgx.Row) (integrity.Record, error) {
	var (
		rec  integrity.Record
		kind string
	)
	err := row.Scan(&rec.ID, &rec.RecordHash, &kind, &rec.TxRef, &rec.BlockRef, &rec.Status, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return integrity.Record{}, integrity.ErrNotFound
	}
	rec.Kind = ledger.Kind(kind)
	return rec, err
}

func (s *IntegrityStore) GetByHash(ctx context.Context, hash string) (integrity.Record, error) {
	return scanIntegrity(s.db.QueryRow(ctx, `
SELECT `+integrityColumns+`
FROM integrity_records
WHERE record_hash=$1
`, hash))
}

func (s *IntegrityStore) GetByID(ctx context.Context, id string) (integrity.Record, error) {
	return scanIntegrity(s.db.QueryRow(ctx, `
SELECT `+integrityColumns+`
FROM integrity_records
WHERE id=$1
`, id))
}

func (s *IntegrityStore) ListPending(ctx context.Context) ([]integrity.Record, error) {
	return s.list(ctx, `
SELECT `+integrityColumns+`
FROM integrity_records
WHERE status='pending'
ORDER BY created_at
`)
}

// List returns integrity records newest first, optionally filtered by
// ledger kind.
func (s *IntegrityStore) List(ctx context.Context, kind string) ([]integrity.Record, error) {
	if kind != "" {
		return s.list(ctx, `
SELECT `+integrityColumns+`
FROM integrity_records
WHERE ledger_kind=$1
ORDER BY created_at DESC
`, kind)
	}
	return s.list(ctx, `
SELECT `+integrityColumns+`
FROM integrity_records
ORDER BY created_at DESC
`)
}

func (s *IntegrityStore) list(ctx context.Context, sql string, args ...any) ([]integrity.Record, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []integrity.Record
	for rows.Next() {
		rec, err := scanIntegrity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *IntegrityStore) SetStatus(ctx context.Context, hash, status string) error {
	tag, err := s.db.Exec(ctx, `
UPDATE integrity_records SET status=$2
WHERE record_hash=$1
`, hash, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return integrity.ErrNotFound
	}
	return nil
}
