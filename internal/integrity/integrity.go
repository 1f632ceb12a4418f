// Package integrity orchestrates anchoring record hashes on a ledger
// backend and re-verifying them later. It owns the submit-then-confirm
// lifecycle; durable storage of integrity records is a capability the
// caller injects.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"carevault/pkg/ledger"
	"carevault/pkg/recordhash"
)

// Integrity record statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

var (
	ErrInvalidHash       = errors.New("integrity: hash must be a 64-char hex sha-256 digest")
	ErrDuplicateHash     = errors.New("integrity: hash already anchored")
	ErrNotFound          = errors.New("integrity: no record for hash")
	ErrUnsupportedLedger = errors.New("integrity: unsupported ledger kind")
	ErrSubmission        = errors.New("integrity: ledger submission failed")
	ErrVerification      = errors.New("integrity: ledger verification failed")
)

// Record links a content hash to the ledger transaction that anchored
// it. Exactly one record exists per distinct hash.
type Record struct {
	ID         string      `json:"id"`
	RecordHash string      `json:"record_hash"`
	Kind       ledger.Kind `json:"ledger_kind"`
	TxRef      string      `json:"transaction_ref"`
	BlockRef   string      `json:"block_ref,omitempty"`
	Status     string      `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Verification pairs the adapter's current answer with the stored
// record. A verified=false result against a confirmed record is
// returned as-is; reconciling the two is the caller's decision.
type Verification struct {
	Verified bool   `json:"verified"`
	Record   Record `json:"record"`
}

// RecordStore is the persistence capability the coordinator requires.
// Insert must be an atomic insert-if-absent keyed on the record hash and
// report ErrDuplicateHash when the hash is already present.
type RecordStore interface {
	Insert(ctx context.Context, rec Record) error
	GetByHash(ctx context.Context, hash string) (Record, error)
	ListPending(ctx context.Context) ([]Record, error)
	SetStatus(ctx context.Context, hash, status string) error
}

type Coordinator struct {
	store    RecordStore
	adapters map[ledger.Kind]ledger.Adapter

	mu       sync.Mutex
	inflight map[string]*hashLock
}

type hashLock struct {
	sync.Mutex
	refs int
}

func NewCoordinator(store RecordStore, adapters map[ledger.Kind]ledger.Adapter) *Coordinator {
	return &Coordinator{
		store:    store,
		adapters: adapters,
		inflight: make(map[string]*hashLock),
	}
}

// lockHash serializes concurrent submissions of the same hash so the
// check-then-submit sequence cannot interleave. The store's atomic
// insert still backstops races from other processes.
func (c *Coordinator) lockHash(hash string) func() {
	c.mu.Lock()
	l, ok := c.inflight[hash]
	if !ok {
		l = &hashLock{}
		c.inflight[hash] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.inflight, hash)
		}
		c.mu.Unlock()
	}
}

// Store anchors the hash on the selected ledger and records the result.
// The second submission of any hash fails with ErrDuplicateHash, even
// under concurrent calls. No retry is attempted here; retry policy
// belongs to the caller.
func (c *Coordinator) Store(ctx context.Context, hash string, kind ledger.Kind) (Record, error) {
	if !recordhash.IsDigest(hash) {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	adapter, ok := c.adapters[kind]
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrUnsupportedLedger, kind)
	}

	unlock := c.lockHash(hash)
	defer unlock()

	if _, err := c.store.GetByHash(ctx, hash); err == nil {
		return Record{}, fmt.Errorf("%w: %s", ErrDuplicateHash, hash)
	} else if !errors.Is(err, ErrNotFound) {
		return Record{}, err
	}

	receipt, err := adapter.Submit(ctx, hash)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	status := StatusPending
	if receipt.BlockRef != "" {
		status = StatusConfirmed
	}
	rec := Record{
		ID:         "led_" + uuid.NewString(),
		RecordHash: hash,
		Kind:       kind,
		TxRef:      receipt.TxRef,
		BlockRef:   receipt.BlockRef,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
	if err := c.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateHash) {
			return Record{}, fmt.Errorf("%w: %s", ErrDuplicateHash, hash)
		}
		return Record{}, err
	}
	return rec, nil
}

// Verify asks the anchoring ledger whether the hash is still present
// under its stored transaction reference.
func (c *Coordinator) Verify(ctx context.Context, hash string) (Verification, error) {
	rec, err := c.store.GetByHash(ctx, hash)
	if err != nil {
		return Verification{}, err
	}
	adapter, ok := c.adapters[rec.Kind]
	if !ok {
		return Verification{}, fmt.Errorf("%w: %q", ErrUnsupportedLedger, rec.Kind)
	}
	verified, err := adapter.Verify(ctx, hash, rec.TxRef)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	return Verification{Verified: verified, Record: rec}, nil
}

// ConfirmPending sweeps pending records through their ledger's Verify:
// present becomes confirmed, absent becomes failed, and adapter errors
// leave the record pending for the next sweep. Returns the number of
// records whose status changed.
func (c *Coordinator) ConfirmPending(ctx context.Context) (int, error) {
	pending, err := c.store.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	var transitioned int
	for _, rec := range pending {
		adapter, ok := c.adapters[rec.Kind]
		if !ok {
			continue
		}
		verified, err := adapter.Verify(ctx, rec.RecordHash, rec.TxRef)
		if err != nil {
			continue
		}
		status := StatusFailed
		if verified {
			status = StatusConfirmed
		}
		if err := c.store.SetStatus(ctx, rec.RecordHash, status); err != nil {
			return transitioned, err
		}
		transitioned++
	}
	return transitioned, nil
}
