package integrity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"carevault/pkg/ledger"
)

const testHash = "a3f2b8c1d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a1"

// memStore is a RecordStore with the same atomic insert-if-absent
// contract the postgres implementation provides.
type memStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func newMemStore() *memStore { return &memStore{records: make(map[string]Record)} }

func (s *memStore) Insert(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.RecordHash]; ok {
		return ErrDuplicateHash
	}
	s.records[rec.RecordHash] = rec
	return nil
}

func (s *memStore) GetByHash(ctx context.Context, hash string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[hash]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *memStore) ListPending(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, rec := range s.records {
		if rec.Status == StatusPending {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memStore) SetStatus(ctx context.Context, hash, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[hash]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	s.records[hash] = rec
	return nil
}

// failingAdapter rejects every submission and verification.
type failingAdapter struct{}

func (failingAdapter) Submit(ctx context.Context, hash string) (ledger.Receipt, error) {
	return ledger.Receipt{}, errors.New("node unreachable")
}
func (failingAdapter) Verify(ctx context.Context, hash, txRef string) (bool, error) {
	return false, errors.New("node unreachable")
}
func (failingAdapter) Status(ctx context.Context) (ledger.Status, error) {
	return ledger.Status{}, errors.New("node unreachable")
}

func newTestCoordinator() (*Coordinator, *memStore, *ledger.Memory) {
	st := newMemStore()
	mem := ledger.NewMemory("")
	c := NewCoordinator(st, map[ledger.Kind]ledger.Adapter{
		ledger.KindEthereum:    mem,
		ledger.KindHyperledger: mem,
	})
	return c, st, mem
}

func TestStoreVerifyRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator()

	rec, err := c.Store(ctx, testHash, ledger.KindEthereum)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rec.RecordHash != testHash || rec.TxRef == "" {
		t.Fatalf("unexpected record %+v", rec)
	}
	// Memory adapter returns no block ref, so the record starts pending.
	if rec.Status != StatusPending {
		t.Fatalf("expected pending, got %s", rec.Status)
	}

	v, err := c.Verify(ctx, testHash)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !v.Verified {
		t.Fatal("expected round-trip verification to pass")
	}
	if v.Record.TxRef != rec.TxRef {
		t.Fatalf("expected stored record in result, got %+v", v.Record)
	}
}

func TestStoreDuplicateHash(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator()

	if _, err := c.Store(ctx, testHash, ledger.KindEthereum); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	_, err := c.Store(ctx, testHash, ledger.KindHyperledger)
	if !errors.Is(err, ErrDuplicateHash) {
		t.Fatalf("expected ErrDuplicateHash, got %v", err)
	}
}

func TestStoreConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator()

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Store(ctx, testHash, ledger.KindEthereum)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, duplicates int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrDuplicateHash):
			duplicates++
		default:
			t.Fatalf("unexpected err: %v", err)
		}
	}
	if succeeded != 1 || duplicates != n-1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d duplicates", succeeded, duplicates)
	}
}

func TestStoreInvalidHash(t *testing.T) {
	c, _, _ := newTestCoordinator()
	for _, bad := range []string{"", "abc", testHash[:63], "ZZ" + testHash[2:]} {
		_, err := c.Store(context.Background(), bad, ledger.KindEthereum)
		if !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("hash %q: expected ErrInvalidHash, got %v", bad, err)
		}
	}
}

func TestStoreUnsupportedKindBeforeAdapterCall(t *testing.T) {
	st := newMemStore()
	c := NewCoordinator(st, map[ledger.Kind]ledger.Adapter{})
	_, err := c.Store(context.Background(), testHash, ledger.Kind("corda"))
	if !errors.Is(err, ErrUnsupportedLedger) {
		t.Fatalf("expected ErrUnsupportedLedger, got %v", err)
	}
	if len(st.records) != 0 {
		t.Fatal("no record may be written for an unsupported kind")
	}
}

func TestStoreSubmissionFailure(t *testing.T) {
	st := newMemStore()
	c := NewCoordinator(st, map[ledger.Kind]ledger.Adapter{
		ledger.KindEthereum: failingAdapter{},
	})
	_, err := c.Store(context.Background(), testHash, ledger.KindEthereum)
	if !errors.Is(err, ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got %v", err)
	}
	if len(st.records) != 0 {
		t.Fatal("failed submissions must not leave a record behind")
	}
}

func TestVerifyUnknownHash(t *testing.T) {
	c, _, _ := newTestCoordinator()
	_, err := c.Verify(context.Background(), testHash)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfirmPendingTransitions(t *testing.T) {
	ctx := context.Background()
	c, st, _ := newTestCoordinator()

	anchored, err := c.Store(ctx, testHash, ledger.KindHyperledger)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if anchored.Status != StatusPending {
		t.Fatalf("expected pending, got %s", anchored.Status)
	}

	// A pending record whose hash the ledger no longer answers for.
	orphan := Record{
		ID:         "led_orphan",
		RecordHash: "b" + testHash[1:],
		Kind:       ledger.KindHyperledger,
		TxRef:      "mem_gone",
		Status:     StatusPending,
	}
	if err := st.Insert(ctx, orphan); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	transitioned, err := c.ConfirmPending(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if transitioned != 2 {
		t.Fatalf("expected two transitions, got %d", transitioned)
	}

	confirmed, _ := st.GetByHash(ctx, testHash)
	if confirmed.Status != StatusConfirmed {
		t.Fatalf("submitted hash should confirm, got %s", confirmed.Status)
	}
	failed, _ := st.GetByHash(ctx, orphan.RecordHash)
	if failed.Status != StatusFailed {
		t.Fatalf("unknown hash should fail, got %s", failed.Status)
	}
}

func TestConfirmPendingLeavesRecordsOnAdapterError(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	c := NewCoordinator(st, map[ledger.Kind]ledger.Adapter{
		ledger.KindEthereum: failingAdapter{},
	})
	pending := Record{ID: "led_1", RecordHash: testHash, Kind: ledger.KindEthereum, TxRef: "0xabc", Status: StatusPending}
	if err := st.Insert(ctx, pending); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	transitioned, err := c.ConfirmPending(ctx)
	if err != nil || transitioned != 0 {
		t.Fatalf("expected no transitions on adapter error, got n=%d err=%v", transitioned, err)
	}
	rec, _ := st.GetByHash(ctx, testHash)
	if rec.Status != StatusPending {
		t.Fatalf("record must stay pending, got %s", rec.Status)
	}
}

func TestMismatchSurfacedNotReconciled(t *testing.T) {
	ctx := context.Background()
	c, st, _ := newTestCoordinator()

	// Confirmed in the store but never actually on the ledger.
	drifted := Record{ID: "led_1", RecordHash: testHash, Kind: ledger.KindEthereum, TxRef: "mem_x", Status: StatusConfirmed}
	if err := st.Insert(ctx, drifted); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	v, err := c.Verify(ctx, testHash)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if v.Verified {
		t.Fatal("ledger does not know the hash; verification must fail")
	}
	if v.Record.Status != StatusConfirmed {
		t.Fatalf("stored status must be surfaced untouched, got %s", v.Record.Status)
	}
	after, _ := st.GetByHash(ctx, testHash)
	if after.Status != StatusConfirmed {
		t.Fatal("verify must not rewrite the stored record")
	}
}

func TestLockHashReleases(t *testing.T) {
	c, _, _ := newTestCoordinator()
	for i := 0; i < 3; i++ {
		unlock := c.lockHash(testHash)
		unlock()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inflight) != 0 {
		t.Fatalf("expected inflight lock map to drain, got %d entries", len(c.inflight))
	}
}
