package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Memory is the demo adapter: transaction references are derived from the
// hash so submissions are deterministic, and Verify answers exactly what
// was submitted. Used in tests and anywhere a chain stand-in is enough.
type Memory struct {
	Network string

	mu        sync.Mutex
	submitted map[string]string // hash -> tx ref
	height    uint64
}

func NewMemory(network string) *Memory {
	if network == "" {
		network = "In-Memory (Demo)"
	}
	return &Memory{Network: network, submitted: make(map[string]string)}
}

func memoryTxRef(hash string) string {
	sum := sha256.Sum256([]byte("memtx_" + hash))
	return "mem_" + hex.EncodeToString(sum[:16])
}

func (m *Memory) Submit(ctx context.Context, hash string) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := memoryTxRef(hash)
	m.submitted[hash] = tx
	m.height++
	return Receipt{TxRef: tx}, nil
}

func (m *Memory) Verify(ctx context.Context, hash, txRef string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.submitted[hash]
	if !ok {
		return false, nil
	}
	return txRef == "" || tx == txRef, nil
}

func (m *Memory) Status(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{Connected: true, Network: m.Network, Height: m.height}, nil
}
