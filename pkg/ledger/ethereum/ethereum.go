// Package ethereum is the Ethereum-flavored ledger adapter. It simulates
// a MedicalRecords contract: submitted hashes are persisted in a local
// leveldb so verification answers survive restarts, and every submission
// is included in the next simulated block immediately.
package ethereum

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"carevault/pkg/ledger"
)

const (
	networkLabel = "Ethereum (Demo)"
	baseHeight   = 1234567

	hashPrefix = "hash:"
	heightKey  = "meta:height"
)

type Client struct {
	ChainID int

	mu sync.Mutex
	db *leveldb.DB
}

// Open opens (or creates) the simulated chain state at path.
func Open(path string, chainID int) (*Client, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("ethereum: open chain state: %w", err)
	}
	return &Client{ChainID: chainID, db: db}, nil
}

// OpenInMemory backs the client with throwaway storage, for tests.
func OpenInMemory(chainID int) (*Client, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Client{ChainID: chainID, db: db}, nil
}

func (c *Client) Close() error { return c.db.Close() }

// TxRef derives the deterministic transaction hash for a record hash,
// mirroring the demo contract's behavior.
func TxRef(hash string) string { return "0x" + hash[:40] }

func (c *Client) height() uint64 {
	v, err := c.db.Get([]byte(heightKey), nil)
	if err != nil {
		return baseHeight
	}
	h, err := strconv.ParseUint(string(v), 10, 64)
	if err != nil {
		return baseHeight
	}
	return h
}

func (c *Client) Submit(ctx context.Context, hash string) (ledger.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx := TxRef(hash)
	next := c.height() + 1
	batch := new(leveldb.Batch)
	batch.Put([]byte(hashPrefix+hash), []byte(tx))
	batch.Put([]byte(heightKey), []byte(strconv.FormatUint(next, 10)))
	if err := c.db.Write(batch, nil); err != nil {
		return ledger.Receipt{}, fmt.Errorf("ethereum: submit: %w", err)
	}
	return ledger.Receipt{TxRef: tx, BlockRef: strconv.FormatUint(next, 10)}, nil
}

func (c *Client) Verify(ctx context.Context, hash, txRef string) (bool, error) {
	stored, err := c.db.Get([]byte(hashPrefix+hash), nil)
	if err == leveldb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ethereum: verify: %w", err)
	}
	return txRef == "" || string(stored) == txRef, nil
}

func (c *Client) Status(ctx context.Context) (ledger.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ledger.Status{
		Connected: true,
		Network:   networkLabel,
		Height:    c.height(),
		Extra:     map[string]string{"chain_id": strconv.Itoa(c.ChainID)},
	}, nil
}
