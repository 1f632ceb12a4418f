// Package fabric is the Hyperledger-flavored ledger adapter. The
// simulated network commits asynchronously: Submit returns a transaction
// ID with no block reference, so integrity records start out pending and
// are confirmed by a later sweep once Verify sees the hash on-channel.
package fabric

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"carevault/pkg/ledger"
)

const (
	networkLabel   = "Hyperledger Fabric (Demo)"
	defaultChannel = "healthchannel"

	hashPrefix = "hash:"
)

type Client struct {
	Channel string

	mu sync.Mutex
	db *leveldb.DB
}

func Open(path, channel string) (*Client, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("fabric: open channel state: %w", err)
	}
	return newClient(db, channel), nil
}

// OpenInMemory backs the client with throwaway storage, for tests.
func OpenInMemory(channel string) (*Client, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return newClient(db, channel), nil
}

func newClient(db *leveldb.DB, channel string) *Client {
	if channel == "" {
		channel = defaultChannel
	}
	return &Client{Channel: channel, db: db}
}

func (c *Client) Close() error { return c.db.Close() }

// TxID derives the deterministic transaction ID for a record hash.
func TxID(hash string) string {
	sum := sha256.Sum256([]byte("tx_" + hash))
	return hex.EncodeToString(sum[:])
}

func (c *Client) Submit(ctx context.Context, hash string) (ledger.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx := TxID(hash)
	if err := c.db.Put([]byte(hashPrefix+hash), []byte(tx), nil); err != nil {
		return ledger.Receipt{}, fmt.Errorf("fabric: submit: %w", err)
	}
	// No block reference: commitment is reported by a later Verify.
	return ledger.Receipt{TxRef: tx}, nil
}

func (c *Client) Verify(ctx context.Context, hash, txRef string) (bool, error) {
	stored, err := c.db.Get([]byte(hashPrefix+hash), nil)
	if err == leveldb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fabric: verify: %w", err)
	}
	return txRef == "" || string(stored) == txRef, nil
}

func (c *Client) Status(ctx context.Context) (ledger.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var committed uint64
	iter := c.db.NewIterator(util.BytesPrefix([]byte(hashPrefix)), nil)
	for iter.Next() {
		committed++
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return ledger.Status{}, fmt.Errorf("fabric: status: %w", err)
	}
	return ledger.Status{
		Connected: true,
		Network:   networkLabel,
		Height:    committed,
		Extra:     map[string]string{"channel": c.Channel},
	}, nil
}
