// Package ledger defines the capability surface a distributed-ledger
// backend must expose to the rest of the system. The integrity
// coordinator is written against Adapter only; concrete network behavior
// lives in the per-chain subpackages.
package ledger

import (
	"context"
	"fmt"
)

// Kind selects a concrete ledger backend.
type Kind string

const (
	KindEthereum    Kind = "ethereum"
	KindHyperledger Kind = "hyperledger"
)

// ParseKind validates a caller-supplied backend name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindEthereum, KindHyperledger:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unsupported ledger kind %q", s)
}

// Receipt is the result of a successful submission. BlockRef is empty
// when the transaction has not been included in a block yet.
type Receipt struct {
	TxRef    string
	BlockRef string
}

// Status describes a backend's connection state.
type Status struct {
	Connected bool              `json:"connected"`
	Network   string            `json:"network"`
	Height    uint64            `json:"height"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Adapter is the three-operation capability every backend implements.
type Adapter interface {
	// Submit records the hash on the ledger and returns the transaction
	// reference, plus a block reference when inclusion is immediate.
	Submit(ctx context.Context, hash string) (Receipt, error)

	// Verify reports whether the hash is present under the given
	// transaction reference.
	Verify(ctx context.Context, hash, txRef string) (bool, error)

	// Status reports connectivity and chain height.
	Status(ctx context.Context) (Status, error)
}
