package ethereum

import (
	"context"
	"strconv"
	"testing"
)

const testHash = "a3f2b8c1d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a1"

func TestSubmitIncludesImmediately(t *testing.T) {
	ctx := context.Background()
	c, err := OpenInMemory(1337)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer c.Close()

	r, err := c.Submit(ctx, testHash)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if r.TxRef != "0x"+testHash[:40] {
		t.Fatalf("unexpected tx ref %s", r.TxRef)
	}
	if r.BlockRef != strconv.Itoa(baseHeight+1) {
		t.Fatalf("expected inclusion in block %d, got %q", baseHeight+1, r.BlockRef)
	}

	ok, err := c.Verify(ctx, testHash, r.TxRef)
	if err != nil || !ok {
		t.Fatalf("expected verification to pass, got ok=%v err=%v", ok, err)
	}
	ok, _ = c.Verify(ctx, testHash, "0xdeadbeef")
	if ok {
		t.Fatal("expected mismatched tx ref to fail")
	}
}

func TestVerifyUnknownHash(t *testing.T) {
	c, _ := OpenInMemory(1337)
	defer c.Close()
	ok, err := c.Verify(context.Background(), testHash, "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ok {
		t.Fatal("expected unknown hash to fail verification")
	}
}

func TestStatusHeightAdvances(t *testing.T) {
	ctx := context.Background()
	c, _ := OpenInMemory(1337)
	defer c.Close()

	before, _ := c.Status(ctx)
	if _, err := c.Submit(ctx, testHash); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	after, _ := c.Status(ctx)
	if !after.Connected || after.Network != networkLabel {
		t.Fatalf("unexpected status: %+v", after)
	}
	if after.Height != before.Height+1 {
		t.Fatalf("expected height to advance from %d, got %d", before.Height, after.Height)
	}
	if after.Extra["chain_id"] != "1337" {
		t.Fatalf("unexpected chain id %q", after.Extra["chain_id"])
	}
}
