package fabric

import (
	"context"
	"testing"
)

const testHash = "a3f2b8c1d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a1"

func TestSubmitStartsUncommitted(t *testing.T) {
	ctx := context.Background()
	c, err := OpenInMemory("")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer c.Close()

	r, err := c.Submit(ctx, testHash)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if r.TxRef != TxID(testHash) {
		t.Fatalf("unexpected tx id %s", r.TxRef)
	}
	if r.BlockRef != "" {
		t.Fatalf("expected no block ref at submit time, got %q", r.BlockRef)
	}

	ok, err := c.Verify(ctx, testHash, r.TxRef)
	if err != nil || !ok {
		t.Fatalf("expected committed hash to verify, got ok=%v err=%v", ok, err)
	}
}

func TestStatusCountsCommitted(t *testing.T) {
	ctx := context.Background()
	c, _ := OpenInMemory("trials")
	defer c.Close()

	st, _ := c.Status(ctx)
	if !st.Connected || st.Network != networkLabel || st.Height != 0 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if st.Extra["channel"] != "trials" {
		t.Fatalf("unexpected channel %q", st.Extra["channel"])
	}

	if _, err := c.Submit(ctx, testHash); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	st, _ = c.Status(ctx)
	if st.Height != 1 {
		t.Fatalf("expected one committed hash, got %d", st.Height)
	}
}

func TestDefaultChannel(t *testing.T) {
	c, _ := OpenInMemory("")
	defer c.Close()
	if c.Channel != defaultChannel {
		t.Fatalf("expected default channel, got %q", c.Channel)
	}
}
