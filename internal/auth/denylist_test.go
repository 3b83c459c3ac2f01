package auth

import (
	"context"
	"testing"
	"time"
)

func TestMemoryDenyListPurge(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDenyList()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = d.Revoke(ctx, RevokedToken{TokenID: "old", ExpiresAt: now.Add(-time.Minute)})
	_ = d.Revoke(ctx, RevokedToken{TokenID: "current", ExpiresAt: now.Add(time.Minute)})

	removed, err := d.Purge(ctx, now)
	if err != nil {
		t.Fatalf("Purge() returned error: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed: got %d, want 1", removed)
	}

	if revoked, _ := d.IsRevoked(ctx, "old"); revoked {
		t.Error("expired entry should have been purged")
	}
	if revoked, _ := d.IsRevoked(ctx, "current"); !revoked {
		t.Error("unexpired entry should still be revoked")
	}
}

func TestMemoryDenyListRequiresTokenID(t *testing.T) {
	if err := NewMemoryDenyList().Revoke(context.Background(), RevokedToken{}); err == nil {
		t.Error("expected an error for an empty token id")
	}
}

func TestRunPurgeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		RunPurge(ctx, NewMemoryDenyList(), time.Millisecond, nil)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPurge did not return after cancel")
	}
}
