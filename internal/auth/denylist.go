package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/information-sharing-networks/evote-gateway/internal/database"
	"github.com/jackc/pgx/v5/pgtype"
)

// RevokedToken is a deny list entry. Entries can be dropped once ExpiresAt has passed since
// the token would be rejected on expiry anyway.
type RevokedToken struct {
	TokenID   string
	Subject   string
	ExpiresAt time.Time
}

// DenyList records revoked token ids.
type DenyList interface {
	Revoke(ctx context.Context, token RevokedToken) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// Purge removes entries that expired before the given time and returns the number removed
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// MemoryDenyList keeps revoked token ids in process memory.
// Revocations are lost on restart and are not shared between replicas.
type MemoryDenyList struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

func NewMemoryDenyList() *MemoryDenyList {
	return &MemoryDenyList{entries: make(map[string]time.Time)}
}

func (m *MemoryDenyList) Revoke(_ context.Context, token RevokedToken) error {
	if token.TokenID == "" {
		return fmt.Errorf("token id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[token.TokenID] = token.ExpiresAt
	return nil
}

func (m *MemoryDenyList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[tokenID]
	return ok, nil
}

func (m *MemoryDenyList) Purge(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, exp := range m.entries {
		if exp.Before(before) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of entries (used in tests)
func (m *MemoryDenyList) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// DatabaseDenyList stores revoked token ids in the revoked_tokens table so that
// revocations survive restarts and are shared between gateway replicas.
type DatabaseDenyList struct {
	queries *database.Queries
}

func NewDatabaseDenyList(queries *database.Queries) *DatabaseDenyList {
	return &DatabaseDenyList{queries: queries}
}

func (d *DatabaseDenyList) Revoke(ctx context.Context, token RevokedToken) error {
	err := d.queries.RevokeToken(ctx, database.RevokeTokenParams{
		TokenID:   token.TokenID,
		Subject:   token.Subject,
		ExpiresAt: pgtype.Timestamptz{Time: token.ExpiresAt, Valid: true},
	})
	if err != nil {
		return fmt.Errorf("failed to record revoked token: %w", err)
	}
	return nil
}

func (d *DatabaseDenyList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	revoked, err := d.queries.IsTokenRevoked(ctx, tokenID)
	if err != nil {
		return false, fmt.Errorf("failed to check revoked tokens: %w", err)
	}
	return revoked, nil
}

func (d *DatabaseDenyList) Purge(ctx context.Context, before time.Time) (int64, error) {
	n, err := d.queries.DeleteExpiredRevocations(ctx, pgtype.Timestamptz{Time: before, Valid: true})
	if err != nil {
		return 0, fmt.Errorf("failed to purge revoked tokens: %w", err)
	}
	return n, nil
}

// RunPurge removes expired deny list entries every interval until ctx is cancelled.
func RunPurge(ctx context.Context, d DenyList, interval time.Duration, onPurge func(removed int64, err error)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := d.Purge(ctx, now)
			if onPurge != nil {
				onPurge(n, err)
			}
		}
	}
}
