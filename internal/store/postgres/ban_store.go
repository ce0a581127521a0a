package postgres

import (
	"context"
	"fmt"
	"strings"
)

// BanStore is the pgx-backed store.BanList implementation, consulted
// both by login (C2) and by the C1 host-admission check.
type BanStore struct {
	db *DB
}

func NewBanStore(db *DB) *BanStore {
	return &BanStore{db: db}
}

func (s *BanStore) IsIPBanned(ctx context.Context, ip uint32) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ip_bans WHERE ip = $1)`, ip).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check ip ban: %w", err)
	}
	return exists, nil
}

func (s *BanStore) IsLoginBanned(ctx context.Context, login string) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM login_bans WHERE login_lower = $1)`, strings.ToLower(login)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check login ban: %w", err)
	}
	return exists, nil
}

// BanIP and BanLogin are the admin-side writes; store.BanList itself is
// read-only by design (spec.md §4.2/§4.1 only ever query it).
func (s *BanStore) BanIP(ctx context.Context, ip uint32, reason string) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO ip_bans (ip, reason) VALUES ($1, $2)
		ON CONFLICT (ip) DO UPDATE SET reason = EXCLUDED.reason`, ip, reason)
	if err != nil {
		return fmt.Errorf("postgres: ban ip: %w", err)
	}
	return nil
}

func (s *BanStore) BanLogin(ctx context.Context, login, reason string) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO login_bans (login_lower, reason) VALUES ($1, $2)
		ON CONFLICT (login_lower) DO UPDATE SET reason = EXCLUDED.reason`, strings.ToLower(login), reason)
	if err != nil {
		return fmt.Errorf("postgres: ban login: %w", err)
	}
	return nil
}
