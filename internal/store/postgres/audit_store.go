package postgres

import (
	"context"
	"fmt"

	"github.com/metaserver/metaserver/internal/store"
)

// AuditStore is the pgx-backed store.AuditLog implementation: an
// append-only sink, never updated or deleted from by the core.
type AuditStore struct {
	db *DB
}

func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Record(ctx context.Context, e store.AuditEntry) error {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO audit_log (at, actor, action, detail) VALUES ($1, $2, $3, $4)`,
		e.At, e.Actor, e.Action, e.Detail,
	)
	if err != nil {
		return fmt.Errorf("postgres: record audit entry: %w", err)
	}
	return nil
}

// ScoredGameStore is the pgx-backed store.ScoredGameRecorder
// implementation: a row's presence marks that game id as already
// scored, making the C4 score-application pipeline idempotent across
// process restarts, not just within one.
type ScoredGameStore struct {
	db *DB
}

func NewScoredGameStore(db *DB) *ScoredGameStore {
	return &ScoredGameStore{db: db}
}

func (s *ScoredGameStore) MarkScored(ctx context.Context, gameID int64) (bool, error) {
	tag, err := s.db.Pool.Exec(ctx,
		`INSERT INTO scored_games (game_id) VALUES ($1) ON CONFLICT (game_id) DO NOTHING`, gameID)
	if err != nil {
		return false, fmt.Errorf("postgres: mark game scored: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
