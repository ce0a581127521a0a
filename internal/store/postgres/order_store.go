package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/metaserver/metaserver/internal/store"
)

// OrderStore is the pgx-backed store.OrderStore implementation.
type OrderStore struct {
	db *DB
}

func NewOrderStore(db *DB) *OrderStore {
	return &OrderStore{db: db}
}

const orderColumns = `
	id, name, leader_user_id, founded_at, contact_info, member_user_ids,
	maintenance_password_hash, member_password_hash,
	ranked_games_played, ranked_wins, ranked_losses, ranked_points,
	unranked_games_played, unranked_wins, unranked_losses, unranked_points,
	unused, below_minimum_since
`

func (s *OrderStore) GetByID(ctx context.Context, id int64) (*store.Order, error) {
	row := s.db.Pool.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	return scanOrder(row)
}

func (s *OrderStore) GetByName(ctx context.Context, name string) (*store.Order, error) {
	row := s.db.Pool.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE name = $1", name)
	return scanOrder(row)
}

func (s *OrderStore) Insert(ctx context.Context, o *store.Order) (int64, error) {
	var id int64
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO orders (
			name, leader_user_id, founded_at, contact_info, member_user_ids,
			maintenance_password_hash, member_password_hash,
			ranked_games_played, ranked_wins, ranked_losses, ranked_points,
			unranked_games_played, unranked_wins, unranked_losses, unranked_points,
			unused, below_minimum_since
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id`,
		o.Name, o.LeaderUserID, o.FoundedAt, o.ContactInfo, o.MemberUserIDs,
		o.MaintenancePasswordHash, o.MemberPasswordHash,
		o.RankedScore.GamesPlayed, o.RankedScore.Wins, o.RankedScore.Losses, o.RankedScore.Points,
		o.UnrankedScore.GamesPlayed, o.UnrankedScore.Wins, o.UnrankedScore.Losses, o.UnrankedScore.Points,
		o.Unused, nullableTime(o.BelowMinimumSince),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrConflict
		}
		return 0, fmt.Errorf("postgres: insert order: %w", err)
	}
	return id, nil
}

func (s *OrderStore) Update(ctx context.Context, o *store.Order) error {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE orders SET
			name = $2, leader_user_id = $3, founded_at = $4, contact_info = $5, member_user_ids = $6,
			maintenance_password_hash = $7, member_password_hash = $8,
			ranked_games_played = $9, ranked_wins = $10, ranked_losses = $11, ranked_points = $12,
			unranked_games_played = $13, unranked_wins = $14, unranked_losses = $15, unranked_points = $16,
			unused = $17, below_minimum_since = $18
		WHERE id = $1`,
		o.ID, o.Name, o.LeaderUserID, o.FoundedAt, o.ContactInfo, o.MemberUserIDs,
		o.MaintenancePasswordHash, o.MemberPasswordHash,
		o.RankedScore.GamesPlayed, o.RankedScore.Wins, o.RankedScore.Losses, o.RankedScore.Points,
		o.UnrankedScore.GamesPlayed, o.UnrankedScore.Wins, o.UnrankedScore.Losses, o.UnrankedScore.Points,
		o.Unused, nullableTime(o.BelowMinimumSince),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("postgres: update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MarkUnused flips the unused flag rather than deleting the row,
// spec.md §3: orders are never physically removed.
func (s *OrderStore) MarkUnused(ctx context.Context, id int64) error {
	tag, err := s.db.Pool.Exec(ctx, `UPDATE orders SET unused = TRUE, below_minimum_since = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: mark order unused: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *OrderStore) IterateAll(ctx context.Context, fn func(*store.Order) error) error {
	const pageSize = 1000
	var lastID int64
	for {
		rows, err := s.db.Pool.Query(ctx, "SELECT "+orderColumns+` FROM orders WHERE id > $1 ORDER BY id LIMIT $2`, lastID, pageSize)
		if err != nil {
			return fmt.Errorf("postgres: iterate orders: %w", err)
		}

		n := 0
		for rows.Next() {
			o, err := scanOrderRows(rows)
			if err != nil {
				rows.Close()
				return err
			}
			if err := fn(o); err != nil {
				rows.Close()
				return err
			}
			lastID = o.ID
			n++
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("postgres: iterate orders: %w", err)
		}
		if n < pageSize {
			return nil
		}
	}
}

func scanOrder(row pgx.Row) (*store.Order, error) {
	return scanOrderRows(row)
}

func scanOrderRows(row rowScanner) (*store.Order, error) {
	var o store.Order
	var belowMinSince *time.Time

	err := row.Scan(
		&o.ID, &o.Name, &o.LeaderUserID, &o.FoundedAt, &o.ContactInfo, &o.MemberUserIDs,
		&o.MaintenancePasswordHash, &o.MemberPasswordHash,
		&o.RankedScore.GamesPlayed, &o.RankedScore.Wins, &o.RankedScore.Losses, &o.RankedScore.Points,
		&o.UnrankedScore.GamesPlayed, &o.UnrankedScore.Wins, &o.UnrankedScore.Losses, &o.UnrankedScore.Points,
		&o.Unused, &belowMinSince,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: scan order: %w", err)
	}
	if belowMinSince != nil {
		o.BelowMinimumSince = *belowMinSince
	}
	return &o, nil
}
