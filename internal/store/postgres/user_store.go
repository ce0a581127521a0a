package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/metaserver/metaserver/internal/store"
)

// UserStore is the pgx-backed store.UserStore implementation.
type UserStore struct {
	db *DB
}

func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `
	id, login, password_hash, salt, scheme, display_name, flags,
	ranked_games_played, ranked_wins, ranked_losses, ranked_points, ranked_highest_points, ranked_damage_inflicted, ranked_damage_received,
	unranked_games_played, unranked_wins, unranked_losses, unranked_points, unranked_highest_points, unranked_damage_inflicted, unranked_damage_received,
	score_by_game_type, caste, order_id, ban_until, last_login_at, last_login_ip, buddy_user_ids
`

func (s *UserStore) GetByID(ctx context.Context, id int64) (*store.User, error) {
	row := s.db.Pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

func (s *UserStore) GetByName(ctx context.Context, login string) (*store.User, error) {
	row := s.db.Pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE login_lower = $1", strings.ToLower(login))
	return scanUser(row)
}

func (s *UserStore) Insert(ctx context.Context, u *store.User) (int64, error) {
	scoreJSON, err := marshalScoreByGameType(u.ScoreByGameType)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.Pool.QueryRow(ctx, `
		INSERT INTO users (
			login, login_lower, password_hash, salt, scheme, display_name, flags,
			ranked_games_played, ranked_wins, ranked_losses, ranked_points, ranked_highest_points, ranked_damage_inflicted, ranked_damage_received,
			unranked_games_played, unranked_wins, unranked_losses, unranked_points, unranked_highest_points, unranked_damage_inflicted, unranked_damage_received,
			score_by_game_type, caste, order_id, ban_until, last_login_at, last_login_ip, buddy_user_ids
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21,
			$22, $23, $24, $25, $26, $27, $28
		) RETURNING id`,
		u.Login, strings.ToLower(u.Login), u.PasswordHash, u.Salt, u.Scheme, u.DisplayName, u.Flags,
		u.RankedScore.GamesPlayed, u.RankedScore.Wins, u.RankedScore.Losses, u.RankedScore.Points, u.RankedScore.HighestPoints, u.RankedScore.DamageInflicted, u.RankedScore.DamageReceived,
		u.UnrankedScore.GamesPlayed, u.UnrankedScore.Wins, u.UnrankedScore.Losses, u.UnrankedScore.Points, u.UnrankedScore.HighestPoints, u.UnrankedScore.DamageInflicted, u.UnrankedScore.DamageReceived,
		scoreJSON, u.Caste, nullableID(u.OrderID), nullableTime(u.BanUntil), nullableTime(u.LastLoginAt), u.LastLoginIP, u.BuddyUserIDs,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrConflict
		}
		return 0, fmt.Errorf("postgres: insert user: %w", err)
	}
	return id, nil
}

func (s *UserStore) Update(ctx context.Context, u *store.User) error {
	scoreJSON, err := marshalScoreByGameType(u.ScoreByGameType)
	if err != nil {
		return err
	}

	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE users SET
			login = $2, login_lower = $3, password_hash = $4, salt = $5, scheme = $6, display_name = $7, flags = $8,
			ranked_games_played = $9, ranked_wins = $10, ranked_losses = $11, ranked_points = $12, ranked_highest_points = $13, ranked_damage_inflicted = $14, ranked_damage_received = $15,
			unranked_games_played = $16, unranked_wins = $17, unranked_losses = $18, unranked_points = $19, unranked_highest_points = $20, unranked_damage_inflicted = $21, unranked_damage_received = $22,
			score_by_game_type = $23, caste = $24, order_id = $25, ban_until = $26, last_login_at = $27, last_login_ip = $28, buddy_user_ids = $29
		WHERE id = $1`,
		u.ID, u.Login, strings.ToLower(u.Login), u.PasswordHash, u.Salt, u.Scheme, u.DisplayName, u.Flags,
		u.RankedScore.GamesPlayed, u.RankedScore.Wins, u.RankedScore.Losses, u.RankedScore.Points, u.RankedScore.HighestPoints, u.RankedScore.DamageInflicted, u.RankedScore.DamageReceived,
		u.UnrankedScore.GamesPlayed, u.UnrankedScore.Wins, u.UnrankedScore.Losses, u.UnrankedScore.Points, u.UnrankedScore.HighestPoints, u.UnrankedScore.DamageInflicted, u.UnrankedScore.DamageReceived,
		scoreJSON, u.Caste, nullableID(u.OrderID), nullableTime(u.BanUntil), nullableTime(u.LastLoginAt), u.LastLoginIP, u.BuddyUserIDs,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("postgres: update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// IterateAll streams every user ordered by id, in pages, so a full
// ranking pass (internal/ranking) never holds the whole table in one
// round trip's result set.
func (s *UserStore) IterateAll(ctx context.Context, fn func(*store.User) error) error {
	const pageSize = 1000
	var lastID int64
	for {
		rows, err := s.db.Pool.Query(ctx, "SELECT "+userColumns+` FROM users WHERE id > $1 ORDER BY id LIMIT $2`, lastID, pageSize)
		if err != nil {
			return fmt.Errorf("postgres: iterate users: %w", err)
		}

		n := 0
		for rows.Next() {
			u, err := scanUserRows(rows)
			if err != nil {
				rows.Close()
				return err
			}
			if err := fn(u); err != nil {
				rows.Close()
				return err
			}
			lastID = u.ID
			n++
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("postgres: iterate users: %w", err)
		}
		if n < pageSize {
			return nil
		}
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row pgx.Row) (*store.User, error) {
	return scanUserRows(row)
}

func scanUserRows(row rowScanner) (*store.User, error) {
	var u store.User
	var orderID *int64
	var banUntil, lastLoginAt *time.Time
	var scoreJSON []byte

	err := row.Scan(
		&u.ID, &u.Login, &u.PasswordHash, &u.Salt, &u.Scheme, &u.DisplayName, &u.Flags,
		&u.RankedScore.GamesPlayed, &u.RankedScore.Wins, &u.RankedScore.Losses, &u.RankedScore.Points, &u.RankedScore.HighestPoints, &u.RankedScore.DamageInflicted, &u.RankedScore.DamageReceived,
		&u.UnrankedScore.GamesPlayed, &u.UnrankedScore.Wins, &u.UnrankedScore.Losses, &u.UnrankedScore.Points, &u.UnrankedScore.HighestPoints, &u.UnrankedScore.DamageInflicted, &u.UnrankedScore.DamageReceived,
		&scoreJSON, &u.Caste, &orderID, &banUntil, &lastLoginAt, &u.LastLoginIP, &u.BuddyUserIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: scan user: %w", err)
	}

	if orderID != nil {
		u.OrderID = *orderID
	}
	if banUntil != nil {
		u.BanUntil = *banUntil
	}
	if lastLoginAt != nil {
		u.LastLoginAt = *lastLoginAt
	}
	u.ScoreByGameType, err = unmarshalScoreByGameType(scoreJSON)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func marshalScoreByGameType(m map[int]store.ScoreRow) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	strKeyed := make(map[string]store.ScoreRow, len(m))
	for k, v := range m {
		strKeyed[strconv.Itoa(k)] = v
	}
	return json.Marshal(strKeyed)
}

func unmarshalScoreByGameType(data []byte) (map[int]store.ScoreRow, error) {
	if len(data) == 0 {
		return map[int]store.ScoreRow{}, nil
	}
	var strKeyed map[string]store.ScoreRow
	if err := json.Unmarshal(data, &strKeyed); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal score_by_game_type: %w", err)
	}
	out := make(map[int]store.ScoreRow, len(strKeyed))
	for k, v := range strKeyed {
		gt, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[gt] = v
	}
	return out, nil
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
