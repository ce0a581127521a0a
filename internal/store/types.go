// Package store defines the abstract persistence seam the core depends on.
// Concrete backends (file-based, relational, or otherwise) live outside
// this package and implement these interfaces; store/postgres ships one
// reference implementation so the repository is runnable and testable.
package store

import "time"

// PasswordScheme tags which verification algorithm a user's stored hash
// was produced with.
type PasswordScheme byte

const (
	SchemePlaintext PasswordScheme = iota // test only, logs a warning
	SchemeXORSalt                         // legacy, read-only
	SchemeMD5Salt                         // legacy
	SchemeBcrypt                          // default for new hashes
	SchemeArgon2                          // opt-in strong
)

// ScoreRow is the canonical per-scope score record (spec.md §3/§9: the
// BungieNetPlayerScoreDatum shape). One exists per user for the overall
// ranked row, the overall unranked row, and per game type.
type ScoreRow struct {
	GamesPlayed     int64
	Wins            int64
	Losses          int64
	Points          int64 // signed; floor is applied only at display time
	HighestPoints   int64
	DamageInflicted int64
	DamageReceived  int64
}

// Flags bitmask on a User.
type Flags uint8

const (
	FlagAdmin Flags = 1 << iota
	FlagEmployee
	FlagBanned
	FlagKiosk
)

// User is the persistent account record described in spec.md §3.
type User struct {
	ID           int64
	Login        string // unique, case-insensitive
	PasswordHash string
	Salt         string
	Scheme       PasswordScheme
	DisplayName  string
	Flags        Flags

	RankedScore     ScoreRow
	UnrankedScore   ScoreRow
	ScoreByGameType map[int]ScoreRow // keyed by game type id

	Caste        int // 0..16, see ranking package for the enumeration
	OrderID      int64
	BanUntil     time.Time
	LastLoginAt  time.Time
	LastLoginIP  uint32
	BuddyUserIDs []int64 // bounded set
}

func (u *User) HasFlag(f Flags) bool { return u.Flags&f != 0 }

func (u *User) Banned(now time.Time) bool {
	if u.HasFlag(FlagBanned) {
		return true
	}
	return !u.BanUntil.IsZero() && now.Before(u.BanUntil)
}

// Order is the clan/team entity described in spec.md §3.
type Order struct {
	ID                int64
	Name              string // unique
	LeaderUserID      int64
	FoundedAt         time.Time
	ContactInfo       string
	MemberUserIDs     []int64
	MaintenancePasswordHash string
	MemberPasswordHash     string

	RankedScore   ScoreRow
	UnrankedScore ScoreRow

	// Unused marks the order as no longer active; orders are never
	// physically removed (spec.md §3).
	Unused               bool
	BelowMinimumSince    time.Time
}

// AuthTokenRecord is a persisted (or cached) view of a minted token; the
// wire layout in spec.md §6 is what actually crosses the network.
// auth.TokenRegistry keeps its own in-memory entries and does not use
// this type.
type AuthTokenRecord struct {
	Token      [32]byte
	UserID     int64
	ClientIP   uint32
	Expiration time.Time
}

// AuditEntry is a single record in the append-only audit log (logins,
// bans, password changes, order leadership transfers, ...).
type AuditEntry struct {
	At     time.Time
	Actor  int64
	Action string
	Detail string
}
