package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get* lookups that find no matching record.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a uniqueness constraint (login name, order
// name) would be violated by Insert.
var ErrConflict = errors.New("store: conflict")

// UserStore is the only seam the core uses to reach user persistence.
// Implementations must be safe for concurrent use.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByName(ctx context.Context, login string) (*User, error)
	Insert(ctx context.Context, u *User) (int64, error)
	Update(ctx context.Context, u *User) error
	// IterateAll streams every live user in an implementation-defined
	// order suitable for a single ranking pass; fn returning an error
	// stops iteration early and the error propagates.
	IterateAll(ctx context.Context, fn func(*User) error) error
}

// OrderStore is the only seam the core uses to reach order persistence.
type OrderStore interface {
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByName(ctx context.Context, name string) (*Order, error)
	Insert(ctx context.Context, o *Order) (int64, error)
	Update(ctx context.Context, o *Order) error
	// MarkUnused flips the Unused flag rather than deleting the row
	// (spec.md §3: orders are never physically removed).
	MarkUnused(ctx context.Context, id int64) error
	IterateAll(ctx context.Context, fn func(*Order) error) error
}

// BanList answers whether a login name or source IP is currently banned.
// Kept separate from UserStore because ban decisions also gate
// not-yet-authenticated connections (host admission, spec.md §4.1).
type BanList interface {
	IsIPBanned(ctx context.Context, ip uint32) (bool, error)
	IsLoginBanned(ctx context.Context, login string) (bool, error)
}

// AuditLog is an append-only sink for security-relevant events.
type AuditLog interface {
	Record(ctx context.Context, e AuditEntry) error
}

// ScoredGameRecorder marks a game id as already scored, making the score
// application pipeline idempotent within a game id (spec.md §4.4 and §8).
type ScoredGameRecorder interface {
	// MarkScored returns true if this call was the one that first marked
	// the game id scored (i.e. the caller should apply score mutations);
	// it returns false if the game id was already marked, meaning the
	// mutation has already happened and must not be repeated.
	MarkScored(ctx context.Context, gameID int64) (firstTime bool, err error)
}
