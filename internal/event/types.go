package event

import "time"

// GameSummary is the projection of a game that C5's search index and room
// membership deltas carry; it deliberately excludes per-player detail that
// only the owning game.Coordinator needs.
type GameSummary struct {
	GameID      int64
	RoomID      int32
	HostUserID  int64
	Name        string
	GameType    int
	MapName     string
	TeamGame    bool
	MaxPlayers  int
	PlayerCount int
	Private     bool
	State       string
	UpdatedAt   time.Time
}

// GameAdded fires the first time a game becomes visible (WAITING), per
// spec.md §4.4's "first add_player -> WAITING (game advertised)".
type GameAdded struct{ Game GameSummary }

// GameChanged fires on any subsequent mutation of an advertised game
// (player join/leave, settings change, state transition) while it remains
// visible to search.
type GameChanged struct{ Game GameSummary }

// GameRemoved fires when a game stops being advertised: COMPLETED or
// ABORTED. The later GC sweep deletes the game without publishing it again.
type GameRemoved struct{ GameID int64 }

// RoomJoined / RoomLeft drive the per-room membership delta broadcasts of
// spec.md §4.3.
type RoomJoined struct {
	RoomID int32
	UserID int64
}

type RoomLeft struct {
	RoomID int32
	UserID int64
}

// PlayerLoggedIn / PlayerDisconnected let C3/C4 clean up membership and
// hosted games when a session ends, without C1 importing either package
// directly.
type PlayerLoggedIn struct {
	UserID int64
	ConnID uint64
}

type PlayerDisconnected struct {
	UserID int64
	ConnID uint64
}
