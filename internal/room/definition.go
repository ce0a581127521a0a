// Package room implements C3: the static room-template registry, its
// caste/game-type admission gate, per-room membership sets, and chat
// routing (spec.md §4.3). Grounded in
// original_source/services/room_list.py for the template shape and file
// format, and on the teacher's registry style (internal/world/zone.go)
// for how a fixed set of server-defined "places" holds a live member set
// under one mutex per place.
package room

import (
	"fmt"
	"strings"
)

// GameTypeFlags is the bitmask of client game families a room will admit,
// mirrored from original_source/services/room_list.py's GameTypeFlags.
type GameTypeFlags uint8

const (
	FlagMyth1 GameTypeFlags = 1 << iota
	FlagMyth2
	FlagMyth3
	FlagMarathon
	FlagJChat
)

// roomTypeNames is the fixed name->flag table from room_list.py's
// ROOM_TYPES, in lookup order. "MYTH" is a special alias that expands to
// Myth2 only, preserving the original's compatibility shim for old Myth2
// 1.3.x clients that self-report as plain "MYTH".
var roomTypeNames = []struct {
	name  string
	flags GameTypeFlags
}{
	{"MYTH", FlagMyth2},
	{"MYTH1", FlagMyth1},
	{"MYTH2", FlagMyth2},
	{"MYTH3", FlagMyth3},
	{"MARATHON", FlagMarathon},
	{"JCHAT", FlagJChat},
}

// ParseGameTypeNames converts a comma-separated name list ("MYTH1,MYTH2")
// into a flag mask.
func ParseGameTypeNames(nameList string) GameTypeFlags {
	var flags GameTypeFlags
	for _, raw := range strings.Split(nameList, ",") {
		name := strings.ToUpper(strings.TrimSpace(raw))
		for _, rt := range roomTypeNames {
			if rt.name == name {
				flags |= rt.flags
				break
			}
		}
	}
	return flags
}

// NameListFromFlags is the inverse of ParseGameTypeNames, used when
// serializing a Definition back out (room.SaveDefinitions).
func NameListFromFlags(flags GameTypeFlags) string {
	var names []string
	for _, rt := range roomTypeNames[1:] { // skip the "MYTH" alias on the way out
		if flags&rt.flags == rt.flags {
			names = append(names, rt.name)
		}
	}
	if len(names) == 0 {
		return "UNKNOWN"
	}
	return strings.Join(names, ",")
}

// Definition is a static room template: spec.md §3's Room fields minus the
// dynamic member/game sets.
type Definition struct {
	RoomID         int32
	SupportedGames GameTypeFlags
	Ranked         bool
	CountryCode    int
	MinCaste       int
	MaxCaste       int
	Tournament     bool
	MaxMembers     int // supplemented: original_source carries no cap per room; spec.md §3 requires one, default below
}

// DefaultMaxMembers applies when a loader doesn't specify a cap (the
// flat-file format predates per-room capacity; spec.md §3 requires
// "membership count <= configured maximum").
const DefaultMaxMembers = 200

func (d Definition) AdmitsGameType(clientFlags GameTypeFlags) bool {
	return clientFlags&d.SupportedGames == clientFlags && clientFlags != 0
}

func (d Definition) AdmitsCaste(caste int) bool {
	return caste >= d.MinCaste && caste <= d.MaxCaste
}

func (d Definition) String() string {
	return fmt.Sprintf("room#%d(games=%02x ranked=%v caste=[%d,%d])",
		d.RoomID, d.SupportedGames, d.Ranked, d.MinCaste, d.MaxCaste)
}
