// Package search implements C5's live game-search index: a multi-predicate
// query surface over currently-advertised games, kept eventually
// consistent with C4 by consuming GameAdded/GameChanged/GameRemoved events
// in receipt order (spec.md §4.5). Grounded in the teacher's single-mutex
// index style (internal/world's spatial lookup tables) generalized from
// spatial keys to room ids.
package search

import (
	"strings"
	"sync"
	"time"

	"github.com/metaserver/metaserver/internal/event"
)

// MaxResults caps a single query's response (spec.md §4.5: "capped at 5
// matches per request").
const MaxResults = 5

// Query is the predicate set a client may filter on (spec.md §4.5).
// Zero-value fields are wildcards.
type Query struct {
	RoomID          int32
	GameType        int
	NameSubstring   string
	MapSubstring    string
	TeamGame        *bool
	Private         *bool
}

// Index is the single-mutex, event-driven advertised-game directory.
type Index struct {
	mu      sync.Mutex
	byRoom  map[int32]map[int64]event.GameSummary
	recency []int64 // game ids, most recent first; used to order query results
}

func NewIndex() *Index {
	return &Index{byRoom: make(map[int32]map[int64]event.GameSummary)}
}

// Subscribe wires the index to a Coordinator's event streams; call once at
// startup.
func (idx *Index) Subscribe(
	onAdded func(func(event.GameAdded)),
	onChanged func(func(event.GameChanged)),
	onRemoved func(func(event.GameRemoved)),
) {
	onAdded(func(e event.GameAdded) { idx.upsert(e.Game) })
	onChanged(func(e event.GameChanged) { idx.upsert(e.Game) })
	onRemoved(func(e event.GameRemoved) { idx.remove(e.GameID) })
}

func (idx *Index) upsert(g event.GameSummary) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	room, ok := idx.byRoom[g.RoomID]
	if !ok {
		room = make(map[int64]event.GameSummary)
		idx.byRoom[g.RoomID] = room
	}
	if _, existed := room[g.GameID]; !existed {
		idx.recency = append([]int64{g.GameID}, idx.recency...)
	}
	room[g.GameID] = g
}

func (idx *Index) remove(gameID int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for roomID, games := range idx.byRoom {
		if _, ok := games[gameID]; ok {
			delete(games, gameID)
			if len(games) == 0 {
				delete(idx.byRoom, roomID)
			}
		}
	}
	for i, id := range idx.recency {
		if id == gameID {
			idx.recency = append(idx.recency[:i], idx.recency[i+1:]...)
			break
		}
	}
}

// Search returns up to MaxResults games matching q, most recent first.
func (idx *Index) Search(q Query) []event.GameSummary {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var out []event.GameSummary
	for _, gameID := range idx.recency {
		room, ok := pickRoom(idx.byRoom, q.RoomID, gameID)
		if !ok {
			continue
		}
		g, ok := room[gameID]
		if !ok {
			continue
		}
		if !matches(g, q) {
			continue
		}
		out = append(out, g)
		if len(out) >= MaxResults {
			break
		}
	}
	return out
}

// pickRoom narrows the search to one room when the query specifies one;
// otherwise it scans every room's map for gameID.
func pickRoom(byRoom map[int32]map[int64]event.GameSummary, roomID int32, gameID int64) (map[int64]event.GameSummary, bool) {
	if roomID != 0 {
		room, ok := byRoom[roomID]
		return room, ok
	}
	for _, room := range byRoom {
		if _, ok := room[gameID]; ok {
			return room, true
		}
	}
	return nil, false
}

func matches(g event.GameSummary, q Query) bool {
	if q.GameType != 0 && g.GameType != q.GameType {
		return false
	}
	if q.TeamGame != nil && g.TeamGame != *q.TeamGame {
		return false
	}
	if q.Private != nil && g.Private != *q.Private {
		return false
	}
	if q.NameSubstring != "" && !strings.Contains(strings.ToLower(g.Name), strings.ToLower(q.NameSubstring)) {
		return false
	}
	if q.MapSubstring != "" && !strings.Contains(strings.ToLower(g.MapName), strings.ToLower(q.MapSubstring)) {
		return false
	}
	return true
}

// LastUpdated reports when a game entry was last touched, or the zero
// value if it isn't currently indexed. Exposed for admin/debug tooling.
func (idx *Index) LastUpdated(gameID int64) (time.Time, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, room := range idx.byRoom {
		if g, ok := room[gameID]; ok {
			return g.UpdatedAt, true
		}
	}
	return time.Time{}, false
}
