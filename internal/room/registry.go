package room

import (
	"errors"
	"sync"

	"github.com/metaserver/metaserver/internal/event"
)

var (
	ErrRoomNotFound    = errors.New("room: not found")
	ErrRoomFull        = errors.New("room: full")
	ErrCasteNotAllowed = errors.New("room: caste outside admission range")
	ErrGameTypeBarred  = errors.New("room: client game type not supported by room")
)

// liveRoom pairs a static Definition with its dynamic member set. One
// mutex per room (lock ordering: global table -> per-room, spec.md §5),
// matching the teacher's per-zone mutex in internal/world.
type liveRoom struct {
	mu      sync.Mutex
	def     Definition
	members map[int64]struct{}
}

// Registry holds every statically-configured room and the user's current
// room membership, enforcing "a user is in at most one room at a time"
// (spec.md §3).
type Registry struct {
	tableMu sync.RWMutex
	rooms   map[int32]*liveRoom

	memberMu  sync.Mutex
	userRoom  map[int64]int32

	bus *event.Bus[event.RoomJoined]
	leftBus *event.Bus[event.RoomLeft]
}

func NewRegistry(defs []Definition) *Registry {
	r := &Registry{
		rooms:    make(map[int32]*liveRoom, len(defs)),
		userRoom: make(map[int64]int32),
		bus:      event.NewBus[event.RoomJoined](),
		leftBus:  event.NewBus[event.RoomLeft](),
	}
	for _, d := range defs {
		r.rooms[d.RoomID] = &liveRoom{def: d, members: make(map[int64]struct{})}
	}
	return r
}

func (r *Registry) OnJoin(fn func(event.RoomJoined))  { r.bus.Subscribe(fn) }
func (r *Registry) OnLeave(fn func(event.RoomLeft))   { r.leftBus.Subscribe(fn) }

func (r *Registry) lookup(roomID int32) (*liveRoom, bool) {
	r.tableMu.RLock()
	defer r.tableMu.RUnlock()
	lr, ok := r.rooms[roomID]
	return lr, ok
}

// Definition returns the static template for roomID.
func (r *Registry) Definition(roomID int32) (Definition, bool) {
	lr, ok := r.lookup(roomID)
	if !ok {
		return Definition{}, false
	}
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.def, true
}

// Join implements spec.md §4.3's admission rule: room exists, caste in
// range, client game type a subset of the room's supported mask, room not
// full, and the user is moved out of any prior room first (implicit
// leave before join).
func (r *Registry) Join(userID int64, roomID int32, caste int, clientGameType GameTypeFlags) error {
	lr, ok := r.lookup(roomID)
	if !ok {
		return ErrRoomNotFound
	}

	if prev, has := r.currentRoom(userID); has && prev != roomID {
		r.Leave(userID)
	}

	lr.mu.Lock()
	if !lr.def.AdmitsCaste(caste) {
		lr.mu.Unlock()
		return ErrCasteNotAllowed
	}
	if !lr.def.AdmitsGameType(clientGameType) {
		lr.mu.Unlock()
		return ErrGameTypeBarred
	}
	if _, already := lr.members[userID]; !already && len(lr.members) >= lr.def.MaxMembers {
		lr.mu.Unlock()
		return ErrRoomFull
	}
	lr.members[userID] = struct{}{}
	lr.mu.Unlock()

	r.memberMu.Lock()
	r.userRoom[userID] = roomID
	r.memberMu.Unlock()

	r.bus.Publish(event.RoomJoined{RoomID: roomID, UserID: userID})
	return nil
}

// Leave removes userID from whichever room it currently occupies; a no-op
// if the user is not in a room. Used for explicit leave and on
// disconnect.
func (r *Registry) Leave(userID int64) {
	roomID, ok := r.currentRoom(userID)
	if !ok {
		return
	}

	r.memberMu.Lock()
	delete(r.userRoom, userID)
	r.memberMu.Unlock()

	if lr, ok := r.lookup(roomID); ok {
		lr.mu.Lock()
		delete(lr.members, userID)
		lr.mu.Unlock()
	}

	r.leftBus.Publish(event.RoomLeft{RoomID: roomID, UserID: userID})
}

func (r *Registry) currentRoom(userID int64) (int32, bool) {
	r.memberMu.Lock()
	defer r.memberMu.Unlock()
	roomID, ok := r.userRoom[userID]
	return roomID, ok
}

// CurrentRoom exposes which room (if any) userID currently occupies.
func (r *Registry) CurrentRoom(userID int64) (int32, bool) {
	return r.currentRoom(userID)
}

// Members returns a snapshot of roomID's current membership, empty if the
// room doesn't exist.
func (r *Registry) Members(roomID int32) []int64 {
	lr, ok := r.lookup(roomID)
	if !ok {
		return nil
	}
	lr.mu.Lock()
	defer lr.mu.Unlock()
	out := make([]int64, 0, len(lr.members))
	for u := range lr.members {
		out = append(out, u)
	}
	return out
}

// BroadcastTargets returns every member of userID's current room except
// userID itself, for ROOM_BROADCAST routing (spec.md §4.3). The bool is
// false if userID is not currently in a room.
func (r *Registry) BroadcastTargets(senderUserID int64) ([]int64, bool) {
	roomID, ok := r.currentRoom(senderUserID)
	if !ok {
		return nil, false
	}
	lr, ok := r.lookup(roomID)
	if !ok {
		return nil, false
	}
	lr.mu.Lock()
	defer lr.mu.Unlock()
	out := make([]int64, 0, len(lr.members))
	for u := range lr.members {
		if u != senderUserID {
			out = append(out, u)
		}
	}
	return out, true
}

// DirectedTargetAllowed reports whether recipientUserID may receive a
// DIRECTED_DATA packet from senderUserID: both must share the same room
// (spec.md §4.3).
func (r *Registry) DirectedTargetAllowed(senderUserID, recipientUserID int64) bool {
	senderRoom, ok := r.currentRoom(senderUserID)
	if !ok {
		return false
	}
	recipientRoom, ok := r.currentRoom(recipientUserID)
	if !ok {
		return false
	}
	return senderRoom == recipientRoom
}
