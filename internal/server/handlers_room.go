package server

import (
	"context"
	"errors"

	"github.com/metaserver/metaserver/internal/net"
	"github.com/metaserver/metaserver/internal/room"
	"github.com/metaserver/metaserver/internal/wire"
)

// handleJoinRoom implements spec.md §4.3's admission check: room exists,
// caste in range, the client's self-reported game-type mask is a subset
// of the room's supported games, and the room isn't full.
func handleJoinRoom(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	userID, _ := sess.get()
	roomID := r.ReadI32()
	caste := int(r.ReadI32())
	gameTypeCSV := r.ReadString()

	err := s.Rooms.Join(userID, roomID, caste, room.ParseGameTypeNames(gameTypeCSV))
	if err != nil {
		writeRoomError(c, err)
		return
	}
	c.Send(uint16(wire.OpPlayerList), encodeMemberList(s.Rooms.Members(roomID)))
}

func handleLeaveRoom(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	userID, _ := sess.get()
	s.Rooms.Leave(userID)
}

// handleRoomBroadcast relays a chat/data payload to every other member of
// the sender's current room (spec.md §4.3's ROOM_BROADCAST routing).
func handleRoomBroadcast(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	userID, _ := sess.get()
	body := r.ReadBytes(r.Remaining())

	targets, ok := s.Rooms.BroadcastTargets(userID)
	if !ok {
		return
	}
	payload := wire.NewWriter()
	payload.WriteI32(int32(userID))
	payload.WriteBytes(body)
	for _, target := range targets {
		s.sendToUser(target, wire.OpRoomBroadcast, payload.Bytes())
	}
}

// handleDirectedData relays a payload to one other user sharing the
// sender's room, rejecting silently otherwise (spec.md §4.3's
// DIRECTED_DATA routing).
func handleDirectedData(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	userID, _ := sess.get()
	recipient := int64(r.ReadI32())
	body := r.ReadBytes(r.Remaining())

	if !s.Rooms.DirectedTargetAllowed(userID, recipient) {
		return
	}
	payload := wire.NewWriter()
	payload.WriteI32(int32(userID))
	payload.WriteBytes(body)
	s.sendToUser(recipient, wire.OpDirectedData, payload.Bytes())
}

func writeRoomError(c *net.Conn, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrCasteNotAllowed), errors.Is(err, room.ErrGameTypeBarred):
		c.Send(uint16(wire.OpSyntaxError), nil)
	default:
		c.Send(uint16(wire.OpInternalError), nil)
	}
}
