package server

import (
	"context"

	"github.com/metaserver/metaserver/internal/net"
	"github.com/metaserver/metaserver/internal/wire"
	"go.uber.org/zap"
)

// handlerFunc decodes and acts on one frame's payload. r is positioned at
// the start of the payload; handlers never need to re-slice Payload
// themselves.
type handlerFunc func(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader)

type handlerEntry struct {
	fn           handlerFunc
	requiresAuth bool
}

// opcodeTable is the dispatch table replacing the teacher's removed
// internal/net/packet.Registry: a flat opcode -> handler map gated by
// whether the connection has completed OP_LOGIN, rather than the
// teacher's game-session-state machine (this protocol has no equivalent
// multi-stage handshake to gate on).
var opcodeTable = map[wire.Opcode]handlerEntry{
	wire.OpLogin:          {handleLogin, false},
	wire.OpRoomLogin:      {handleRoomLogin, false},
	wire.OpLogout:         {handleLogout, true},
	wire.OpChangePassword: {handleChangePassword, true},
	wire.OpJoinRoom:       {handleJoinRoom, true},
	wire.OpLeaveRoom:      {handleLeaveRoom, true},
	wire.OpRoomBroadcast:  {handleRoomBroadcast, true},
	wire.OpDirectedData:   {handleDirectedData, true},
	wire.OpCreateGame:     {handleCreateGame, true},
	wire.OpRemoveGame:     {handleRemoveGame, true},
	wire.OpJoinGame:       {handleJoinGame, true},
	wire.OpLeaveGame:      {handleLeaveGame, true},
	wire.OpSetReady:       {handleSetReady, true},
	wire.OpSetTeam:        {handleSetTeam, true},
	wire.OpStartGame:      {handleStartGame, true},
	wire.OpGameSearch:     {handleGameSearch, true},
	wire.OpGameScore:      {handleGameScore, true},
	wire.OpKeepalive:      {handleKeepalive, false},
}

func (s *Server) dispatch(ctx context.Context, c *net.Conn, sess *session, f wire.Frame) {
	op := wire.Opcode(f.Type)
	entry, ok := opcodeTable[op]
	if !ok {
		s.Log.Debug("unknown opcode", zap.Uint64("conn", c.ID), zap.Uint16("opcode", f.Type))
		c.Send(uint16(wire.OpSyntaxError), nil)
		return
	}
	if entry.requiresAuth {
		if _, loggedIn := sess.get(); !loggedIn {
			c.Send(uint16(wire.OpSyntaxError), nil)
			return
		}
	}
	s.safeCall(entry.fn, ctx, c, sess, f.Type, wire.NewReader(f.Payload))
}

// safeCall runs a handler with panic recovery, the generalized form of
// the teacher's internal/net/packet.Registry.safeCall: one malformed or
// adversarial frame must never take down the whole process, it drops
// only the connection that sent it.
func (s *Server) safeCall(fn handlerFunc, ctx context.Context, c *net.Conn, sess *session, opcode uint16, r *wire.Reader) {
	defer func() {
		if rec := recover(); rec != nil {
			s.Log.Error("handler panic recovered",
				zap.Uint64("conn", c.ID),
				zap.Uint16("opcode", opcode),
				zap.Any("panic", rec),
			)
			c.Send(uint16(wire.OpInternalError), nil)
			c.Close()
		}
	}()
	fn(s, ctx, c, sess, r)
}
