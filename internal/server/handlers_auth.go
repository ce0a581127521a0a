package server

import (
	"context"
	"errors"
	"time"

	"github.com/metaserver/metaserver/internal/auth"
	"github.com/metaserver/metaserver/internal/net"
	"github.com/metaserver/metaserver/internal/wire"
)

// handleLogin implements spec.md §4.2's login flow for the player
// listener: verify credentials, mint a token, evict any prior session
// per the duplicate-login policy, and reply with the token or an
// identical "bad login or password" failure for both a missing account
// and a wrong password.
func handleLogin(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	login := r.ReadString()
	password := r.ReadString()

	clientIP := wire.IPv4ToUint32(c.RemoteIP)
	result, err := s.Auth.Login(ctx, c.ID, login, password, clientIP, time.Now())
	if err != nil {
		writeLoginFailure(c, err)
		return
	}

	if result.KickedConnID != 0 {
		if old := s.connFor(result.KickedConnID); old != nil {
			old.Send(uint16(wire.OpAccountAlreadyLoggedIn), nil)
			old.Close()
		}
	}

	sess.set(result.UserID)

	w := wire.NewWriter()
	w.WriteI32(int32(result.UserID))
	w.WriteI32(int32(result.OrderID))
	w.WriteBytes(result.Token[:])
	c.Send(uint16(wire.OpUserSuccessfulLogin), w.Bytes())
}

// handleRoomLogin authenticates a room-server process on the room-class
// listener by running handleLogin unchanged: same credential and token
// path, same SessionRegistry as player connections.
func handleRoomLogin(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	handleLogin(s, ctx, c, sess, r)
}

func writeLoginFailure(c *net.Conn, err error) {
	switch {
	case errors.Is(err, auth.ErrBadUserOrPassword), errors.Is(err, auth.ErrBanned):
		c.Send(uint16(wire.OpLoginFailed), []byte{wire.LoginFailedBadUserOrPassword})
	case errors.Is(err, auth.ErrAlreadyLoggedIn):
		c.Send(uint16(wire.OpAccountAlreadyLoggedIn), nil)
	default:
		c.Send(uint16(wire.OpInternalError), nil)
	}
}

// handleLogout implements spec.md §4.2's explicit logout: leave the room
// and any game, and unbind the connection, without waiting for the
// transport layer to notice the socket closed. The bearer token minted at
// login is not invalidated here; it stays valid until it expires.
func handleLogout(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	userID, _ := sess.get()
	s.Rooms.Leave(userID)
	s.Games.RemoveUserFromAnyGame(userID, time.Now())
	s.Auth.Sessions.Unbind(c.ID)
	sess.clear()
}

// handleChangePassword implements spec.md §4.2: rehash under the default
// scheme, revoke every token for the user, and close every connection
// currently bound to them, including the one that sent the request.
func handleChangePassword(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	userID, _ := sess.get()
	newPassword := r.ReadString()

	conns, err := s.Auth.ChangePassword(ctx, userID, newPassword, time.Now())
	if err != nil {
		c.Send(uint16(wire.OpInternalError), nil)
		return
	}
	for _, connID := range conns {
		if other := s.connFor(connID); other != nil {
			other.Close()
		}
	}
}
