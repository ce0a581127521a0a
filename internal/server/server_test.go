package server

import (
	"context"
	stdnet "net"
	"testing"
	"time"

	"github.com/metaserver/metaserver/internal/auth"
	"github.com/metaserver/metaserver/internal/game"
	"github.com/metaserver/metaserver/internal/net"
	"github.com/metaserver/metaserver/internal/ranking"
	"github.com/metaserver/metaserver/internal/room"
	"github.com/metaserver/metaserver/internal/scheduler"
	"github.com/metaserver/metaserver/internal/search"
	"github.com/metaserver/metaserver/internal/store"
	"github.com/metaserver/metaserver/internal/store/memory"
	"github.com/metaserver/metaserver/internal/wire"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T) (*Server, *memory.Users) {
	t.Helper()
	log := zaptest.NewLogger(t)

	users := memory.NewUsers()
	games := game.NewCoordinator(users, memory.NewScoredGames(), log)
	rooms := room.NewRegistry([]room.Definition{
		{RoomID: 1, SupportedGames: room.FlagMyth2, MinCaste: 0, MaxCaste: 16, MaxMembers: 10},
	})
	idx := search.NewIndex()
	rank := ranking.NewEngine(users, log)
	sched := scheduler.NewRunner(log)

	authSvc := &auth.Service{
		Users:    users,
		Bans:     memory.NewBanList(),
		Tokens:   auth.NewTokenRegistry(nil),
		Sessions: auth.NewSessionRegistry(),
		Policy:   auth.PolicyKickOld,
		Log:      log,
	}

	nm, err := net.NewManager(net.Binds{Player: "127.0.0.1:0"}, memory.NewBanList(), 16, 16, log)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	s := New(nm, authSvc, rooms, games, idx, rank, sched, time.Hour, log)
	return s, users
}

func TestServerRoutesLoginAndJoinRoom(t *testing.T) {
	s, users := newTestServer(t)

	hash, _, err := auth.HashPassword(store.SchemeBcrypt, "secret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	userID, err := users.Insert(context.Background(), &store.User{Login: "alice", PasswordHash: hash, Scheme: store.SchemeBcrypt})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}

	conn, sess := s.newTestConn(t, wire.ConnPlayer)

	loginReq := wire.NewWriter()
	loginReq.WriteString("alice")
	loginReq.WriteString("secret")
	handleLogin(s, context.Background(), conn, sess, wire.NewReader(loginReq.Bytes()))

	if _, loggedIn := sess.get(); !loggedIn {
		t.Fatal("expected session to be authenticated after login")
	}

	joinReq := wire.NewWriter()
	joinReq.WriteI32(1)
	joinReq.WriteI32(0)
	joinReq.WriteString("MYTH2")
	handleJoinRoom(s, context.Background(), conn, sess, wire.NewReader(joinReq.Bytes()))

	if got, ok := s.Rooms.CurrentRoom(userID); !ok || got != 1 {
		t.Fatalf("expected user in room 1, got room=%d ok=%v", got, ok)
	}
}

// newTestConn registers a Conn/session pair with s the way trackConn
// would after a real accept, backed by one half of a net.Pipe so Send
// has somewhere to write.
func (s *Server) newTestConn(t *testing.T, class wire.ConnClass) (*net.Conn, *session) {
	t.Helper()
	server, client := stdnet.Pipe()
	t.Cleanup(func() { client.Close() })
	c := net.NewTestConn(server, 1, class, 16, 16, zaptest.NewLogger(t))
	t.Cleanup(c.Close)
	s.trackConn(c)
	return c, s.sessionFor(c.ID)
}
