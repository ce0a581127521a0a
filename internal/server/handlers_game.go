package server

import (
	"context"
	"fmt"
	"time"

	"github.com/metaserver/metaserver/internal/game"
	"github.com/metaserver/metaserver/internal/net"
	"github.com/metaserver/metaserver/internal/search"
	"github.com/metaserver/metaserver/internal/wire"
)

// handleCreateGame implements spec.md §4.4's Create: the host's current
// room becomes the game's room, and the game starts INITIALIZING
// (invisible to search until the host's own add_player call).
func handleCreateGame(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	userID, _ := sess.get()
	roomID, ok := s.Rooms.CurrentRoom(userID)
	if !ok {
		c.Send(uint16(wire.OpSyntaxError), nil)
		return
	}

	settings := game.Settings{
		Name:         r.ReadString(),
		GameType:     int(r.ReadI32()),
		MapName:      r.ReadString(),
		MaxPlayers:   int(r.ReadI32()),
		TeamGame:     r.ReadBool(),
		Options:      r.ReadU32(),
		PasswordHash: r.ReadString(),
	}

	now := time.Now()
	g := s.Games.Create(roomID, userID, settings, now)
	if err := s.Games.AddPlayer(g.ID, userID, now); err != nil {
		c.Send(uint16(wire.OpInternalError), nil)
		return
	}

	w := wire.NewWriter()
	w.WriteI32(int32(g.ID))
	c.Send(uint16(wire.OpGameList), w.Bytes())
}

func handleRemoveGame(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	userID, _ := sess.get()
	gameID := int64(r.ReadI32())
	_ = s.Games.RemovePlayer(gameID, userID, time.Now())
}

func handleJoinGame(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	userID, _ := sess.get()
	gameID := int64(r.ReadI32())
	if err := s.Games.AddPlayer(gameID, userID, time.Now()); err != nil {
		writeGameError(c, err)
	}
}

func handleLeaveGame(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	userID, _ := sess.get()
	gameID := int64(r.ReadI32())
	_ = s.Games.RemovePlayer(gameID, userID, time.Now())
}

func handleSetReady(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	userID, _ := sess.get()
	gameID := int64(r.ReadI32())
	ready := r.ReadBool()
	if err := s.Games.SetReady(gameID, userID, ready, time.Now()); err != nil {
		writeGameError(c, err)
	}
}

func handleSetTeam(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	userID, _ := sess.get()
	gameID := int64(r.ReadI32())
	team := int(r.ReadI32())
	if err := s.Games.SetTeam(gameID, userID, team); err != nil {
		writeGameError(c, err)
	}
}

// handleStartGame implements spec.md §4.4's host-only start, rejecting
// with a human-readable reason (game.ErrNotReady) when any readiness
// invariant isn't met yet.
func handleStartGame(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	userID, _ := sess.get()
	gameID := int64(r.ReadI32())
	s.Games.Touch(gameID, userID, time.Now())
	if err := s.Games.StartGame(gameID, userID, time.Now()); err != nil {
		writeGameError(c, err)
	}
}

// handleGameSearch implements spec.md §4.5's capped multi-predicate
// search, delegating straight to C5's event-driven index.
func handleGameSearch(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	q := search.Query{
		RoomID:        r.ReadI32(),
		GameType:      int(r.ReadI32()),
		NameSubstring: r.ReadString(),
		MapSubstring:  r.ReadString(),
	}
	results := s.Search.Search(q)
	c.Send(uint16(wire.OpGameSearchResult), encodeGameList(results))
}

// maxStandingsTeams/maxStandingsPlayers bound the team/player counts a
// GAME_SCORE frame may declare. wire.MaxPayloadLen already caps the
// frame itself, but a count field is read and used as a make() length
// before the rest of the payload is consulted, so it must be validated
// on its own: a negative count panics makeslice, and an unbounded
// positive one allocates far beyond what the 32 KiB frame could ever
// actually back.
const (
	maxStandingsTeams   = 64
	maxStandingsPlayers = 512
)

// handleGameScore implements spec.md §4.4's client-reported standings
// submission, decoding the StandingsReport the teacher's
// original_source/models/game.py BungieNetGameStandings carried.
func handleGameScore(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	userID, _ := sess.get()
	gameID := int64(r.ReadI32())

	report := game.StandingsReport{
		SubmittedBy:     userID,
		GameEndedCode:   r.ReadI32(),
		Version:         r.ReadI32(),
		NumberOfPlayers: r.ReadI32(),
		GameScoringType: int(r.ReadI32()),
		NumTeams:        int(r.ReadI32()),
	}
	if report.NumTeams < 0 || report.NumTeams > maxStandingsTeams {
		writeGameError(c, fmt.Errorf("num_teams %d out of range", report.NumTeams))
		return
	}
	report.Teams = make([]game.StandingsTeam, report.NumTeams)
	for i := range report.Teams {
		report.Teams[i] = game.StandingsTeam{Place: int(r.ReadI32())}
	}

	playerCount := int(r.ReadI32())
	if playerCount < 0 || playerCount > maxStandingsPlayers {
		writeGameError(c, fmt.Errorf("player_count %d out of range", playerCount))
		return
	}
	report.Players = make([]game.StandingsPlayer, playerCount)
	for i := range report.Players {
		report.Players[i] = game.StandingsPlayer{
			UserID:       int64(r.ReadI32()),
			TeamIndex:    int(r.ReadI32()),
			PointsKilled: int64(r.ReadI32()),
			PointsLost:   int64(r.ReadI32()),
		}
	}

	if err := s.Games.SubmitStandings(ctx, gameID, report); err != nil {
		c.Send(uint16(wire.OpInternalError), nil)
	}
}

func handleKeepalive(s *Server, ctx context.Context, c *net.Conn, sess *session, r *wire.Reader) {
	c.Send(uint16(wire.OpKeepalive), nil)
}

func writeGameError(c *net.Conn, err error) {
	c.Send(uint16(wire.OpSyntaxError), []byte(err.Error()))
}
