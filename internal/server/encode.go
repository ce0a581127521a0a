package server

import (
	"github.com/metaserver/metaserver/internal/event"
	"github.com/metaserver/metaserver/internal/ranking"
	"github.com/metaserver/metaserver/internal/wire"
)

// encodeGameSummary serializes the fields of event.GameSummary a client
// needs to render a game list row or a state-change notice (spec.md
// §4.4/§4.5).
func encodeGameSummary(g event.GameSummary) []byte {
	w := wire.NewWriter()
	w.WriteI32(int32(g.GameID))
	w.WriteI32(g.RoomID)
	w.WriteI32(int32(g.HostUserID))
	w.WriteString(g.Name)
	w.WriteI32(int32(g.GameType))
	w.WriteString(g.MapName)
	w.WriteBool(g.TeamGame)
	w.WriteI32(int32(g.MaxPlayers))
	w.WriteI32(int32(g.PlayerCount))
	w.WriteBool(g.Private)
	w.WriteString(g.State)
	return w.Bytes()
}

// encodeMemberList serializes a room's current membership (user ids) for
// the OP_PLAYER_LIST broadcast a join/leave triggers.
func encodeMemberList(members []int64) []byte {
	w := wire.NewWriter()
	w.WriteU16(uint16(len(members)))
	for _, m := range members {
		w.WriteI32(int32(m))
	}
	return w.Bytes()
}

// encodeBreakpoints serializes one recomputation pass's published
// caste-breakpoint table (spec.md §4.5's CasteBreakpoints entity).
func encodeBreakpoints(snap ranking.Snapshot) []byte {
	w := wire.NewWriter()
	for _, v := range snap.Breakpoints.NormalCasteBreakpoints {
		w.WriteI32(int32(v))
	}
	writeIDList(w, snap.Breakpoints.CometPlayerIDs)
	writeIDList(w, snap.Breakpoints.SunPlayerIDs)
	writeIDList(w, snap.Breakpoints.EclipsedSunPlayerIDs)
	writeIDList(w, snap.Breakpoints.MoonPlayerIDs)
	writeIDList(w, snap.Breakpoints.EclipsedMoonPlayerIDs)
	return w.Bytes()
}

func writeIDList(w *wire.Writer, ids []int64) {
	w.WriteU16(uint16(len(ids)))
	for _, id := range ids {
		w.WriteI32(int32(id))
	}
}

// encodeGameList serializes a bounded game-search result set (spec.md
// §4.5, capped at search.MaxResults by the caller).
func encodeGameList(games []event.GameSummary) []byte {
	w := wire.NewWriter()
	w.WriteU16(uint16(len(games)))
	for _, g := range games {
		w.WriteBytes(encodeGameSummary(g))
	}
	return w.Bytes()
}
