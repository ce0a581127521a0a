package game

import (
	"context"

	"github.com/metaserver/metaserver/internal/store"
	"go.uber.org/zap"
)

// sameStandings is same_standings(a,b) from spec.md §4.4, ported verbatim
// from original_source/services/game_evaluator.py's find_same_standings.
func sameStandings(a, b *StandingsReport) bool {
	if a == nil || b == nil {
		return false
	}
	return a.GameEndedCode == b.GameEndedCode &&
		a.Version == b.Version &&
		a.NumberOfPlayers == b.NumberOfPlayers
}

// reconcileStandings implements find_good_standings_for_game: iterate
// reports in receipt order, the first pair that agrees becomes
// authoritative; player_count==1 accepts the lone report; no agreement
// returns nil, and SubmitStandings then leaves the game unscored with its
// state unchanged.
func reconcileStandings(playerCount int, reports []*StandingsReport) *StandingsReport {
	if len(reports) == 0 {
		return nil
	}
	if playerCount == 1 {
		return reports[0]
	}

	for i, r := range reports {
		if r == nil {
			continue
		}
		for _, prev := range reports[:i] {
			if sameStandings(r, prev) {
				return prev
			}
		}
	}
	return nil
}

// applyScore is the score-mutation pipeline of spec.md §4.4, ported from
// original_source/services/game_evaluator.py's bungie_net_game_evaluate:
// every player gains games_played/damage on both the overall ranked row
// and their per-game-type row; the winning team (place 0) gains a win and
// 3 points (tracking highest_points); the losing team (place
// NumTeams-1) gains a loss and -1 point; any other placement only
// advances games_played. Writes happen one player at a time so a
// mid-batch store failure only loses that player's increment (spec.md
// §4.4: "a failure mid-batch rolls back that player's increment but does
// not undo previously-committed players").
func (c *Coordinator) applyScore(ctx context.Context, g *Game, standings *StandingsReport) error {
	gameType := standings.GameScoringType

	for _, sp := range standings.Players {
		if sp.TeamIndex < 0 || sp.TeamIndex >= len(standings.Teams) {
			continue
		}
		place := standings.Teams[sp.TeamIndex].Place

		u, err := c.users.GetByID(ctx, sp.UserID)
		if err != nil {
			c.log.Warn("applyScore: user lookup failed, skipping player", zap.Int64("user_id", sp.UserID))
			continue
		}

		applyRow(&u.RankedScore, sp, place, standings.NumTeams)
		if u.ScoreByGameType == nil {
			u.ScoreByGameType = make(map[int]store.ScoreRow)
		}
		row := u.ScoreByGameType[gameType]
		applyRow(&row, sp, place, standings.NumTeams)
		u.ScoreByGameType[gameType] = row

		if err := c.users.Update(ctx, u); err != nil {
			c.log.Warn("applyScore: user store update failed, increment dropped for this player")
			continue
		}
	}
	return nil
}

func applyRow(row *store.ScoreRow, sp StandingsPlayer, place, numTeams int) {
	row.GamesPlayed++
	row.DamageInflicted += sp.PointsKilled
	row.DamageReceived += sp.PointsLost

	switch {
	case place == 0:
		row.Wins++
		row.Points += 3
		if row.Points > row.HighestPoints {
			row.HighestPoints = row.Points
		}
	case place == numTeams-1:
		row.Losses++
		row.Points--
	}
}
