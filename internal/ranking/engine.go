package ranking

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/metaserver/metaserver/internal/store"
	"go.uber.org/zap"
)

// WriteBatchSize is rank.py's MAXIMUM_DATABASE_OPERATIONS_PER_CALL.
const WriteBatchSize = 1000

// MaxGameTypes is rank.py's MAXIMUM_NUMBER_OF_GAME_TYPES; together with
// the single overall pass this gives NUMBER_OF_RANKING_PASSES = 17.
const MaxGameTypes = 16

type rawRankData struct {
	userID      int64
	points      int64
	gamesPlayed int64
	wins        int64
	damageIn    int64
	damageOut   int64
}

// Engine recomputes castes and publishes Snapshot, grounded in rank.py's
// RankingSystem.
type Engine struct {
	users store.UserStore
	log   *zap.Logger

	mu       sync.RWMutex
	latest   *Snapshot
}

func NewEngine(users store.UserStore, log *zap.Logger) *Engine {
	return &Engine{users: users, log: log}
}

// Latest returns the most recently published snapshot, or the zero value
// if no recomputation has run yet.
func (e *Engine) Latest() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.latest == nil {
		return Snapshot{}
	}
	return *e.latest
}

// RecomputeAll runs the overall pass followed by one pass per game type
// (rank.py's NUMBER_OF_RANKING_PASSES = 17), yielding between batches
// within each pass so live traffic isn't starved (spec.md §4.5). It is
// safe to call again if interrupted mid-pass: each pass re-derives wholly
// from current store state.
func (e *Engine) RecomputeAll(ctx context.Context) error {
	overall, err := e.recomputePass(ctx, nil)
	if err != nil {
		return err
	}

	byGameType := make(map[int]GameRankData, MaxGameTypes)
	var lastBreakpoints Breakpoints
	for gt := 0; gt < MaxGameTypes; gt++ {
		gt := gt
		snap, err := e.recomputePass(ctx, &gt)
		if err != nil {
			return err
		}
		byGameType[gt] = snap.Overall.RankedGameData
		lastBreakpoints = snap.Breakpoints
	}
	_ = lastBreakpoints // per-game-type breakpoints aren't separately published; overall's are authoritative (spec.md §4.5's single published CasteBreakpoints snapshot)

	final := Snapshot{
		Breakpoints: overall.Breakpoints,
		Overall: OverallRankingData{
			TotalUsers:     overall.Overall.TotalUsers,
			RankedGameData: overall.Overall.RankedGameData,
			ByGameType:     byGameType,
		},
	}
	e.mu.Lock()
	e.latest = &final
	e.mu.Unlock()
	return nil
}

// recomputePass runs one of the 17 passes: nil gameType is the overall
// pass, else the per-game-type pass (rank.py's present_ranking loop).
func (e *Engine) recomputePass(ctx context.Context, gameType *int) (Snapshot, error) {
	var data []rawRankData
	err := e.users.IterateAll(ctx, func(u *store.User) error {
		row := u.RankedScore
		if gameType != nil {
			row = u.ScoreByGameType[*gameType]
		}
		data = append(data, rawRankData{
			userID:      u.ID,
			points:      row.Points,
			gamesPlayed: row.GamesPlayed,
			wins:        row.Wins,
			damageIn:    row.DamageInflicted,
			damageOut:   row.DamageReceived,
		})
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	sort.SliceStable(data, func(i, j int) bool { return compareLess(data[i], data[j]) })

	breakpoints, casteByPosition := computeBreakpoints(data)

	assignments := make(map[int64]Caste, len(data))
	for pos, d := range data {
		assignments[d.userID] = resolveCaste(d, pos, casteByPosition)
	}

	// User.Caste holds the overall caste; per-game-type passes only feed
	// the published rollup.
	if gameType == nil {
		if err := e.writeBack(ctx, assignments); err != nil {
			return Snapshot{}, err
		}
	}

	return Snapshot{
		Breakpoints: breakpoints,
		Overall:     buildOverall(data),
	}, nil
}

// compareLess is rank.py's compare_rankings: users above the
// games-played pin threshold sort first; within a group, higher points
// first, ties broken by more games played.
func compareLess(a, b rawRankData) bool {
	aHigh := a.gamesPlayed > gamesPlayedPinCaste
	bHigh := b.gamesPlayed > gamesPlayedPinCaste
	if aHigh != bHigh {
		return aHigh
	}
	if a.points != b.points {
		return a.points > b.points
	}
	return a.gamesPlayed > b.gamesPlayed
}

// computeBreakpoints is rank.py's get_caste_breakpoints, extended to
// record which bucket index each sorted position fell into (casteByPosition[pos],
// -1 if none) so resolveCaste can assign a literal per-user caste.
func computeBreakpoints(data []rawRankData) (Breakpoints, []int) {
	var bp Breakpoints
	total := len(data)
	casteByPosition := make([]int, total)
	for i := range casteByPosition {
		casteByPosition[i] = -1
	}
	if total == 0 {
		return bp, casteByPosition
	}

	playersPlaced := 0
	for i := 0; i < NumberOfNormalCastes; i++ {
		playersInCaste := int(float64(total) * rankPercentages[i])
		if playersInCaste <= 0 {
			continue
		}
		bp.NormalCasteBreakpoints[i] = data[playersPlaced].points
		for p := playersPlaced; p < playersPlaced+playersInCaste && p < total; p++ {
			casteByPosition[p] = i
		}
		playersPlaced += playersInCaste
	}

	idx := 0
	for _, tier := range specialTierOrder {
		ids := make([]int64, 0, tier.count)
		for i := 0; i < tier.count && idx < total; i++ {
			ids = append(ids, data[idx].userID)
			idx++
		}
		switch tier.caste {
		case CasteComet:
			bp.CometPlayerIDs = ids
		case CasteSun:
			bp.SunPlayerIDs = ids
		case CasteEclipsedSun:
			bp.EclipsedSunPlayerIDs = ids
		case CasteMoon:
			bp.MoonPlayerIDs = ids
		case CasteEclipsedMoon:
			bp.EclipsedMoonPlayerIDs = ids
		}
	}

	return bp, casteByPosition
}

// resolveCaste picks the caste actually written back for a user: the
// games-played pin wins over everything else, then the special-tier draw
// (first TOTAL_NAMED_PLAYER_COUNT=8 positions), then the percentile
// bucket from computeBreakpoints.
func resolveCaste(d rawRankData, pos int, casteByPosition []int) Caste {
	if c, pinned := pinnedCaste(d.gamesPlayed); pinned {
		return c
	}
	if pos < totalNamedPlayerCount {
		return specialCasteAt(pos)
	}
	if idx := casteByPosition[pos]; idx >= 0 {
		return Caste(idx)
	}
	return CasteDagger
}

const totalNamedPlayerCount = 8 // rank.py's RankConstants.TOTAL_NAMED_PLAYER_COUNT

func specialCasteAt(pos int) Caste {
	offset := 0
	for _, tier := range specialTierOrder {
		if pos < offset+tier.count {
			return tier.caste
		}
		offset += tier.count
	}
	return CasteComet
}

func buildOverall(data []rawRankData) OverallRankingData {
	out := OverallRankingData{TotalUsers: len(data)}
	if len(data) == 0 {
		return out
	}
	var points, games, wins, dmgIn, dmgOut int64
	best := data[0]
	for _, d := range data {
		points += d.points
		games += d.gamesPlayed
		wins += d.wins
		dmgIn += d.damageIn
		dmgOut += d.damageOut
		best.points = max(best.points, d.points)
		best.gamesPlayed = max(best.gamesPlayed, d.gamesPlayed)
		best.wins = max(best.wins, d.wins)
		best.damageIn = max(best.damageIn, d.damageIn)
		best.damageOut = max(best.damageOut, d.damageOut)
	}
	n := int64(len(data))
	out.RankedGameData = GameRankData{
		TopRankedPlayerID: data[0].userID,
		Points:            AverageBest{Average: points / n, Best: best.points},
		GamesPlayed:       AverageBest{Average: games / n, Best: best.gamesPlayed},
		Wins:              AverageBest{Average: wins / n, Best: best.wins},
		DamageInflicted:   AverageBest{Average: dmgIn / n, Best: best.damageIn},
		DamageReceived:    AverageBest{Average: dmgOut / n, Best: best.damageOut},
	}
	return out
}

// writeBack persists each user's new caste in batches of WriteBatchSize,
// yielding between batches (spec.md §4.5: "yielding to the event loop
// between batches so live traffic is not starved").
func (e *Engine) writeBack(ctx context.Context, castes map[int64]Caste) error {
	ids := make([]int64, 0, len(castes))
	for id := range castes {
		ids = append(ids, id)
	}

	for start := 0; start < len(ids); start += WriteBatchSize {
		end := start + WriteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		for _, id := range ids[start:end] {
			if err := ctx.Err(); err != nil {
				return err
			}
			u, err := e.users.GetByID(ctx, id)
			if err != nil {
				e.log.Warn("ranking writeback: user lookup failed", zap.Int64("user_id", id), zap.Error(err))
				continue
			}
			u.Caste = int(castes[id])
			if err := e.users.Update(ctx, u); err != nil {
				e.log.Warn("ranking writeback: user update failed", zap.Int64("user_id", id), zap.Error(err))
			}
		}
		runtime.Gosched()
	}
	return nil
}
