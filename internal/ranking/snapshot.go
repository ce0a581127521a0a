package ranking

// AverageBest is rank.py's RankingData (average, best) pair.
type AverageBest struct {
	Average int64
	Best    int64
}

// GameRankData is rank.py's GameRankData: top-ranked player plus
// population-wide average/best per metric.
type GameRankData struct {
	TopRankedPlayerID int64
	Points            AverageBest
	GamesPlayed       AverageBest
	Wins              AverageBest
	DamageInflicted   AverageBest
	DamageReceived    AverageBest
}

// OverallRankingData is rank.py's OverallRankingData, supplemented per
// SPEC_FULL.md C5 as a cheap-to-derive, read-only admin/stats snapshot.
type OverallRankingData struct {
	TotalUsers         int
	RankedGameData     GameRankData
	ByGameType         map[int]GameRankData
}

// Breakpoints is the CasteBreakpointData published atomically once per
// recomputation (spec.md §4.5's CasteBreakpoints entity).
type Breakpoints struct {
	// NormalCasteBreakpoints[i] is the points value of the first (highest
	// sorted) user rank.py's percentile walk placed in caste i (0 where the walk never
	// reserved a player for that index, e.g. the permanently-empty 0%
	// buckets).
	NormalCasteBreakpoints [NumberOfNormalCastes]int64

	CometPlayerIDs        []int64
	SunPlayerIDs          []int64
	EclipsedSunPlayerIDs  []int64
	MoonPlayerIDs         []int64
	EclipsedMoonPlayerIDs []int64
}

// Snapshot is the full published result of one recomputation pass:
// breakpoints plus the overall stats rollup.
type Snapshot struct {
	Breakpoints Breakpoints
	Overall     OverallRankingData
}
