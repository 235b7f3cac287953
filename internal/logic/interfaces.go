package logic

import (
	"context"

	"github.com/redeclipse/stats-api/internal/models"
	"github.com/redeclipse/stats-api/internal/ruleset"
	"github.com/redeclipse/stats-api/internal/store"
)

// SemanticsStore is the part of the stats database the resolver reads
type SemanticsStore interface {
	MaxGameID(ctx context.Context) (int64, error)
	GameVersions(ctx context.Context) (map[int64]string, error)
	GameVersion(ctx context.Context, gameID int64) (string, error)
	GameModeMutators(ctx context.Context, gameID int64) (int, int, error)
	GameIDsByMode(ctx context.Context, versions []string, mode int) ([]int64, error)
	GameIDsByMutator(ctx context.Context, versions []string, conds []ruleset.MutatorCondition) ([]int64, error)
}

// RankingStore is the part of the stats database the leaderboards read
type RankingStore interface {
	FirstGameSince(ctx context.Context, since int64) (int64, error)
	GameIDsSince(ctx context.Context, firstGame int64) ([]int64, error)
	MapExists(ctx context.Context, name string) (bool, error)
	RaceRows(ctx context.Context, mapName string) ([]models.RaceTime, error)
	WeaponGameRows(ctx context.Context, firstGame int64, weapons []string) ([]store.WeaponGameRow, error)
	PlayerGameRows(ctx context.Context, firstGame int64) ([]store.PlayerGameRow, error)
	PlayerDamageRows(ctx context.Context, firstGame int64, exclude []string) ([]store.PlayerDamageRow, error)
	MapsByPlayertime(ctx context.Context, firstGame int64, limit int) ([]models.MapPlaytime, error)
	PlayersByGames(ctx context.Context, firstGame int64, limit int) ([]models.HandleGames, error)
	ServersByGames(ctx context.Context, firstGame int64, limit int) ([]models.HandleGames, error)
}

// BrowseStore is the part of the stats database the browsing pages read
type BrowseStore interface {
	GameIDsSince(ctx context.Context, firstGame int64) ([]int64, error)
	CountGames(ctx context.Context, f store.GameFilter) (int64, error)
	ListGames(ctx context.Context, f store.GameFilter, page, perPage int) ([]models.Game, error)
	GetGame(ctx context.Context, id int64) (*models.Game, error)
	GamePlayers(ctx context.Context, gameID int64) ([]models.GamePlayer, error)
	GameTeams(ctx context.Context, gameID int64) ([]models.GameTeam, error)
	GameFFARounds(ctx context.Context, gameID int64) ([]models.GameFFARound, error)
	WeaponSums(ctx context.Context, f store.WeaponFilter) ([]models.WeaponStats, error)

	CountPlayers(ctx context.Context) (int64, error)
	ListPlayers(ctx context.Context, page, perPage int) ([]models.PlayerSummary, error)
	GetPlayer(ctx context.Context, handle string) (*models.PlayerSummary, error)
	RecentPlayerGames(ctx context.Context, handle string, limit int) ([]store.PlayerGame, error)
	PlayerTopMaps(ctx context.Context, handle string, gameIDs []int64, limit int) ([]models.MapPlaytime, error)

	CountServers(ctx context.Context) (int64, error)
	ListServers(ctx context.Context, page, perPage int) ([]models.ServerSummary, error)
	GetServer(ctx context.Context, handle string) (*models.ServerSummary, error)

	CountMaps(ctx context.Context) (int64, error)
	ListMaps(ctx context.Context, page, perPage int) ([]models.MapSummary, error)
	GetMap(ctx context.Context, name string) (*models.MapSummary, error)
}

// ActivitySource yields the games that ended at or after a unix time. Both
// the stats database and the ClickHouse mirror implement it.
type ActivitySource interface {
	ActivityRows(ctx context.Context, since int64) ([]models.ActivityRow, error)
}

// GameSemantics answers ruleset-dependent questions about stored games
type GameSemantics interface {
	GameRuleset(ctx context.Context, gameID int64) (*ruleset.Ruleset, error)
	IsModeActive(ctx context.Context, gameID int64, mode string) (bool, error)
	IsMutatorActive(ctx context.Context, gameID int64, mutator string) (bool, error)
	IsNormalWeapons(ctx context.Context, gameID int64) (bool, error)
	Describe(ctx context.Context, g *models.Game) error
}

// RankingService computes the leaderboards. A days value of 0 means all time.
type RankingService interface {
	MapTopRaces(ctx context.Context, mapName string, endurance bool, limit int) ([]models.RaceTime, error)
	WeaponsByWielded(ctx context.Context, days int) ([]models.WeaponShare, error)
	WeaponsByDPM(ctx context.Context, days int) ([]models.WeaponDPM, error)
	PlayersByDPM(ctx context.Context, days int) ([]models.PlayerRank, error)
	PlayersByDPF(ctx context.Context, days int) ([]models.PlayerRank, error)
	PlayersByKDR(ctx context.Context, days int) ([]models.PlayerRank, error)
	ModesByGames(ctx context.Context, days int) ([]models.ModeCount, error)
	MutatorsByGames(ctx context.Context, days int) ([]models.MutatorCount, error)
	MapsByPlayertime(ctx context.Context, days, limit int) ([]models.MapPlaytime, error)
	PlayersByGames(ctx context.Context, days, limit int) ([]models.HandleGames, error)
	ServersByGames(ctx context.Context, days, limit int) ([]models.HandleGames, error)
	WeaponRankings(ctx context.Context, days int) (*models.WeaponRankings, error)
	PlayerRankings(ctx context.Context, days, limit int) (*models.PlayerRankings, error)
}

// ActivityService folds game activity into histograms
type ActivityService interface {
	Hours(ctx context.Context, days int) (*models.ActivityHistogram, error)
	Weekdays(ctx context.Context, days int) (*models.ActivityHistogram, error)
	WeekdayHours(ctx context.Context, days int) (*models.ActivityHistogram, error)
}

// BrowseService serves the paged listings and detail views. Pages are
// numbered from 0.
type BrowseService interface {
	Games(ctx context.Context, page int) (models.Page[models.Game], error)
	Game(ctx context.Context, id int64) (*models.GameDetail, error)

	Players(ctx context.Context, page int) (models.Page[models.PlayerSummary], error)
	Player(ctx context.Context, handle string) (*models.PlayerSummary, error)
	PlayerGames(ctx context.Context, handle string, page int) (models.Page[models.Game], error)
	PlayerPerformance(ctx context.Context, handle string, games int) (*models.PlayerPerformance, error)

	Servers(ctx context.Context, page int) (models.Page[models.ServerSummary], error)
	Server(ctx context.Context, handle string) (*models.ServerSummary, error)
	ServerGames(ctx context.Context, handle string, page int) (models.Page[models.Game], error)

	Maps(ctx context.Context, page int, raceOnly bool) (models.Page[models.MapSummary], error)
	Map(ctx context.Context, name string) (*models.MapSummary, error)
	MapGames(ctx context.Context, name string, page int) (models.Page[models.Game], error)

	Modes(ctx context.Context) ([]models.ModeSummary, error)
	Mode(ctx context.Context, name string) (*models.ModeSummary, error)
	ModeGames(ctx context.Context, name string, page int) (models.Page[models.Game], error)

	Mutators(ctx context.Context) ([]models.MutatorSummary, error)
	Mutator(ctx context.Context, name string) (*models.MutatorSummary, error)
	MutatorGames(ctx context.Context, name string, page int) (models.Page[models.Game], error)

	Weapons(ctx context.Context) ([]models.WeaponSummary, error)
	Weapon(ctx context.Context, name string) (*models.WeaponSummary, error)
}
