package handlers

import (
	"context"

	"github.com/redeclipse/stats-api/internal/logic"
	"github.com/redeclipse/stats-api/internal/models"
)

// MockRankingService implements logic.RankingService. Methods without a
// Func field panic through the nil embedded interface.
type MockRankingService struct {
	logic.RankingService
	WeaponsByWieldedFunc func(ctx context.Context, days int) ([]models.WeaponShare, error)
	PlayersByKDRFunc     func(ctx context.Context, days int) ([]models.PlayerRank, error)
	PlayersByGamesFunc   func(ctx context.Context, days, limit int) ([]models.HandleGames, error)
	PlayerRankingsFunc   func(ctx context.Context, days, limit int) (*models.PlayerRankings, error)
	MapTopRacesFunc      func(ctx context.Context, mapName string, endurance bool, limit int) ([]models.RaceTime, error)
}

func (m *MockRankingService) WeaponsByWielded(ctx context.Context, days int) ([]models.WeaponShare, error) {
	if m.WeaponsByWieldedFunc != nil {
		return m.WeaponsByWieldedFunc(ctx, days)
	}
	return nil, nil
}

func (m *MockRankingService) PlayersByKDR(ctx context.Context, days int) ([]models.PlayerRank, error) {
	if m.PlayersByKDRFunc != nil {
		return m.PlayersByKDRFunc(ctx, days)
	}
	return nil, nil
}

func (m *MockRankingService) PlayersByGames(ctx context.Context, days, limit int) ([]models.HandleGames, error) {
	if m.PlayersByGamesFunc != nil {
		return m.PlayersByGamesFunc(ctx, days, limit)
	}
	return nil, nil
}

func (m *MockRankingService) PlayerRankings(ctx context.Context, days, limit int) (*models.PlayerRankings, error) {
	if m.PlayerRankingsFunc != nil {
		return m.PlayerRankingsFunc(ctx, days, limit)
	}
	return &models.PlayerRankings{Days: days}, nil
}

func (m *MockRankingService) MapTopRaces(ctx context.Context, mapName string, endurance bool, limit int) ([]models.RaceTime, error) {
	if m.MapTopRacesFunc != nil {
		return m.MapTopRacesFunc(ctx, mapName, endurance, limit)
	}
	return nil, nil
}

// MockActivityService implements logic.ActivityService
type MockActivityService struct {
	HoursFunc func(ctx context.Context, days int) (*models.ActivityHistogram, error)
}

func (m *MockActivityService) Hours(ctx context.Context, days int) (*models.ActivityHistogram, error) {
	if m.HoursFunc != nil {
		return m.HoursFunc(ctx, days)
	}
	return &models.ActivityHistogram{Days: days}, nil
}

func (m *MockActivityService) Weekdays(ctx context.Context, days int) (*models.ActivityHistogram, error) {
	return &models.ActivityHistogram{Days: days}, nil
}

func (m *MockActivityService) WeekdayHours(ctx context.Context, days int) (*models.ActivityHistogram, error) {
	return &models.ActivityHistogram{Days: days}, nil
}

// MockBrowseService implements logic.BrowseService
type MockBrowseService struct {
	logic.BrowseService
	GamesFunc             func(ctx context.Context, page int) (models.Page[models.Game], error)
	GameFunc              func(ctx context.Context, id int64) (*models.GameDetail, error)
	PlayerFunc            func(ctx context.Context, handle string) (*models.PlayerSummary, error)
	PlayerGamesFunc       func(ctx context.Context, handle string, page int) (models.Page[models.Game], error)
	PlayerPerformanceFunc func(ctx context.Context, handle string, games int) (*models.PlayerPerformance, error)
	MapsFunc              func(ctx context.Context, page int, raceOnly bool) (models.Page[models.MapSummary], error)
	MutatorFunc           func(ctx context.Context, name string) (*models.MutatorSummary, error)
}

func (m *MockBrowseService) Games(ctx context.Context, page int) (models.Page[models.Game], error) {
	if m.GamesFunc != nil {
		return m.GamesFunc(ctx, page)
	}
	return models.NewPage[models.Game](page, 25, 0, nil), nil
}

func (m *MockBrowseService) Game(ctx context.Context, id int64) (*models.GameDetail, error) {
	if m.GameFunc != nil {
		return m.GameFunc(ctx, id)
	}
	return &models.GameDetail{Game: models.Game{ID: id}}, nil
}

func (m *MockBrowseService) Player(ctx context.Context, handle string) (*models.PlayerSummary, error) {
	if m.PlayerFunc != nil {
		return m.PlayerFunc(ctx, handle)
	}
	return &models.PlayerSummary{Handle: handle}, nil
}

func (m *MockBrowseService) PlayerGames(ctx context.Context, handle string, page int) (models.Page[models.Game], error) {
	if m.PlayerGamesFunc != nil {
		return m.PlayerGamesFunc(ctx, handle, page)
	}
	return models.NewPage[models.Game](page, 25, 0, nil), nil
}

func (m *MockBrowseService) PlayerPerformance(ctx context.Context, handle string, games int) (*models.PlayerPerformance, error) {
	if m.PlayerPerformanceFunc != nil {
		return m.PlayerPerformanceFunc(ctx, handle, games)
	}
	return &models.PlayerPerformance{}, nil
}

func (m *MockBrowseService) Maps(ctx context.Context, page int, raceOnly bool) (models.Page[models.MapSummary], error) {
	if m.MapsFunc != nil {
		return m.MapsFunc(ctx, page, raceOnly)
	}
	return models.NewPage[models.MapSummary](page, 25, 0, nil), nil
}

func (m *MockBrowseService) Mutator(ctx context.Context, name string) (*models.MutatorSummary, error) {
	if m.MutatorFunc != nil {
		return m.MutatorFunc(ctx, name)
	}
	return &models.MutatorSummary{Link: name}, nil
}

// MockPinger reports a fixed error
type MockPinger struct{ Err error }

func (m MockPinger) Ping(ctx context.Context) error { return m.Err }

type fixedWatermark int64

func (w fixedWatermark) Watermark() int64 { return int64(w) }
