package handlers

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/redeclipse/stats-api/internal/logic"
	"github.com/redeclipse/stats-api/internal/models"
)

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Precache reports how far the predicate precache reaches
type Precache interface {
	Watermark() int64
}

type Config struct {
	Logger *zap.Logger
	// Dependencies reported by /ready, keyed by name
	Checks   map[string]Pinger
	Precache Precache
	// Paging constants exposed at /api/config
	API models.APIConfig
	// Services
	Rankings logic.RankingService
	Activity logic.ActivityService
	Browse   logic.BrowseService
}

type Handler struct {
	logger    *zap.SugaredLogger
	validator *validator.Validate
	checks    map[string]Pinger
	precache  Precache
	api       models.APIConfig
	rankings  logic.RankingService
	activity  logic.ActivityService
	browse    logic.BrowseService
}

func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		logger:    logger.Sugar(),
		validator: validator.New(),
		checks:    cfg.Checks,
		precache:  cfg.Precache,
		api:       cfg.API,
		rankings:  cfg.Rankings,
		activity:  cfg.Activity,
		browse:    cfg.Browse,
	}
}
