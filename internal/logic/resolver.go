package logic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/redeclipse/stats-api/internal/models"
	"github.com/redeclipse/stats-api/internal/ruleset"
	"github.com/redeclipse/stats-api/internal/store"
	"github.com/redeclipse/stats-api/internal/worker"
)

var (
	// ErrNotFound is returned for unknown games, players, servers and maps
	ErrNotFound = store.ErrNotFound

	// ErrUnresolvable marks a game whose ruleset cannot be determined
	ErrUnresolvable = errors.New("game ruleset cannot be resolved")
)

var (
	precacheDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "redeclipse_precache_build_seconds",
		Help:    "Time spent building the game predicate precache",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	precacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "redeclipse_precache_entries",
		Help: "Game ids held across every precached predicate",
	})

	resolverLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redeclipse_resolver_lookups_total",
		Help: "Predicate lookups by resolution path",
	}, []string{"path"})
)

const (
	pathPrecache = "precache"
	pathCached   = "cached"
	pathCold     = "cold"
)

// fields are a game's raw mode and mutator values
type fields struct {
	mode     int
	mutators int
}

// Resolver decodes stored games through the ruleset of the server version
// that recorded them. Mode and mutator predicates are answered from a
// precache built at startup for every game up to the watermark, and from a
// per-game cache filled on demand for anything newer.
type Resolver struct {
	store    SemanticsStore
	registry *ruleset.Registry
	workers  int
	logger   *zap.SugaredLogger

	mu        sync.RWMutex
	versions  map[int64]string
	fields    map[int64]fields
	precache  map[string]map[int64]struct{}
	watermark int64
}

// NewResolver creates a resolver. Until BuildPrecache runs every lookup takes
// the per-game path.
func NewResolver(s SemanticsStore, registry *ruleset.Registry, workers int, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:    s,
		registry: registry,
		workers:  workers,
		logger:   logger.Sugar(),
		versions: make(map[int64]string),
		fields:   make(map[int64]fields),
		precache: make(map[string]map[int64]struct{}),
	}
}

func modeKey(name string) string    { return "mode:" + name }
func mutatorKey(name string) string { return "mut:" + name }

// BuildPrecache computes, for every ruleset and every mode and mutator it
// defines, the set of existing games for which the predicate holds. It must
// complete before requests are served.
func (r *Resolver) BuildPrecache(ctx context.Context) error {
	start := time.Now()

	watermark, err := r.store.MaxGameID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read watermark: %w", err)
	}
	versions, err := r.store.GameVersions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load game versions: %w", err)
	}

	// Distinct versions grouped by the ruleset they resolve to
	byRuleset := make(map[*ruleset.Ruleset][]string)
	seen := make(map[string]bool)
	for _, v := range versions {
		if seen[v] {
			continue
		}
		seen[v] = true
		rs, err := r.registry.Resolve(v)
		if err != nil {
			return fmt.Errorf("version %q: %w", v, err)
		}
		byRuleset[rs] = append(byRuleset[rs], v)
	}

	sets := make(map[string]map[int64]struct{})
	var setsMu sync.Mutex
	merge := func(key string, ids []int64) {
		setsMu.Lock()
		defer setsMu.Unlock()
		set := sets[key]
		for _, id := range ids {
			set[id] = struct{}{}
		}
	}

	// Every defined predicate gets a set, even when no game matches it
	for _, rs := range r.registry.Rulesets() {
		for _, name := range rs.ModeNames() {
			if sets[modeKey(name)] == nil {
				sets[modeKey(name)] = make(map[int64]struct{})
			}
		}
		for _, name := range rs.MutatorNames() {
			if sets[mutatorKey(name)] == nil {
				sets[mutatorKey(name)] = make(map[int64]struct{})
			}
		}
	}

	pool := worker.NewPool(worker.PoolConfig{
		WorkerCount: r.workers,
		Logger:      r.logger.Desugar(),
	})
	pool.Start(ctx)

	dropped := 0
	enqueue := func(job worker.Job) {
		if !pool.Enqueue(job) {
			dropped++
		}
	}

	for _, rs := range r.registry.Rulesets() {
		vs := byRuleset[rs]
		if len(vs) == 0 {
			continue
		}
		sort.Strings(vs)

		for _, name := range rs.ModeNames() {
			id, _ := rs.ModeID(name)
			enqueue(worker.Job{
				Name: rs.Name() + " " + modeKey(name),
				Run: func(ctx context.Context) error {
					ids, err := r.store.GameIDsByMode(ctx, vs, id)
					if err != nil {
						return err
					}
					merge(modeKey(name), ids)
					return nil
				},
			})
		}
		for _, name := range rs.MutatorNames() {
			conds := rs.MutatorConditions(name)
			enqueue(worker.Job{
				Name: rs.Name() + " " + mutatorKey(name),
				Run: func(ctx context.Context) error {
					ids, err := r.store.GameIDsByMutator(ctx, vs, conds)
					if err != nil {
						return err
					}
					merge(mutatorKey(name), ids)
					return nil
				},
			})
		}
	}

	waitErr := pool.Wait()
	if dropped > 0 {
		err := ctx.Err()
		if err == nil {
			err = fmt.Errorf("%d precache jobs dropped", dropped)
		}
		return fmt.Errorf("failed to build precache: %w", errors.Join(err, waitErr))
	}
	if waitErr != nil {
		return fmt.Errorf("failed to build precache: %w", waitErr)
	}

	entries := 0
	for _, set := range sets {
		entries += len(set)
	}

	r.mu.Lock()
	for id, v := range versions {
		r.versions[id] = v
	}
	r.precache = sets
	r.watermark = watermark
	r.mu.Unlock()

	elapsed := time.Since(start)
	precacheDuration.Observe(elapsed.Seconds())
	precacheSize.Set(float64(entries))
	r.logger.Infow("Built game predicate precache",
		"watermark", watermark,
		"games", len(versions),
		"rulesets", len(byRuleset),
		"predicates", len(sets),
		"entries", entries,
		"duration", elapsed,
	)
	return nil
}

// Watermark is the highest game id covered by the precache.
func (r *Resolver) Watermark() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.watermark
}

// precached answers a predicate from the precache. ok is false when the
// game is above the watermark, has no recorded version, or the predicate
// is unknown to every ruleset.
func (r *Resolver) precached(key string, gameID int64) (hit, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if gameID > r.watermark {
		return false, false
	}
	if _, known := r.versions[gameID]; !known {
		return false, false
	}
	set, exists := r.precache[key]
	if !exists {
		return false, false
	}
	_, hit = set[gameID]
	return hit, true
}

// Remember primes the per-game caches from an already loaded game row.
func (r *Resolver) Remember(g models.Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[g.ID] = fields{mode: g.Mode, mutators: g.Mutators}
	if g.Server != nil {
		r.versions[g.ID] = g.Server.Version
	}
}

// GameRuleset returns the ruleset of the server version that recorded a game.
func (r *Resolver) GameRuleset(ctx context.Context, gameID int64) (*ruleset.Ruleset, error) {
	r.mu.RLock()
	version, ok := r.versions[gameID]
	r.mu.RUnlock()

	if !ok {
		v, err := r.store.GameVersion(ctx, gameID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("game %d: %w: %w", gameID, ErrUnresolvable, err)
			}
			return nil, err
		}
		version = v
		r.mu.Lock()
		r.versions[gameID] = version
		r.mu.Unlock()
	}

	rs, err := r.registry.Resolve(version)
	if err != nil {
		return nil, fmt.Errorf("game %d: %w: %w", gameID, ErrUnresolvable, err)
	}
	return rs, nil
}

// gameFields returns a game's raw values and reports whether they came from
// the cache.
func (r *Resolver) gameFields(ctx context.Context, gameID int64) (fields, bool, error) {
	r.mu.RLock()
	f, ok := r.fields[gameID]
	r.mu.RUnlock()
	if ok {
		return f, true, nil
	}

	mode, mutators, err := r.store.GameModeMutators(ctx, gameID)
	if err != nil {
		return fields{}, false, fmt.Errorf("game %d: %w", gameID, err)
	}
	f = fields{mode: mode, mutators: mutators}
	r.mu.Lock()
	r.fields[gameID] = f
	r.mu.Unlock()
	return f, false, nil
}

// live resolves the ruleset and raw values of a game outside the precache
func (r *Resolver) live(ctx context.Context, gameID int64) (*ruleset.Ruleset, fields, error) {
	rs, err := r.GameRuleset(ctx, gameID)
	if err != nil {
		return nil, fields{}, err
	}
	f, cached, err := r.gameFields(ctx, gameID)
	if err != nil {
		return nil, fields{}, err
	}
	if cached {
		resolverLookups.WithLabelValues(pathCached).Inc()
	} else {
		resolverLookups.WithLabelValues(pathCold).Inc()
	}
	return rs, f, nil
}

// IsModeActive reports whether a game was played in the named mode.
func (r *Resolver) IsModeActive(ctx context.Context, gameID int64, mode string) (bool, error) {
	if hit, ok := r.precached(modeKey(mode), gameID); ok {
		resolverLookups.WithLabelValues(pathPrecache).Inc()
		return hit, nil
	}
	rs, f, err := r.live(ctx, gameID)
	if err != nil {
		return false, err
	}
	return rs.IsModeActive(f.mode, mode), nil
}

// IsMutatorActive reports whether the named mutator was active in a game.
func (r *Resolver) IsMutatorActive(ctx context.Context, gameID int64, mutator string) (bool, error) {
	if hit, ok := r.precached(mutatorKey(mutator), gameID); ok {
		resolverLookups.WithLabelValues(pathPrecache).Inc()
		return hit, nil
	}
	rs, f, err := r.live(ctx, gameID)
	if err != nil {
		return false, err
	}
	return rs.IsMutatorActive(f.mode, f.mutators, mutator), nil
}

// IsNormalWeapons reports whether a game's weapon statistics are comparable
// with the standard roster. The first disqualifying mode or mutator decides.
func (r *Resolver) IsNormalWeapons(ctx context.Context, gameID int64) (bool, error) {
	rs, err := r.GameRuleset(ctx, gameID)
	if err != nil {
		return false, err
	}
	policy := rs.NonStandardWeapons()
	for _, mode := range policy.Modes {
		active, err := r.IsModeActive(ctx, gameID, mode)
		if err != nil {
			return false, err
		}
		if active {
			return false, nil
		}
	}
	for _, mut := range policy.Mutators {
		active, err := r.IsMutatorActive(ctx, gameID, mut)
		if err != nil {
			return false, err
		}
		if active {
			return false, nil
		}
	}
	return true, nil
}

// ModeName returns the name of a game's mode.
func (r *Resolver) ModeName(ctx context.Context, gameID int64) (string, error) {
	rs, f, err := r.live(ctx, gameID)
	if err != nil {
		return "", err
	}
	name, _ := rs.ModeName(f.mode)
	return name, nil
}

// Mutators lists the mutators active in a game.
func (r *Resolver) Mutators(ctx context.Context, gameID int64, short bool) ([]string, error) {
	rs, f, err := r.live(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return rs.MutatorsActive(f.mode, f.mutators, short), nil
}

// Describe fills the decoded mode and mutator names of a loaded game.
func (r *Resolver) Describe(ctx context.Context, g *models.Game) error {
	r.Remember(*g)
	rs, f, err := r.live(ctx, g.ID)
	if err != nil {
		return err
	}
	g.ModeName, _ = rs.ModeName(f.mode)
	g.ModeLongName = rs.ModeLongName(g.ModeName)
	g.MutatorNames = rs.MutatorsActive(f.mode, f.mutators, false)
	return nil
}
