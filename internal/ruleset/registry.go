package ruleset

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrNoRuleset is returned when neither a version nor the default version
// matches any registered ruleset.
var ErrNoRuleset = errors.New("no ruleset matches version")

// Registry maps game versions to rulesets. The first registered ruleset whose
// range contains a version wins. Resolutions are memoized per raw string.
type Registry struct {
	mu             sync.RWMutex
	rulesets       []*Ruleset
	cache          map[string]*Ruleset
	defaultVersion string
	logger         *zap.SugaredLogger
}

// NewRegistry creates an empty registry that falls back to defaultVersion.
func NewRegistry(defaultVersion string, logger *zap.Logger) *Registry {
	return &Registry{
		cache:          make(map[string]*Ruleset),
		defaultVersion: defaultVersion,
		logger:         logger.Sugar(),
	}
}

// Register appends a ruleset. Registration order is match priority.
func (r *Registry) Register(rs *Ruleset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rulesets = append(r.rulesets, rs)
	// Earlier resolutions may have fallen back to the default.
	r.cache = make(map[string]*Ruleset)
}

// Rulesets returns the registered rulesets in priority order.
func (r *Registry) Rulesets() []*Ruleset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Ruleset(nil), r.rulesets...)
}

// DefaultVersion is the version used for games with unknown versions.
func (r *Registry) DefaultVersion() string { return r.defaultVersion }

// Validate checks that the default version resolves. Callers treat a failure
// as fatal at startup.
func (r *Registry) Validate() error {
	_, err := r.Default()
	return err
}

// Default returns the ruleset of the default version.
func (r *Registry) Default() (*Ruleset, error) {
	return r.Resolve(r.defaultVersion)
}

// Resolve returns the ruleset for a version string. Unknown or malformed
// versions resolve to the default version's ruleset.
func (r *Registry) Resolve(version string) (*Ruleset, error) {
	r.mu.RLock()
	rs, ok := r.cache[version]
	r.mu.RUnlock()
	if ok {
		return rs, nil
	}

	rs = r.match(version)
	if rs == nil {
		if version == r.defaultVersion {
			return nil, fmt.Errorf("%w: default version %q", ErrNoRuleset, version)
		}
		fallback := r.match(r.defaultVersion)
		if fallback == nil {
			return nil, fmt.Errorf("%w: %q (default %q also unmatched)", ErrNoRuleset, version, r.defaultVersion)
		}
		r.logger.Warnw("Unknown game version, using default ruleset",
			"version", version,
			"default", r.defaultVersion,
		)
		rs = fallback
	}

	r.mu.Lock()
	// Another goroutine may have resolved it meanwhile; keep the first.
	if existing, ok := r.cache[version]; ok {
		rs = existing
	} else {
		r.cache[version] = rs
	}
	r.mu.Unlock()
	return rs, nil
}

func (r *Registry) match(version string) *Ruleset {
	v, err := ParseVersion(version)
	if err != nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rs := range r.rulesets {
		if rs.Contains(v) {
			return rs
		}
	}
	return nil
}
