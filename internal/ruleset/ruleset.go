// Package ruleset decodes the version-dependent game vocabulary of Red Eclipse:
// mode ids, mutator bitmasks, the weapon roster and the policy that decides
// whether a game's weapon statistics are comparable with other games.
package ruleset

import (
	"fmt"
	"sort"
)

// GSPMarker is the placeholder in a base mutator list that marks where the
// game-specific (mode-scoped) mutator bits begin.
const GSPMarker = "gsp"

// AnyMode marks a mutator condition that is not scoped to a mode.
const AnyMode = -1

// Policy names the modes and mutators whose games produce non-standard
// weapon statistics.
type Policy struct {
	Modes    []string
	Mutators []string
}

// Definition is the static declaration of one ruleset.
type Definition struct {
	Name          string
	Start         string
	End           string
	Modes         map[string]int
	ModeLongNames map[string]string
	// BaseMutators must contain GSPMarker exactly once.
	BaseMutators []string
	// GSPMutators is keyed by mode name.
	GSPMutators     map[string][]string
	Weapons         []string
	LoadoutWeapons  []string
	StandardWeapons []string
	NotWielded      []string
	NonStandard     Policy
}

// Mutator is one named bit of a game's mutator mask.
type Mutator struct {
	Name  string `json:"name"`
	Short string `json:"shortname"`
	Mask  int    `json:"mask"`
	// Mode is empty for base mutators.
	Mode string `json:"mode,omitempty"`
}

// Link is the identifier used to browse a mutator. Mode-scoped mutators are
// prefixed with their mode so that shared names stay distinguishable.
func (m Mutator) Link() string {
	if m.Mode == "" {
		return m.Name
	}
	return m.Mode + "-" + m.Name
}

// MutatorCondition is a raw (mode, mask) test that is true for games where
// the mutator is active. Mode is AnyMode for base mutators.
type MutatorCondition struct {
	Mode int
	Mask int
}

// Ruleset is an immutable, fully decoded ruleset.
type Ruleset struct {
	name      string
	start     Version
	end       Version
	startRaw  string
	endRaw    string
	gspOffset int

	modes     map[string]int
	modeByID  map[int]string
	longNames map[string]string

	base  []Mutator
	gsp   map[int][]Mutator
	masks map[string]int
	short map[string]string

	weapons    []string
	loadout    []string
	standard   []string
	notWielded map[string]bool
	policy     Policy
}

// New builds a Ruleset from its declaration.
func New(def Definition) (*Ruleset, error) {
	start, err := ParseVersion(def.Start)
	if err != nil {
		return nil, fmt.Errorf("ruleset %q start: %w", def.Name, err)
	}
	end, err := ParseVersion(def.End)
	if err != nil {
		return nil, fmt.Errorf("ruleset %q end: %w", def.Name, err)
	}
	if start.Compare(end) > 0 {
		return nil, fmt.Errorf("ruleset %q: start %s is after end %s", def.Name, def.Start, def.End)
	}

	rs := &Ruleset{
		name:       def.Name,
		start:      start,
		end:        end,
		startRaw:   def.Start,
		endRaw:     def.End,
		gspOffset:  -1,
		modes:      make(map[string]int, len(def.Modes)),
		modeByID:   make(map[int]string, len(def.Modes)),
		longNames:  make(map[string]string, len(def.Modes)),
		gsp:        make(map[int][]Mutator),
		masks:      make(map[string]int),
		weapons:    append([]string(nil), def.Weapons...),
		loadout:    append([]string(nil), def.LoadoutWeapons...),
		standard:   append([]string(nil), def.StandardWeapons...),
		notWielded: make(map[string]bool, len(def.NotWielded)),
		policy:     def.NonStandard,
	}

	for name, id := range def.Modes {
		if other, dup := rs.modeByID[id]; dup {
			return nil, fmt.Errorf("ruleset %q: modes %q and %q share id %d", def.Name, other, name, id)
		}
		rs.modes[name] = id
		rs.modeByID[id] = name
		rs.longNames[name] = name
		if long, ok := def.ModeLongNames[name]; ok {
			rs.longNames[name] = long
		}
	}

	// Base mutators take their index as bit; the marker itself takes no bit.
	var names []string
	for i, name := range def.BaseMutators {
		if name == GSPMarker {
			if rs.gspOffset >= 0 {
				return nil, fmt.Errorf("ruleset %q: duplicate %q marker", def.Name, GSPMarker)
			}
			rs.gspOffset = i
			continue
		}
		m := Mutator{Name: name, Mask: 1 << i}
		rs.base = append(rs.base, m)
		rs.masks[name] = m.Mask
		names = append(names, name)
	}
	if rs.gspOffset < 0 {
		return nil, fmt.Errorf("ruleset %q: base mutators lack the %q marker", def.Name, GSPMarker)
	}

	// Mode-scoped mutators share the bit space starting at the marker.
	for _, modeName := range rs.ModeNames() {
		list, ok := def.GSPMutators[modeName]
		if !ok {
			continue
		}
		id := rs.modes[modeName]
		for i, name := range list {
			m := Mutator{Name: name, Mask: 1 << (rs.gspOffset + i), Mode: modeName}
			rs.gsp[id] = append(rs.gsp[id], m)
			if _, seen := rs.masks[name]; !seen {
				names = append(names, name)
			}
			rs.masks[name] = m.Mask
		}
	}
	for modeName := range def.GSPMutators {
		if _, ok := rs.modes[modeName]; !ok {
			return nil, fmt.Errorf("ruleset %q: mode-scoped mutators declared for unknown mode %q", def.Name, modeName)
		}
	}

	rs.short = shortNames(names)
	for i := range rs.base {
		rs.base[i].Short = rs.short[rs.base[i].Name]
	}
	for id := range rs.gsp {
		for i := range rs.gsp[id] {
			rs.gsp[id][i].Short = rs.short[rs.gsp[id][i].Name]
		}
	}

	for _, w := range def.NotWielded {
		rs.notWielded[w] = true
	}
	for _, m := range def.NonStandard.Modes {
		if _, ok := rs.modes[m]; !ok {
			return nil, fmt.Errorf("ruleset %q: non-standard policy names unknown mode %q", def.Name, m)
		}
	}
	for _, m := range def.NonStandard.Mutators {
		if _, ok := rs.masks[m]; !ok {
			return nil, fmt.Errorf("ruleset %q: non-standard policy names unknown mutator %q", def.Name, m)
		}
	}

	return rs, nil
}

// shortNames picks, for each name, the shortest prefix of at least two
// characters that no other name starts with. Names at most one character
// longer than the candidate prefix are kept whole. This is a heuristic and
// does not guarantee uniqueness for every possible vocabulary.
func shortNames(names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		for t := 2; ; t++ {
			if len(name)-t <= 1 {
				out[name] = name
				break
			}
			candidate := name[:t]
			clash := false
			for _, other := range names {
				if other != name && prefix(other, t) == candidate {
					clash = true
					break
				}
			}
			if !clash {
				out[name] = candidate
				break
			}
		}
	}
	return out
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

func (r *Ruleset) Name() string        { return r.name }
func (r *Ruleset) StartString() string { return r.startRaw }
func (r *Ruleset) EndString() string   { return r.endRaw }
func (r *Ruleset) GSPOffset() int      { return r.gspOffset }

// Contains reports whether v lies within the inclusive version range.
func (r *Ruleset) Contains(v Version) bool {
	return r.start.Compare(v) <= 0 && v.Compare(r.end) <= 0
}

// ModeID returns the raw id of a mode name.
func (r *Ruleset) ModeID(name string) (int, bool) {
	id, ok := r.modes[name]
	return id, ok
}

// ModeName returns the short name of a raw mode id.
func (r *Ruleset) ModeName(id int) (string, bool) {
	name, ok := r.modeByID[id]
	return name, ok
}

// ModeLongName returns the display name of a mode.
func (r *Ruleset) ModeLongName(name string) string {
	if long, ok := r.longNames[name]; ok {
		return long
	}
	return name
}

// ModeNames lists mode names ordered by id.
func (r *Ruleset) ModeNames() []string {
	ids := make([]int, 0, len(r.modeByID))
	for id := range r.modeByID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = r.modeByID[id]
	}
	return names
}

// MutatorsActive lists the mutators set in mask: base mutators in declaration
// order, then the mode-scoped mutators of mode.
func (r *Ruleset) MutatorsActive(mode, mask int, short bool) []string {
	out := []string{}
	add := func(m Mutator) {
		if mask&m.Mask == 0 {
			return
		}
		if short {
			out = append(out, m.Short)
		} else {
			out = append(out, m.Name)
		}
	}
	for _, m := range r.base {
		add(m)
	}
	for _, m := range r.gsp[mode] {
		add(m)
	}
	return out
}

// MutatorMask returns the bit of a mutator in the merged table.
func (r *Ruleset) MutatorMask(name string) (int, bool) {
	m, ok := r.masks[name]
	return m, ok
}

// ShortName returns the abbreviated display name of a mutator.
func (r *Ruleset) ShortName(name string) string {
	if s, ok := r.short[name]; ok {
		return s
	}
	return name
}

// HasMode reports whether the ruleset defines the mode.
func (r *Ruleset) HasMode(name string) bool {
	_, ok := r.modes[name]
	return ok
}

// HasMutator reports whether the ruleset defines the mutator, base or scoped.
func (r *Ruleset) HasMutator(name string) bool {
	_, ok := r.masks[name]
	return ok
}

// MutatorConditions returns the raw tests under which the mutator is active.
// A mode-scoped name declared for several modes yields one condition each.
func (r *Ruleset) MutatorConditions(name string) []MutatorCondition {
	var out []MutatorCondition
	for _, m := range r.base {
		if m.Name == name {
			out = append(out, MutatorCondition{Mode: AnyMode, Mask: m.Mask})
		}
	}
	for _, modeName := range r.ModeNames() {
		id := r.modes[modeName]
		for _, m := range r.gsp[id] {
			if m.Name == name {
				out = append(out, MutatorCondition{Mode: id, Mask: m.Mask})
			}
		}
	}
	return out
}

// BaseMutators lists the mode-independent mutators in bit order.
func (r *Ruleset) BaseMutators() []Mutator {
	return append([]Mutator(nil), r.base...)
}

// GSPMutators lists the mutators scoped to a mode.
func (r *Ruleset) GSPMutators(mode string) []Mutator {
	id, ok := r.modes[mode]
	if !ok {
		return nil
	}
	return append([]Mutator(nil), r.gsp[id]...)
}

// Mutators lists every mutator: base first, then scoped ones by mode id.
func (r *Ruleset) Mutators() []Mutator {
	out := r.BaseMutators()
	for _, mode := range r.ModeNames() {
		out = append(out, r.GSPMutators(mode)...)
	}
	return out
}

// MutatorNames lists the distinct mutator names of the merged table.
func (r *Ruleset) MutatorNames() []string {
	seen := make(map[string]bool, len(r.masks))
	var out []string
	for _, m := range r.Mutators() {
		if !seen[m.Name] {
			seen[m.Name] = true
			out = append(out, m.Name)
		}
	}
	return out
}

func (r *Ruleset) Weapons() []string         { return append([]string(nil), r.weapons...) }
func (r *Ruleset) LoadoutWeapons() []string  { return append([]string(nil), r.loadout...) }
func (r *Ruleset) StandardWeapons() []string { return append([]string(nil), r.standard...) }

// NotWielded lists weapons that track loadout time instead of wielded time.
func (r *Ruleset) NotWielded() []string {
	out := make([]string, 0, len(r.notWielded))
	for _, w := range r.weapons {
		if r.notWielded[w] {
			out = append(out, w)
		}
	}
	return out
}

// IsNotWielded reports whether a weapon's time is its loadout time.
func (r *Ruleset) IsNotWielded(weapon string) bool { return r.notWielded[weapon] }

// HasWeapon reports whether the weapon is part of the roster.
func (r *Ruleset) HasWeapon(weapon string) bool {
	for _, w := range r.weapons {
		if w == weapon {
			return true
		}
	}
	return false
}

// NonStandardWeapons returns the policy for non-comparable weapon statistics.
func (r *Ruleset) NonStandardWeapons() Policy {
	return Policy{
		Modes:    append([]string(nil), r.policy.Modes...),
		Mutators: append([]string(nil), r.policy.Mutators...),
	}
}

// IsModeActive evaluates a mode predicate against raw game fields.
func (r *Ruleset) IsModeActive(rawMode int, name string) bool {
	id, ok := r.modes[name]
	return ok && id == rawMode
}

// IsMutatorActive evaluates a mutator predicate against raw game fields.
func (r *Ruleset) IsMutatorActive(rawMode, rawMutators int, name string) bool {
	for _, c := range r.MutatorConditions(name) {
		if (c.Mode == AnyMode || c.Mode == rawMode) && rawMutators&c.Mask != 0 {
			return true
		}
	}
	return false
}

// IsNormalWeapons applies the non-standard policy to raw game fields.
func (r *Ruleset) IsNormalWeapons(rawMode, rawMutators int) bool {
	for _, m := range r.policy.Modes {
		if r.IsModeActive(rawMode, m) {
			return false
		}
	}
	for _, m := range r.policy.Mutators {
		if r.IsMutatorActive(rawMode, rawMutators, m) {
			return false
		}
	}
	return true
}
