package ruleset

import (
	"fmt"

	"go.uber.org/zap"
)

// DefaultVersion is assumed for games whose version no ruleset covers.
const DefaultVersion = "1.5.8"

// RedEclipse15 declares the Red Eclipse 1.5 development line.
func RedEclipse15() Definition {
	loadout := []string{"sword", "shotgun", "smg", "flamer", "plasma", "zapper", "rifle"}

	weapons := []string{"claw", "pistol"}
	weapons = append(weapons, loadout...)
	weapons = append(weapons, "grenade", "mine", "rocket", "melee")

	standard := []string{"claw", "pistol"}
	standard = append(standard, loadout...)
	standard = append(standard, "melee")

	return Definition{
		Name:  "Red Eclipse 1.5",
		Start: "1.5.4",
		End:   "1.5.8",
		Modes: map[string]int{
			"demo": 4, "edit": 6, "dm": 5, "ctf": 2, "dac": 3, "bb": 1, "race": 7,
		},
		ModeLongNames: map[string]string{
			"demo": "Demo",
			"edit": "Editing",
			"dm":   "Deathmatch",
			"ctf":  "Capture the Flag",
			"dac":  "Defend and Control",
			"bb":   "Bomber Ball",
			"race": "Race",
		},
		BaseMutators: []string{
			"multi", "ffa", "coop", "insta", "medieval", "kaboom", "duel",
			"survivor", "classic", "onslaught", "freestyle", "vampire",
			"resize", "hard", "basic", GSPMarker,
		},
		GSPMutators: map[string][]string{
			"dm":   {"gladiator", "oldschool"},
			"ctf":  {"quick", "defend", "protect"},
			"dac":  {"quick", "king"},
			"bb":   {"hold", "basket", "attack"},
			"race": {"timed", "endurance", "gauntlet"},
		},
		Weapons:         weapons,
		LoadoutWeapons:  loadout,
		StandardWeapons: standard,
		NotWielded:      []string{"melee"},
		NonStandard: Policy{
			Modes:    []string{"race"},
			Mutators: []string{"insta", "medieval", "gladiator", "kaboom"},
		},
	}
}

// Declarations lists every known ruleset in match priority order.
func Declarations() []Definition {
	return []Definition{RedEclipse15()}
}

// NewDefaultRegistry builds a registry holding every declared ruleset and
// verifies that defaultVersion resolves.
func NewDefaultRegistry(defaultVersion string, logger *zap.Logger) (*Registry, error) {
	reg := NewRegistry(defaultVersion, logger)
	for _, def := range Declarations() {
		rs, err := New(def)
		if err != nil {
			return nil, fmt.Errorf("failed to build ruleset: %w", err)
		}
		reg.Register(rs)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}
