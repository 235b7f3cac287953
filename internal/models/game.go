package models

// Game is one recorded match. Mode and Mutators are the raw values written by
// the game server and only mean something under the game's ruleset.
type Game struct {
	ID            int64  `json:"id"`
	Time          int64  `json:"time"`
	Map           string `json:"map"`
	Mode          int    `json:"-"`
	Mutators      int    `json:"-"`
	TimePlayed    int64  `json:"timeplayed"`
	UniquePlayers int    `json:"uniqueplayers"`
	NormalWeapons bool   `json:"normalweapons"`

	// Decoded through the game's ruleset.
	ModeName     string   `json:"mode,omitempty"`
	ModeLongName string   `json:"mode_longname,omitempty"`
	MutatorNames []string `json:"mutators,omitempty"`

	Server *GameServer `json:"server,omitempty"`
}

type GameServer struct {
	GameID  int64  `json:"game_id"`
	Handle  string `json:"handle"`
	Flags   string `json:"flags"`
	Desc    string `json:"desc"`
	Version string `json:"version"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type GamePlayer struct {
	GameID     int64         `json:"game_id"`
	Name       string        `json:"name"`
	Handle     *string       `json:"handle"`
	Score      int64         `json:"score"`
	TimeAlive  int64         `json:"timealive"`
	Frags      int64         `json:"frags"`
	Deaths     int64         `json:"deaths"`
	WID        int           `json:"wid"`
	TimeActive int64         `json:"timeactive"`
	Captures   []GameCapture `json:"captures"`
	Bombings   []GameBombing `json:"bombings"`
}

// HandleOrName identifies a player across games: the registered handle when
// present, otherwise the display name.
func (p GamePlayer) HandleOrName() string {
	if p.Handle != nil && *p.Handle != "" {
		return *p.Handle
	}
	return p.Name
}

type GameTeam struct {
	GameID int64  `json:"game_id"`
	Team   int    `json:"team"`
	Score  int64  `json:"score"`
	Name   string `json:"name"`
}

// GameFFARound is one player's participation in a free-for-all round.
type GameFFARound struct {
	GameID       int64   `json:"game_id"`
	Player       int     `json:"player"`
	PlayerHandle *string `json:"playerhandle"`
	Round        int     `json:"round"`
	Winner       bool    `json:"winner"`
}

// FFARound combines the rows of one round.
type FFARound struct {
	Round   int   `json:"round"`
	Winner  *int  `json:"winner"`
	Players []int `json:"players"`
}

type GameCapture struct {
	GameID       int64   `json:"game_id"`
	Player       int     `json:"player"`
	PlayerHandle *string `json:"playerhandle"`
	Capturing    int     `json:"capturing"`
	Captured     int     `json:"captured"`
}

type GameBombing struct {
	GameID       int64   `json:"game_id"`
	Player       int     `json:"player"`
	PlayerHandle *string `json:"playerhandle"`
	Bombing      int     `json:"bombing"`
	Bombed       int     `json:"bombed"`
}

// WeaponStats are summed weapon counters, per game, player or globally.
type WeaponStats struct {
	Name        string `json:"name"`
	TimeWielded int64  `json:"timewielded"`
	TimeLoadout int64  `json:"timeloadout"`
	Damage1     int64  `json:"damage1"`
	Frags1      int64  `json:"frags1"`
	Hits1       int64  `json:"hits1"`
	FlakHits1   int64  `json:"flakhits1"`
	Shots1      int64  `json:"shots1"`
	FlakShots1  int64  `json:"flakshots1"`
	Damage2     int64  `json:"damage2"`
	Frags2      int64  `json:"frags2"`
	Hits2       int64  `json:"hits2"`
	FlakHits2   int64  `json:"flakhits2"`
	Shots2      int64  `json:"shots2"`
	FlakShots2  int64  `json:"flakshots2"`
}

// Damage is the total of both fire modes.
func (w WeaponStats) Damage() int64 { return w.Damage1 + w.Damage2 }

// GameDetail is a game with every per-game record attached.
type GameDetail struct {
	Game
	Players   []GamePlayer  `json:"players"`
	Teams     []GameTeam    `json:"teams"`
	FFARounds []FFARound    `json:"ffarounds"`
	Weapons   []WeaponStats `json:"weapons,omitempty"`
}
