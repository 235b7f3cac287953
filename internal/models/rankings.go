package models

// RaceTime is one entry of a map's best race times.
type RaceTime struct {
	GameID int64   `json:"game_id"`
	Time   int64   `json:"time"`
	Name   string  `json:"name"`
	Handle *string `json:"handle"`
	Score  int64   `json:"score"`
}

// WeaponShare is a weapon's share of all wielded time.
type WeaponShare struct {
	Weapon      string  `json:"weapon"`
	TimeWielded int64   `json:"timewielded"`
	Share       float64 `json:"share"`
}

// WeaponDPM is a weapon's damage per minute of use.
type WeaponDPM struct {
	Weapon string  `json:"weapon"`
	Damage int64   `json:"damage"`
	Time   int64   `json:"time"`
	DPM    float64 `json:"dpm"`
}

// PlayerRank is a player's aggregate over a window. Only the metric the
// ranking is ordered by is guaranteed to be meaningful.
type PlayerRank struct {
	Handle    string  `json:"handle"`
	Games     int64   `json:"games"`
	Damage    int64   `json:"damage,omitempty"`
	TimeAlive int64   `json:"timealive,omitempty"`
	Frags     int64   `json:"frags"`
	Deaths    int64   `json:"deaths,omitempty"`
	DPM       float64 `json:"dpm,omitempty"`
	DPF       float64 `json:"dpf,omitempty"`
	KDR       float64 `json:"kdr,omitempty"`
}

type ModeCount struct {
	Name     string `json:"name"`
	LongName string `json:"longname"`
	Games    int64  `json:"games"`
}

type MutatorCount struct {
	Name      string `json:"name"`
	ShortName string `json:"shortname"`
	Link      string `json:"link"`
	Mode      string `json:"mode,omitempty"`
	Games     int64  `json:"games"`
}

type MapPlaytime struct {
	Map        string `json:"map"`
	PlayerTime int64  `json:"playertime"`
	Games      int64  `json:"games"`
}

// HandleGames counts games for a player or server handle.
type HandleGames struct {
	Handle string `json:"handle"`
	Games  int64  `json:"games"`
}

// WeaponRankings bundles the weapon leaderboards of a window.
type WeaponRankings struct {
	Days    int           `json:"days"`
	Wielded []WeaponShare `json:"wielded"`
	DPM     []WeaponDPM   `json:"dpm"`
}

// PlayerRankings bundles the player leaderboards of a window.
type PlayerRankings struct {
	Days  int           `json:"days"`
	DPM   []PlayerRank  `json:"dpm"`
	DPF   []PlayerRank  `json:"dpf"`
	KDR   []PlayerRank  `json:"kdr"`
	Games []HandleGames `json:"games"`
}
