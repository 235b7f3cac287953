package models

// Page wraps one page of a paged listing.
type Page[T any] struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	Pages   int64 `json:"pages"`
	Items   []T   `json:"items"`
}

// NewPage computes the page count for total rows.
func NewPage[T any](page, perPage int, total int64, items []T) Page[T] {
	pages := int64(0)
	if perPage > 0 {
		pages = (total + int64(perPage) - 1) / int64(perPage)
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Page: page, PerPage: perPage, Total: total, Pages: pages, Items: items}
}

// PlayerSummary is a player handle with its recent games.
type PlayerSummary struct {
	Handle      string  `json:"handle"`
	Name        string  `json:"name"`
	Games       int64   `json:"games"`
	FirstGame   int64   `json:"first_game"`
	LatestGame  int64   `json:"latest_game"`
	LatestTime  int64   `json:"latest_time"`
	RecentGames []int64 `json:"recent_games,omitempty"`
}

// PlayerPerformance summarises a player's last games.
type PlayerPerformance struct {
	Handle  string        `json:"handle"`
	Games   int           `json:"games"`
	Damage  int64         `json:"damage"`
	Frags   int64         `json:"frags"`
	Deaths  int64         `json:"deaths"`
	DPM     float64       `json:"dpm"`
	FPM     float64       `json:"fpm"`
	KDR     float64       `json:"kdr"`
	DFR     float64       `json:"dfr"`
	TopMaps []MapPlaytime `json:"topmaps"`
}

type ServerSummary struct {
	Handle      string  `json:"handle"`
	Desc        string  `json:"desc"`
	Version     string  `json:"version"`
	Host        string  `json:"host"`
	Port        int     `json:"port"`
	Games       int64   `json:"games"`
	FirstGame   int64   `json:"first_game"`
	LatestGame  int64   `json:"latest_game"`
	RecentGames []int64 `json:"recent_games,omitempty"`
}

type MapSummary struct {
	Name           string     `json:"name"`
	Games          int64      `json:"games"`
	GameTime       int64      `json:"gametime"`
	PlayerTime     int64      `json:"playertime"`
	FirstGame      int64      `json:"first_game"`
	LatestGame     int64      `json:"latest_game"`
	RecentGames    []int64    `json:"recent_games,omitempty"`
	TopRaces       []RaceTime `json:"topraces,omitempty"`
	EnduranceRaces []RaceTime `json:"endurance_topraces,omitempty"`
}

type ModeSummary struct {
	Name        string  `json:"name"`
	LongName    string  `json:"longname"`
	Games       int64   `json:"games"`
	RecentGames []int64 `json:"recent_games,omitempty"`
}

type MutatorSummary struct {
	Name        string  `json:"name"`
	ShortName   string  `json:"shortname"`
	Link        string  `json:"link"`
	Mode        string  `json:"mode,omitempty"`
	Games       int64   `json:"games"`
	RecentGames []int64 `json:"recent_games,omitempty"`
}

// WeaponSummary is a weapon's totals over normal-weapon games.
type WeaponSummary struct {
	WeaponStats
	Loadout    bool    `json:"loadout"`
	NotWielded bool    `json:"notwielded"`
	DPM        float64 `json:"dpm"`
}

// APIConfig exposes the paging constants to clients.
type APIConfig struct {
	ResultsPerPage    int    `json:"API_RESULTS_PER_PAGE"`
	HighscoreResults  int    `json:"API_HIGHSCORE_RESULTS"`
	DisplayHighscores int    `json:"DISPLAY_HIGHSCORE_RESULTS"`
	DisplayPerPage    int    `json:"DISPLAY_RESULTS_PER_PAGE"`
	DisplayRecent     int    `json:"DISPLAY_RESULTS_RECENT"`
	DefaultVersion    string `json:"DEFAULT_VERSION"`
}
