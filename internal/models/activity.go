package models

// ActivityRow is the slice of a game the histogram engine needs. Time is the
// unix time the game ended.
type ActivityRow struct {
	Time          int64
	TimePlayed    int64
	UniquePlayers int
}

// ActivityBucket is one bar of an activity histogram.
type ActivityBucket struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Bar   string  `json:"bar"`
}

// ActivityHistogram is a folded activity timeline.
type ActivityHistogram struct {
	Days    int              `json:"days"`
	Max     float64          `json:"max"`
	Buckets []ActivityBucket `json:"buckets"`
}
