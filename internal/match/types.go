package match

// Match is the per-cycle record emitted for every successful pairing of a
// live vehicle with a scheduled run. Used for logging, counting, and the
// matches endpoint; never retained across cycles.
type Match struct {
	Train     string `json:"tren"`
	Line      string `json:"linia"`
	Direction string `json:"direccio"`
	Station   string `json:"estacio"`
	Time      string `json:"hora"`
	Matched   bool   `json:"matched"`
}

// Assignment is the sticky cache entry mapping a live vehicle id to the
// scheduled run it was matched with. Updated in place while the vehicle
// keeps satisfying its assignment, deleted when it disappears from the
// feed or stops fitting the schedule.
type Assignment struct {
	Train       string
	Lon, Lat    float64
	NextStation string
	UnitType    string
	OnTime      *bool
}

// Cycle is the outcome of one polling pass.
type Cycle struct {
	Matches  []Match
	Assigned int // assignments alive after the pass
	Purged   int // cached vehicles dropped because they left the feed
}
