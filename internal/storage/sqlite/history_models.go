package sqlite

import "time"

// Cycle statuses
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// CycleRecord is one stored poll cycle
type CycleRecord struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	PayloadTime int64     `json:"payload_time,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
	Total       int       `json:"total"`
	OnGround    int       `json:"on_ground"`
	InAir       int       `json:"in_air"`
	AvgAltitude float64   `json:"avg_altitude"`
	Dropped     int       `json:"dropped"`
	Error       string    `json:"error,omitempty"`
}

// PositionRecord is one aircraft observation inside a stored cycle
type PositionRecord struct {
	CycleID       string   `json:"cycle_id"`
	PayloadTime   int64    `json:"payload_time"`
	ICAO24        string   `json:"icao24"`
	Callsign      string   `json:"callsign"`
	OriginCountry string   `json:"origin_country"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	GeoAltitude   float64  `json:"geo_altitude"`
	Velocity      float64  `json:"velocity"`
	OnGround      *bool    `json:"on_ground"`
	Squawk        string   `json:"squawk,omitempty"`
	TrueTrack     *float64 `json:"true_track,omitempty"`
}
