package render

import "github.com/yegors/flight-tracker/internal/opensky"

// TableRow is the subset of a record shown in the aircraft table
type TableRow struct {
	ICAO24        string  `json:"icao24"`
	Callsign      string  `json:"callsign"`
	OriginCountry string  `json:"origin_country"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	GeoAltitude   float64 `json:"geo_altitude"`
	Velocity      float64 `json:"velocity"`
	OnGround      bool    `json:"on_ground"`
}

// Table projects records into table rows, preserving order
func Table(records []opensky.StateVector) []TableRow {
	rows := make([]TableRow, 0, len(records))
	for _, r := range records {
		row := TableRow{
			Callsign:      r.Callsign,
			OriginCountry: r.Country(),
			Latitude:      r.Latitude,
			Longitude:     r.Longitude,
			GeoAltitude:   r.GeoAltitude,
			Velocity:      r.Velocity,
			OnGround:      r.IsOnGround(),
		}
		if r.ICAO24 != nil {
			row.ICAO24 = *r.ICAO24
		}
		rows = append(rows, row)
	}
	return rows
}
