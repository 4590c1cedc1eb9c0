package opensky

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
)

// StateVectorWidth is the number of fields in an upstream state vector.
// Vectors of any other width are dropped by Normalize.
const StateVectorWidth = 17

// Positions of the fields inside a raw state vector
const (
	FieldICAO24 = iota
	FieldCallsign
	FieldOriginCountry
	FieldTimePosition
	FieldLastContact
	FieldLongitude
	FieldLatitude
	FieldBaroAltitude
	FieldOnGround
	FieldVelocity
	FieldTrueTrack
	FieldVerticalRate
	FieldSensors
	FieldGeoAltitude
	FieldSquawk
	FieldSPI
	FieldPositionSource
)

// BoundingBox is a rectangular geographic filter in decimal degrees
type BoundingBox struct {
	LatMin float64 `json:"lamin" toml:"lamin"`
	LatMax float64 `json:"lamax" toml:"lamax"`
	LonMin float64 `json:"lomin" toml:"lomin"`
	LonMax float64 `json:"lomax" toml:"lomax"`
}

// Validate checks axis ordering and coordinate ranges. NaN and infinite
// coordinates are rejected since no ordering holds for them.
func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.LatMin, b.LatMax, b.LonMin, b.LonMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite coordinate in [%g, %g] x [%g, %g]", b.LatMin, b.LatMax, b.LonMin, b.LonMax)
		}
	}
	if b.LatMin < -90 || b.LatMax > 90 {
		return fmt.Errorf("latitude out of range: [%g, %g]", b.LatMin, b.LatMax)
	}
	if b.LonMin < -180 || b.LonMax > 180 {
		return fmt.Errorf("longitude out of range: [%g, %g]", b.LonMin, b.LonMax)
	}
	if b.LatMin > b.LatMax {
		return fmt.Errorf("latitude min %g greater than max %g", b.LatMin, b.LatMax)
	}
	if b.LonMin > b.LonMax {
		return fmt.Errorf("longitude min %g greater than max %g", b.LonMin, b.LonMax)
	}
	return nil
}

// Query encodes the box as the upstream query parameters
func (b BoundingBox) Query() url.Values {
	v := url.Values{}
	v.Set("lamin", formatCoord(b.LatMin))
	v.Set("lomin", formatCoord(b.LonMin))
	v.Set("lamax", formatCoord(b.LatMax))
	v.Set("lomax", formatCoord(b.LonMax))
	return v
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Credentials for HTTP basic auth against the upstream API
type Credentials struct {
	Username string
	Password string
}

// Valid reports whether both username and password are set
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// StateVector is the typed, normalized projection of one raw state vector.
//
// Callsign and the five positional/kinematic floats are always populated
// (empty string / 0 when the upstream value is null). Every other field is
// passed through as-is, with nil meaning null upstream.
type StateVector struct {
	ICAO24         *string  `json:"icao24"`
	Callsign       string   `json:"callsign"`
	OriginCountry  *string  `json:"origin_country"`
	TimePosition   *int64   `json:"time_position"`
	LastContact    *int64   `json:"last_contact"`
	Longitude      float64  `json:"longitude"`
	Latitude       float64  `json:"latitude"`
	BaroAltitude   float64  `json:"baro_altitude"`
	OnGround       *bool    `json:"on_ground"`
	Velocity       float64  `json:"velocity"`
	TrueTrack      *float64 `json:"true_track"`
	VerticalRate   *float64 `json:"vertical_rate"`
	Sensors        []int64  `json:"sensors"`
	GeoAltitude    float64  `json:"geo_altitude"`
	Squawk         *string  `json:"squawk"`
	SPI            *bool    `json:"spi"`
	PositionSource *int64   `json:"position_source"`
}

// IsOnGround is true only when the upstream flag was explicitly true
func (s StateVector) IsOnGround() bool {
	return s.OnGround != nil && *s.OnGround
}

// HasPosition reports whether the record can be placed on a map
func (s StateVector) HasPosition() bool {
	return s.Latitude != 0 && s.Longitude != 0
}

// Country returns the origin country or an empty string
func (s StateVector) Country() string {
	if s.OriginCountry == nil {
		return ""
	}
	return *s.OriginCountry
}

// FetchResult is the outcome of one fetch: either a timestamped record set or a failure
type FetchResult struct {
	Timestamp int64
	Records   []StateVector
	Dropped   int
	Err       error
}

// Success builds a successful result
func Success(timestamp int64, records []StateVector) FetchResult {
	return FetchResult{Timestamp: timestamp, Records: records}
}

// Failure builds a failed result
func Failure(err error) FetchResult {
	return FetchResult{Err: err}
}

// OK reports whether the fetch succeeded
func (r FetchResult) OK() bool {
	return r.Err == nil
}
