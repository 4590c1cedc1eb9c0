package opensky

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Batch is the normalized content of one upstream payload
type Batch struct {
	Timestamp int64
	Records   []StateVector
	Dropped   int // state vectors rejected for having the wrong width
}

// Normalize converts a raw states payload into typed records.
//
// The payload must be a JSON object with an integer "time" field. A missing or
// null "states" field yields an empty, non-nil record set. State vectors whose
// width differs from StateVectorWidth are dropped without error; upstream
// occasionally emits truncated vectors and they carry no usable schema.
func Normalize(payload []byte) (int64, []StateVector, error) {
	batch, err := NormalizeBatch(payload)
	if err != nil {
		return 0, nil, err
	}
	return batch.Timestamp, batch.Records, nil
}

// NormalizeBatch is Normalize plus the count of dropped vectors
func NormalizeBatch(payload []byte) (Batch, error) {
	if !gjson.ValidBytes(payload) {
		return Batch{}, &MalformedPayloadError{Reason: "body is not valid JSON"}
	}

	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return Batch{}, &MalformedPayloadError{Reason: "body is not a JSON object"}
	}

	ts := root.Get("time")
	if ts.Type != gjson.Number {
		return Batch{}, &MalformedPayloadError{Reason: "missing time field"}
	}

	states := root.Get("states")
	batch := Batch{
		Timestamp: ts.Int(),
		Records:   []StateVector{},
	}

	switch {
	case !states.Exists(), states.Type == gjson.Null:
		return batch, nil
	case !states.IsArray():
		return Batch{}, &MalformedPayloadError{Reason: "states field is not an array"}
	}

	for _, raw := range states.Array() {
		if !raw.IsArray() {
			batch.Dropped++
			continue
		}
		fields := raw.Array()
		if len(fields) != StateVectorWidth {
			batch.Dropped++
			continue
		}
		batch.Records = append(batch.Records, parseStateVector(fields))
	}

	return batch, nil
}

// parseStateVector builds a record from exactly StateVectorWidth fields.
// Values whose JSON type does not match the field type are treated as null.
func parseStateVector(f []gjson.Result) StateVector {
	sv := StateVector{
		ICAO24:         optString(f[FieldICAO24]),
		OriginCountry:  optString(f[FieldOriginCountry]),
		TimePosition:   optInt(f[FieldTimePosition]),
		LastContact:    optInt(f[FieldLastContact]),
		Longitude:      floatOrZero(f[FieldLongitude]),
		Latitude:       floatOrZero(f[FieldLatitude]),
		BaroAltitude:   floatOrZero(f[FieldBaroAltitude]),
		OnGround:       optBool(f[FieldOnGround]),
		Velocity:       floatOrZero(f[FieldVelocity]),
		TrueTrack:      optFloat(f[FieldTrueTrack]),
		VerticalRate:   optFloat(f[FieldVerticalRate]),
		Sensors:        intList(f[FieldSensors]),
		GeoAltitude:    floatOrZero(f[FieldGeoAltitude]),
		Squawk:         optString(f[FieldSquawk]),
		SPI:            optBool(f[FieldSPI]),
		PositionSource: optInt(f[FieldPositionSource]),
	}
	if f[FieldCallsign].Type == gjson.String {
		sv.Callsign = strings.TrimSpace(f[FieldCallsign].Str)
	}
	return sv
}

func optString(r gjson.Result) *string {
	if r.Type != gjson.String {
		return nil
	}
	s := r.Str
	return &s
}

func optFloat(r gjson.Result) *float64 {
	if r.Type != gjson.Number {
		return nil
	}
	v := r.Num
	return &v
}

func optInt(r gjson.Result) *int64 {
	if r.Type != gjson.Number {
		return nil
	}
	v := r.Int()
	return &v
}

func optBool(r gjson.Result) *bool {
	switch r.Type {
	case gjson.True:
		v := true
		return &v
	case gjson.False:
		v := false
		return &v
	}
	return nil
}

func floatOrZero(r gjson.Result) float64 {
	if r.Type != gjson.Number {
		return 0
	}
	return r.Num
}

func intList(r gjson.Result) []int64 {
	if !r.IsArray() {
		return nil
	}
	items := r.Array()
	out := make([]int64, 0, len(items))
	for _, item := range items {
		if item.Type == gjson.Number {
			out = append(out, item.Int())
		}
	}
	return out
}
