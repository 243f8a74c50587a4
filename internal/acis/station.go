package acis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DateRange is the period of record for one requested element.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Station is station metadata decoded from a single response row.
type Station struct {
	uid        int64
	hasUID     bool
	sids       []string
	name       string
	state      string
	lon        float64
	lat        float64
	elevation  float64
	dateRanges []DateRange
}

// UID returns the ACIS unique identifier and whether the row carried one.
func (s Station) UID() (int64, bool) { return s.uid, s.hasUID }

// SIDs returns the station's identifiers across networks.
func (s Station) SIDs() []string { return append([]string(nil), s.sids...) }

// ID returns the first station identifier, falling back to the UID.
func (s Station) ID() string {
	if len(s.sids) > 0 {
		return s.sids[0]
	}
	return strconv.FormatInt(s.uid, 10)
}

// Name returns the station name, or MissingValue when the service sent none.
func (s Station) Name() string { return s.name }

// State returns the two-letter state code.
func (s Station) State() string { return s.state }

// Location returns the longitude, latitude pair.
func (s Station) Location() (lon, lat float64) { return s.lon, s.lat }

// Elevation is in feet.
func (s Station) Elevation() float64 { return s.elevation }

// ValidDateRanges has one entry per requested element, in request order.
func (s Station) ValidDateRanges() []DateRange {
	return append([]DateRange(nil), s.dateRanges...)
}

// Label formats the station as "name, state (elev: elevation)".
func (s Station) Label() string {
	return fmt.Sprintf("%s, %s (elev: %s)", s.name, s.state, formatElevation(s.elevation))
}

// ToMap converts the station to the service's field names.
func (s Station) ToMap() map[string]any {
	m := map[string]any{
		"sids":  s.SIDs(),
		"name":  s.name,
		"state": s.state,
		"ll":    []float64{s.lon, s.lat},
		"elev":  s.elevation,
	}
	if s.hasUID {
		m["uid"] = s.uid
	}
	if s.dateRanges != nil {
		ranges := make([][]string, 0, len(s.dateRanges))
		for _, r := range s.dateRanges {
			if r.Start == "" && r.End == "" {
				ranges = append(ranges, []string{})
				continue
			}
			ranges = append(ranges, []string{r.Start, r.End})
		}
		m["valid_daterange"] = ranges
	}
	return m
}

// MarshalJSON implements json.Marshaler.
func (s Station) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToMap())
}

// StationCollection is the ordered result of one station lookup.
type StationCollection struct {
	stations []Station
	criteria Criteria
	request  Request
}

// ToStationCollection decodes every metadata row of payload. Any malformed row
// fails the whole collection.
func ToStationCollection(payload *Payload, criteria Criteria) (*StationCollection, error) {
	c := &StationCollection{criteria: criteria}
	if payload == nil {
		return c, nil
	}

	c.stations = make([]Station, 0, len(payload.Meta))
	for i, row := range payload.Meta {
		station, err := toStation(i, row)
		if err != nil {
			return nil, err
		}
		c.stations = append(c.stations, station)
	}
	return c, nil
}

// Len returns the number of stations.
func (c *StationCollection) Len() int { return len(c.stations) }

// At returns the i-th station in service order.
func (c *StationCollection) At(i int) Station { return c.stations[i] }

// Stations returns a copy of the stations in service order.
func (c *StationCollection) Stations() []Station {
	return append([]Station(nil), c.stations...)
}

// Criteria returns the search that produced the collection.
func (c *StationCollection) Criteria() Criteria { return c.criteria }

// Request returns a copy of the request sent to the service, if known.
func (c *StationCollection) Request() Request { return c.request.Clone() }

// MarshalJSON renders the collection in the service's shape plus the query.
func (c *StationCollection) MarshalJSON() ([]byte, error) {
	meta := make([]map[string]any, 0, len(c.stations))
	for _, s := range c.stations {
		meta = append(meta, s.ToMap())
	}
	return json.Marshal(struct {
		Meta        []map[string]any `json:"meta"`
		QueryParams Request          `json:"queryParams,omitempty"`
	}{Meta: meta, QueryParams: c.request})
}

// ToJSON renders the collection as indented JSON.
func (c *StationCollection) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

func toStation(row int, m map[string]any) (Station, error) {
	var s Station

	if raw, ok := m["uid"]; ok && raw != nil {
		uid, ok := toInt64(raw)
		if !ok {
			return Station{}, &MalformedRecordError{Row: row, Field: "uid"}
		}
		s.uid, s.hasUID = uid, true
	}

	if raw, ok := m["sids"]; ok && raw != nil {
		sids, ok := toStrings(raw)
		if !ok {
			return Station{}, &MalformedRecordError{Row: row, Field: "sids"}
		}
		for i, sid := range sids {
			sids[i] = normalizeBlank(sid)
		}
		s.sids = sids
	}
	if !s.hasUID && len(s.sids) == 0 {
		return Station{}, &MalformedRecordError{Row: row, Field: "uid"}
	}

	name, ok := m["name"].(string)
	if !ok {
		return Station{}, &MalformedRecordError{Row: row, Field: "name"}
	}
	state, ok := m["state"].(string)
	if !ok {
		return Station{}, &MalformedRecordError{Row: row, Field: "state"}
	}
	s.name, s.state = normalizeBlank(name), normalizeBlank(state)

	ll, ok := m["ll"].([]any)
	if !ok || len(ll) != 2 {
		return Station{}, &MalformedRecordError{Row: row, Field: "ll"}
	}
	if s.lon, ok = toFloat64(ll[0]); !ok {
		return Station{}, &MalformedRecordError{Row: row, Field: "ll"}
	}
	if s.lat, ok = toFloat64(ll[1]); !ok {
		return Station{}, &MalformedRecordError{Row: row, Field: "ll"}
	}

	if s.elevation, ok = toFloat64(m["elev"]); !ok {
		return Station{}, &MalformedRecordError{Row: row, Field: "elevation"}
	}

	if raw, present := m["valid_daterange"]; present && raw != nil {
		ranges, ok := toDateRanges(raw)
		if !ok {
			return Station{}, &MalformedRecordError{Row: row, Field: "valid_daterange"}
		}
		s.dateRanges = ranges
	}

	return s, nil
}

func toDateRanges(v any) ([]DateRange, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	ranges := make([]DateRange, 0, len(list))
	for _, item := range list {
		pair, ok := toStrings(item)
		if !ok {
			return nil, false
		}
		switch len(pair) {
		case 0:
			ranges = append(ranges, DateRange{})
		case 2:
			ranges = append(ranges, DateRange{Start: pair[0], End: pair[1]})
		default:
			return nil, false
		}
	}
	return ranges, true
}

func toStrings(v any) ([]string, bool) {
	switch tv := v.(type) {
	case []string:
		return append([]string(nil), tv...), true
	case []any:
		out := make([]string, 0, len(tv))
		for _, item := range tv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch tv := v.(type) {
	case float64:
		return tv, true
	case float32:
		return float64(tv), true
	case int:
		return float64(tv), true
	case int64:
		return float64(tv), true
	case json.Number:
		f, err := tv.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(tv), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt64(v any) (int64, bool) {
	switch tv := v.(type) {
	case int:
		return int64(tv), true
	case int64:
		return tv, true
	case float64:
		if tv != float64(int64(tv)) {
			return 0, false
		}
		return int64(tv), true
	case json.Number:
		i, err := tv.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(tv), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// formatElevation keeps one decimal place for whole numbers, the way the
// service prints elevations.
func formatElevation(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
