package acis

import (
	"fmt"
	"strconv"
	"strings"
)

// Request field names understood by the service.
const (
	FieldState     = "state"
	FieldElements  = "elems"
	FieldCounty    = "county"
	FieldBBox      = "bbox"
	FieldBasin     = "basin"
	FieldStartDate = "sdate"
	FieldEndDate   = "edate"
	FieldMeta      = "meta"
	FieldStationID = "sid"
)

// StationMetadata is requested on every station lookup. Record views depend
// on these fields, so callers cannot change the list.
var StationMetadata = []string{"uid", "sids", "name", "state", "ll", "elev", "valid_daterange"}

// Criteria is a station search. Every field is optional.
type Criteria struct {
	// State is a two-letter state code (e.g. CO).
	State string

	// Elements are element codes from the catalog. Empty means DefaultElements.
	Elements []string

	// County is a county FIPS code as a string or integer (e.g. "08117").
	// Leading zeros are kept only if the caller supplies a string.
	County any

	// BBox is "west, south, east, north" as a string, a BoundingBox,
	// a [4]float64 or a four-element []float64.
	BBox any

	// HUC is an 8-digit hydrologic unit code as a string or integer.
	HUC any

	StartDate string
	EndDate   string

	// Extra is forwarded verbatim. Keys managed by the builder are ignored.
	Extra map[string]any
}

// Request is an outbound query: field name to normalized value.
type Request map[string]any

// Clone returns an independent copy of the request.
func (r Request) Clone() Request {
	if r == nil {
		return nil
	}
	out := make(Request, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies the slice and map shapes a request can hold.
func cloneValue(v any) any {
	switch tv := v.(type) {
	case []string:
		return append([]string(nil), tv...)
	case []float64:
		return append([]float64(nil), tv...)
	case []any:
		if tv == nil {
			return tv
		}
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		if tv == nil {
			return tv
		}
		out := make(map[string]any, len(tv))
		for k, item := range tv {
			out[k] = cloneValue(item)
		}
		return out
	case Request:
		return tv.Clone()
	default:
		return v
	}
}

// Elements returns the element codes in the request, if any.
func (r Request) Elements() []string {
	elems, _ := r[FieldElements].([]string)
	return elems
}

var managedFields = map[string]bool{
	FieldState:     true,
	FieldElements:  true,
	FieldCounty:    true,
	FieldBBox:      true,
	FieldBasin:     true,
	FieldStartDate: true,
	FieldEndDate:   true,
	FieldMeta:      true,
}

// buildStationRequest assembles a StnMeta request. It performs all
// validation, so a returned error means nothing should be sent.
func buildStationRequest(c Criteria) (Request, error) {
	elems, err := NormalizeElements(c.Elements)
	if err != nil {
		return nil, err
	}

	req := Request{
		FieldElements: elems,
		FieldMeta:     append([]string(nil), StationMetadata...),
	}

	for k, v := range c.Extra {
		if managedFields[k] || v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		req[k] = v
	}

	if state := strings.TrimSpace(c.State); state != "" {
		req[FieldState] = state
	}
	if county, ok := coerceCode(c.County); ok {
		req[FieldCounty] = county
	}
	if basin, ok := coerceCode(c.HUC); ok {
		req[FieldBasin] = basin
	}

	bbox, ok, err := coerceBBox(c.BBox)
	if err != nil {
		return nil, err
	}
	if ok {
		req[FieldBBox] = bbox
	}

	if sdate := strings.TrimSpace(c.StartDate); sdate != "" {
		req[FieldStartDate] = sdate
	}
	if edate := strings.TrimSpace(c.EndDate); edate != "" {
		req[FieldEndDate] = edate
	}

	return req, nil
}

// coerceCode renders a county or basin code as a string without re-padding.
func coerceCode(v any) (string, bool) {
	var s string
	switch tv := v.(type) {
	case nil:
		return "", false
	case string:
		s = tv
	case int:
		s = strconv.Itoa(tv)
	case int32:
		s = strconv.FormatInt(int64(tv), 10)
	case int64:
		s = strconv.FormatInt(tv, 10)
	case uint:
		s = strconv.FormatUint(uint64(tv), 10)
	case uint32:
		s = strconv.FormatUint(uint64(tv), 10)
	case uint64:
		s = strconv.FormatUint(tv, 10)
	case float64:
		s = strconv.FormatFloat(tv, 'f', -1, 64)
	case fmt.Stringer:
		s = tv.String()
	default:
		s = fmt.Sprint(tv)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// coerceBBox validates the bbox criterion. Strings are forwarded verbatim,
// structures as a four-element list.
func coerceBBox(v any) (any, bool, error) {
	switch tv := v.(type) {
	case nil:
		return nil, false, nil
	case string:
		if strings.TrimSpace(tv) == "" {
			return nil, false, nil
		}
		if _, err := ParseBoundingBox(tv); err != nil {
			return nil, false, err
		}
		return tv, true, nil
	case BoundingBox:
		if err := tv.Validate(); err != nil {
			return nil, false, err
		}
		return tv.Values(), true, nil
	case *BoundingBox:
		if tv == nil {
			return nil, false, nil
		}
		return coerceBBox(*tv)
	case [4]float64:
		return coerceBBox(BoundingBox{West: tv[0], South: tv[1], East: tv[2], North: tv[3]})
	case []float64:
		if tv == nil {
			return nil, false, nil
		}
		if len(tv) != 4 {
			return nil, false, &InvalidBoundingBoxError{
				Value:  fmt.Sprint(tv),
				Reason: fmt.Sprintf("expected 4 values, got %d", len(tv)),
			}
		}
		return coerceBBox(BoundingBox{West: tv[0], South: tv[1], East: tv[2], North: tv[3]})
	default:
		return nil, false, &InvalidBoundingBoxError{
			Value:  fmt.Sprint(tv),
			Reason: fmt.Sprintf("unsupported type %T", tv),
		}
	}
}
