// Package acis builds requests for the Applied Climate Information System
// (ACIS) web services and maps their responses into station and observation
// records.
package acis

import (
	"sort"
	"strings"
)

// MissingValue replaces any blank field in a mapped record.
const MissingValue = "NA"

// Parameter is a supported weather element.
type Parameter struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var catalog = map[string]string{
	"pcpn": "Precipitation",
	"snwd": "Snow depth",
	"avgt": "Average temperature",
	"obst": "Observation time temperature",
	"mint": "Minimum temperature",
	"maxt": "Maximum temperature",
	"snow": "Snowfall",
	"hdd":  "Heating degree days",
	"cdd":  "Cooling degree days",
	"gdd":  "Growing degree days",
}

// DefaultElements is requested when the caller names no element; the service
// returns nothing for a query without one.
var DefaultElements = []string{"pcpn", "snwd", "avgt", "obst", "mint", "snow", "maxt"}

// SupportedParameters returns the catalog ordered by code.
func SupportedParameters() []Parameter {
	params := make([]Parameter, 0, len(catalog))
	for code, name := range catalog {
		params = append(params, Parameter{Code: code, Name: name})
	}
	sort.Slice(params, func(i, j int) bool {
		return params[i].Code < params[j].Code
	})
	return params
}

// ParameterName returns the display name for an element code.
func ParameterName(code string) (string, bool) {
	name, ok := catalog[normalizeCode(code)]
	return name, ok
}

// Validate returns the normalized form of code, or an
// *UnsupportedParameterError when it is not in the catalog.
func Validate(code string) (string, error) {
	normalized := normalizeCode(code)
	if _, ok := catalog[normalized]; !ok {
		return "", &UnsupportedParameterError{Code: code}
	}
	return normalized, nil
}

// NormalizeElements validates every code. An empty selection yields a copy of
// DefaultElements.
func NormalizeElements(codes []string) ([]string, error) {
	if len(codes) == 0 {
		return append([]string(nil), DefaultElements...), nil
	}

	elems := make([]string, 0, len(codes))
	for _, code := range codes {
		normalized, err := Validate(code)
		if err != nil {
			return nil, err
		}
		elems = append(elems, normalized)
	}
	return elems, nil
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
