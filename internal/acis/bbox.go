package acis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DegreesPerKilometer converts a buffer distance to degrees. It ignores the
// latitude dependence of longitude spacing.
const DegreesPerKilometer = 0.011

// BoundingBox is a west, south, east, north box in decimal degrees.
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// ParseBoundingBox parses "west, south, east, north" and validates the result.
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, &InvalidBoundingBoxError{
			Value:  s,
			Reason: fmt.Sprintf("expected 4 values, got %d", len(parts)),
		}
	}

	var values [4]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return BoundingBox{}, &InvalidBoundingBoxError{
				Value:  s,
				Reason: fmt.Sprintf("value %d is not a decimal number", i+1),
			}
		}
		values[i] = v
	}

	box := BoundingBox{West: values[0], South: values[1], East: values[2], North: values[3]}
	if err := box.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return box, nil
}

// Validate requires finite values with west < east and south < north.
func (b BoundingBox) Validate() error {
	for _, v := range b.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidBoundingBoxError{Value: b.String(), Reason: "values must be finite"}
		}
	}
	if b.West >= b.East {
		return &InvalidBoundingBoxError{Value: b.String(), Reason: "west must be less than east"}
	}
	if b.South >= b.North {
		return &InvalidBoundingBoxError{Value: b.String(), Reason: "south must be less than north"}
	}
	return nil
}

// Buffer grows the box by distanceKM on every side.
func (b BoundingBox) Buffer(distanceKM float64) BoundingBox {
	if distanceKM == 0 {
		return b
	}
	d := distanceKM * DegreesPerKilometer
	return BoundingBox{
		West:  b.West - d,
		South: b.South - d,
		East:  b.East + d,
		North: b.North + d,
	}
}

// Values returns the box in request order.
func (b BoundingBox) Values() []float64 {
	return []float64{b.West, b.South, b.East, b.North}
}

// String renders the box as "west, south, east, north".
func (b BoundingBox) String() string {
	return fmt.Sprintf("%s, %s, %s, %s",
		formatFloat(b.West), formatFloat(b.South), formatFloat(b.East), formatFloat(b.North))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
