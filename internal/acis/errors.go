package acis

import (
	"errors"
	"fmt"
)

// ErrEmptyCollection is returned by a record view when the caller required a
// non-empty result and the collection holds no stations.
var ErrEmptyCollection = errors.New("station collection is empty")

// UnsupportedParameterError reports an element code outside the catalog.
type UnsupportedParameterError struct {
	Code string
}

func (e *UnsupportedParameterError) Error() string {
	return fmt.Sprintf("unsupported parameter %q", e.Code)
}

// InvalidBoundingBoxError reports a malformed or degenerate bounding box.
type InvalidBoundingBoxError struct {
	Value  string
	Reason string
}

func (e *InvalidBoundingBoxError) Error() string {
	return fmt.Sprintf("invalid bounding box %q: %s", e.Value, e.Reason)
}

// MalformedRecordError reports a response row that is missing a required field.
type MalformedRecordError struct {
	Row   int
	Field string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at row %d: missing or invalid field %q", e.Row, e.Field)
}

// GatewayError wraps a failure of the remote service call. The cause is
// passed through unchanged.
type GatewayError struct {
	Source Source
	Err    error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("acis %s call failed: %v", e.Source, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
