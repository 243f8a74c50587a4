// Package handler provides HTTP handlers for the climate station API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/imclimate/acis/internal/acis"
	"github.com/imclimate/acis/internal/api/middleware"
	"github.com/imclimate/acis/internal/api/models"
	"github.com/imclimate/acis/internal/api/response"
	"github.com/imclimate/acis/internal/stationstore"
	"github.com/imclimate/acis/internal/unitbounds"
)

// writeError maps a domain error onto a problem response. Unknown errors are
// logged and reported as 500.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	var (
		unsupported *acis.UnsupportedParameterError
		invalidBBox *acis.InvalidBoundingBoxError
		malformed   *acis.MalformedRecordError
		gatewayErr  *acis.GatewayError
	)

	switch {
	case errors.As(err, &unsupported):
		response.UnsupportedParameter(w, r, unsupported.Code)
	case errors.As(err, &invalidBBox):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "bbox", Message: invalidBBox.Reason, Code: "INVALID_BBOX"},
		})
	case errors.Is(err, acis.ErrMissingStationID):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "sid", Message: "required", Code: "REQUIRED"},
		})
	case errors.Is(err, unitbounds.ErrInvalidUnitCode):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "unit", Message: "must be alphanumeric", Code: "INVALID"},
		})
	case errors.Is(err, unitbounds.ErrNegativeBuffer):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "buffer_km", Message: "must not be negative", Code: "OUT_OF_RANGE"},
		})
	case errors.Is(err, acis.ErrEmptyCollection),
		errors.Is(err, unitbounds.ErrUnitNotFound),
		errors.Is(err, stationstore.ErrUnitNotFound):
		response.NotFound(w, r, err.Error())
	case errors.As(err, &gatewayErr):
		log.Warn().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("acis call failed")
		response.BadGateway(w, r, "station service request failed")
	case errors.As(err, &malformed):
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("malformed acis response")
		response.BadGateway(w, r, "station service returned a malformed record")
	case errors.Is(err, context.DeadlineExceeded):
		response.ServiceUnavailable(w, r, "upstream request timed out")
	default:
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
