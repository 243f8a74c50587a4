package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imclimate/acis/internal/acis"
	"github.com/imclimate/acis/internal/api/handler"
	"github.com/imclimate/acis/internal/api/models"
	"github.com/imclimate/acis/internal/stationstore"
	"github.com/imclimate/acis/internal/unitbounds"
)

// recordingGateway answers every call with payload or err and keeps the last
// request.
type recordingGateway struct {
	payload *acis.Payload
	err     error
	calls   int
	source  acis.Source
	request acis.Request
}

func (g *recordingGateway) Call(_ context.Context, source acis.Source, req acis.Request) (*acis.Payload, error) {
	g.calls++
	g.source = source
	g.request = req
	if g.err != nil {
		return nil, g.err
	}
	return g.payload, nil
}

type stubBounds struct {
	box      acis.BoundingBox
	err      error
	unit     string
	bufferKM float64
}

func (b *stubBounds) BoundingBox(_ context.Context, unit string, bufferKM float64) (acis.BoundingBox, error) {
	b.unit = unit
	b.bufferKM = bufferKM
	return b.box, b.err
}

func stationPayload() *acis.Payload {
	return &acis.Payload{Meta: []map[string]any{
		{
			"uid":   67175,
			"sids":  []any{"USS0006K24S 6", "06K24S 6"},
			"name":  "Copper Mountain",
			"state": "CO",
			"ll":    []any{-106.17, 39.49},
			"elev":  10550.0,
		},
		{
			"uid":   77459,
			"sids":  []any{"USS0006K29S 6"},
			"name":  "Elliot Ridge",
			"state": "CO",
			"ll":    []any{-106.42, 39.86},
			"elev":  10520.0,
		},
	}}
}

func stationRouter(h *handler.StationHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/stations", h.ListStations)
	r.Get("/v1/stations/{sid}/observations", h.GetObservations)
	return r
}

func serve(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, http.NoBody))
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestListParameters(t *testing.T) {
	rec := serve(t, http.HandlerFunc(handler.NewParameterHandler().ListParameters), "/v1/parameters")

	require.Equal(t, http.StatusOK, rec.Code)

	var out models.ParameterList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out.Parameters, len(acis.SupportedParameters()))
	assert.Equal(t, "avgt", out.Parameters[0].Code)
	assert.Equal(t, acis.DefaultElements, out.Defaults)
}

func TestListStations_Meta(t *testing.T) {
	gw := &recordingGateway{payload: stationPayload()}
	h := handler.NewStationHandler(handler.StationHandlerConfig{Gateway: gw, Logger: zerolog.Nop()})

	rec := serve(t, stationRouter(h), "/v1/stations?state=CO&elements=pcpn,SNWD&county=08117&sdate=2012-01-01")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, acis.SourceStationMeta, gw.source)
	assert.Equal(t, "CO", gw.request[acis.FieldState])
	assert.Equal(t, []string{"pcpn", "snwd"}, gw.request[acis.FieldElements])
	assert.Equal(t, "08117", gw.request[acis.FieldCounty])
	assert.Equal(t, "2012-01-01", gw.request[acis.FieldStartDate])

	var out struct {
		Count       int              `json:"count"`
		View        string           `json:"view"`
		Meta        []map[string]any `json:"meta"`
		QueryParams map[string]any   `json:"queryParams"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, models.ViewMeta, out.View)
	require.Len(t, out.Meta, 2)
	assert.Equal(t, "Copper Mountain", out.Meta[0]["name"])
	assert.Equal(t, "CO", out.QueryParams["state"])
}

func TestListStations_Views(t *testing.T) {
	gw := &recordingGateway{payload: stationPayload()}
	h := handler.NewStationHandler(handler.StationHandlerConfig{Gateway: gw, Logger: zerolog.Nop()})

	rec := serve(t, stationRouter(h), "/v1/stations?state=CO&view=ids")
	require.Equal(t, http.StatusOK, rec.Code)
	var ids models.StationList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
	assert.Equal(t, []string{"USS0006K24S 6", "USS0006K29S 6"}, ids.IDs)

	rec = serve(t, stationRouter(h), "/v1/stations?state=CO&view=labels")
	require.Equal(t, http.StatusOK, rec.Code)
	var labels models.StationList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &labels))
	require.Len(t, labels.Labels, 2)
	assert.True(t, strings.HasPrefix(labels.Labels[1], "Elliot Ridge, CO (elev: "))
}

func TestListStations_RequireNonEmpty(t *testing.T) {
	gw := &recordingGateway{payload: &acis.Payload{}}
	h := handler.NewStationHandler(handler.StationHandlerConfig{Gateway: gw, Logger: zerolog.Nop()})

	for _, view := range []string{"meta", "ids", "labels"} {
		t.Run(view, func(t *testing.T) {
			rec := serve(t, stationRouter(h), "/v1/stations?state=RI&require=nonempty&view="+view)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, models.ProblemTypeNotFound, decodeProblem(t, rec).Type)
		})
	}

	rec := serve(t, stationRouter(h), "/v1/stations?state=RI&view=ids")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListStations_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantType string
	}{
		{"unsupported element", "/v1/stations?elements=wdsp", models.ProblemTypeUnsupported},
		{"invalid bbox", "/v1/stations?bbox=-90,40,-100,41", models.ProblemTypeValidation},
		{"unknown view", "/v1/stations?view=geojson", models.ProblemTypeValidation},
		{"unknown require", "/v1/stations?require=all", models.ProblemTypeValidation},
		{"unit with bbox", "/v1/stations?unit=ACAD&bbox=-69,44,-68,45", models.ProblemTypeValidation},
		{"bad buffer", "/v1/stations?unit=ACAD&buffer_km=ten", models.ProblemTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &recordingGateway{payload: stationPayload()}
			h := handler.NewStationHandler(handler.StationHandlerConfig{
				Gateway: gw,
				Bounds:  &stubBounds{},
				Logger:  zerolog.Nop(),
			})

			rec := serve(t, stationRouter(h), tt.target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantType, decodeProblem(t, rec).Type)
			assert.Zero(t, gw.calls, "gateway must not be called for invalid input")
		})
	}
}

func TestListStations_Unit(t *testing.T) {
	gw := &recordingGateway{payload: stationPayload()}
	bounds := &stubBounds{box: acis.BoundingBox{West: -68.5, South: 44.1, East: -68.1, North: 44.5}}
	h := handler.NewStationHandler(handler.StationHandlerConfig{Gateway: gw, Bounds: bounds, Logger: zerolog.Nop()})

	rec := serve(t, stationRouter(h), "/v1/stations?unit=ACAD&buffer_km=10&elements=pcpn")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACAD", bounds.unit)
	assert.InDelta(t, 10.0, bounds.bufferKM, 1e-9)
	assert.Equal(t, []float64{-68.5, 44.1, -68.1, 44.5}, gw.request[acis.FieldBBox])

	var out models.StationList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotNil(t, out.BBox)
	assert.InDelta(t, -68.5, out.BBox.West, 1e-9)
}

func TestListStations_UnitErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", fmt.Errorf("%w: ZZZZ", unitbounds.ErrUnitNotFound), http.StatusNotFound},
		{"invalid code", fmt.Errorf("%w: \"A-B\"", unitbounds.ErrInvalidUnitCode), http.StatusBadRequest},
		{"negative buffer", unitbounds.ErrNegativeBuffer, http.StatusBadRequest},
		{"upstream failure", errors.New("executing request: connection refused"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &recordingGateway{payload: stationPayload()}
			h := handler.NewStationHandler(handler.StationHandlerConfig{
				Gateway: gw,
				Bounds:  &stubBounds{err: tt.err},
				Logger:  zerolog.Nop(),
			})

			rec := serve(t, stationRouter(h), "/v1/stations?unit=ZZZZ")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Zero(t, gw.calls)
		})
	}
}

func TestListStations_UnitWithoutResolver(t *testing.T) {
	h := handler.NewStationHandler(handler.StationHandlerConfig{Gateway: &recordingGateway{}, Logger: zerolog.Nop()})

	rec := serve(t, stationRouter(h), "/v1/stations?unit=ACAD")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListStations_GatewayFailures(t *testing.T) {
	tests := []struct {
		name    string
		gw      *recordingGateway
		wantMsg string
	}{
		{
			name:    "transport error",
			gw:      &recordingGateway{err: errors.New("connection reset")},
			wantMsg: "station service request failed",
		},
		{
			name:    "service error",
			gw:      &recordingGateway{payload: &acis.Payload{Error: "Unknown state: XX"}},
			wantMsg: "station service request failed",
		},
		{
			name: "malformed record",
			gw: &recordingGateway{payload: &acis.Payload{Meta: []map[string]any{
				{"uid": 1, "sids": []any{"X"}, "name": "No location", "state": "CO"},
			}}},
			wantMsg: "station service returned a malformed record",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewStationHandler(handler.StationHandlerConfig{Gateway: tt.gw, Logger: zerolog.Nop()})

			rec := serve(t, stationRouter(h), "/v1/stations?state=XX")

			assert.Equal(t, http.StatusBadGateway, rec.Code)
			p := decodeProblem(t, rec)
			assert.Equal(t, models.ProblemTypeBadGateway, p.Type)
			assert.Equal(t, tt.wantMsg, p.Detail)
		})
	}
}

func TestGetObservations(t *testing.T) {
	gw := &recordingGateway{payload: &acis.Payload{
		Meta: []map[string]any{stationPayload().Meta[1]},
		Data: [][]any{
			{"2012-02-01", []any{"32.0", " ", "U"}},
			{"2012-02-02", []any{"M", "", ""}},
		},
	}}
	h := handler.NewStationHandler(handler.StationHandlerConfig{Gateway: gw, Logger: zerolog.Nop()})

	rec := serve(t, stationRouter(h), "/v1/stations/USS0006K29S/observations?element=maxt&sdate=2012-02-01&edate=2012-02-02")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, acis.SourceStationData, gw.source)
	assert.Equal(t, "USS0006K29S", gw.request[acis.FieldStationID])
	assert.Equal(t, "2012-02-02", gw.request[acis.FieldEndDate])

	var out struct {
		Element string           `json:"element"`
		Kind    string           `json:"kind"`
		Count   int              `json:"count"`
		Station map[string]any   `json:"station"`
		Data    []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "maxt", out.Element)
	assert.Equal(t, "daily", out.Kind)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, "Elliot Ridge", out.Station["name"])
	require.Len(t, out.Data, 2)
}

func TestGetObservations_Validation(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantType string
	}{
		{"missing element", "/v1/stations/USC00051959/observations", models.ProblemTypeValidation},
		{"unknown interval", "/v1/stations/USC00051959/observations?element=pcpn&interval=weekly", models.ProblemTypeValidation},
		{"unsupported element", "/v1/stations/USC00051959/observations?element=wdsp", models.ProblemTypeUnsupported},
		{"blank station", "/v1/stations/%20/observations?element=pcpn", models.ProblemTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &recordingGateway{payload: &acis.Payload{}}
			h := handler.NewStationHandler(handler.StationHandlerConfig{Gateway: gw, Logger: zerolog.Nop()})

			rec := serve(t, stationRouter(h), tt.target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantType, decodeProblem(t, rec).Type)
			assert.Zero(t, gw.calls)
		})
	}
}

func unitRouter(h *handler.UnitHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/units", h.ListUnits)
	r.Get("/v1/units/{unitCode}/stations", h.ListUnitStations)
	return r
}

func TestUnitHandler(t *testing.T) {
	store := stationstore.NewInMemoryRepository()
	uid := int64(67175)
	err := store.SaveUnitStations(context.Background(), stationstore.UnitSync{
		SyncID:   "sync-1",
		UnitCode: "acad",
		BBox:     acis.BoundingBox{West: -68.5, South: 44.1, East: -68.1, North: 44.5},
		BufferKM: 10,
		Elements: []string{"pcpn"},
		SyncedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}, []stationstore.StationRecord{
		{StationID: "USC00170100", UID: &uid, SIDs: []string{"USC00170100"}, Name: "Acadia NP", State: "ME", Lon: -68.25, Lat: 44.37, Elevation: 470},
	})
	require.NoError(t, err)

	r := unitRouter(handler.NewUnitHandler(store, zerolog.Nop()))

	rec := serve(t, r, "/v1/units")
	require.Equal(t, http.StatusOK, rec.Code)
	var units models.UnitList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &units))
	require.Len(t, units.Units, 1)
	assert.Equal(t, "ACAD", units.Units[0].UnitCode)
	assert.Equal(t, 1, units.Units[0].StationCount)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), units.Units[0].SyncedAt.Time())

	rec = serve(t, r, "/v1/units/acad/stations")
	require.Equal(t, http.StatusOK, rec.Code)
	var stations models.UnitStations
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stations))
	assert.Equal(t, "sync-1", stations.Unit.SyncID)
	require.Len(t, stations.Stations, 1)
	assert.Equal(t, "Acadia NP", stations.Stations[0].Name)
	require.NotNil(t, stations.Stations[0].UID)
	assert.Equal(t, uid, *stations.Stations[0].UID)

	rec = serve(t, r, "/v1/units/GRSM/stations")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnitHandler_NoStore(t *testing.T) {
	r := unitRouter(handler.NewUnitHandler(nil, zerolog.Nop()))

	assert.Equal(t, http.StatusServiceUnavailable, serve(t, r, "/v1/units").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, r, "/v1/units/ACAD/stations").Code)
}
