package acis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imclimate/acis/internal/acis"
)

// fakeGateway records calls and returns canned payloads.
type fakeGateway struct {
	calls   int
	source  acis.Source
	request acis.Request
	payload *acis.Payload
	err     error
}

func (g *fakeGateway) Call(_ context.Context, source acis.Source, req acis.Request) (*acis.Payload, error) {
	g.calls++
	g.source = source
	g.request = req
	return g.payload, g.err
}

func newGatewaySession(gw acis.Gateway) *acis.Session {
	return acis.NewSession(acis.SessionConfig{Gateway: gw, Logger: zerolog.Nop()})
}

func TestSession_FindStations(t *testing.T) {
	gw := &fakeGateway{payload: &acis.Payload{Meta: []map[string]any{copperMountainRow(), elliotRidgeRow()}}}
	session := newGatewaySession(gw)

	criteria := acis.Criteria{Elements: []string{"avgt"}, County: "08117", StartDate: "1980-01-01", EndDate: "1981-12-31"}
	collection, err := session.FindStations(context.Background(), criteria)
	require.NoError(t, err)

	assert.Equal(t, 1, gw.calls)
	assert.Equal(t, acis.SourceStationMeta, gw.source)
	assert.Equal(t, "08117", gw.request["county"])
	assert.Equal(t, 2, collection.Len())
	assert.Equal(t, gw.request, collection.Request())
	assert.Equal(t, session.LastRequest(), collection.Request())
}

func TestSession_FindStations_ValidationBeforeCall(t *testing.T) {
	gw := &fakeGateway{payload: &acis.Payload{}}
	session := newGatewaySession(gw)

	_, err := session.FindStations(context.Background(), acis.Criteria{BBox: "1, 1, 1, 1"})
	var bboxErr *acis.InvalidBoundingBoxError
	require.ErrorAs(t, err, &bboxErr)

	_, err = session.FindStations(context.Background(), acis.Criteria{Elements: []string{"nope"}})
	var paramErr *acis.UnsupportedParameterError
	require.ErrorAs(t, err, &paramErr)

	assert.Equal(t, 0, gw.calls, "nothing is sent for invalid criteria")
}

func TestSession_FindStations_GatewayError(t *testing.T) {
	cause := errors.New("connection refused")
	session := newGatewaySession(&fakeGateway{err: cause})

	_, err := session.FindStations(context.Background(), acis.Criteria{State: "CO"})

	var gwErr *acis.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, acis.SourceStationMeta, gwErr.Source)
	assert.ErrorIs(t, err, cause)
}

func TestSession_FindStations_ServiceError(t *testing.T) {
	session := newGatewaySession(&fakeGateway{payload: &acis.Payload{Error: "bad request"}})

	_, err := session.FindStations(context.Background(), acis.Criteria{State: "CO"})

	var gwErr *acis.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, err.Error(), "bad request")
}

func TestSession_FindStations_MalformedResponse(t *testing.T) {
	row := elliotRidgeRow()
	delete(row, "elev")
	session := newGatewaySession(&fakeGateway{payload: &acis.Payload{Meta: []map[string]any{row}}})

	collection, err := session.FindStations(context.Background(), acis.Criteria{State: "CO"})
	assert.Nil(t, collection)

	var recErr *acis.MalformedRecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 0, recErr.Row)
	assert.Equal(t, "elevation", recErr.Field)
}

func TestSession_FindStations_NoGateway(t *testing.T) {
	_, err := newSession().FindStations(context.Background(), acis.Criteria{})

	var gwErr *acis.GatewayError
	require.ErrorAs(t, err, &gwErr)
}

func TestSession_FetchObservations(t *testing.T) {
	gw := &fakeGateway{payload: &acis.Payload{
		Meta: []map[string]any{elliotRidgeRow()},
		Data: [][]any{
			{"2012-02-01", []any{"32.0", " ", "U"}},
			{"2012-02-02", []any{"M", "", ""}},
		},
	}}
	session := newGatewaySession(gw)

	series, err := session.FetchObservations(context.Background(), acis.ObservationQuery{
		StationID: "USS0006K29S",
		Element:   "MAXT",
		StartDate: "2012-02-01",
		EndDate:   "2012-02-02",
	})
	require.NoError(t, err)

	assert.Equal(t, acis.SourceStationData, gw.source)
	assert.Equal(t, "maxt", series.Element)
	assert.Equal(t, acis.KindDaily, series.Kind)
	require.NotNil(t, series.Station)
	assert.Equal(t, "Elliot Ridge", series.Station.Name())
	require.Len(t, series.Observations, 2)
	assert.Equal(t, "32.0", series.Observations[0].Value())
	assert.Equal(t, acis.MissingValue, series.Observations[0].ACISFlag())
	assert.Equal(t, acis.MissingValue, series.Observations[1].SourceFlag())
}

func TestSession_FetchObservations_Monthly(t *testing.T) {
	gw := &fakeGateway{payload: &acis.Payload{
		Data: [][]any{{"2012-01", []any{"22.60", 0}}},
	}}
	session := newGatewaySession(gw)

	series, err := session.FetchObservations(context.Background(), acis.ObservationQuery{
		StationID: "USS0006K29S",
		Element:   "avgt",
		Kind:      acis.KindMonthly,
	})
	require.NoError(t, err)

	assert.Nil(t, series.Station)
	require.Len(t, series.Observations, 1)
	assert.Equal(t, "2012-01", series.Observations[0].Month())
	assert.Equal(t, 0, series.Observations[0].MissingCount())
}
