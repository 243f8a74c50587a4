package acis_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imclimate/acis/internal/acis"
)

func newSession() *acis.Session {
	return acis.NewSession(acis.SessionConfig{Logger: zerolog.Nop()})
}

func TestBuildRequest_OmitsAbsentFields(t *testing.T) {
	tests := []struct {
		name     string
		criteria acis.Criteria
		present  []string
		absent   []string
	}{
		{
			name:     "empty criteria",
			criteria: acis.Criteria{},
			present:  []string{"elems", "meta"},
			absent:   []string{"state", "county", "bbox", "basin", "sdate", "edate"},
		},
		{
			name:     "state only",
			criteria: acis.Criteria{State: "CO"},
			present:  []string{"state", "elems", "meta"},
			absent:   []string{"county", "bbox", "basin", "sdate", "edate"},
		},
		{
			name:     "blank strings are absent",
			criteria: acis.Criteria{State: "  ", County: "", HUC: " ", BBox: "", StartDate: " "},
			present:  []string{"elems", "meta"},
			absent:   []string{"state", "county", "bbox", "basin", "sdate", "edate"},
		},
		{
			name:     "nil bbox slice is absent",
			criteria: acis.Criteria{State: "CO", BBox: []float64(nil)},
			present:  []string{"state", "elems", "meta"},
			absent:   []string{"bbox"},
		},
		{
			name:     "nil bbox pointer is absent",
			criteria: acis.Criteria{BBox: (*acis.BoundingBox)(nil)},
			present:  []string{"elems", "meta"},
			absent:   []string{"bbox"},
		},
		{
			name: "everything",
			criteria: acis.Criteria{
				State:     "CO",
				Elements:  []string{"avgt"},
				County:    "08117",
				BBox:      "-106.5, 39.0, -105.5, 40.0",
				HUC:       14010001,
				StartDate: "1980-01-01",
				EndDate:   "1981-12-31",
			},
			present: []string{"state", "elems", "county", "bbox", "basin", "sdate", "edate", "meta"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := newSession().BuildRequest(tt.criteria)
			require.NoError(t, err)

			for _, key := range tt.present {
				assert.Contains(t, req, key)
			}
			for _, key := range tt.absent {
				assert.NotContains(t, req, key)
			}
			for key, v := range req {
				assert.NotNil(t, v, key)
				assert.NotEqual(t, "", v, key)
			}
		})
	}
}

func TestBuildRequest_DefaultElements(t *testing.T) {
	req, err := newSession().BuildRequest(acis.Criteria{State: "CO"})
	require.NoError(t, err)

	assert.Equal(t, acis.DefaultElements, req.Elements())
}

func TestBuildRequest_FixedMetadata(t *testing.T) {
	req, err := newSession().BuildRequest(acis.Criteria{Elements: []string{"mint"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"uid", "sids", "name", "state", "ll", "elev", "valid_daterange"}, req["meta"])
	assert.Equal(t, []string{"mint"}, req.Elements())
}

func TestBuildRequest_CoercesCodes(t *testing.T) {
	req, err := newSession().BuildRequest(acis.Criteria{County: 8117, HUC: int64(14010001)})
	require.NoError(t, err)
	assert.Equal(t, "8117", req["county"], "integers are not re-padded")
	assert.Equal(t, "14010001", req["basin"])

	req, err = newSession().BuildRequest(acis.Criteria{County: "08117", HUC: "14010001"})
	require.NoError(t, err)
	assert.Equal(t, "08117", req["county"])
	assert.Equal(t, "14010001", req["basin"])
}

func TestBuildRequest_BoundingBox(t *testing.T) {
	tests := []struct {
		name     string
		bbox     any
		expected any
	}{
		{"string is forwarded verbatim", "-90.7, 40.5,-88.9,41.5", "-90.7, 40.5,-88.9,41.5"},
		{"struct", acis.BoundingBox{West: -90.7, South: 40.5, East: -88.9, North: 41.5}, []float64{-90.7, 40.5, -88.9, 41.5}},
		{"array", [4]float64{-90.7, 40.5, -88.9, 41.5}, []float64{-90.7, 40.5, -88.9, 41.5}},
		{"slice", []float64{-90.7, 40.5, -88.9, 41.5}, []float64{-90.7, 40.5, -88.9, 41.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := newSession().BuildRequest(acis.Criteria{BBox: tt.bbox})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, req["bbox"])
		})
	}
}

func TestBuildRequest_InvalidBoundingBox(t *testing.T) {
	tests := []struct {
		name string
		bbox any
	}{
		{"west equals east", acis.BoundingBox{West: -90, South: 40, East: -90, North: 41}},
		{"south equals north", [4]float64{-91, 41, -90, 41}},
		{"inverted", "-88.9, 41.5, -90.7, 40.5"},
		{"wrong length", []float64{-91, 40, -90}},
		{"unsupported type", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := newSession()
			_, err := session.BuildRequest(acis.Criteria{BBox: tt.bbox})

			var bboxErr *acis.InvalidBoundingBoxError
			require.ErrorAs(t, err, &bboxErr)
			assert.Nil(t, session.LastRequest())
		})
	}
}

func TestBuildRequest_UnsupportedParameter(t *testing.T) {
	session := newSession()
	_, err := session.BuildRequest(acis.Criteria{Elements: []string{"xyz"}})

	var paramErr *acis.UnsupportedParameterError
	require.ErrorAs(t, err, &paramErr)
	assert.Nil(t, session.LastRequest())
}

func TestBuildRequest_Passthrough(t *testing.T) {
	req, err := newSession().BuildRequest(acis.Criteria{
		State: "CO",
		Extra: map[string]any{
			"network": "SNOTEL",
			"output":  "json",
			"state":   "WY",
			"meta":    "uid",
			"empty":   "",
			"nothing": nil,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "SNOTEL", req["network"])
	assert.Equal(t, "json", req["output"])
	assert.Equal(t, "CO", req["state"], "builder fields win over passthrough")
	assert.Equal(t, acis.StationMetadata, req["meta"])
	assert.NotContains(t, req, "empty")
	assert.NotContains(t, req, "nothing")
}

func TestBuildRequest_LastRequestSlot(t *testing.T) {
	session := newSession()
	assert.Nil(t, session.LastRequest())

	first, err := session.BuildRequest(acis.Criteria{State: "CO", County: "08117"})
	require.NoError(t, err)
	assert.Equal(t, first, session.LastRequest())

	second, err := session.BuildRequest(acis.Criteria{State: "WY"})
	require.NoError(t, err)

	last := session.LastRequest()
	assert.Equal(t, second, last)
	assert.Equal(t, "WY", last["state"])
	assert.NotContains(t, last, "county")

	_, err = session.BuildRequest(acis.Criteria{Elements: []string{"nope"}})
	require.Error(t, err)
	assert.Nil(t, session.LastRequest(), "a failed build clears the slot")
}

func TestBuildRequest_LastRequestIsACopy(t *testing.T) {
	session := newSession()
	_, err := session.BuildRequest(acis.Criteria{State: "CO"})
	require.NoError(t, err)

	last := session.LastRequest()
	last["state"] = "UT"
	last.Elements()[0] = "changed"

	again := session.LastRequest()
	assert.Equal(t, "CO", again["state"])
	assert.Equal(t, "pcpn", again.Elements()[0])
}

func TestBuildRequest_LastRequestIsADeepCopy(t *testing.T) {
	session := newSession()
	_, err := session.BuildDataRequest(acis.ObservationQuery{StationID: "USS0006K24S", Element: "pcpn"})
	require.NoError(t, err)

	last := session.LastRequest()
	last["elems"].([]any)[0].(map[string]any)["add"] = "changed"

	again := session.LastRequest()
	assert.Equal(t, []any{map[string]any{"name": "pcpn", "add": "f,s"}}, again["elems"])

	_, err = session.BuildRequest(acis.Criteria{
		State: "CO",
		Extra: map[string]any{"grid": map[string]any{"id": "21"}, "sids": []any{"a", "b"}},
	})
	require.NoError(t, err)

	last = session.LastRequest()
	last["grid"].(map[string]any)["id"] = "changed"
	last["sids"].([]any)[0] = "changed"

	again = session.LastRequest()
	assert.Equal(t, map[string]any{"id": "21"}, again["grid"])
	assert.Equal(t, []any{"a", "b"}, again["sids"])
}

func TestBuildDataRequest(t *testing.T) {
	session := newSession()

	req, err := session.BuildDataRequest(acis.ObservationQuery{
		StationID: "USS0006K24S",
		Element:   "AVGT",
		StartDate: "2012-01-01",
		EndDate:   "2012-02-01",
	})
	require.NoError(t, err)

	assert.Equal(t, "USS0006K24S", req["sid"])
	assert.Equal(t, "2012-01-01", req["sdate"])
	assert.Equal(t, "2012-02-01", req["edate"])
	elems, ok := req["elems"].([]any)
	require.True(t, ok)
	require.Len(t, elems, 1)
	assert.Equal(t, map[string]any{"name": "avgt", "add": "f,s"}, elems[0])
	assert.Equal(t, req, session.LastRequest())

	monthly, err := session.BuildDataRequest(acis.ObservationQuery{
		StationID: "USS0006K24S",
		Element:   "pcpn",
		Kind:      acis.KindMonthly,
	})
	require.NoError(t, err)
	assert.NotContains(t, monthly, "sdate")
	element := monthly["elems"].([]any)[0].(map[string]any)
	assert.Equal(t, "mly", element["interval"])
	assert.Equal(t, map[string]any{"reduce": "mean", "add": "mcnt"}, element["reduce"])
}

func TestBuildDataRequest_Validation(t *testing.T) {
	session := newSession()

	_, err := session.BuildDataRequest(acis.ObservationQuery{Element: "avgt"})
	require.ErrorIs(t, err, acis.ErrMissingStationID)

	_, err = session.BuildDataRequest(acis.ObservationQuery{StationID: "X", Element: "wind"})
	var paramErr *acis.UnsupportedParameterError
	require.ErrorAs(t, err, &paramErr)

	_, err = session.BuildDataRequest(acis.ObservationQuery{StationID: "X", Element: "avgt", Kind: "hourly"})
	require.Error(t, err)
	assert.Nil(t, session.LastRequest())
}
