package acis

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// ErrMissingStationID is returned when an observation query names no station.
var ErrMissingStationID = errors.New("station id is required")

// dataMetadata is requested alongside station data.
var dataMetadata = []string{"uid", "sids", "name", "state", "ll", "elev"}

// SessionConfig holds configuration for a Session.
type SessionConfig struct {
	// Gateway executes requests (required for Find/Fetch, not for Build).
	Gateway Gateway

	// Logger for session operations.
	Logger zerolog.Logger
}

// Session builds requests, calls the gateway and maps responses.
//
// A Session keeps the last request it built for inspection. The slot holds one
// request, the most recent build wins, and it is not synchronized: share a
// Session between goroutines only with external locking, or give each
// goroutine its own Session.
type Session struct {
	gateway     Gateway
	logger      zerolog.Logger
	lastRequest Request
}

// NewSession creates a new Session.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		gateway: cfg.Gateway,
		logger:  cfg.Logger,
	}
}

// LastRequest returns a copy of the most recently built request, or nil when
// the last build failed or nothing was built yet.
func (s *Session) LastRequest() Request {
	return s.lastRequest.Clone()
}

// BuildRequest assembles a station lookup request from c.
func (s *Session) BuildRequest(c Criteria) (Request, error) {
	s.lastRequest = nil

	req, err := buildStationRequest(c)
	if err != nil {
		return nil, err
	}

	s.record(SourceStationMeta, req)
	return req, nil
}

// ObservationQuery selects one element of one station over a date range.
type ObservationQuery struct {
	StationID string
	Element   string
	StartDate string
	EndDate   string
	Kind      Kind
}

// BuildDataRequest assembles a station data request from q.
func (s *Session) BuildDataRequest(q ObservationQuery) (Request, error) {
	s.lastRequest = nil

	sid := strings.TrimSpace(q.StationID)
	if sid == "" {
		return nil, ErrMissingStationID
	}

	elem, err := Validate(q.Element)
	if err != nil {
		return nil, err
	}

	elemQuery := map[string]any{"name": elem}
	switch q.Kind {
	case "", KindDaily:
		elemQuery["add"] = "f,s"
	case KindMonthly:
		elemQuery["interval"] = "mly"
		elemQuery["duration"] = "mly"
		elemQuery["reduce"] = map[string]any{"reduce": "mean", "add": "mcnt"}
	default:
		_, err := ParseKind(string(q.Kind))
		return nil, err
	}

	req := Request{
		FieldStationID: sid,
		FieldElements:  []any{elemQuery},
		FieldMeta:      append([]string(nil), dataMetadata...),
	}
	if sdate := strings.TrimSpace(q.StartDate); sdate != "" {
		req[FieldStartDate] = sdate
	}
	if edate := strings.TrimSpace(q.EndDate); edate != "" {
		req[FieldEndDate] = edate
	}

	s.record(SourceStationData, req)
	return req, nil
}

func (s *Session) record(source Source, req Request) {
	s.lastRequest = req.Clone()
	s.logger.Debug().
		Str("source", string(source)).
		Interface("request", req).
		Msg("built acis request")
}

// FindStations looks up station metadata matching c. Invalid criteria fail
// before the gateway is called.
func (s *Session) FindStations(ctx context.Context, c Criteria) (*StationCollection, error) {
	req, err := s.BuildRequest(c)
	if err != nil {
		return nil, err
	}

	payload, err := s.call(ctx, SourceStationMeta, req)
	if err != nil {
		return nil, err
	}

	collection, err := ToStationCollection(payload, c)
	if err != nil {
		return nil, err
	}
	collection.request = req.Clone()

	s.logger.Debug().
		Int("stations", collection.Len()).
		Msg("mapped station metadata")

	return collection, nil
}

// ObservationSeries is the data returned for one ObservationQuery.
type ObservationSeries struct {
	Station      *Station      `json:"station,omitempty"`
	Element      string        `json:"element"`
	Kind         Kind          `json:"kind"`
	Observations []Observation `json:"data"`
}

// FetchObservations retrieves daily or monthly values for one station.
func (s *Session) FetchObservations(ctx context.Context, q ObservationQuery) (*ObservationSeries, error) {
	req, err := s.BuildDataRequest(q)
	if err != nil {
		return nil, err
	}

	payload, err := s.call(ctx, SourceStationData, req)
	if err != nil {
		return nil, err
	}

	kind := q.Kind
	if kind == "" {
		kind = KindDaily
	}

	series := &ObservationSeries{Kind: kind}
	series.Element, _ = Validate(q.Element)

	if len(payload.Meta) > 0 {
		station, err := toStation(0, payload.Meta[0])
		if err != nil {
			return nil, err
		}
		series.Station = &station
	}

	series.Observations, err = ToObservations(payload.Data, kind)
	if err != nil {
		return nil, err
	}
	return series, nil
}

func (s *Session) call(ctx context.Context, source Source, req Request) (*Payload, error) {
	if s.gateway == nil {
		return nil, &GatewayError{Source: source, Err: errors.New("no gateway configured")}
	}

	payload, err := s.gateway.Call(ctx, source, req)
	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			return nil, err
		}
		return nil, &GatewayError{Source: source, Err: err}
	}
	if payload == nil {
		return &Payload{}, nil
	}
	if payload.Error != "" {
		return nil, &GatewayError{Source: source, Err: errors.New(payload.Error)}
	}
	return payload, nil
}
