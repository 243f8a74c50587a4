// Package unitbounds resolves park and refuge unit codes to bounding boxes
// using the NPS IRMA and FWS ECOS unit geography services.
package unitbounds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/rs/zerolog"

	"github.com/imclimate/acis/internal/acis"
	"github.com/imclimate/acis/internal/provider/resilience"
)

const (
	// DefaultIRMAURL serves NPS units (alphabetic codes such as ACAD).
	DefaultIRMAURL = "https://irmaservices.nps.gov/v2/rest/unit"

	// DefaultECOSURL serves FWS units (alphanumeric codes such as FF04RMHC00).
	DefaultECOSURL = "https://ecos.fws.gov/ServCatServices/v2/rest/unit"
)

var (
	// ErrInvalidUnitCode is returned for empty or non-alphanumeric codes.
	ErrInvalidUnitCode = errors.New("invalid unit code")

	// ErrUnitNotFound is returned when the service knows no geography for
	// the unit.
	ErrUnitNotFound = errors.New("unit not found")

	// ErrNegativeBuffer is returned for a buffer distance below zero.
	ErrNegativeBuffer = errors.New("buffer distance must not be negative")
)

// Service names the geography service that owns a unit code.
type Service string

const (
	ServiceIRMA Service = "irma"
	ServiceECOS Service = "ecos"
)

// ServiceFor returns the service owning code: purely alphabetic codes are NPS
// units, everything else is an FWS unit.
func ServiceFor(code string) Service {
	for _, r := range code {
		if !unicode.IsLetter(r) {
			return ServiceECOS
		}
	}
	return ServiceIRMA
}

// ClientConfig holds configuration for the unit geography client.
type ClientConfig struct {
	// IRMABaseURL overrides DefaultIRMAURL.
	IRMABaseURL string

	// ECOSBaseURL overrides DefaultECOSURL.
	ECOSBaseURL string

	// IRMAClient and ECOSClient are the HTTP clients to use (optional).
	// If nil, resilient clients with defaults are used.
	IRMAClient *resilience.Client
	ECOSClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client looks up unit envelopes.
type Client struct {
	irmaURL string
	ecosURL string
	irma    *resilience.Client
	ecos    *resilience.Client
	logger  zerolog.Logger
}

// NewClient creates a new unit geography client.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		irmaURL: strings.TrimRight(cfg.IRMABaseURL, "/"),
		ecosURL: strings.TrimRight(cfg.ECOSBaseURL, "/"),
		irma:    cfg.IRMAClient,
		ecos:    cfg.ECOSClient,
		logger:  cfg.Logger,
	}
	if c.irmaURL == "" {
		c.irmaURL = DefaultIRMAURL
	}
	if c.ecosURL == "" {
		c.ecosURL = DefaultECOSURL
	}
	if c.irma == nil {
		c.irma = resilience.NewClient(resilience.DefaultClientConfig(string(ServiceIRMA)))
	}
	if c.ecos == nil {
		c.ecos = resilience.NewClient(resilience.DefaultClientConfig(string(ServiceECOS)))
	}
	return c
}

// unitGeography is one element of the geography response.
type unitGeography struct {
	Geography string `json:"Geography"`
}

// Envelope returns the unscaled bounding box of unitCode. Point and line
// geographies give a degenerate box.
func (c *Client) Envelope(ctx context.Context, unitCode string) (acis.BoundingBox, error) {
	code := strings.TrimSpace(unitCode)
	if !validCode(code) {
		return acis.BoundingBox{}, fmt.Errorf("%w: %q", ErrInvalidUnitCode, unitCode)
	}

	base, httpClient := c.irmaURL, c.irma
	if ServiceFor(code) == ServiceECOS {
		base, httpClient = c.ecosURL, c.ecos
	}

	endpoint := fmt.Sprintf("%s/%s/geography?detail=envelope&dataformat=wkt&format=json",
		base, url.PathEscape(code))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return acis.BoundingBox{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return acis.BoundingBox{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return acis.BoundingBox{}, fmt.Errorf("%w: %s", ErrUnitNotFound, code)
	default:
		return acis.BoundingBox{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var geographies []unitGeography
	if err := json.NewDecoder(resp.Body).Decode(&geographies); err != nil {
		return acis.BoundingBox{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(geographies) == 0 || strings.TrimSpace(geographies[0].Geography) == "" {
		return acis.BoundingBox{}, fmt.Errorf("%w: %s", ErrUnitNotFound, code)
	}

	box, err := envelopeFromWKT(geographies[0].Geography)
	if err != nil {
		return acis.BoundingBox{}, err
	}

	c.logger.Debug().
		Str("unit_code", code).
		Str("service", string(ServiceFor(code))).
		Str("bbox", box.String()).
		Msg("resolved unit envelope")

	return box, nil
}

// BoundingBox returns the envelope of unitCode grown by bufferKM on every side.
func (c *Client) BoundingBox(ctx context.Context, unitCode string, bufferKM float64) (acis.BoundingBox, error) {
	if bufferKM < 0 {
		return acis.BoundingBox{}, fmt.Errorf("%w: %v", ErrNegativeBuffer, bufferKM)
	}
	box, err := c.Envelope(ctx, unitCode)
	if err != nil {
		return acis.BoundingBox{}, err
	}
	box = box.Buffer(bufferKM)
	if err := box.Validate(); err != nil {
		return acis.BoundingBox{}, err
	}
	return box, nil
}

func envelopeFromWKT(text string) (acis.BoundingBox, error) {
	geom, err := wkt.Unmarshal(text)
	if err != nil {
		return acis.BoundingBox{}, fmt.Errorf("parsing geography: %w", err)
	}

	bound := geom.Bound()
	return acis.BoundingBox{
		West:  bound.Left(),
		South: bound.Bottom(),
		East:  bound.Right(),
		North: bound.Top(),
	}, nil
}

func validCode(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}
