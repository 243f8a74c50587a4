// Package rcc implements acis.Gateway against the Regional Climate Centers
// ACIS web services.
package rcc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/imclimate/acis/internal/acis"
	"github.com/imclimate/acis/internal/provider/resilience"
	"github.com/imclimate/acis/internal/telemetry"
)

const (
	// UpstreamName identifies ACIS in logs, metrics and health reports.
	UpstreamName = "acis"

	// DefaultBaseURL is the public ACIS web services endpoint.
	DefaultBaseURL = "https://data.rcc-acis.org"

	// maxErrorBody caps how much of a failed response is kept in the error.
	maxErrorBody = 512
)

// StatusError reports a non-200 response from ACIS.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status code: %d: %s", e.StatusCode, e.Body)
}

// ClientConfig holds configuration for the ACIS client.
type ClientConfig struct {
	// BaseURL is the service root (optional, defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Tracer for call spans (optional).
	Tracer trace.Tracer

	// Metrics for call counts and latency (optional).
	Metrics *telemetry.UpstreamMetrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client posts requests to ACIS and decodes the JSON payload.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	tracer     trace.Tracer
	metrics    *telemetry.UpstreamMetrics
	logger     zerolog.Logger
}

var _ acis.Gateway = (*Client)(nil)

// NewClient creates a new ACIS client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(UpstreamName))
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer("github.com/imclimate/acis/internal/acis/rcc")
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tracer:     tracer,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return UpstreamName
}

// Call posts req as JSON to <base>/<source>. A payload whose error field is
// set is returned as-is; the session turns it into a gateway error.
func (c *Client) Call(ctx context.Context, source acis.Source, req acis.Request) (*acis.Payload, error) {
	ctx, span := c.tracer.Start(ctx, "acis."+string(source),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("acis.source", string(source))),
	)
	defer span.End()

	start := time.Now()
	payload, outcome, err := c.do(ctx, source, req)
	elapsed := time.Since(start)

	c.metrics.Record(ctx, UpstreamName, string(source), outcome, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		c.logger.Warn().
			Err(err).
			Str("source", string(source)).
			Dur("elapsed", elapsed).
			Msg("acis call failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("acis.meta_rows", len(payload.Meta)))
	c.logger.Debug().
		Str("source", string(source)).
		Int("meta_rows", len(payload.Meta)).
		Int("data_rows", len(payload.Data)).
		Dur("elapsed", elapsed).
		Msg("acis call completed")

	return payload, nil
}

func (c *Client) do(ctx context.Context, source acis.Source, req acis.Request) (*acis.Payload, string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, "encode_error", fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+string(source), bytes.NewReader(body))
	if err != nil {
		return nil, "request_error", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, "transport_error", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, "http_error", &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	var payload acis.Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, "decode_error", fmt.Errorf("decoding response: %w", err)
	}

	if payload.Error != "" {
		return &payload, "service_error", nil
	}
	return &payload, "ok", nil
}
