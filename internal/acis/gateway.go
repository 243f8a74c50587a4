package acis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Source selects the remote ACIS operation.
type Source string

const (
	SourceStationMeta      Source = "StnMeta"
	SourceStationData      Source = "StnData"
	SourceMultiStationData Source = "MultiStnData"
)

// Gateway executes a built request against the remote service.
type Gateway interface {
	Call(ctx context.Context, source Source, req Request) (*Payload, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, source Source, req Request) (*Payload, error)

// Call implements Gateway.
func (f GatewayFunc) Call(ctx context.Context, source Source, req Request) (*Payload, error) {
	return f(ctx, source, req)
}

// Payload is a decoded service response. Meta holds one row per station; a
// single-station response is normalized to a one-element slice. Error is set
// when the service rejected the request.
type Payload struct {
	Meta  []map[string]any
	Data  [][]any
	Error string
}

type rawPayload struct {
	Meta  json.RawMessage `json:"meta"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// UnmarshalJSON decodes numbers as json.Number so identifiers and values keep
// their textual form.
func (p *Payload) UnmarshalJSON(b []byte) error {
	var raw rawPayload
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	p.Error = raw.Error
	p.Meta = nil
	p.Data = nil

	meta := bytes.TrimSpace(raw.Meta)
	switch {
	case len(meta) == 0 || bytes.Equal(meta, []byte("null")):
	case meta[0] == '[':
		if err := decodeNumbers(meta, &p.Meta); err != nil {
			return fmt.Errorf("decode meta: %w", err)
		}
	default:
		var single map[string]any
		if err := decodeNumbers(meta, &single); err != nil {
			return fmt.Errorf("decode meta: %w", err)
		}
		p.Meta = []map[string]any{single}
	}

	data := bytes.TrimSpace(raw.Data)
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if err := decodeNumbers(data, &p.Data); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}

	return nil
}

func decodeNumbers(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}
