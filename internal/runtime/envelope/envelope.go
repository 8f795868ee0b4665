// Package envelope defines the JSON bodies exchanged between services:
// {"event": ..., "data": ...} for pub/sub and {"type": ..., "data": ...} for
// RPC requests. Correlation id and reply-to never appear in the body; they
// travel as message metadata.
package envelope

import (
	"encoding/json"
	"fmt"

	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	"github.com/drblury/shopmesh/internal/runtime/jsoncodec"
)

// Envelope is the transport-neutral view of either family: a kind tag and an
// opaque JSON payload.
type Envelope struct {
	Kind    string
	Payload json.RawMessage
}

// Event is a pub/sub envelope.
type Event struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RPCRequest is the body of an RPC request.
type RPCRequest struct {
	Type RPCType         `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEvent marshals data into an event envelope.
func NewEvent(kind EventType, data any) (Event, error) {
	if kind == "" {
		return Event{}, errspkg.ErrEnvelopeKindRequired
	}
	raw, err := marshalData(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s data: %w", kind, err)
	}
	return Event{Event: kind, Data: raw}, nil
}

// NewRPCRequest marshals data into an RPC request envelope.
func NewRPCRequest(kind RPCType, data any) (RPCRequest, error) {
	if kind == "" {
		return RPCRequest{}, errspkg.ErrEnvelopeKindRequired
	}
	raw, err := marshalData(data)
	if err != nil {
		return RPCRequest{}, fmt.Errorf("marshal %s data: %w", kind, err)
	}
	return RPCRequest{Type: kind, Data: raw}, nil
}

func marshalData(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		return v, nil
	}
	return jsoncodec.Marshal(data)
}

func (e Event) Envelope() Envelope {
	return Envelope{Kind: string(e.Event), Payload: e.Data}
}

func (r RPCRequest) Envelope() Envelope {
	return Envelope{Kind: string(r.Type), Payload: r.Data}
}

// DecodeData unmarshals the event payload into v.
func (e Event) DecodeData(v any) error {
	return decodeData(e.Data, v)
}

// DecodeData unmarshals the request payload into v.
func (r RPCRequest) DecodeData(v any) error {
	return decodeData(r.Data, v)
}

func decodeData(data json.RawMessage, v any) error {
	if jsoncodec.IsNull(data) {
		return &errspkg.ValidationError{Field: "data", Reason: "payload is empty"}
	}
	if err := jsoncodec.Unmarshal(data, v); err != nil {
		return &errspkg.ValidationError{Field: "data", Reason: err.Error()}
	}
	return nil
}

// EncodeEvent serializes an event for publishing.
func EncodeEvent(e Event) ([]byte, error) {
	if e.Event == "" {
		return nil, errspkg.ErrEnvelopeKindRequired
	}
	if e.Data == nil {
		e.Data = json.RawMessage("null")
	}
	return jsoncodec.Marshal(e)
}

// DecodeEvent parses a received event body. A body without an event kind is
// rejected; a kind this build does not know is returned as-is so callers
// can ignore it.
func DecodeEvent(body []byte) (Event, error) {
	var e Event
	if err := jsoncodec.Unmarshal(body, &e); err != nil {
		return Event{}, &errspkg.ValidationError{Field: "envelope", Reason: err.Error()}
	}
	if e.Event == "" {
		return Event{}, errspkg.ErrEnvelopeKindRequired
	}
	return e, nil
}

// EncodeRPCRequest serializes an RPC request body.
func EncodeRPCRequest(r RPCRequest) ([]byte, error) {
	if r.Type == "" {
		return nil, errspkg.ErrEnvelopeKindRequired
	}
	if r.Data == nil {
		r.Data = json.RawMessage("null")
	}
	return jsoncodec.Marshal(r)
}

// DecodeRPCRequest parses a received RPC request body.
func DecodeRPCRequest(body []byte) (RPCRequest, error) {
	var r RPCRequest
	if err := jsoncodec.Unmarshal(body, &r); err != nil {
		return RPCRequest{}, &errspkg.ValidationError{Field: "envelope", Reason: err.Error()}
	}
	if r.Type == "" {
		return RPCRequest{}, errspkg.ErrEnvelopeKindRequired
	}
	return r, nil
}

// EncodeReply serializes an RPC result. A nil result becomes the JSON
// literal null, which callers read as "found nothing".
func EncodeReply(result any) ([]byte, error) {
	if result == nil {
		return []byte("null"), nil
	}
	if raw, ok := result.(json.RawMessage); ok {
		return raw, nil
	}
	return jsoncodec.Marshal(result)
}
