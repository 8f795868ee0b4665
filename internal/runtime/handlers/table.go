package handlers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/drblury/shopmesh/internal/runtime/envelope"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
)

// EventTable maps event kinds to handlers. It implements the single
// SubscribeEvents entry point a domain service exposes to the dispatcher.
type EventTable struct {
	logger loggingpkg.ServiceLogger

	mu       sync.RWMutex
	handlers map[envelope.EventType]EventHandler
}

// NewEventTable returns an empty table logging to logger, or nowhere when
// logger is nil.
func NewEventTable(logger loggingpkg.ServiceLogger) *EventTable {
	if logger == nil {
		logger = loggingpkg.NewNopServiceLogger()
	}
	return &EventTable{
		logger:   logger,
		handlers: make(map[envelope.EventType]EventHandler),
	}
}

// Handle registers h for kind. Only kinds from the shared enumeration can be
// registered, and each kind has at most one handler.
func (t *EventTable) Handle(kind envelope.EventType, h EventHandler) error {
	if h == nil {
		return errspkg.ErrHandlerRequired
	}
	if !kind.Known() {
		return fmt.Errorf("shopmesh: event kind %q is not part of the enumeration", kind)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.handlers[kind]; exists {
		return fmt.Errorf("shopmesh: handler for event kind %q already registered", kind)
	}
	t.handlers[kind] = h
	return nil
}

// SubscribeEvents decodes a raw event body and runs the handler for its
// kind. Kinds without a handler, including ones unknown to this build, are
// a no-op.
func (t *EventTable) SubscribeEvents(ctx context.Context, body []byte) error {
	evt, err := envelope.DecodeEvent(body)
	if err != nil {
		return err
	}

	t.mu.RLock()
	h, ok := t.handlers[evt.Event]
	t.mu.RUnlock()

	if !ok {
		t.logger.Debug("Ignoring event without handler", loggingpkg.LogFields{
			"event_kind": string(evt.Event),
			"known":      evt.Event.Known(),
		})
		return nil
	}
	return h(ctx, evt)
}

// Kinds lists the registered event kinds in lexical order.
func (t *EventTable) Kinds() []envelope.EventType {
	t.mu.RLock()
	defer t.mu.RUnlock()
	kinds := make([]envelope.EventType, 0, len(t.handlers))
	for k := range t.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// RPCTable maps RPC request kinds to handlers and implements ServeRPCRequest.
type RPCTable struct {
	mu       sync.RWMutex
	handlers map[envelope.RPCType]RPCHandler
}

// NewRPCTable returns an empty table. Unregistered kinds answer null.
func NewRPCTable() *RPCTable {
	return &RPCTable{handlers: make(map[envelope.RPCType]RPCHandler)}
}

func (t *RPCTable) Handle(kind envelope.RPCType, h RPCHandler) error {
	if h == nil {
		return errspkg.ErrHandlerRequired
	}
	if !kind.Known() {
		return fmt.Errorf("shopmesh: rpc kind %q is not part of the enumeration", kind)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.handlers[kind]; exists {
		return fmt.Errorf("shopmesh: handler for rpc kind %q already registered", kind)
	}
	t.handlers[kind] = h
	return nil
}

// ServeRPCRequest answers req. A kind without a handler answers null.
func (t *RPCTable) ServeRPCRequest(ctx context.Context, req envelope.RPCRequest) (any, error) {
	t.mu.RLock()
	h, ok := t.handlers[req.Type]
	t.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	return h(ctx, req)
}
