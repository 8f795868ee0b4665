package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/drblury/shopmesh/internal/runtime/envelope"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
)

// Caller issues one RPC and decodes the reply. *runtime.Gateway satisfies it.
type Caller interface {
	CallInto(ctx context.Context, destination string, req envelope.RPCRequest, timeout time.Duration, out any) (bool, error)
}

// Engine composes retrieval criteria into filters, resolving the variant
// criteria through the inventory service.
type Engine struct {
	caller  Caller
	logger  loggingpkg.ServiceLogger
	timeout time.Duration
}

// NewEngine returns an engine resolving variant criteria through caller. A
// non-positive timeout uses the caller's default.
func NewEngine(caller Caller, timeout time.Duration, logger loggingpkg.ServiceLogger) *Engine {
	if logger == nil {
		logger = loggingpkg.NewNopServiceLogger()
	}
	return &Engine{caller: caller, timeout: timeout, logger: logger}
}

// Compose returns the local filters for criteria plus, when color or size
// were requested, one VariantOptions filter carrying the product ids the
// inventory service matched. Resolution errors, timeouts included, are
// returned as is.
func (e *Engine) Compose(ctx context.Context, criteria Criteria) ([]Filter, error) {
	filters, err := FromCriteria(criteria, EntityFieldFactory)
	if err != nil {
		return nil, err
	}
	remote, err := FromCriteria(criteria, VariantFactory)
	if err != nil {
		return nil, err
	}
	opts, ok := NewVariantOptions(remote)
	if !ok {
		return filters, nil
	}

	ids, err := e.Resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	return append(filters, ByProductIDs(ids)), nil
}

// Resolve asks the inventory service for the ids of products having a
// variant that matches opts. A null reply resolves to no ids.
func (e *Engine) Resolve(ctx context.Context, opts envelope.VariantOptions) ([]string, error) {
	if e.caller == nil {
		return nil, fmt.Errorf("resolve variant options: no rpc caller configured")
	}
	req, err := envelope.NewRPCRequest(envelope.RPCGetProductIDsByVariantOptions, opts)
	if err != nil {
		return nil, err
	}
	var ids []string
	found, err := e.caller.CallInto(ctx, envelope.InventoryService, req, e.timeout, &ids)
	if err != nil {
		return nil, fmt.Errorf("resolve variant options: %w", err)
	}
	if !found {
		ids = []string{}
	}
	e.logger.Debug("Resolved variant options", loggingpkg.LogFields{
		"colors":   opts.Colors,
		"sizes":    opts.Sizes,
		"products": len(ids),
	})
	return ids, nil
}
