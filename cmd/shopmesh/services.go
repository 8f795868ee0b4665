package main

import (
	"context"
	"slices"

	"github.com/drblury/shopmesh/internal/catalog"
	"github.com/drblury/shopmesh/internal/inventory"
	"github.com/drblury/shopmesh/internal/query"
	"github.com/drblury/shopmesh/internal/review"
	"github.com/drblury/shopmesh/internal/runtime"
	"github.com/drblury/shopmesh/internal/runtime/envelope"
	"github.com/drblury/shopmesh/internal/shopping"
	"github.com/drblury/shopmesh/internal/store/memory"
)

// stores holds the repositories shared by the services of one process.
type stores struct {
	memory   *memory.Store
	shopping shopping.Store
}

// builder creates the domain service of a node and returns what its
// dispatcher should route to.
type builder func(ctx context.Context, node *runtime.Node, st stores) (runtime.DispatcherDependencies, error)

type serviceSpec struct {
	routingKey string
	build      builder
}

var services = map[string]serviceSpec{
	"product": {
		routingKey: envelope.ProductService,
		build: func(_ context.Context, node *runtime.Node, st stores) (runtime.DispatcherDependencies, error) {
			svc, err := catalog.NewService(st.memory, node.Gateway, node.Publisher, node.Logger,
				catalog.WithRPCTimeout(node.Conf.RPCTimeout),
				catalog.WithPaging(query.Paging{
					DefaultPageSize: node.Conf.DefaultPageSize,
					MaxPageSize:     node.Conf.MaxPageSize,
				}),
			)
			if err != nil {
				return runtime.DispatcherDependencies{}, err
			}
			return runtime.DispatcherDependencies{Events: svc, RPC: svc}, nil
		},
	},
	"inventory": {
		routingKey: envelope.InventoryService,
		build: func(_ context.Context, node *runtime.Node, st stores) (runtime.DispatcherDependencies, error) {
			svc, err := inventory.NewService(st.memory, node.Logger)
			if err != nil {
				return runtime.DispatcherDependencies{}, err
			}
			return runtime.DispatcherDependencies{Events: svc, RPC: svc}, nil
		},
	},
	"review": {
		routingKey: envelope.ReviewService,
		build: func(_ context.Context, node *runtime.Node, st stores) (runtime.DispatcherDependencies, error) {
			svc, err := review.NewService(st.memory, node.Publisher, node.Logger)
			if err != nil {
				return runtime.DispatcherDependencies{}, err
			}
			return runtime.DispatcherDependencies{Events: svc}, nil
		},
	},
	"shopping": {
		routingKey: envelope.ShoppingService,
		build: func(_ context.Context, node *runtime.Node, st stores) (runtime.DispatcherDependencies, error) {
			svc, err := shopping.NewService(st.shopping, node.Gateway, node.Logger,
				shopping.WithRPCTimeout(node.Conf.RPCTimeout),
			)
			if err != nil {
				return runtime.DispatcherDependencies{}, err
			}
			return runtime.DispatcherDependencies{Events: svc}, nil
		},
	},
}

func serviceNames() []string {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
