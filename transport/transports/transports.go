// Package transports imports all built-in transports for auto-registration.
// Import this package to have every transport registered with the default registry.
package transports

import (
	// Import all transports for side-effect registration
	_ "github.com/drblury/shopmesh/transport/channel"
	_ "github.com/drblury/shopmesh/transport/kafka"
	_ "github.com/drblury/shopmesh/transport/nats"
	_ "github.com/drblury/shopmesh/transport/rabbitmq"
)
