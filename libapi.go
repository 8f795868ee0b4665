package shopmesh

import (
	"context"

	"github.com/drblury/shopmesh/internal/metrics"
	runtimepkg "github.com/drblury/shopmesh/internal/runtime"
	configpkg "github.com/drblury/shopmesh/internal/runtime/config"
	"github.com/drblury/shopmesh/internal/runtime/envelope"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	handlerpkg "github.com/drblury/shopmesh/internal/runtime/handlers"
	idspkg "github.com/drblury/shopmesh/internal/runtime/ids"
	jsoncodec "github.com/drblury/shopmesh/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
	metadatapkg "github.com/drblury/shopmesh/internal/runtime/metadata"
	newtransport "github.com/drblury/shopmesh/transport"
)

type (
	Config                 = configpkg.Config
	Node                   = runtimepkg.Node
	NodeOptions            = runtimepkg.NodeOptions
	Dispatcher             = runtimepkg.Dispatcher
	DispatcherDependencies = runtimepkg.DispatcherDependencies
	DispatcherState        = runtimepkg.DispatcherState
	EventSubscriber        = runtimepkg.EventSubscriber
	RPCServer              = runtimepkg.RPCServer
	Gateway                = runtimepkg.Gateway
	Publisher              = runtimepkg.Publisher
	Metrics                = metrics.Metrics

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration

	// Dispatch lifecycle hooks
	DispatchContext = runtimepkg.DispatchContext
	DispatchHooks   = runtimepkg.DispatchHooks

	EventTable            = handlerpkg.EventTable
	RPCTable              = handlerpkg.RPCTable
	EventHandler          = handlerpkg.EventHandler
	RPCHandler            = handlerpkg.RPCHandler
	MessageContext[T any] = handlerpkg.MessageContext[T]
	EventType             = envelope.EventType
	RPCType               = envelope.RPCType
	Event                 = envelope.Event
	RPCRequest            = envelope.RPCRequest
	Metadata              = metadatapkg.Metadata
	LogFields             = loggingpkg.LogFields
	ServiceLogger         = loggingpkg.ServiceLogger
	TransportBuilder      = newtransport.Builder
	TransportConfig       = newtransport.Config
	TransportRegistry     = newtransport.Registry
	TransportCapabilities = newtransport.Capabilities
	TransportError        = errspkg.TransportError
	RPCTimeoutError       = errspkg.RPCTimeoutError
	RemoteError           = errspkg.RemoteError
	ValidationError       = errspkg.ValidationError
	NotFoundError         = errspkg.NotFoundError
	ConfigValidationError = errspkg.ConfigValidationError
)

var (
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig
	NewNode        = runtimepkg.NewNode
	NewMetrics     = metrics.New

	NewEventTable = handlerpkg.NewEventTable
	NewRPCTable   = handlerpkg.NewRPCTable

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	AckOnReceiptMiddleware  = runtimepkg.AckOnReceiptMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	SwallowErrorsMiddleware = runtimepkg.SwallowErrorsMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware
	DispatchHooksMiddleware = runtimepkg.DispatchHooksMiddleware
	LoggingHooks            = runtimepkg.LoggingHooks

	NewEvent      = envelope.NewEvent
	NewRPCRequest = envelope.NewRPCRequest

	DefaultTransportRegistry = newtransport.DefaultRegistry
	RegisterTransport        = newtransport.Register
	BuildTransport           = newtransport.Build

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal

	ErrBrokerRequired      = errspkg.ErrBrokerRequired
	ErrHandlerRequired     = errspkg.ErrHandlerRequired
	ErrDestinationRequired = errspkg.ErrDestinationRequired
	ErrConfigRequired      = errspkg.ErrConfigRequired
	ErrLoggerRequired      = errspkg.ErrLoggerRequired
	ErrClientClosed        = errspkg.ErrClientClosed
	ErrNotConnected        = errspkg.ErrNotConnected

	IsTransport  = errspkg.IsTransport
	IsTimeout    = errspkg.IsTimeout
	IsRemote     = errspkg.IsRemote
	IsValidation = errspkg.IsValidation
	IsNotFound   = errspkg.IsNotFound

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewZapServiceLogger  = loggingpkg.NewZapServiceLogger
	NewNopServiceLogger  = loggingpkg.NewNopServiceLogger

	NewMetadata = metadatapkg.New

	CreateULID       = idspkg.CreateULID
	NewCorrelationID = idspkg.NewCorrelationID
)

// Routing keys of the four services.
const (
	ProductService   = envelope.ProductService
	InventoryService = envelope.InventoryService
	ReviewService    = envelope.ReviewService
	ShoppingService  = envelope.ShoppingService
)

// JSONEvent adapts a typed handler to an EventHandler.
func JSONEvent[T any](fn func(ctx context.Context, msg MessageContext[T]) error, logger ServiceLogger) EventHandler {
	return handlerpkg.JSON(fn, logger)
}

// JSONRPC adapts a typed function to an RPCHandler. Returning a nil
// pointer replies null.
func JSONRPC[T any, R any](fn func(ctx context.Context, req T) (R, error)) RPCHandler {
	return handlerpkg.JSONRPC(fn)
}
