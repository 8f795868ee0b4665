package errors

import (
	sterrors "errors"
	"fmt"
	"time"
)

var (
	ErrBrokerRequired       = sterrors.New("shopmesh: broker client is required")
	ErrHandlerRequired      = sterrors.New("shopmesh: handler function is required")
	ErrDestinationRequired  = sterrors.New("shopmesh: destination is required")
	ErrBindingRequired      = sterrors.New("shopmesh: queue binding is required")
	ErrServiceNameRequired  = sterrors.New("shopmesh: service name is required")
	ErrEnvelopeKindRequired = sterrors.New("shopmesh: envelope kind is required")
	ErrConfigRequired       = sterrors.New("shopmesh: configuration is required")
	ErrLoggerRequired       = sterrors.New("shopmesh: logger is required")
	ErrClientClosed         = sterrors.New("shopmesh: broker client is closed")
	ErrNotConnected         = sterrors.New("shopmesh: broker connection is down")
	ErrGatewayNotStarted    = sterrors.New("shopmesh: rpc gateway is not started")
)

// TransportError reports that the broker could not be reached or the
// connection dropped while an operation was in flight.
type TransportError struct {
	Op          string
	Destination string
	Err         error
}

func (e *TransportError) Error() string {
	if e.Destination != "" {
		return fmt.Sprintf("shopmesh: transport %s %q: %v", e.Op, e.Destination, e.Err)
	}
	return fmt.Sprintf("shopmesh: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err unless it already is a TransportError.
func NewTransportError(op, destination string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if sterrors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Destination: destination, Err: err}
}

// RPCTimeoutError is returned when no reply carrying the call's correlation
// id arrived before the deadline.
type RPCTimeoutError struct {
	Destination   string
	CorrelationID string
	Timeout       time.Duration
}

func (e *RPCTimeoutError) Error() string {
	return fmt.Sprintf("shopmesh: rpc to %q timed out after %s (correlation_id=%s)", e.Destination, e.Timeout, e.CorrelationID)
}

// ValidationError marks a malformed request attribute or value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "shopmesh: validation failed: " + e.Reason
	}
	return fmt.Sprintf("shopmesh: invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError marks a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("shopmesh: %s %q not found", e.Entity, e.ID)
}

// RemoteError carries a handler failure reported by the serving side of an
// RPC. The reply body is null and the reason travels as a header.
type RemoteError struct {
	Destination string
	Kind        string
	Reason      string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("shopmesh: rpc %s on %q failed remotely: %s", e.Kind, e.Destination, e.Reason)
}

// ConfigValidationError wraps configuration problems detected at startup.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "shopmesh: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

func IsTransport(err error) bool {
	var te *TransportError
	return sterrors.As(err, &te)
}

func IsTimeout(err error) bool {
	var te *RPCTimeoutError
	return sterrors.As(err, &te)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return sterrors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var ne *NotFoundError
	return sterrors.As(err, &ne)
}

func IsRemote(err error) bool {
	var re *RemoteError
	return sterrors.As(err, &re)
}
