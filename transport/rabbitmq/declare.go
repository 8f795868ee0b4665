package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"io"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// ExchangeChannel is the subset of *amqp091.Channel used to declare the
// exchange.
type ExchangeChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	Close() error
}

// DialChannel opens a short-lived connection and channel. It allows
// overriding the dial for testing.
var DialChannel = func(url string) (ExchangeChannel, io.Closer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn, nil
}

// Declarer declares the shared direct exchange on its own connection so a
// service can fail fast at startup instead of on its first publish.
type Declarer struct {
	URL string
}

func (d *Declarer) DeclareExchange(ctx context.Context, exchange string) error {
	if exchange == "" {
		return errors.New("rabbitmq: exchange name is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, conn, err := DialChannel(d.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	defer conn.Close()
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, ExchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange %q: %w", exchange, err)
	}
	return nil
}
