// Package redisstore persists carts and wishlists as JSON documents in
// Redis, one key per user.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"

	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	"github.com/drblury/shopmesh/internal/runtime/jsoncodec"
	"github.com/drblury/shopmesh/internal/shopping"
)

const defaultNamespace = "shopmesh"

// scanBatch is the COUNT hint of each SCAN round trip.
const scanBatch = 100

// maxUpdateAttempts bounds the optimistic retries of one cart update.
const maxUpdateAttempts = 32

// Store implements shopping.Store.
type Store struct {
	rdb       redis.UniversalClient
	namespace string
	carts     *Carts
	wishlists *Wishlists
}

var _ shopping.Store = (*Store)(nil)

// New wraps rdb. Keys are prefixed with namespace, "shopmesh" when empty.
func New(rdb redis.UniversalClient, namespace string) *Store {
	if strings.TrimSpace(namespace) == "" {
		namespace = defaultNamespace
	}
	s := &Store{rdb: rdb, namespace: namespace}
	s.carts = &Carts{docs: documents[shopping.Cart]{rdb: rdb, prefix: namespace + ":cart:", entity: "cart"}}
	s.wishlists = &Wishlists{docs: documents[shopping.Wishlist]{rdb: rdb, prefix: namespace + ":wishlist:", entity: "wishlist"}}
	return s
}

// Open connects to the Redis server named by a redis:// URL and checks it
// answers PING.
func Open(ctx context.Context, url, namespace string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(rdb, namespace), nil
}

func (s *Store) Carts() shopping.CartRepository         { return s.carts }
func (s *Store) Wishlists() shopping.WishlistRepository { return s.wishlists }

func (s *Store) Close() error { return s.rdb.Close() }

// documents stores values of T as JSON under prefix+id.
type documents[T any] struct {
	rdb    redis.UniversalClient
	prefix string
	entity string
}

func (d documents[T]) get(ctx context.Context, id string) (T, error) {
	var v T
	raw, err := d.rdb.Get(ctx, d.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, &errspkg.NotFoundError{Entity: d.entity, ID: id}
	}
	if err != nil {
		return v, fmt.Errorf("get %s %q: %w", d.entity, id, err)
	}
	if err := jsoncodec.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s %q: %w", d.entity, id, err)
	}
	return v, nil
}

func (d documents[T]) put(ctx context.Context, id string, v T) error {
	raw, err := jsoncodec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %q: %w", d.entity, id, err)
	}
	if err := d.rdb.Set(ctx, d.prefix+id, raw, 0).Err(); err != nil {
		return fmt.Errorf("set %s %q: %w", d.entity, id, err)
	}
	return nil
}

func (d documents[T]) del(ctx context.Context, id string) error {
	if err := d.rdb.Del(ctx, d.prefix+id).Err(); err != nil {
		return fmt.Errorf("delete %s %q: %w", d.entity, id, err)
	}
	return nil
}

// list returns every document under the prefix in key order.
func (d documents[T]) list(ctx context.Context) ([]T, error) {
	var keys []string
	iter := d.rdb.Scan(ctx, 0, d.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s keys: %w", d.entity, err)
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	out := make([]T, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	// One GET per key: the keys may live in different cluster slots, which
	// rules out MGET.
	cmds := make([]*redis.StringCmd, len(keys))
	_, err := d.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.Get(ctx, key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load %s documents: %w", d.entity, err)
	}
	for i, cmd := range cmds {
		raw, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			// removed between SCAN and GET
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s %q: %w", d.entity, strings.TrimPrefix(keys[i], d.prefix), err)
		}
		var v T
		if err := jsoncodec.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s %q: %w", d.entity, strings.TrimPrefix(keys[i], d.prefix), err)
		}
		out = append(out, v)
	}
	return out, nil
}

type Carts struct {
	docs documents[shopping.Cart]
}

func (c *Carts) Get(ctx context.Context, userID string) (shopping.Cart, error) {
	return c.docs.get(ctx, userID)
}

func (c *Carts) Save(ctx context.Context, cart shopping.Cart) error {
	if cart.UserID == "" {
		return &errspkg.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	return c.docs.put(ctx, cart.UserID, cart)
}

// Update watches the cart key and writes the result in MULTI/EXEC,
// starting over when another client changed the cart in between.
func (c *Carts) Update(ctx context.Context, userID string, fn shopping.CartMutation) (shopping.Cart, error) {
	if userID == "" {
		return shopping.Cart{}, &errspkg.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	key := c.docs.prefix + userID
	var out shopping.Cart
	txf := func(tx *redis.Tx) error {
		cart := shopping.Cart{UserID: userID}
		raw, err := tx.Get(ctx, key).Bytes()
		found := err == nil
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("get cart %q: %w", userID, err)
		default:
			if err := jsoncodec.Unmarshal(raw, &cart); err != nil {
				return fmt.Errorf("decode cart %q: %w", userID, err)
			}
		}
		if err := fn(&cart, found); err != nil {
			return err
		}
		raw, err = jsoncodec.Marshal(cart)
		if err != nil {
			return fmt.Errorf("encode cart %q: %w", userID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			return nil
		})
		if err == nil {
			out = cart
		}
		return err
	}

	for range maxUpdateAttempts {
		err := c.docs.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return shopping.Cart{}, err
		}
		return out, nil
	}
	return shopping.Cart{}, fmt.Errorf("update cart %q: gave up after %d conflicting writes", userID, maxUpdateAttempts)
}

func (c *Carts) Delete(ctx context.Context, userID string) error {
	return c.docs.del(ctx, userID)
}

func (c *Carts) List(ctx context.Context) ([]shopping.Cart, error) {
	return c.docs.list(ctx)
}

type Wishlists struct {
	docs documents[shopping.Wishlist]
}

func (w *Wishlists) Get(ctx context.Context, userID string) (shopping.Wishlist, error) {
	return w.docs.get(ctx, userID)
}

func (w *Wishlists) Save(ctx context.Context, list shopping.Wishlist) error {
	if list.UserID == "" {
		return &errspkg.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	return w.docs.put(ctx, list.UserID, list)
}

func (w *Wishlists) List(ctx context.Context) ([]shopping.Wishlist, error) {
	return w.docs.list(ctx)
}
