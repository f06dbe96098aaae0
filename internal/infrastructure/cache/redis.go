// Package cache implementa la caché de colecciones (Redis o memoria) con invalidación por versión.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// NewRedisClient crea el cliente y verifica la conexión.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	return client, nil
}

// Redis caché de colecciones en Redis. Cada colección tiene un contador de versión que forma parte
// de la llave; invalidar es incrementarlo y las entradas viejas vencen por TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	group  singleflight.Group
}

// NewRedis construye la caché. prefix separa instalaciones que comparten Redis.
func NewRedis(client *redis.Client, ttl time.Duration, prefix string) *Redis {
	if prefix == "" {
		prefix = "pos"
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix}
}

func (c *Redis) versionKey(collection string) string {
	return c.prefix + ":version:" + collection
}

// version versión vigente de la colección (0 si nunca se invalidó).
func (c *Redis) version(ctx context.Context, collection string) (int64, error) {
	ver, err := c.client.Get(ctx, c.versionKey(collection)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

func (c *Redis) key(ctx context.Context, collection, key string) (string, error) {
	ver, err := c.version(ctx, collection)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{c.prefix, collection, fmt.Sprint(ver), key}, ":"), nil
}

// GetOrLoad lee la llave o la llena con load. Un fallo de Redis cae a la carga directa.
func (c *Redis) GetOrLoad(ctx context.Context, collection, key string, dest any, load func(ctx context.Context) (any, error)) error {
	if load == nil {
		return errors.New("cache: load requerido")
	}
	full, err := c.key(ctx, collection, key)
	if err != nil {
		return loadInto(ctx, dest, load)
	}
	payload, err := c.client.Get(ctx, full).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return loadInto(ctx, dest, load)
	}

	v, err, _ := c.group.Do(full, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		_ = c.client.Set(ctx, full, raw, c.ttl).Err()
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(v.([]byte), dest)
}

// Invalidate sube la versión de cada colección.
func (c *Redis) Invalidate(ctx context.Context, collections ...string) error {
	if len(collections) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	for _, col := range collections {
		pipe.Incr(ctx, c.versionKey(col))
	}
	_, err := pipe.Exec(ctx)
	return err
}

func loadInto(ctx context.Context, dest any, load func(ctx context.Context) (any, error)) error {
	value, err := load(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
