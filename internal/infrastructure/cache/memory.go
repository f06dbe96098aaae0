package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	raw     []byte
	expires time.Time
}

// Memory caché de colecciones en proceso con TTL.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]map[string]entry
	group   singleflight.Group
	now     func() time.Time
}

// NewMemory construye la caché; ttl <= 0 desactiva el vencimiento.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[string]map[string]entry), now: time.Now}
}

func (c *Memory) get(collection, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[collection][key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		return nil, false
	}
	return e.raw, true
}

// GetOrLoad lee la llave o la llena con load.
func (c *Memory) GetOrLoad(ctx context.Context, collection, key string, dest any, load func(ctx context.Context) (any, error)) error {
	if load == nil {
		return errors.New("cache: load requerido")
	}
	if raw, ok := c.get(collection, key); ok {
		return json.Unmarshal(raw, dest)
	}
	v, err, _ := c.group.Do(collection+"\x00"+key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.entries[collection] == nil {
			c.entries[collection] = make(map[string]entry)
		}
		c.entries[collection][key] = entry{raw: raw, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(v.([]byte), dest)
}

// Invalidate descarta todas las entradas de las colecciones.
func (c *Memory) Invalidate(_ context.Context, collections ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, col := range collections {
		delete(c.entries, col)
	}
	return nil
}
