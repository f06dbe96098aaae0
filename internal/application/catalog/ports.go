// Package catalog casos de uso de productos y clientes con lecturas cacheadas por colección.
package catalog

import (
	"context"
	"encoding/json"

	"github.com/jhoicas/pos-lotes/internal/application/inventory"
)

// Cache caché de lecturas por colección. GetOrLoad llena dest (vía JSON) desde la caché o con load;
// las cargas concurrentes de la misma llave se colapsan en una.
type Cache interface {
	inventory.CacheInvalidator
	GetOrLoad(ctx context.Context, collection, key string, dest any, load func(ctx context.Context) (any, error)) error
}

// directCache sin caché: siempre carga.
type directCache struct{}

func (directCache) Invalidate(context.Context, ...string) error { return nil }

func (directCache) GetOrLoad(ctx context.Context, _, _ string, dest any, load func(ctx context.Context) (any, error)) error {
	v, err := load(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
