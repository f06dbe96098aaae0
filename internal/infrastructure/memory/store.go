// Package memory implementa el almacén en memoria (desarrollo y pruebas).
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
)

// Store almacén en memoria. Las escrituras reemplazan entradas por copias, nunca mutan en sitio,
// así una instantánea superficial de los mapas basta para revertir una transacción.
type Store struct {
	mu           sync.RWMutex
	products     map[string]*entity.Product
	batches      map[string]*entity.Batch
	sales        map[string]*entity.Sale
	trash        map[string]*entity.TrashedSale
	customers    map[string]*entity.Customer
	reservations map[string]*entity.Reservation
	txlog        []*entity.TransactionLogEntry
	users        map[string]*entity.User
}

// NewStore construye un almacén vacío.
func NewStore() *Store {
	return &Store{
		products:     make(map[string]*entity.Product),
		batches:      make(map[string]*entity.Batch),
		sales:        make(map[string]*entity.Sale),
		trash:        make(map[string]*entity.TrashedSale),
		customers:    make(map[string]*entity.Customer),
		reservations: make(map[string]*entity.Reservation),
		users:        make(map[string]*entity.User),
	}
}

// Run ejecuta fn en una transacción simulada: bloqueo exclusivo del almacén,
// instantánea previa y restauración si fn devuelve error.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, s.repos(true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Repositories repositorios fuera de transacción (lecturas del catálogo, pruebas).
func (s *Store) Repositories() repository.Repos {
	return s.repos(false)
}

// Users repositorio de usuarios.
func (s *Store) Users() repository.UserRepository {
	return &userRepo{s: s}
}

func (s *Store) repos(locked bool) repository.Repos {
	return repository.Repos{
		Products:       &productRepo{s: s, locked: locked},
		Batches:        &batchRepo{s: s, locked: locked},
		Sales:          &saleRepo{s: s, locked: locked},
		Customers:      &customerRepo{s: s, locked: locked},
		Reservations:   &reservationRepo{s: s, locked: locked},
		TransactionLog: &txLogRepo{s: s, locked: locked},
	}
}

func (s *Store) read(locked bool, fn func()) {
	if !locked {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	fn()
}

func (s *Store) write(locked bool, fn func() error) error {
	if !locked {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn()
}

type snapshot struct {
	products     map[string]*entity.Product
	batches      map[string]*entity.Batch
	sales        map[string]*entity.Sale
	trash        map[string]*entity.TrashedSale
	customers    map[string]*entity.Customer
	reservations map[string]*entity.Reservation
	txlog        []*entity.TransactionLogEntry
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		products:     copyMap(s.products),
		batches:      copyMap(s.batches),
		sales:        copyMap(s.sales),
		trash:        copyMap(s.trash),
		customers:    copyMap(s.customers),
		reservations: copyMap(s.reservations),
		txlog:        append([]*entity.TransactionLogEntry(nil), s.txlog...),
	}
}

func (s *Store) restore(snap snapshot) {
	s.products = snap.products
	s.batches = snap.batches
	s.sales = snap.sales
	s.trash = snap.trash
	s.customers = snap.customers
	s.reservations = snap.reservations
	s.txlog = snap.txlog
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func page[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
