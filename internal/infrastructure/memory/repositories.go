package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
)

var (
	_ repository.ProductRepository        = (*productRepo)(nil)
	_ repository.BatchRepository          = (*batchRepo)(nil)
	_ repository.SaleRepository           = (*saleRepo)(nil)
	_ repository.CustomerRepository       = (*customerRepo)(nil)
	_ repository.ReservationRepository    = (*reservationRepo)(nil)
	_ repository.TransactionLogRepository = (*txLogRepo)(nil)
)

// ── productos ────────────────────────────────────────────────────────────────

type productRepo struct {
	s      *Store
	locked bool
}

func (r *productRepo) Create(_ context.Context, p *entity.Product) error {
	return r.s.write(r.locked, func() error {
		if _, ok := r.s.products[p.ID]; ok {
			return domain.ErrDuplicate
		}
		r.s.products[p.ID] = p.Clone()
		return nil
	})
}

func (r *productRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	var out *entity.Product
	r.s.read(r.locked, func() { out = r.s.products[id].Clone() })
	return out, nil
}

// GetForUpdate en memoria el bloqueo es el de la transacción completa.
func (r *productRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *productRepo) GetBySKU(_ context.Context, sku string) (*entity.Product, error) {
	var out *entity.Product
	r.s.read(r.locked, func() {
		for _, p := range r.s.products {
			if p.SKU != "" && p.SKU == sku {
				out = p.Clone()
				return
			}
		}
	})
	return out, nil
}

func (r *productRepo) Update(_ context.Context, p *entity.Product) error {
	return r.s.write(r.locked, func() error {
		if _, ok := r.s.products[p.ID]; !ok {
			return domain.ErrNotFound
		}
		r.s.products[p.ID] = p.Clone()
		return nil
	})
}

func (r *productRepo) List(_ context.Context, limit, offset int) ([]*entity.Product, error) {
	var list []*entity.Product
	r.s.read(r.locked, func() {
		for _, p := range r.s.products {
			list = append(list, p.Clone())
		}
	})
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return page(list, limit, offset), nil
}

// ── lotes ────────────────────────────────────────────────────────────────────

type batchRepo struct {
	s      *Store
	locked bool
}

func (r *batchRepo) GetByID(_ context.Context, id string) (*entity.Batch, error) {
	var out *entity.Batch
	r.s.read(r.locked, func() { out = r.s.batches[id].Clone() })
	return out, nil
}

// GetForUpdate en memoria el bloqueo es el de la transacción completa.
func (r *batchRepo) GetForUpdate(ctx context.Context, id string) (*entity.Batch, error) {
	return r.GetByID(ctx, id)
}

func (r *batchRepo) ListByProduct(_ context.Context, productID string) ([]*entity.Batch, error) {
	return r.filter(func(b *entity.Batch) bool { return b.ProductID == productID }), nil
}

func (r *batchRepo) FindBySKU(_ context.Context, sku string) ([]*entity.Batch, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, nil
	}
	return r.filter(func(b *entity.Batch) bool { return b.SKU == sku }), nil
}

func (r *batchRepo) ListExpiringBefore(_ context.Context, date time.Time) ([]*entity.Batch, error) {
	list := r.filter(func(b *entity.Batch) bool {
		return b.ExpiryDate != nil && b.ExpiryDate.Before(date) && b.IsActive
	})
	sort.SliceStable(list, func(i, j int) bool { return list[i].ExpiryDate.Before(*list[j].ExpiryDate) })
	return list, nil
}

func (r *batchRepo) Upsert(_ context.Context, b *entity.Batch) error {
	return r.s.write(r.locked, func() error {
		r.s.batches[b.ID] = b.Clone()
		return nil
	})
}

func (r *batchRepo) filter(keep func(*entity.Batch) bool) []*entity.Batch {
	var list []*entity.Batch
	r.s.read(r.locked, func() {
		for _, b := range r.s.batches {
			if keep(b) {
				list = append(list, b.Clone())
			}
		}
	})
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// ── ventas ───────────────────────────────────────────────────────────────────

type saleRepo struct {
	s      *Store
	locked bool
}

func (r *saleRepo) Create(_ context.Context, sale *entity.Sale) error {
	return r.s.write(r.locked, func() error {
		if _, ok := r.s.sales[sale.ID]; ok {
			return domain.ErrDuplicate
		}
		if _, ok := r.s.trash[sale.ID]; ok {
			return domain.ErrDuplicate
		}
		r.s.sales[sale.ID] = sale.Clone()
		return nil
	})
}

func (r *saleRepo) GetByID(_ context.Context, id string) (*entity.Sale, error) {
	var out *entity.Sale
	r.s.read(r.locked, func() { out = r.s.sales[id].Clone() })
	return out, nil
}

func (r *saleRepo) List(_ context.Context, limit, offset int) ([]*entity.Sale, error) {
	var list []*entity.Sale
	r.s.read(r.locked, func() {
		for _, s := range r.s.sales {
			list = append(list, s.Clone())
		}
	})
	sort.Slice(list, func(i, j int) bool { return list[i].Timestamp.After(list[j].Timestamp) })
	return page(list, limit, offset), nil
}

func (r *saleRepo) Exists(_ context.Context, id string) (bool, error) {
	var ok bool
	r.s.read(r.locked, func() {
		_, inSales := r.s.sales[id]
		_, inTrash := r.s.trash[id]
		ok = inSales || inTrash
	})
	return ok, nil
}

func (r *saleRepo) MoveToTrash(_ context.Context, id, reason string) error {
	return r.s.write(r.locked, func() error {
		sale, ok := r.s.sales[id]
		if !ok {
			return domain.ErrNotFound
		}
		delete(r.s.sales, id)
		r.s.trash[id] = &entity.TrashedSale{Sale: sale, Reason: reason, DeletedAt: time.Now()}
		return nil
	})
}

func (r *saleRepo) GetTrashed(_ context.Context, id string) (*entity.TrashedSale, error) {
	var out *entity.TrashedSale
	r.s.read(r.locked, func() {
		if t, ok := r.s.trash[id]; ok {
			out = &entity.TrashedSale{Sale: t.Sale.Clone(), Reason: t.Reason, DeletedAt: t.DeletedAt}
		}
	})
	return out, nil
}

func (r *saleRepo) RestoreFromTrash(_ context.Context, id string) error {
	return r.s.write(r.locked, func() error {
		t, ok := r.s.trash[id]
		if !ok {
			return domain.ErrNotFound
		}
		delete(r.s.trash, id)
		r.s.sales[id] = t.Sale
		return nil
	})
}

// ── clientes ─────────────────────────────────────────────────────────────────

type customerRepo struct {
	s      *Store
	locked bool
}

func (r *customerRepo) Create(_ context.Context, c *entity.Customer) error {
	return r.s.write(r.locked, func() error {
		if _, ok := r.s.customers[c.ID]; ok {
			return domain.ErrDuplicate
		}
		cp := *c
		r.s.customers[c.ID] = &cp
		return nil
	})
}

func (r *customerRepo) GetByID(_ context.Context, id string) (*entity.Customer, error) {
	var out *entity.Customer
	r.s.read(r.locked, func() {
		if c, ok := r.s.customers[id]; ok {
			cp := *c
			out = &cp
		}
	})
	return out, nil
}

func (r *customerRepo) List(_ context.Context, limit, offset int) ([]*entity.Customer, error) {
	var list []*entity.Customer
	r.s.read(r.locked, func() {
		for _, c := range r.s.customers {
			cp := *c
			list = append(list, &cp)
		}
	})
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return page(list, limit, offset), nil
}

func (r *customerRepo) Update(_ context.Context, c *entity.Customer) error {
	return r.s.write(r.locked, func() error {
		if _, ok := r.s.customers[c.ID]; !ok {
			return domain.ErrNotFound
		}
		cp := *c
		r.s.customers[c.ID] = &cp
		return nil
	})
}

// ── apartados ────────────────────────────────────────────────────────────────

type reservationRepo struct {
	s      *Store
	locked bool
}

func (r *reservationRepo) Create(_ context.Context, res *entity.Reservation) error {
	return r.s.write(r.locked, func() error {
		if _, ok := r.s.reservations[res.ID]; ok {
			return domain.ErrDuplicate
		}
		r.s.reservations[res.ID] = res.Clone()
		return nil
	})
}

func (r *reservationRepo) GetByID(_ context.Context, id string) (*entity.Reservation, error) {
	var out *entity.Reservation
	r.s.read(r.locked, func() { out = r.s.reservations[id].Clone() })
	return out, nil
}

func (r *reservationRepo) ListByCustomer(_ context.Context, customerID string) ([]*entity.Reservation, error) {
	var list []*entity.Reservation
	r.s.read(r.locked, func() {
		for _, res := range r.s.reservations {
			if res.CustomerID == customerID {
				list = append(list, res.Clone())
			}
		}
	})
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (r *reservationRepo) Update(_ context.Context, res *entity.Reservation) error {
	return r.s.write(r.locked, func() error {
		if _, ok := r.s.reservations[res.ID]; !ok {
			return domain.ErrNotFound
		}
		r.s.reservations[res.ID] = res.Clone()
		return nil
	})
}

// ── bitácora ─────────────────────────────────────────────────────────────────

type txLogRepo struct {
	s      *Store
	locked bool
}

func (r *txLogRepo) Append(_ context.Context, e *entity.TransactionLogEntry) error {
	return r.s.write(r.locked, func() error {
		cp := *e
		r.s.txlog = append(r.s.txlog, &cp)
		return nil
	})
}

func (r *txLogRepo) ListByReference(_ context.Context, referenceID string) ([]*entity.TransactionLogEntry, error) {
	var list []*entity.TransactionLogEntry
	r.s.read(r.locked, func() {
		for _, e := range r.s.txlog {
			if e.ReferenceID == referenceID {
				cp := *e
				list = append(list, &cp)
			}
		}
	})
	return list, nil
}
