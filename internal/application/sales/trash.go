package sales

import (
	"context"
	"strings"

	"github.com/jhoicas/pos-lotes/internal/application/inventory"
	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
	"github.com/jhoicas/pos-lotes/internal/domain/repository"
)

// DeleteSale mueve la venta a la papelera, devuelve al inventario lo que registraron sus líneas
// y revierte el saldo fiado. Todo en una transacción.
func (c *SaleCoordinator) DeleteSale(ctx context.Context, id, reason string) (*entity.TrashedSale, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewValidationError("id", "requerido")
	}
	var out *entity.TrashedSale
	err := c.deps.Tx.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		sale, err := repos.Sales.GetByID(ctx, id)
		if err != nil {
			return domain.Classify("leer venta", err)
		}
		if sale == nil {
			return domain.ErrNotFound
		}
		if err := c.deps.Engine.Deductions.RestoreItems(ctx, repos, sale.Items); err != nil {
			return err
		}
		if sale.PaymentMethod.IsDeferred() && sale.Balance.IsPositive() {
			if err := c.reverseDebt(ctx, repos, sale); err != nil {
				return err
			}
		}
		if err := repos.Sales.MoveToTrash(ctx, id, reason); err != nil {
			return domain.Classify("mover venta a papelera", err)
		}
		if err := c.appendLog(ctx, repos, entity.LogTypeSaleDeleted, sale.Total.Neg(), id); err != nil {
			return err
		}
		t, err := repos.Sales.GetTrashed(ctx, id)
		out = t
		return domain.Classify("leer papelera", err)
	})
	if err != nil {
		return nil, domain.Classify("eliminar venta", err)
	}
	c.invalidate(ctx)
	c.log.Info().Str("sale_id", id).Str("motivo", reason).Msg("venta enviada a la papelera")
	return out, nil
}

// RestoreSale saca la venta de la papelera volviendo a descontar exactamente lo registrado
// (sin parciales) y a cargar el saldo fiado.
func (c *SaleCoordinator) RestoreSale(ctx context.Context, id string) (*entity.Sale, error) {
	id = strings.TrimSpace(id)
	var out *entity.Sale
	err := c.deps.Tx.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		trashed, err := repos.Sales.GetTrashed(ctx, id)
		if err != nil {
			return domain.Classify("leer papelera", err)
		}
		if trashed == nil || trashed.Sale == nil {
			return domain.ErrNotFound
		}
		sale := trashed.Sale
		if err := c.deps.Engine.Deductions.ReapplyItems(ctx, repos, sale.Items, inventory.ReasonSale); err != nil {
			return err
		}
		if sale.PaymentMethod.IsDeferred() && sale.Balance.IsPositive() {
			if err := addDebt(ctx, repos, sale.CustomerID, sale.Balance, c.deps.Now()); err != nil {
				return err
			}
		}
		if err := repos.Sales.RestoreFromTrash(ctx, id); err != nil {
			return domain.Classify("restaurar venta", err)
		}
		if err := c.appendLog(ctx, repos, entity.LogTypeSaleRestored, sale.Total, id); err != nil {
			return err
		}
		out = sale
		return nil
	})
	if err != nil {
		c.rejected(id, err)
		return nil, domain.Classify("restaurar venta", err)
	}
	c.invalidate(ctx)
	c.log.Info().Str("sale_id", id).Msg("venta restaurada")
	return out, nil
}

// reverseDebt descuenta el saldo de la venta de la deuda del cliente (piso en cero).
// Un cliente que ya no existe no bloquea la eliminación.
func (c *SaleCoordinator) reverseDebt(ctx context.Context, repos repository.Repos, sale *entity.Sale) error {
	customer, err := repos.Customers.GetByID(ctx, sale.CustomerID)
	if err != nil {
		return domain.Classify("leer cliente", err)
	}
	if customer == nil {
		c.log.Warn().Str("sale_id", sale.ID).Str("customer_id", sale.CustomerID).
			Msg("cliente inexistente, no se revierte el fiado")
		return nil
	}
	return addDebt(ctx, repos, customer.ID, sale.Balance.Neg(), c.deps.Now())
}
