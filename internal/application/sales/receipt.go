package sales

import (
	"context"
	"fmt"

	"github.com/jhoicas/pos-lotes/internal/domain"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
)

// ReceiptRenderer genera el tiquete PDF de una venta. customer puede ser nil.
type ReceiptRenderer interface {
	RenderSaleReceipt(ctx context.Context, sale *entity.Sale, customer *entity.Customer) ([]byte, error)
}

// Receipt genera el tiquete de la venta.
//
// Retorna:
//   - (pdfBytes, filename, nil) si todo sale bien.
//   - domain.ErrNotFound        si la venta no existe.
func (c *SaleCoordinator) Receipt(ctx context.Context, id string) ([]byte, string, error) {
	if c.deps.Receipts == nil {
		return nil, "", fmt.Errorf("tiquete: %w: generador no configurado", domain.ErrStorage)
	}
	sale, err := c.GetSale(ctx, id)
	if err != nil {
		return nil, "", err
	}
	var customer *entity.Customer
	if sale.CustomerID != "" {
		customer, err = c.deps.Store.Customers.GetByID(ctx, sale.CustomerID)
		if err != nil {
			return nil, "", domain.Classify("leer cliente", err)
		}
	}
	pdf, err := c.deps.Receipts.RenderSaleReceipt(ctx, sale, customer)
	if err != nil {
		return nil, "", fmt.Errorf("tiquete: generación fallida: %w", err)
	}
	return pdf, fmt.Sprintf("tiquete_%s.pdf", sale.ID), nil
}
