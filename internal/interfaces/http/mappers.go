package http

import (
	"github.com/jhoicas/pos-lotes/internal/application/dto"
	"github.com/jhoicas/pos-lotes/internal/application/inventory"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
)

func toLotResponse(b *entity.Batch) dto.LotResponse {
	return dto.LotResponse{
		ID:         b.ID,
		ProductID:  b.ProductID,
		SKU:        b.SKU,
		Attributes: b.Attributes,
		Cost:       b.Cost,
		Price:      b.Price,
		Stock:      b.Stock,
		IsActive:   b.IsActive,
		ExpiryDate: b.ExpiryDate,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func toLotList(list []*entity.Batch) []dto.LotResponse {
	out := make([]dto.LotResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toLotResponse(b))
	}
	return out
}

func toDeductions(in []dto.DeductionDTO) []inventory.Deduction {
	out := make([]inventory.Deduction, 0, len(in))
	for _, d := range in {
		out = append(out, inventory.Deduction{BatchID: d.BatchID, Quantity: d.Quantity, Reason: d.Reason})
	}
	return out
}

func toLotUsages(in []dto.LotUsageDTO) []entity.LotUsage {
	if len(in) == 0 {
		return nil
	}
	out := make([]entity.LotUsage, 0, len(in))
	for _, u := range in {
		out = append(out, entity.LotUsage{BatchID: u.BatchID, Quantity: u.Quantity})
	}
	return out
}

func fromLotUsages(in []entity.LotUsage) []dto.LotUsageDTO {
	if len(in) == 0 {
		return nil
	}
	out := make([]dto.LotUsageDTO, 0, len(in))
	for _, u := range in {
		out = append(out, dto.LotUsageDTO{BatchID: u.BatchID, Quantity: u.Quantity})
	}
	return out
}

// toSaleItems las líneas de receta no se aceptan del cliente: el consumo de ingredientes lo calcula el motor.
func toSaleItems(in []dto.SaleItemDTO) []entity.SaleItem {
	out := make([]entity.SaleItem, 0, len(in))
	for _, it := range in {
		out = append(out, entity.SaleItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Lots:      toLotUsages(it.Lots),
		})
	}
	return out
}

func fromSaleItems(in []entity.SaleItem) []dto.SaleItemDTO {
	out := make([]dto.SaleItemDTO, 0, len(in))
	for _, it := range in {
		item := dto.SaleItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			UnitCost:  it.UnitCost,
			Lots:      fromLotUsages(it.Lots),
		}
		for _, ing := range it.Ingredients {
			item.Ingredients = append(item.Ingredients, dto.IngredientUsageDTO{
				ProductID: ing.ProductID,
				Quantity:  ing.Quantity,
				Lots:      fromLotUsages(ing.Lots),
			})
		}
		out = append(out, item)
	}
	return out
}

func toSaleResponse(s *entity.Sale) dto.SaleResponse {
	return dto.SaleResponse{
		ID:            s.ID,
		Timestamp:     s.Timestamp,
		Items:         fromSaleItems(s.Items),
		Total:         s.Total,
		PaymentMethod: string(s.PaymentMethod),
		CustomerID:    s.CustomerID,
		Balance:       s.Balance,
		StockSettled:  s.StockSettled,
		ReservationID: s.ReservationID,
	}
}

func toReservationResponse(r *entity.Reservation) dto.ReservationResponse {
	payments := make([]dto.PaymentDTO, 0, len(r.Payments))
	for _, p := range r.Payments {
		payments = append(payments, dto.PaymentDTO{ID: p.ID, Amount: p.Amount, Method: string(p.Method), Kind: p.Kind, At: p.At})
	}
	return dto.ReservationResponse{
		ID:           r.ID,
		CustomerID:   r.CustomerID,
		Items:        fromSaleItems(r.Items),
		Total:        r.Total,
		Paid:         r.Paid,
		Balance:      r.Balance(),
		Status:       string(r.Status),
		Payments:     payments,
		CancelReason: r.CancelReason,
		SaleID:       r.SaleID,
		CreatedAt:    r.CreatedAt,
		ClosedAt:     r.ClosedAt,
	}
}
