package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pos-lotes/internal/application/dto"
	"github.com/jhoicas/pos-lotes/internal/application/sales"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
)

// SaleHandler registro, consulta, papelera y tiquete de ventas.
type SaleHandler struct {
	coord *sales.SaleCoordinator
}

// NewSaleHandler construye el handler.
func NewSaleHandler(coord *sales.SaleCoordinator) *SaleHandler {
	return &SaleHandler{coord: coord}
}

// Create godoc
// @Summary      Registrar venta (idempotente por id)
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateSaleRequest  true  "Venta"
// @Success      201   {object}  dto.SaleResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/sales [post]
func (h *SaleHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateSaleRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	sale := &entity.Sale{
		ID:            in.ID,
		Items:         toSaleItems(in.Items),
		Total:         in.Total,
		PaymentMethod: entity.PaymentMethod(in.PaymentMethod),
		CustomerID:    in.CustomerID,
		Balance:       in.Balance,
	}
	out, err := h.coord.ExecuteSale(c.UserContext(), sale, toDeductions(in.LotDeductions))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toSaleResponse(out))
}

// GetByID GET /api/sales/:id
func (h *SaleHandler) GetByID(c *fiber.Ctx) error {
	s, err := h.coord.GetSale(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toSaleResponse(s))
}

// List GET /api/sales?limit=20&offset=0
func (h *SaleHandler) List(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	list, err := h.coord.ListSales(c.UserContext(), limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	items := make([]dto.SaleResponse, 0, len(list))
	for _, s := range list {
		items = append(items, toSaleResponse(s))
	}
	return c.JSON(dto.SaleListResponse{Items: items, Page: dto.PageResponse{Limit: limit, Offset: offset}})
}

// Delete godoc
// @Summary      Enviar venta a la papelera (devuelve stock y deuda)
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID de la venta"
// @Param        body  body  dto.DeleteSaleRequest  false  "Motivo"
// @Success      200   {object}  dto.SaleResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/sales/{id} [delete]
func (h *SaleHandler) Delete(c *fiber.Ctx) error {
	var in dto.DeleteSaleRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
	}
	trashed, err := h.coord.DeleteSale(c.UserContext(), c.Params("id"), in.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toSaleResponse(trashed.Sale))
}

// Restore POST /api/sales/:id/restore
func (h *SaleHandler) Restore(c *fiber.Ctx) error {
	s, err := h.coord.RestoreSale(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toSaleResponse(s))
}

// Receipt godoc
// @Summary      Tiquete PDF de la venta
// @Tags         sales
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path  string  true  "ID de la venta"
// @Success      200  {file}  binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/receipt [get]
func (h *SaleHandler) Receipt(c *fiber.Ctx) error {
	pdf, filename, err := h.coord.Receipt(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+filename+`"`)
	return c.Send(pdf)
}
