package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pos-lotes/internal/application/dto"
	"github.com/jhoicas/pos-lotes/internal/application/inventory"
	"github.com/jhoicas/pos-lotes/internal/domain"
)

const dateLayout = "2006-01-02"

// LotHandler recepción, consulta y reposición de lotes.
type LotHandler struct {
	engine *inventory.Engine
	now    func() time.Time
}

// NewLotHandler construye el handler.
func NewLotHandler(engine *inventory.Engine) *LotHandler {
	return &LotHandler{engine: engine, now: time.Now}
}

// Receive godoc
// @Summary      Recibir mercancía en un lote nuevo
// @Tags         lots
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReceiveLotRequest  true  "Lote recibido"
// @Success      201   {object}  dto.LotResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/lots [post]
func (h *LotHandler) Receive(c *fiber.Ctx) error {
	var in dto.ReceiveLotRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	input := inventory.ReceiveInput{
		ProductID:  in.ProductID,
		SKU:        in.SKU,
		Attributes: in.Attributes,
		Cost:       in.Cost,
		Price:      in.Price,
		Quantity:   in.Quantity,
	}
	if in.ExpiryDate != "" {
		t, err := time.Parse(dateLayout, in.ExpiryDate)
		if err != nil {
			return writeError(c, domain.NewValidationError("expiry_date", "formato YYYY-MM-DD"))
		}
		input.ExpiryDate = &t
	}
	b, err := h.engine.Ledger.Receive(c.UserContext(), input)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toLotResponse(b))
}

// BySKU GET /api/lots/sku/:sku
func (h *LotHandler) BySKU(c *fiber.Ctx) error {
	list, err := h.engine.Ledger.FindBySKU(c.UserContext(), c.Params("sku"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toLotList(list))
}

// Expiring GET /api/lots/expiring?before=YYYY-MM-DD (por defecto, dentro de 7 días)
func (h *LotHandler) Expiring(c *fiber.Ctx) error {
	before := h.now().AddDate(0, 0, 7)
	if q := c.Query("before"); q != "" {
		t, err := time.Parse(dateLayout, q)
		if err != nil {
			return writeError(c, domain.NewValidationError("before", "formato YYYY-MM-DD"))
		}
		before = t
	}
	list, err := h.engine.Ledger.ListExpiringBefore(c.UserContext(), before)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toLotList(list))
}

// Restock godoc
// @Summary      Reponer stock de un lote existente
// @Tags         lots
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del lote"
// @Param        body  body  dto.RestockRequest  true  "Cantidad"
// @Success      200   {object}  inventory.BatchChange
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/lots/{id}/restock [post]
func (h *LotHandler) Restock(c *fiber.Ctx) error {
	var in dto.RestockRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	change, err := h.engine.Deductions.Restock(c.UserContext(), c.Params("id"), in.Quantity, in.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(change)
}

// Deductions godoc
// @Summary      Aplicar mermas o ajustes sobre lotes (admin)
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ProcessDeductionsRequest  true  "Deducciones"
// @Success      200   {object}  inventory.DeductionResult
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/deductions [post]
func (h *LotHandler) Deductions(c *fiber.Ctx) error {
	var in dto.ProcessDeductionsRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	opts := inventory.Options{AllowPartial: in.AllowPartial}
	if in.ValidateStock != nil && !*in.ValidateStock {
		opts.SkipStockValidation = true
	}
	res, err := h.engine.Deductions.ProcessDeductions(c.UserContext(), toDeductions(in.Deductions), opts)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}
