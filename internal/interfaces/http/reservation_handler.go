package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pos-lotes/internal/application/dto"
	"github.com/jhoicas/pos-lotes/internal/application/layaway"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
)

// ReservationHandler apartados: creación, abonos, cancelación y conversión a venta.
type ReservationHandler struct {
	mgr *layaway.ReservationManager
}

// NewReservationHandler construye el handler.
func NewReservationHandler(mgr *layaway.ReservationManager) *ReservationHandler {
	return &ReservationHandler{mgr: mgr}
}

// Create godoc
// @Summary      Crear apartado (descuenta stock)
// @Tags         reservations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateReservationRequest  true  "Apartado"
// @Success      201   {object}  dto.ReservationResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/reservations [post]
func (h *ReservationHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateReservationRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	r := &entity.Reservation{
		ID:         in.ID,
		CustomerID: in.CustomerID,
		Items:      toSaleItems(in.Items),
		Total:      in.Total,
	}
	out, err := h.mgr.Create(c.UserContext(), r, in.InitialPayment, entity.PaymentMethod(in.Method))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toReservationResponse(out))
}

// GetByID GET /api/reservations/:id
func (h *ReservationHandler) GetByID(c *fiber.Ctx) error {
	r, err := h.mgr.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toReservationResponse(r))
}

// ListByCustomer GET /api/customers/:id/reservations
func (h *ReservationHandler) ListByCustomer(c *fiber.Ctx) error {
	list, err := h.mgr.ListByCustomer(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.ReservationResponse, 0, len(list))
	for _, r := range list {
		out = append(out, toReservationResponse(r))
	}
	return c.JSON(out)
}

// AddPayment POST /api/reservations/:id/payments
func (h *ReservationHandler) AddPayment(c *fiber.Ctx) error {
	var in dto.AddPaymentRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	r, err := h.mgr.AddPayment(c.UserContext(), c.Params("id"), in.Amount, entity.PaymentMethod(in.Method))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toReservationResponse(r))
}

// Cancel POST /api/reservations/:id/cancel
func (h *ReservationHandler) Cancel(c *fiber.Ctx) error {
	var in dto.CancelReservationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
	}
	r, err := h.mgr.Cancel(c.UserContext(), c.Params("id"), in.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toReservationResponse(r))
}

// Convert godoc
// @Summary      Convertir apartado pagado en venta
// @Tags         reservations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del apartado"
// @Param        body  body  dto.ConvertReservationRequest  false  "Medio de pago"
// @Success      200   {object}  dto.SaleResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/reservations/{id}/convert [post]
func (h *ReservationHandler) Convert(c *fiber.Ctx) error {
	var in dto.ConvertReservationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
	}
	_, sale, err := h.mgr.ConvertToSale(c.UserContext(), c.Params("id"), entity.PaymentMethod(in.Method))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toSaleResponse(sale))
}
