package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/jhoicas/pos-lotes/internal/application/dto"
)

// ExpiryScanEnqueuer encola escaneos de vencimiento (lo implementa *jobs.Client).
type ExpiryScanEnqueuer interface {
	EnqueueLotExpiryScan(ctx context.Context, at time.Time, warningDays int) (*asynq.TaskInfo, error)
}

// JobHandler disparo manual de tareas en segundo plano.
type JobHandler struct {
	scans ExpiryScanEnqueuer
}

// NewJobHandler construye el handler. scans nil deja el endpoint en 503.
func NewJobHandler(scans ExpiryScanEnqueuer) *JobHandler {
	return &JobHandler{scans: scans}
}

// ScanExpiring godoc
// @Summary      Encolar un escaneo de lotes por vencer (admin)
// @Tags         lots
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ExpiryScanRequest  false  "Ventana en días"
// @Success      202   {object}  dto.ExpiryScanResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/lots/expiring/scan [post]
func (h *JobHandler) ScanExpiring(c *fiber.Ctx) error {
	if h.scans == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Code: "JOBS_DISABLED", Message: "el worker no está configurado",
		})
	}
	var in dto.ExpiryScanRequest
	if len(c.Body()) > 0 {
		if ok, err := bindBody(c, &in); !ok {
			return err
		}
	}
	info, err := h.scans.EnqueueLotExpiryScan(c.UserContext(), time.Now().UTC(), in.WarningDays)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.ExpiryScanResponse{TaskID: info.ID, Queue: info.Queue})
}
