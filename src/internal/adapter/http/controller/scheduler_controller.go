package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/adapter/http/models"
	"github.com/api-sage/escrow-engine/src/internal/usecase"
	"github.com/go-chi/chi/v5"
)

type SchedulerService interface {
	Tick(ctx context.Context, now time.Time) (usecase.TickResult, error)
}

type SchedulerController struct {
	service SchedulerService
	clock   func() time.Time
}

func NewSchedulerController(service SchedulerService, clock func() time.Time) *SchedulerController {
	if clock == nil {
		clock = time.Now
	}
	return &SchedulerController{service: service, clock: clock}
}

func (c *SchedulerController) RegisterRoutes(r chi.Router) {
	r.Post("/scheduler/tick", c.tick)
}

// tick runs one release pass. An omitted "now" means the server clock.
func (c *SchedulerController) tick(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.TickRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError[models.TickResponse](w, r, "invalid request body", err, start)
		return
	}
	logRequest(r, req)

	now := c.clock().UTC()
	if req.Now != nil {
		now = req.Now.UTC()
	}

	result, err := c.service.Tick(r.Context(), now)
	if err != nil {
		writeServiceError[models.TickResponse](w, r, err, start, nil)
		return
	}

	failed := result.FailedTransactionIDs
	if failed == nil {
		failed = []string{}
	}
	writeSuccess(w, r, http.StatusOK, "scheduler tick completed", models.TickResponse{
		ReleasedCount:        result.ReleasedCount,
		SkippedCount:         result.SkippedCount,
		FailedTransactionIDs: failed,
	}, start)
}
