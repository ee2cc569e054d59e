package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/adapter/http/models"
	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
	"github.com/go-chi/chi/v5"
)

type ConfigService interface {
	UpsertFeeTier(ctx context.Context, tier domain.FeeTier) (domain.FeeTier, error)
	DeactivateFeeTier(ctx context.Context, id string) (domain.FeeTier, error)
	ListFeeTiers(ctx context.Context) ([]domain.FeeTier, error)
	UpsertReleasePolicy(ctx context.Context, policy domain.ReleasePolicy) (domain.ReleasePolicy, error)
	DeactivateReleasePolicy(ctx context.Context, id string) (domain.ReleasePolicy, error)
	ListReleasePolicies(ctx context.Context) ([]domain.ReleasePolicy, error)
}

type ConfigController struct {
	service ConfigService
}

func NewConfigController(service ConfigService) *ConfigController {
	return &ConfigController{service: service}
}

func (c *ConfigController) RegisterRoutes(r chi.Router) {
	r.Route("/fee-tiers", func(r chi.Router) {
		r.Get("/", c.listFeeTiers)
		r.Put("/", c.upsertFeeTier)
		r.Delete("/{id}", c.deactivateFeeTier)
	})
	r.Route("/release-policies", func(r chi.Router) {
		r.Get("/", c.listReleasePolicies)
		r.Put("/", c.upsertReleasePolicy)
		r.Delete("/{id}", c.deactivateReleasePolicy)
	})
}

func (c *ConfigController) listFeeTiers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	tiers, err := c.service.ListFeeTiers(r.Context())
	if err != nil {
		writeServiceError[[]models.FeeTierResponse](w, r, err, start, nil)
		return
	}

	out := make([]models.FeeTierResponse, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, models.NewFeeTierResponse(tier))
	}
	writeSuccess(w, r, http.StatusOK, "fee tiers retrieved", out, start)
}

func (c *ConfigController) upsertFeeTier(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.FeeTierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError[models.FeeTierResponse](w, r, "invalid request body", err, start)
		return
	}
	logRequest(r, req)

	if err := req.Validate(); err != nil {
		writeValidationError[models.FeeTierResponse](w, r, "validation failed", err, start)
		return
	}

	tier, err := c.service.UpsertFeeTier(r.Context(), req.ToDomain())
	if err != nil {
		writeServiceError[models.FeeTierResponse](w, r, err, start, logger.Fields{"id": req.ID})
		return
	}

	writeSuccess(w, r, http.StatusOK, "fee tier saved", models.NewFeeTierResponse(tier), start)
}

func (c *ConfigController) deactivateFeeTier(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")
	logRequest(r, nil)

	tier, err := c.service.DeactivateFeeTier(r.Context(), id)
	if err != nil {
		writeServiceError[models.FeeTierResponse](w, r, err, start, logger.Fields{"id": id})
		return
	}

	writeSuccess(w, r, http.StatusOK, "fee tier deactivated", models.NewFeeTierResponse(tier), start)
}

func (c *ConfigController) listReleasePolicies(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	policies, err := c.service.ListReleasePolicies(r.Context())
	if err != nil {
		writeServiceError[[]models.ReleasePolicyResponse](w, r, err, start, nil)
		return
	}

	out := make([]models.ReleasePolicyResponse, 0, len(policies))
	for _, policy := range policies {
		out = append(out, models.NewReleasePolicyResponse(policy))
	}
	writeSuccess(w, r, http.StatusOK, "release policies retrieved", out, start)
}

func (c *ConfigController) upsertReleasePolicy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.ReleasePolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError[models.ReleasePolicyResponse](w, r, "invalid request body", err, start)
		return
	}
	logRequest(r, req)

	if err := req.Validate(); err != nil {
		writeValidationError[models.ReleasePolicyResponse](w, r, "validation failed", err, start)
		return
	}

	policy, err := c.service.UpsertReleasePolicy(r.Context(), req.ToDomain())
	if err != nil {
		writeServiceError[models.ReleasePolicyResponse](w, r, err, start, logger.Fields{"id": req.ID})
		return
	}

	writeSuccess(w, r, http.StatusOK, "release policy saved", models.NewReleasePolicyResponse(policy), start)
}

func (c *ConfigController) deactivateReleasePolicy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")
	logRequest(r, nil)

	policy, err := c.service.DeactivateReleasePolicy(r.Context(), id)
	if err != nil {
		writeServiceError[models.ReleasePolicyResponse](w, r, err, start, logger.Fields{"id": id})
		return
	}

	writeSuccess(w, r, http.StatusOK, "release policy deactivated", models.NewReleasePolicyResponse(policy), start)
}
