package handler

import (
	"log/slog"
	"net/http"

	"github.com/terabiome/testbed/internal/adapter"
	"github.com/terabiome/testbed/internal/api"
	"github.com/terabiome/testbed/internal/service"
)

// Placement handles dry-run placement requests
type Placement struct {
	placementService *service.PlacementService
	logger           *slog.Logger
}

// NewPlacement creates a new Placement handler
func NewPlacement(placementService *service.PlacementService, logger *slog.Logger) *Placement {
	return &Placement{
		placementService: placementService,
		logger:           logger,
	}
}

// Plan handles POST /placement/plan. Nothing is written to disk.
func (h *Placement) Plan(writer http.ResponseWriter, request *http.Request) {
	var planRequest api.PlanRequest
	if err := parseBody(writer, request, &planRequest); err != nil {
		return
	}

	params := adapter.AdaptPlanRequest(planRequest)

	deployment, err := h.placementService.Plan(params, planRequest.FundingToken)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("placement plan failed", slog.String("error", err.Error()))
		}
		writeResult(writer, status, GenericResponse{
			Message: "failed to plan placement",
			Error:   err.Error(),
		})
		return
	}

	writeResult(writer, http.StatusOK, GenericResponse{
		Body:    adapter.AdaptDeploymentToAPI(deployment),
		Message: "planned placement successfully",
	})
}
