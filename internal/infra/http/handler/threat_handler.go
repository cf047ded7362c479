package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/guardgate/api/internal/app"
	infrahttp "github.com/guardgate/api/internal/infra/http"
	"github.com/guardgate/api/pkg/apierror"
	"github.com/guardgate/api/pkg/logger"
)

// ThreatHandler serves the threat analysis endpoints.
type ThreatHandler struct {
	service *app.ThreatService
	logger  *logger.Logger
}

// NewThreatHandler creates a new ThreatHandler.
func NewThreatHandler(service *app.ThreatService, log *logger.Logger) *ThreatHandler {
	return &ThreatHandler{
		service: service,
		logger:  log.With("handler", "threat"),
	}
}

// Analysis handles GET /api/v1/gateway/threats/analysis?hours=24.
func (h *ThreatHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := infrahttp.QueryParam(r, "hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			apierror.BadRequest("hours must be a positive integer").WriteJSON(w)
			return
		}
		hours = parsed
	}

	analysis, err := h.service.Analyze(r.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		h.logger.Error("threat analysis failed", "error", err)
		apierror.InternalError(err).WriteJSON(w)
		return
	}

	writeJSONResponse(w, http.StatusOK, analysis)
}
