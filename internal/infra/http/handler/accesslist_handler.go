package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/guardgate/api/internal/app"
	infrahttp "github.com/guardgate/api/internal/infra/http"
	"github.com/guardgate/api/pkg/apierror"
	"github.com/guardgate/api/pkg/domain/accesslist"
	"github.com/guardgate/api/pkg/logger"
	"github.com/guardgate/api/pkg/validator"
)

// AccessListHandler serves the blacklist and whitelist management endpoints.
// One handler covers both lists; the kind is fixed per route.
type AccessListHandler struct {
	service   *app.AccessListService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewAccessListHandler creates a new AccessListHandler.
func NewAccessListHandler(service *app.AccessListService, v *validator.Validator, log *logger.Logger) *AccessListHandler {
	return &AccessListHandler{
		service:   service,
		validator: v,
		logger:    log.With("handler", "access_list"),
	}
}

// AddEntryRequest is the body for adding a list entry. The duration is
// required and must be positive; entries always expire when added over the
// API.
type AddEntryRequest struct {
	IP            string  `json:"ip" validate:"required,ip_or_cidr"`
	DurationHours float64 `json:"duration_hours" validate:"required,gt=0"`
	Reason        string  `json:"reason" validate:"max=500"`
}

// EntryResponse is the JSON shape of one list entry.
type EntryResponse struct {
	ID        string     `json:"id"`
	IP        string     `json:"ip"`
	Kind      string     `json:"kind"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ListEntriesResponse is the JSON shape of a list listing.
type ListEntriesResponse struct {
	Entries []EntryResponse `json:"entries"`
	Total   int             `json:"total"`
}

func toEntryResponse(e *accesslist.Entry) EntryResponse {
	return EntryResponse{
		ID:        e.ID,
		IP:        e.IP,
		Kind:      string(e.Kind),
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
	}
}

// List handles GET /api/v1/gateway/{blacklist,whitelist}.
func (h *AccessListHandler) List(kind accesslist.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := h.service.List(r.Context(), kind)
		if err != nil {
			h.handleServiceError(w, err)
			return
		}

		items := make([]EntryResponse, len(entries))
		for i, e := range entries {
			items[i] = toEntryResponse(e)
		}
		writeJSONResponse(w, http.StatusOK, ListEntriesResponse{
			Entries: items,
			Total:   len(items),
		})
	}
}

// Add handles POST /api/v1/gateway/{blacklist,whitelist}.
func (h *AccessListHandler) Add(kind accesslist.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddEntryRequest
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}

		ttl := time.Duration(req.DurationHours * float64(time.Hour))
		entry, err := h.service.Add(r.Context(), kind, req.IP, req.Reason, ttl)
		if err != nil {
			h.handleServiceError(w, err)
			return
		}

		writeJSONResponse(w, http.StatusCreated, toEntryResponse(entry))
	}
}

// Remove handles DELETE /api/v1/gateway/{blacklist,whitelist}/{ip}.
// The route uses a wildcard so CIDR entries with an embedded slash resolve.
func (h *AccessListHandler) Remove(kind accesslist.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := infrahttp.PathParam(r, "*")
		if ip == "" {
			apierror.BadRequest("ip is required").WriteJSON(w)
			return
		}

		if err := h.service.Remove(r.Context(), kind, ip); err != nil {
			h.handleServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *AccessListHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accesslist.ErrEntryNotFound):
		apierror.NotFound("entry").WriteJSON(w)
	case errors.Is(err, accesslist.ErrDenyPrecedence):
		apierror.Conflict(err.Error()).WriteJSON(w)
	case errors.Is(err, accesslist.ErrInvalidInput):
		apierror.BadRequest(err.Error()).WriteJSON(w)
	case errors.Is(err, accesslist.ErrStoreUnavailable):
		h.logger.Error("access list store unavailable", "error", err)
		apierror.ServiceUnavailable("list store unavailable").WriteJSON(w)
	default:
		h.logger.Error("access list operation failed", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}
