// Package handler implements the gateway's HTTP endpoints.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/guardgate/api/pkg/apierror"
	"github.com/guardgate/api/pkg/validator"
)

// writeJSONResponse writes data as a JSON response with the given status.
func writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeAndValidate decodes the request body into dst and runs validation.
// On failure it writes the error response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validator, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierror.BadRequest("invalid JSON body").WriteJSON(w)
		return false
	}

	if err := v.Validate(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			apierror.BadRequest("request validation failed").WithDetails(verrs).WriteJSON(w)
		} else {
			apierror.BadRequest(err.Error()).WriteJSON(w)
		}
		return false
	}

	return true
}
