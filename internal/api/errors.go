package api

import (
	"errors"
	"net/http"

	"asanapdf/internal/render"
	"asanapdf/internal/selection"
	"asanapdf/internal/service"
)

// statusFor maps an error to an HTTP status and a message that is safe to
// return to the client.
func statusFor(err error) (int, string) {
	var (
		upstream    *service.UpstreamError
		network     *service.NetworkError
		unavailable *render.RenderUnavailableError
	)

	switch {
	case errors.As(err, &upstream) && upstream.Unauthorized():
		return http.StatusUnauthorized, "Asana rejected the access token"
	case errors.As(err, &upstream):
		return http.StatusBadGateway, "Asana request failed"
	case errors.As(err, &network):
		return http.StatusGatewayTimeout, "Asana is unreachable"
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable, "Document renderer unavailable"
	case errors.Is(err, selection.ErrUnknownTask),
		errors.Is(err, selection.ErrUnknownField),
		errors.Is(err, render.ErrNoTasks):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// handleError responds to err using statusFor.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	RespondWithErrorAndLog(w, r, status, message, err)
}
