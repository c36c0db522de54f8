package api

import (
	"errors"
	"net/http"

	"github.com/darp-registry/darp/internal/errs"
	"github.com/gin-gonic/gin"
)

// statusForError maps a service error to the HTTP status reported to the caller.
func statusForError(err error) int {
	var (
		conflict  *errs.ConflictError
		discovery *errs.DiscoveryError
		provider  *errs.ProviderError
	)
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &conflict), errors.Is(err, errs.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.As(err, &discovery):
		return http.StatusBadGateway
	case errors.As(err, &provider):
		if provider.Kind == errs.ProviderErrTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes err as {"error": "..."}.
// A conflict also lists the colliding servers and a turn limit the partial conversation.
func abortWithError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}

	var conflict *errs.ConflictError
	if errors.As(err, &conflict) {
		body["servers"] = conflict.Servers
	}
	var turnLimit *errs.TurnLimitError
	if errors.As(err, &turnLimit) {
		body["conversation"] = turnLimit.Transcript
	}

	c.AbortWithStatusJSON(statusForError(err), body)
}
