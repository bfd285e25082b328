package httputil

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/Exanteros/darts-sub002/internal/service"
)

type errorBody struct {
	Error string `json:"error"`
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	WriteJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	WriteJSON(w, http.StatusNotFound, errorBody{Error: msg})
}

// WriteError maps a service error onto its status code. Anything untyped is a 500.
func WriteError(w http.ResponseWriter, msg string, err error) {
	var (
		validation *service.ValidationError
		notFound   *service.NotFoundError
		conflict   *service.StateConflictError
		authErr    *service.AuthorizationError
		race       *service.RaceLostError
		noData     *service.NoDataError
		limited    *service.RateLimitedError
	)

	switch {
	case errors.As(err, &validation):
		BadRequest(w, validation.Msg, nil)
	case errors.As(err, &notFound):
		NotFound(w, notFound.Error(), nil)
	case errors.As(err, &authErr):
		status := http.StatusForbidden
		if authErr.Unauthenticated {
			status = http.StatusUnauthorized
		}
		slog.Warn("access denied", "message", msg, "error", err)
		WriteJSON(w, status, errorBody{Error: authErr.Msg})
	case errors.As(err, &conflict):
		slog.Info("state conflict", "message", msg, "error", err)
		WriteJSON(w, http.StatusConflict, errorBody{Error: conflict.Msg})
	case errors.As(err, &race):
		slog.Info("lost a race", "message", msg, "error", err)
		WriteJSON(w, http.StatusConflict, errorBody{Error: race.Msg})
	case errors.As(err, &noData):
		WriteJSON(w, http.StatusConflict, errorBody{Error: noData.Msg})
	case errors.As(err, &limited):
		seconds := int(math.Ceil(limited.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
		WriteJSON(w, http.StatusTooManyRequests, errorBody{Error: limited.Error()})
	default:
		InternalServerError(w, msg, err)
	}
}
