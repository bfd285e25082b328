package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Exanteros/darts-sub002/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &service.ValidationError{Msg: "dart 1: 23 is not a valid dart value"}, http.StatusBadRequest},
		{"not found", &service.NotFoundError{Resource: "match"}, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("loading: %w", &service.NotFoundError{Resource: "board"}), http.StatusNotFound},
		{"forbidden", &service.AuthorizationError{Msg: "no"}, http.StatusForbidden},
		{"unauthenticated", &service.AuthorizationError{Msg: "who?", Unauthenticated: true}, http.StatusUnauthorized},
		{"conflict", &service.StateConflictError{Msg: "match is waiting"}, http.StatusConflict},
		{"race lost", &service.RaceLostError{Msg: "leg 1 was already closed"}, http.StatusConflict},
		{"no data", &service.NoDataError{Msg: "no shootout results"}, http.StatusConflict},
		{"rate limited", &service.RateLimitedError{RetryAfter: 1500 * time.Millisecond}, http.StatusTooManyRequests},
		{"anything else", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, "test", tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestWriteErrorRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, "edit", &service.RateLimitedError{RetryAfter: 1500 * time.Millisecond})
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	WriteError(rec, "edit", &service.RateLimitedError{})
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestWriteErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, "test", fmt.Errorf("failed to get match: %w", fmt.Errorf("sqlite: disk I/O error")))
	assert.NotContains(t, rec.Body.String(), "sqlite")
}

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}

	testCases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"Anna","score":60}`, ""},
		{"empty", ``, "must not be empty"},
		{"syntax", `{"name":`, "badly-formed"},
		{"wrong type", `{"score":"sixty"}`, `field "score"`},
		{"unknown field", `{"nickname":"A"}`, "unknown key"},
		{"two values", `{"name":"A"}{"name":"B"}`, "single JSON value"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			var dst payload
			err := ReadJSON(rec, req, &dst)
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "Anna", dst.Name)
				assert.Equal(t, 60, dst.Score)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestReadJSONTooLarge(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()

	var dst struct {
		Name string `json:"name"`
	}
	err := ReadJSON(rec, req, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "larger than")
}
