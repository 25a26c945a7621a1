package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietnamexplorer/explorer/internal/api/middleware"
	"github.com/vietnamexplorer/explorer/internal/api/models"
	"github.com/vietnamexplorer/explorer/internal/api/response"
)

// serve runs fn behind the RequestID middleware, the way handlers run.
func serve(method, path string, fn http.HandlerFunc) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	middleware.RequestID(fn).ServeHTTP(rec, httptest.NewRequest(method, path, http.NoBody))
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p models.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}

func TestJSON(t *testing.T) {
	rec := serve(http.MethodGet, "/v1/me", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"username": "lan"})
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("X-Request-Id"), "req_")
	assert.JSONEq(t, `{"username":"lan"}`, rec.Body.String())
}

func TestJSON_WithoutRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, httptest.NewRequest(http.MethodGet, "/test", http.NoBody), http.StatusOK, []int{1})

	assert.Empty(t, rec.Header().Get("X-Request-Id"))
	assert.JSONEq(t, `[1]`, rec.Body.String())
}

func TestJSON_NilData(t *testing.T) {
	rec := serve(http.MethodGet, "/test", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, nil)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())
	assert.Empty(t, rec.Header().Get("Content-Type"))
}

func TestCreatedAndAccepted(t *testing.T) {
	tests := []struct {
		name     string
		write    func(http.ResponseWriter, *http.Request)
		status   int
		location string
	}{
		{
			name: "created",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.Created(w, r, "/v1/screens/scr_1", map[string]string{"id": "scr_1"})
			},
			status:   http.StatusCreated,
			location: "/v1/screens/scr_1",
		},
		{
			name: "accepted",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.Accepted(w, r, "/v1/screens/scr_1", map[string]int{"searchId": 3})
			},
			status:   http.StatusAccepted,
			location: "/v1/screens/scr_1",
		},
		{
			name: "accepted without location",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.Accepted(w, r, "", map[string]int{"searchId": 4})
			},
			status: http.StatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(http.MethodPost, "/v1/screens", tt.write)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
			assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestNoContent(t *testing.T) {
	rec := serve(http.MethodDelete, "/v1/screens/scr_1", func(w http.ResponseWriter, r *http.Request) {
		response.NoContent(w, r)
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Zero(t, rec.Body.Len())
}

func TestProblemHelpers(t *testing.T) {
	tests := []struct {
		name     string
		write    func(http.ResponseWriter, *http.Request, string)
		status   int
		wantType string
	}{
		{name: "unauthorized", write: response.Unauthorized, status: http.StatusUnauthorized, wantType: models.ProblemTypeUnauthorized},
		{name: "forbidden", write: response.Forbidden, status: http.StatusForbidden, wantType: models.ProblemTypeForbidden},
		{name: "not found", write: response.NotFound, status: http.StatusNotFound, wantType: models.ProblemTypeNotFound},
		{name: "conflict", write: response.Conflict, status: http.StatusConflict, wantType: models.ProblemTypeConflict},
		{name: "too many requests", write: response.TooManyRequests, status: http.StatusTooManyRequests, wantType: models.ProblemTypeTooManyRequests},
		{name: "internal", write: response.InternalError, status: http.StatusInternalServerError, wantType: models.ProblemTypeInternal},
		{name: "bad gateway", write: response.BadGateway, status: http.StatusBadGateway, wantType: models.ProblemTypeUpstream},
		{name: "unavailable", write: response.ServiceUnavailable, status: http.StatusServiceUnavailable, wantType: models.ProblemTypeUnavailable},
		{name: "timeout", write: response.GatewayTimeout, status: http.StatusGatewayTimeout, wantType: models.ProblemTypeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(http.MethodGet, "/v1/screens/scr_9", func(w http.ResponseWriter, r *http.Request) {
				tt.write(w, r, "weather service did not answer")
			})

			assert.Equal(t, tt.status, rec.Code)
			p := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, p.Type)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, "weather service did not answer", p.Detail)
			assert.Equal(t, "/v1/screens/scr_9", p.Instance)
			assert.Equal(t, rec.Header().Get("X-Request-Id"), p.TraceID)
		})
	}
}

func TestBadRequest_FieldErrors(t *testing.T) {
	rec := serve(http.MethodPost, "/v1/auth/sign-up", func(w http.ResponseWriter, r *http.Request) {
		response.BadRequest(w, r, "validation error", []models.FieldError{
			{Field: "email", Message: "Invalid email address format.", Code: "EMAIL"},
		})
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	p := decodeProblem(t, rec)
	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "email", p.Errors[0].Field)
	assert.Equal(t, "EMAIL", p.Errors[0].Code)
}

func TestProblem_UnlistedStatus(t *testing.T) {
	rec := serve(http.MethodGet, "/v1/translate", func(w http.ResponseWriter, r *http.Request) {
		response.Problem(w, r, http.StatusRequestEntityTooLarge, "text is too long")
	})

	p := decodeProblem(t, rec)
	assert.Equal(t, "about:blank", p.Type)
	assert.Equal(t, "Request Entity Too Large", p.Title)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
