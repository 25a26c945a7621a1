// Package response writes the API's JSON and problem responses. Every
// response echoes the request id.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/vietnamexplorer/explorer/internal/api/middleware"
	"github.com/vietnamexplorer/explorer/internal/api/models"
)

// JSON writes data with status.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, r, status, "", data)
}

// Created writes a 201 pointing at location.
func Created(w http.ResponseWriter, r *http.Request, location string, data any) {
	write(w, r, http.StatusCreated, location, data)
}

// Accepted writes a 202 for work that finishes later; location is where
// its outcome can be read.
func Accepted(w http.ResponseWriter, r *http.Request, location string, data any) {
	write(w, r, http.StatusAccepted, location, data)
}

// NoContent writes a bare 204.
func NoContent(w http.ResponseWriter, r *http.Request) {
	write(w, r, http.StatusNoContent, "", nil)
}

func write(w http.ResponseWriter, r *http.Request, status int, location string, data any) {
	h := w.Header()
	if id := middleware.GetRequestID(r.Context()); id != "" {
		h.Set(middleware.RequestIDHeader, id)
	}
	if location != "" {
		h.Set("Location", location)
	}
	if data == nil {
		w.WriteHeader(status)
		return
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem writes the problem for status with detail.
func Problem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	send(w, r, models.NewProblem(status, middleware.GetRequestID(r.Context()), detail))
}

// BadRequest writes a 400. errs may be nil.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errs []models.FieldError) {
	send(w, r, models.NewValidationProblem(middleware.GetRequestID(r.Context()), detail, errs))
}

func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusUnauthorized, detail)
}

func Forbidden(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusForbidden, detail)
}

func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusNotFound, detail)
}

func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusConflict, detail)
}

func TooManyRequests(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusTooManyRequests, detail)
}

func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusInternalServerError, detail)
}

// BadGateway reports an upstream that answered with an error.
func BadGateway(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusBadGateway, detail)
}

// ServiceUnavailable reports an upstream that could not be reached.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusServiceUnavailable, detail)
}

// GatewayTimeout reports an upstream that did not answer in time.
func GatewayTimeout(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusGatewayTimeout, detail)
}

func send(w http.ResponseWriter, r *http.Request, p *models.Problem) {
	p.Instance = r.URL.Path
	p.Write(w)
}
