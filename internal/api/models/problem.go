package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// TraceID repeats the X-Request-Id header so clients can quote it.
	TraceID string `json:"traceId"`

	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError points at one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ProblemBaseURL prefixes every problem type the API emits.
const ProblemBaseURL = "https://api.vietnam-explorer.app/problems/"

// Problem types.
const (
	ProblemTypeValidation      = ProblemBaseURL + "validation-error"
	ProblemTypeUnauthorized    = ProblemBaseURL + "unauthorized"
	ProblemTypeForbidden       = ProblemBaseURL + "forbidden"
	ProblemTypeNotFound        = ProblemBaseURL + "not-found"
	ProblemTypeConflict        = ProblemBaseURL + "conflict"
	ProblemTypeTooManyRequests = ProblemBaseURL + "too-many-requests"
	ProblemTypeInternal        = ProblemBaseURL + "internal-error"
	ProblemTypeUpstream        = ProblemBaseURL + "upstream-error"
	ProblemTypeUnavailable     = ProblemBaseURL + "service-unavailable"
	ProblemTypeTimeout         = ProblemBaseURL + "upstream-timeout"
)

type problemKind struct {
	typ   string
	title string
}

// Statuses the API answers with. Upstream failures are reported from the
// caller's point of view: the explorer is the gateway.
var problemKinds = map[int]problemKind{
	http.StatusBadRequest:           {ProblemTypeValidation, "Validation error"},
	http.StatusUnauthorized:         {ProblemTypeUnauthorized, "Unauthorized"},
	http.StatusForbidden:            {ProblemTypeForbidden, "Forbidden"},
	http.StatusNotFound:             {ProblemTypeNotFound, "Not found"},
	http.StatusConflict:             {ProblemTypeConflict, "Conflict"},
	http.StatusUnsupportedMediaType: {ProblemTypeValidation, "Unsupported media type"},
	http.StatusTooManyRequests:      {ProblemTypeTooManyRequests, "Too many requests"},
	http.StatusInternalServerError:  {ProblemTypeInternal, "Internal server error"},
	http.StatusBadGateway:           {ProblemTypeUpstream, "Upstream error"},
	http.StatusServiceUnavailable:   {ProblemTypeUnavailable, "Service unavailable"},
	http.StatusGatewayTimeout:       {ProblemTypeTimeout, "Upstream timeout"},
}

// NewProblem builds the problem for status. Statuses without a dedicated type
// use about:blank and the standard status text.
func NewProblem(status int, traceID, detail string) *Problem {
	kind, ok := problemKinds[status]
	if !ok {
		kind = problemKind{typ: "about:blank", title: http.StatusText(status)}
	}
	return &Problem{
		Type:    kind.typ,
		Title:   kind.title,
		Status:  status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// NewValidationProblem builds a 400 carrying per-field errors.
func NewValidationProblem(traceID, detail string, errs []FieldError) *Problem {
	p := NewProblem(http.StatusBadRequest, traceID, detail)
	p.Errors = errs
	return p
}

// Write sends the problem. The request id header is only set when the
// problem carries one.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
