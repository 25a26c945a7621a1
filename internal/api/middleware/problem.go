package middleware

import (
	"net/http"
	"strings"

	"github.com/vietnamexplorer/explorer/internal/api/models"
)

// writeProblem answers from middleware, which cannot use the response
// package without an import cycle.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	p := models.NewProblem(status, GetRequestID(r.Context()), detail)
	p.Instance = r.URL.Path
	p.Write(w)
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
