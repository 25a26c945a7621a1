package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Recovery turns a handler panic into a 500 problem. Nothing is written when
// the response has already started or the connection was upgraded to a
// stream. http.ErrAbortHandler is passed on untouched.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				log.Error().
					Str("request_id", GetRequestID(r.Context())).
					Str("user_id", requestUserID(r.Context())).
					Str("route", routePattern(r)).
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				if sw.wroteHeader {
					return
				}
				writeProblem(sw, r, http.StatusInternalServerError, "an unexpected error occurred")
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
