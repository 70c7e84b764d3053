package api

import (
	"context"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey int

const requestIDKey ctxKey = iota

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// withRequestID attaches a request id to the context and the response.
// A well-formed inbound id is reused.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// withRecover turns a handler panic into a 500 and drives the indicator
// off so it never stays in an undefined state.
func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.reqLogger(r).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("path", r.URL.Path).
				Msg("Handler panicked, forcing indicator off")
			s.forceOff(r)
			jsonErr(w, http.StatusInternalServerError, "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) forceOff(r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.reqLogger(r).Error().Interface("panic", rec).Msg("Failed to force indicator off")
		}
	}()
	s.tracker.ForceOff()
}

// requireSecret rejects requests without the shared secret.
func (s *Server) requireSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(w, r, "") {
			return
		}
		next(w, r)
	}
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

func (s *Server) reqLogger(r *http.Request) *zerolog.Logger {
	l := s.logger.With().Str("request_id", requestID(r)).Logger()
	return &l
}
