package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/logging"
	"github.com/rshade/greenledger/internal/metadata"
	"github.com/rshade/greenledger/internal/sector"
	"github.com/rshade/greenledger/internal/store"
)

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request") //nolint:gochecknoglobals // sentinel

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", errBadRequest, err)
}

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict), errors.Is(err, metadata.ErrNoChange),
		errors.Is(err, metadata.ErrInvalidTransition):
		return http.StatusConflict
	case greenops.IsValidation(err), errors.Is(err, errBadRequest),
		errors.Is(err, sector.ErrUnknownSector), errors.Is(err, metadata.ErrInvalidRecord):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	var ve *greenops.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error().
			Str("component", "server").
			Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
		resp.Error = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, badRequest(err)
	}
	return body, nil
}

func decodeBody(r *http.Request, v any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(body, v); err != nil {
		return badRequest(err)
	}
	return nil
}

// requestLogger attaches a request-scoped zerolog logger carrying the trace
// ID to the context and logs each completed request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		traceID := middleware.GetReqID(ctx)
		if traceID == "" {
			traceID = logging.GetOrGenerateTraceID(ctx)
		}
		logger := logging.FromContext(ctx).With().
			Str(logging.TraceIDField, traceID).
			Str("component", "server").
			Logger()
		ctx = logging.ContextWithTraceID(logger.WithContext(ctx), traceID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		level := zerolog.DebugLevel
		if ww.Status() >= http.StatusInternalServerError {
			level = zerolog.WarnLevel
		}
		logger.WithLevel(level).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
