package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/BrandonDHaskell/medledger/internal/medledger/service"
	"github.com/BrandonDHaskell/medledger/internal/medledger/token"
	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
	"github.com/BrandonDHaskell/medledger/internal/metrics"
)

const DefaultCallerHeader = "X-Caller-Identity"

type Dependencies struct {
	Logger        *log.Logger
	Addr          string
	RecordService *service.RecordService
	Metrics       *metrics.Metrics // optional; nil disables /metrics

	CallerHeader string  // default DefaultCallerHeader
	RateLimit    float64 // requests per second per caller; 0 disables
	RateBurst    int
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux
	records    *service.RecordService
	validate   *validator.Validate
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:   d.Logger,
		mux:      mux,
		records:  d.RecordService,
		validate: validator.New(),
	}

	mux.HandleFunc("POST /v1/records", s.handleMint)
	mux.HandleFunc("POST /v1/records/{id}/access", s.handleGrantAccess)
	mux.HandleFunc("GET /v1/records/{id}", s.handleGetRecord)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	header := d.CallerHeader
	if header == "" {
		header = DefaultCallerHeader
	}

	var handler http.Handler = metricsMiddleware(d.Metrics, mux)
	if d.RateLimit > 0 {
		handler = rateLimitMiddleware(newCallerLimiter(d.RateLimit, d.RateBurst), handler)
	}
	handler = callerMiddleware(header, handler)
	handler = loggingMiddleware(d.Logger, handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req types.MintRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	tokenID, err := s.records.Mint(r.Context(), Caller(r.Context()), req.ContentPointer)
	if err != nil {
		s.writeServiceError(w, r, "mint", err)
		return
	}

	writeJSON(w, http.StatusCreated, types.MintResponse{TokenID: tokenID})
}

func (s *Server) handleGrantAccess(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	var req types.GrantAccessRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "grantee is required and at most 128 bytes")
		return
	}

	if err := s.records.GrantAccess(r.Context(), Caller(r.Context()), id, req.Grantee); err != nil {
		s.writeServiceError(w, r, "grant_access", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	e, err := s.records.GetRecord(r.Context(), Caller(r.Context()), id)
	if err != nil {
		s.writeServiceError(w, r, "get_record", err)
		return
	}

	if wantsProtobuf(r) {
		writeRecordProto(w, http.StatusOK, id, e)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse(id, e))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

func recordID(w http.ResponseWriter, r *http.Request) (types.RecordID, bool) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_record_id", "record id must be a non-negative integer")
		return 0, false
	}
	return types.RecordID(n), true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, service.ErrMissingCaller):
		writeError(w, http.StatusUnauthorized, "missing_caller", err.Error())
	case errors.Is(err, service.ErrInvalidPointerFormat), errors.Is(err, token.ErrEmptyURL):
		writeError(w, http.StatusBadRequest, "invalid_pointer_format", err.Error())
	case errors.Is(err, token.ErrURLTooLong):
		writeError(w, http.StatusBadRequest, "pointer_too_long", err.Error())
	case errors.Is(err, service.ErrInvalidGrantee):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, service.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "record_not_found", err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized", err.Error())
	default:
		s.logger.Printf("%s error: req_id=%s: %v", op, RequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
