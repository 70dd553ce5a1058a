package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/faqbot/internal/domain"
	healthuc "github.com/kailas-cloud/faqbot/internal/usecase/health"
	"github.com/kailas-cloud/faqbot/internal/usecase/pipeline"
	"github.com/kailas-cloud/faqbot/internal/usecase/retrieval"
)

const maxBodyBytes = 1 << 20

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest         ErrorCode = "bad_request"
	ErrorCodeValidationFailed   ErrorCode = "validation_failed"
	ErrorCodeUnauthorized       ErrorCode = "unauthorized"
	ErrorCodeNotFound           ErrorCode = "not_found"
	ErrorCodeRetrievalDisabled  ErrorCode = "retrieval_disabled"
	ErrorCodeStateStore         ErrorCode = "state_store_unavailable"
	ErrorCodeEmbeddingProvider  ErrorCode = "embedding_provider_error"
	ErrorCodeContentSource      ErrorCode = "content_source_error"
	ErrorCodeServiceUnavailable ErrorCode = "service_unavailable"
	ErrorCodeInternal           ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// MessageRequest is an inbound user message.
type MessageRequest struct {
	UserID string `json:"user_id" validate:"required,max=256"`
	Text   string `json:"text" validate:"max=4096"`
}

// DialogResponse describes a user's dialog.
type DialogResponse struct {
	InDialog    bool              `json:"in_dialog"`
	Trigger     string            `json:"trigger,omitempty"`
	CurrentStep int               `json:"current_step,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
}

// CancelResponse reports whether a dialog was cancelled.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the conversation API.
type Server struct {
	conversations Conversations
	documents     Documents
	health        HealthChecker
	validate      *validator.Validate
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. documents may be nil when retrieval is off.
func NewServer(conversations Conversations, documents Documents, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		conversations: conversations,
		documents:     documents,
		health:        health,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrRetrievalDisabled, http.StatusServiceUnavailable, ErrorCodeRetrievalDisabled),
		sentinelHandler(domain.ErrStateStore, http.StatusServiceUnavailable, ErrorCodeStateStore),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProvider),
		sentinelHandler(domain.ErrContentSource, http.StatusBadGateway, ErrorCodeContentSource),
		sentinelHandler(domain.ErrCollaboratorUnavailable, http.StatusBadGateway, ErrorCodeServiceUnavailable),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", s.PostMessage)
		r.Get("/users/{userID}/dialog", s.GetDialog)
		r.Delete("/users/{userID}/dialog", s.CancelDialog)
		r.Post("/admin/reload", s.ReloadCatalogs)
		r.Post("/admin/documents", s.IngestDocument)
	})
}

// PostMessage handles POST /v1/messages.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.conversations.HandleMessage(r.Context(), req.UserID, req.Text))
}

// GetDialog handles GET /v1/users/{userID}/dialog.
func (s *Server) GetDialog(w http.ResponseWriter, r *http.Request) {
	st, err := s.conversations.Dialog(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if st == nil {
		writeJSON(w, http.StatusOK, DialogResponse{})
		return
	}
	writeJSON(w, http.StatusOK, DialogResponse{
		InDialog:    true,
		Trigger:     st.Trigger,
		CurrentStep: st.CurrentStep,
		Context:     st.Context,
	})
}

// CancelDialog handles DELETE /v1/users/{userID}/dialog.
func (s *Server) CancelDialog(w http.ResponseWriter, r *http.Request) {
	cancelled, err := s.conversations.Cancel(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CancelResponse{Cancelled: cancelled})
}

// ReloadCatalogs handles POST /v1/admin/reload.
func (s *Server) ReloadCatalogs(w http.ResponseWriter, r *http.Request) {
	if err := s.conversations.ReloadCatalogs(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IngestDocument handles POST /v1/admin/documents.
func (s *Server) IngestDocument(w http.ResponseWriter, r *http.Request) {
	if s.documents == nil {
		s.handleDomainError(w, domain.ErrRetrievalDisabled)
		return
	}
	var req retrieval.IngestRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.documents.Ingest(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decode reads and validates a JSON body, writing the error response itself.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrNotFound,
		domain.ErrRetrievalDisabled,
		domain.ErrStateStore,
		domain.ErrEmbeddingProviderError,
		domain.ErrContentSource,
		domain.ErrCollaboratorUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternal, "internal error")
}

var _ Conversations = (*pipeline.Pipeline)(nil)
