package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/digitalis/digitalis/internal/auth"
	"github.com/digitalis/digitalis/internal/metrics"
	"github.com/digitalis/digitalis/internal/models"
	"github.com/digitalis/digitalis/internal/services"
	"github.com/digitalis/digitalis/internal/webservice"
	pkghttp "github.com/digitalis/digitalis/pkg/http"
	pkglogger "github.com/digitalis/digitalis/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// maxRequestBody bounds a decoded web-service request body
const maxRequestBody = 1 << 20

// UserLookup returns the visible profiles matching a lookup request
type UserLookup interface {
	GetUsers(ctx context.Context, caller models.Caller, req services.LookupRequest) ([]*models.UserProfile, error)
}

// Unenroller removes manual enrolments as one batch
type Unenroller interface {
	Unenrol(ctx context.Context, caller models.Caller, items []models.Unenrolment) error
}

// GetUsersRequest is the body of local_digitalis_get_users
type GetUsersRequest struct {
	Criteria  []models.SearchCriterion `json:"criteria" validate:"max=100,dive"`
	LimitFrom *int                     `json:"limitfrom"`
	LimitNum  *int                     `json:"limitnum"`
}

// UnenrolUsersRequest is the body of local_digitalis_unenrol_users
type UnenrolUsersRequest struct {
	Unenrolments []models.Unenrolment `json:"unenrolments" validate:"required,dive"`
}

// callFunc runs one web-service function for an authenticated caller
type callFunc func(w http.ResponseWriter, r *http.Request, caller models.Caller) error

// WebServiceHandler dispatches POST /webservice/rest/{wsfunction}
type WebServiceHandler struct {
	registry    *webservice.Registry
	lookup      UserLookup
	unenrol     Unenroller
	calls       map[string]http.Handler
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	ipConfig    *pkghttp.IPConfig
}

// NewWebServiceHandler creates a WebServiceHandler. writeLimit, when set,
// wraps every write function.
func NewWebServiceHandler(
	registry *webservice.Registry,
	lookup UserLookup,
	unenrol Unenroller,
	writeLimit func(http.Handler) http.Handler,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	ipConfig *pkghttp.IPConfig,
) *WebServiceHandler {
	h := &WebServiceHandler{
		registry:    registry,
		lookup:      lookup,
		unenrol:     unenrol,
		logger:      logger,
		auditLogger: auditLogger,
		ipConfig:    ipConfig,
	}

	impls := map[string]callFunc{
		webservice.FunctionGetUsers:     h.getUsers,
		webservice.FunctionUnenrolUsers: h.unenrolUsers,
	}

	h.calls = make(map[string]http.Handler, len(impls))
	for name, impl := range impls {
		fn, ok := registry.Lookup(name)
		if !ok {
			continue
		}
		var handler http.Handler = h.wrap(fn, impl)
		if fn.IsWrite() && writeLimit != nil {
			handler = writeLimit(handler)
		}
		h.calls[name] = handler
	}

	return h
}

// RegisterRoutes registers the web-service routes with the chi router
func (h *WebServiceHandler) RegisterRoutes(router chi.Router) {
	router.Route("/webservice", func(r chi.Router) {
		r.Get("/functions", h.ListFunctions)         // GET /webservice/functions
		r.Post("/rest/{wsfunction}", h.CallFunction) // POST /webservice/rest/{wsfunction}
	})
}

// CallFunction dispatches to the function named in the path
func (h *WebServiceHandler) CallFunction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "wsfunction")

	handler, ok := h.calls[name]
	if !ok {
		pkghttp.WriteErrorWithDetails(w, http.StatusNotFound, "invalid_function",
			fmt.Sprintf("web service function %q does not exist", name), "invalidrecord")
		return
	}

	handler.ServeHTTP(w, r)
}

// ListFunctions returns the pre-built service and its functions
func (h *WebServiceHandler) ListFunctions(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.registry.Service())
}

func (h *WebServiceHandler) wrap(fn webservice.Function, impl callFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := auth.CallerFromContext(r.Context())
		if !ok {
			metrics.WSCalls.WithLabelValues(fn.Name, metrics.OutcomeDenied).Inc()
			pkghttp.WriteUnauthorized(w, "authentication required")
			return
		}

		err := impl(w, r, caller)
		if err == nil {
			metrics.WSCalls.WithLabelValues(fn.Name, metrics.OutcomeSuccess).Inc()
			return
		}

		status := pkghttp.WriteServiceError(w, err)
		switch {
		case status == http.StatusForbidden:
			metrics.WSCalls.WithLabelValues(fn.Name, metrics.OutcomeDenied).Inc()
			h.auditLogger.LogAccessDenied(r.Context(), caller.ID, fn.Name, pkghttp.ExtractClientIP(r, h.ipConfig), err.Error())
		case status >= http.StatusInternalServerError:
			metrics.WSCalls.WithLabelValues(fn.Name, metrics.OutcomeError).Inc()
			h.logger.Error("web service call failed",
				slog.String("function", fn.Name),
				slog.Int64("caller_id", caller.ID),
				slog.Any("error", err),
			)
		default:
			metrics.WSCalls.WithLabelValues(fn.Name, metrics.OutcomeError).Inc()
			h.logger.Info("web service call rejected",
				slog.String("function", fn.Name),
				slog.Int64("caller_id", caller.ID),
				slog.String("error", err.Error()),
			)
		}
	})
}

func (h *WebServiceHandler) getUsers(w http.ResponseWriter, r *http.Request, caller models.Caller) error {
	var req GetUsersRequest
	if err := decodeRequest(r, &req); err != nil {
		return err
	}

	lookup := services.LookupRequest{
		Criteria:  req.Criteria,
		LimitFrom: services.DefaultLimitFrom,
		LimitNum:  services.DefaultLimitNum,
	}
	if req.LimitFrom != nil {
		lookup.LimitFrom = *req.LimitFrom
	}
	if req.LimitNum != nil {
		lookup.LimitNum = *req.LimitNum
	}

	profiles, err := h.lookup.GetUsers(r.Context(), caller, lookup)
	if err != nil {
		return err
	}
	if profiles == nil {
		profiles = []*models.UserProfile{}
	}

	pkghttp.WriteJSON(w, http.StatusOK, profiles)
	return nil
}

func (h *WebServiceHandler) unenrolUsers(w http.ResponseWriter, r *http.Request, caller models.Caller) error {
	var req UnenrolUsersRequest
	if err := decodeRequest(r, &req); err != nil {
		return err
	}

	if err := h.unenrol.Unenrol(r.Context(), caller, req.Unenrolments); err != nil {
		return err
	}

	pkghttp.WriteJSON(w, http.StatusOK, nil)
	return nil
}

// decodeRequest decodes and validates a JSON body. An empty body decodes to
// the zero request.
func decodeRequest(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return models.NewServiceError(models.ErrInvalidParameter, "invalidparameter",
			fmt.Sprintf("invalid request body: %v", err), nil)
	}

	if err := ValidateRequest(dst); err != nil {
		return models.NewServiceError(models.ErrInvalidParameter, "invalidparameter", err.Error(), nil)
	}

	return nil
}
