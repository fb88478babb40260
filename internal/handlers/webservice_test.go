package handlers_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/digitalis/digitalis/internal/handlers"
	"github.com/digitalis/digitalis/internal/models"
	"github.com/digitalis/digitalis/internal/services"
	"github.com/digitalis/digitalis/internal/webservice"
	pkglogger "github.com/digitalis/digitalis/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(lookup *handlers.MockUserLookup, unenrol *handlers.MockUnenroller, writeLimit func(http.Handler) http.Handler) *handlers.WebServiceHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return handlers.NewWebServiceHandler(webservice.NewRegistry(), lookup, unenrol, writeLimit, logger, pkglogger.NewAuditLogger(logger), nil)
}

func call(t *testing.T, h *handlers.WebServiceHandler, function string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := handlers.NewTestRequest(t, http.MethodPost, "/webservice/rest/"+function, body)
	req = handlers.WithCallerContext(req, 2, "manager")
	req = handlers.WithChiRouteContext(req, map[string]string{"wsfunction": function})

	w := httptest.NewRecorder()
	h.CallFunction(w, req)
	return w
}

func TestCallFunction_GetUsers_Defaults(t *testing.T) {
	lookup := &handlers.MockUserLookup{
		GetUsersFunc: func(ctx context.Context, caller models.Caller, req services.LookupRequest) ([]*models.UserProfile, error) {
			assert.Equal(t, int64(2), caller.ID)
			return []*models.UserProfile{{ID: 7, FullName: "Ana Silva"}}, nil
		},
	}
	h := newTestHandler(lookup, &handlers.MockUnenroller{}, nil)

	w := call(t, h, webservice.FunctionGetUsers, map[string]any{
		"criteria": []map[string]string{{"key": "email", "value": "example.com"}},
	})

	var resp []map[string]any
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, "Ana Silva", resp[0]["fullname"])

	require.Len(t, lookup.Requests, 1)
	assert.Equal(t, services.DefaultLimitFrom, lookup.Requests[0].LimitFrom)
	assert.Equal(t, services.DefaultLimitNum, lookup.Requests[0].LimitNum)
	assert.Equal(t, []models.SearchCriterion{{Key: "email", Value: "example.com"}}, lookup.Requests[0].Criteria)
}

func TestCallFunction_GetUsers_ExplicitLimits(t *testing.T) {
	lookup := &handlers.MockUserLookup{}
	h := newTestHandler(lookup, &handlers.MockUnenroller{}, nil)

	w := call(t, h, webservice.FunctionGetUsers, map[string]any{"limitfrom": 2, "limitnum": 10})

	handlers.AssertJSONResponse(t, w, http.StatusOK, nil)
	assert.JSONEq(t, `[]`, w.Body.String())
	require.Len(t, lookup.Requests, 1)
	assert.Equal(t, 2, lookup.Requests[0].LimitFrom)
	assert.Equal(t, 10, lookup.Requests[0].LimitNum)
}

func TestCallFunction_GetUsers_ServiceErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		reason  string
		details string
	}{
		{"invalid key", models.InvalidCriteriaError("invalidkey", "city"), http.StatusBadRequest, "invalid_criteria", "invalidkey"},
		{"missing capability", models.MissingCapabilityError("idnumber"), http.StatusForbidden, "forbidden", "missingrequiredcapability"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := &handlers.MockUserLookup{
				GetUsersFunc: func(ctx context.Context, caller models.Caller, req services.LookupRequest) ([]*models.UserProfile, error) {
					return nil, tt.err
				},
			}
			h := newTestHandler(lookup, &handlers.MockUnenroller{}, nil)

			w := call(t, h, webservice.FunctionGetUsers, map[string]any{})

			handlers.AssertErrorResponse(t, w, tt.status, tt.reason, tt.details)
		})
	}
}

func TestCallFunction_RejectsUnknownFields(t *testing.T) {
	lookup := &handlers.MockUserLookup{}
	h := newTestHandler(lookup, &handlers.MockUnenroller{}, nil)

	w := call(t, h, webservice.FunctionGetUsers, map[string]any{"wstoken": "abc"})

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "invalid_parameter", "invalidparameter")
	assert.Empty(t, lookup.Requests)
}

func TestCallFunction_UnenrolUsers_Success(t *testing.T) {
	unenrol := &handlers.MockUnenroller{}
	h := newTestHandler(&handlers.MockUserLookup{}, unenrol, nil)

	w := call(t, h, webservice.FunctionUnenrolUsers, map[string]any{
		"unenrolments": []map[string]int64{
			{"roleid": 5, "userid": 10, "courseid": 2},
			{"roleid": 5, "userid": 11, "courseid": 2},
		},
	})

	handlers.AssertJSONResponse(t, w, http.StatusOK, nil)
	assert.Equal(t, "null", strings.TrimSpace(w.Body.String()))
	require.Len(t, unenrol.Batches, 1)
	assert.Equal(t, []models.Unenrolment{
		{RoleID: 5, UserID: 10, CourseID: 2},
		{RoleID: 5, UserID: 11, CourseID: 2},
	}, unenrol.Batches[0])
}

func TestCallFunction_UnenrolUsers_ValidatesItems(t *testing.T) {
	unenrol := &handlers.MockUnenroller{}
	h := newTestHandler(&handlers.MockUserLookup{}, unenrol, nil)

	for _, body := range []any{
		map[string]any{},
		map[string]any{"unenrolments": []map[string]int64{{"roleid": 5, "userid": 0, "courseid": 2}}},
	} {
		w := call(t, h, webservice.FunctionUnenrolUsers, body)
		handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "invalid_parameter", "invalidparameter")
	}
	assert.Empty(t, unenrol.Batches)
}

func TestCallFunction_UnenrolUsers_NotConfigured(t *testing.T) {
	unenrol := &handlers.MockUnenroller{
		UnenrolFunc: func(ctx context.Context, caller models.Caller, items []models.Unenrolment) error {
			return models.NewServiceError(models.ErrNotConfigured, "wsnoinstance", "course 2 has no manual enrolment instance", nil)
		},
	}
	h := newTestHandler(&handlers.MockUserLookup{}, unenrol, nil)

	w := call(t, h, webservice.FunctionUnenrolUsers, map[string]any{
		"unenrolments": []map[string]int64{{"roleid": 5, "userid": 10, "courseid": 2}},
	})

	handlers.AssertErrorResponse(t, w, http.StatusConflict, "not_configured", "wsnoinstance")
}

func TestCallFunction_WriteLimitOnlyWrapsWriteFunctions(t *testing.T) {
	limited := 0
	writeLimit := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limited++
			next.ServeHTTP(w, r)
		})
	}
	h := newTestHandler(&handlers.MockUserLookup{}, &handlers.MockUnenroller{}, writeLimit)

	call(t, h, webservice.FunctionGetUsers, map[string]any{})
	assert.Equal(t, 0, limited)

	call(t, h, webservice.FunctionUnenrolUsers, map[string]any{"unenrolments": []any{}})
	assert.Equal(t, 1, limited)
}

func TestCallFunction_UnknownFunction(t *testing.T) {
	h := newTestHandler(&handlers.MockUserLookup{}, &handlers.MockUnenroller{}, nil)

	w := call(t, h, "core_user_get_users", nil)

	handlers.AssertErrorResponse(t, w, http.StatusNotFound, "invalid_function", "invalidrecord")
}

func TestCallFunction_RequiresCaller(t *testing.T) {
	h := newTestHandler(&handlers.MockUserLookup{}, &handlers.MockUnenroller{}, nil)

	req := handlers.NewTestRequest(t, http.MethodPost, "/webservice/rest/"+webservice.FunctionGetUsers, map[string]any{})
	req = handlers.WithChiRouteContext(req, map[string]string{"wsfunction": webservice.FunctionGetUsers})
	w := httptest.NewRecorder()
	h.CallFunction(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterRoutes_ListFunctions(t *testing.T) {
	h := newTestHandler(&handlers.MockUserLookup{}, &handlers.MockUnenroller{}, nil)
	router := chi.NewRouter()
	h.RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webservice/functions", nil))

	var svc webservice.Service
	handlers.AssertJSONResponse(t, w, http.StatusOK, &svc)
	assert.Equal(t, "Digitalis webservices", svc.Name)
	require.Len(t, svc.Functions, 2)
	assert.Equal(t, webservice.TypeWrite, svc.Functions[1].Type)
}
