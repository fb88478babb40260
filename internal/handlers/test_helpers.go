package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/digitalis/digitalis/internal/auth"
	"github.com/digitalis/digitalis/internal/models"
	"github.com/digitalis/digitalis/internal/services"
	pkghttp "github.com/digitalis/digitalis/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithCallerContext adds an authenticated caller to the request context
func WithCallerContext(req *http.Request, callerID int64, username string) *http.Request {
	return req.WithContext(auth.WithCaller(req.Context(), models.Caller{ID: callerID, Username: username}))
}

// WithChiRouteContext sets chi URL parameters on a request
//
// Example usage:
//
//	req = WithChiRouteContext(req, map[string]string{
//	    "wsfunction": "local_digitalis_get_users",
//	})
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError, expectedDetails string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.Equal(t, expectedDetails, resp.Details, "Host error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockUserLookup implements UserLookup for testing
type MockUserLookup struct {
	GetUsersFunc func(ctx context.Context, caller models.Caller, req services.LookupRequest) ([]*models.UserProfile, error)
	Requests     []services.LookupRequest
}

func (m *MockUserLookup) GetUsers(ctx context.Context, caller models.Caller, req services.LookupRequest) ([]*models.UserProfile, error) {
	m.Requests = append(m.Requests, req)
	if m.GetUsersFunc != nil {
		return m.GetUsersFunc(ctx, caller, req)
	}
	return nil, nil
}

// MockUnenroller implements Unenroller for testing
type MockUnenroller struct {
	UnenrolFunc func(ctx context.Context, caller models.Caller, items []models.Unenrolment) error
	Batches     [][]models.Unenrolment
}

func (m *MockUnenroller) Unenrol(ctx context.Context, caller models.Caller, items []models.Unenrolment) error {
	m.Batches = append(m.Batches, items)
	if m.UnenrolFunc != nil {
		return m.UnenrolFunc(ctx, caller, items)
	}
	return nil
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.Err
}
