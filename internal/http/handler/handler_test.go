package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taxportal/internal/filecheck"
	"taxportal/internal/model"
	"taxportal/internal/security"
	"taxportal/internal/service"
	serviceMocks "taxportal/internal/service/mocks"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type testEnv struct {
	app         *fiber.App
	sessions    *security.SessionManager
	auth        *serviceMocks.MockAuthService
	catalog     *serviceMocks.MockCatalogService
	regions     *serviceMocks.MockRegionService
	users       *serviceMocks.MockUserService
	submissions *serviceMocks.MockSubmissionService
	payments    *serviceMocks.MockPaymentService

	// roles is the stored role per user; token fills it in.
	mu    sync.Mutex
	roles map[string]model.Role
}

func newTestEnv(t *testing.T, returnURL string) *testEnv {
	t.Helper()
	sm, err := security.NewSessionManager("handler-test-secret", time.Hour)
	require.NoError(t, err)

	e := &testEnv{
		app:         fiber.New(fiber.Config{ErrorHandler: ErrorHandler()}),
		sessions:    sm,
		auth:        new(serviceMocks.MockAuthService),
		catalog:     new(serviceMocks.MockCatalogService),
		regions:     new(serviceMocks.MockRegionService),
		users:       new(serviceMocks.MockUserService),
		submissions: new(serviceMocks.MockSubmissionService),
		payments:    new(serviceMocks.MockPaymentService),
		roles:       map[string]model.Role{},
	}
	RegisterRoutes(e.app, Deps{
		Auth:             e.auth,
		Catalog:          e.catalog,
		Regions:          e.regions,
		Users:            e.users,
		Submissions:      e.submissions,
		Payments:         e.payments,
		Sessions:         sm,
		Roles:            e.storedRole,
		Cookie:           CookieConfig{Name: "session", Secure: true},
		PaymentReturnURL: returnURL,
		Log:              discard,
	})
	return e
}

func (e *testEnv) storedRole(_ context.Context, userID string) (model.Role, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roles[userID], nil
}

func (e *testEnv) setRole(userID string, role model.Role) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roles[userID] = role
}

// token issues a session and records role as the user's stored role.
func (e *testEnv) token(t *testing.T, userID string, role model.Role) string {
	t.Helper()
	e.setRole(userID, role)
	tok, _, err := e.sessions.Issue(userID, userID+"@example.com", string(role))
	require.NoError(t, err)
	return tok
}

// do sends req, optionally authenticated, and returns the response.
func (e *testEnv) do(t *testing.T, req *http.Request, token string) *http.Response {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	return resp
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouting(t *testing.T) {
	e := newTestEnv(t, "")

	t.Run("not found route", func(t *testing.T) {
		resp := e.do(t, httptest.NewRequest(http.MethodGet, "/non-existent", nil), "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp := e.do(t, httptest.NewRequest(http.MethodPost, "/healthz", nil), "")
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp).Error.Code)
	})

	t.Run("admin area needs a session", func(t *testing.T) {
		resp := e.do(t, httptest.NewRequest(http.MethodGet, "/admin/users", nil), "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHENTICATED", decodeError(t, resp).Error.Code)
	})

	t.Run("admin area needs the admin role", func(t *testing.T) {
		for _, role := range []model.Role{model.RoleUser, model.RoleRegionAdmin} {
			resp := e.do(t, httptest.NewRequest(http.MethodGet, "/admin/users", nil), e.token(t, "u-1", role))
			assert.Equal(t, http.StatusForbidden, resp.StatusCode, role)
		}
	})

	t.Run("staff queue rejects customers", func(t *testing.T) {
		resp := e.do(t, httptest.NewRequest(http.MethodGet, "/staff/submissions", nil), e.token(t, "u-1", model.RoleUser))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("expired token", func(t *testing.T) {
		resp := e.do(t, httptest.NewRequest(http.MethodGet, "/auth/me", nil), "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "INVALID_SESSION", decodeError(t, resp).Error.Code)
	})

	t.Run("demoted staff lose access with a live token", func(t *testing.T) {
		adminTok := e.token(t, "a-9", model.RoleAdmin)
		staffTok := e.token(t, "ra-9", model.RoleRegionAdmin)
		e.setRole("a-9", model.RoleUser)
		e.setRole("ra-9", model.RoleUser)

		resp := e.do(t, httptest.NewRequest(http.MethodGet, "/admin/users", nil), adminTok)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp = e.do(t, httptest.NewRequest(http.MethodGet, "/staff/submissions", nil), staffTok)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("deleted account", func(t *testing.T) {
		tok := e.token(t, "gone", model.RoleUser)
		e.setRole("gone", "")
		resp := e.do(t, httptest.NewRequest(http.MethodGet, "/auth/me", nil), tok)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "INVALID_SESSION", decodeError(t, resp).Error.Code)
	})
}

func TestStoredRole(t *testing.T) {
	users := new(serviceMocks.MockUserService)
	users.On("Get", mock.Anything, "u-1").Return(&model.User{ID: "u-1", Role: model.RoleRegionAdmin}, nil)
	users.On("Get", mock.Anything, "u-2").Return(nil, fmt.Errorf("find user: %w", service.ErrNotFound))
	users.On("Get", mock.Anything, "u-3").Return(nil, errors.New("db down"))
	roles := storedRole(users)
	ctx := context.Background()

	role, err := roles(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleRegionAdmin, role)

	role, err = roles(ctx, "u-2")
	require.NoError(t, err)
	assert.Empty(t, role)

	_, err = roles(ctx, "u-3")
	assert.Error(t, err)
}

func TestServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"validation message passes through", &service.ValidationError{Msg: "pincode must be 6 digits"}, 400, "VALIDATION_FAILED", "pincode must be 6 digits"},
		{"wrapped not found", fmt.Errorf("find x: %w", service.ErrNotFound), 404, "NOT_FOUND", "resource not found"},
		{"oversized file", fmt.Errorf("attachment %q: %w", "big.pdf", filecheck.ErrFileTooLarge), 413, "FILE_TOO_LARGE", `attachment "big.pdf": file exceeds the size limit`},
		{"disguised file", fmt.Errorf("attachment %q: %w", "x.pdf", filecheck.ErrContentMismatch), 415, "CONTENT_MISMATCH", ""},
		{"conflict", service.ErrEmailTaken, 409, "EMAIL_TAKEN", "email already registered"},
		{"unknown txn before generic not found", service.ErrTransactionNotFound, 404, "TRANSACTION_NOT_FOUND", ""},
		{"internal details hidden", errors.New("pq: connection refused"), 500, "INTERNAL_ERROR", "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return serviceError(c, discard, tt.err) })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			body := decodeError(t, resp)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body.Error.Message)
			}
		})
	}
}
