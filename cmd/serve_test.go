package cmd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-nengtul/app/controller"
	"github.com/vibast-solutions/ms-go-nengtul/app/mail"
	"github.com/vibast-solutions/ms-go-nengtul/app/metrics"
	"github.com/vibast-solutions/ms-go-nengtul/app/middleware"
	"github.com/vibast-solutions/ms-go-nengtul/app/repository"
	"github.com/vibast-solutions/ms-go-nengtul/app/service"
	"github.com/vibast-solutions/ms-go-nengtul/app/token"
	"github.com/vibast-solutions/ms-go-nengtul/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:          "serve-secret",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: time.Hour,
			AccessHeader:    "Authorization",
			RefreshHeader:   "Authorization-refresh",
		},
		RateLimit: config.RateLimitConfig{LoginPerSecond: 0.001, Burst: 1},
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.NewCollector(registry)
	userRepo := repository.NewUserRepository(db)
	sessions := service.NewSessionManager(userRepo, repository.NewBlacklistTokenRepository(db),
		token.NewCodec(token.Config{Secret: cfg.JWT.Secret}), cfg.JWT, service.WithSessionMetrics(recorder))
	users := service.NewUserService(userRepo, mail.NewLogSender(), cfg)

	return newHTTPServer(cfg, handlers{
		sessions: controller.NewSessionController(sessions, cfg.JWT),
		users:    controller.NewUserController(users, sessions),
		auth:     middleware.NewAuthMiddleware(sessions, users),
	}, registry)
}

func request(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = "192.0.2.10:5000"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newTestServer(t)

	routes := []struct{ method, path string }{
		{http.MethodPost, "/v1/user/logout"},
		{http.MethodGet, "/v1/user/detail"},
		{http.MethodPut, "/v1/user"},
		{http.MethodPut, "/v1/user/password"},
		{http.MethodPost, "/v1/user/verify/resend"},
		{http.MethodDelete, "/v1/user"},
	}
	for _, r := range routes {
		rec := request(e, r.method, r.path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", r.method, r.path)
	}
}

func TestRejectionsAreCounted(t *testing.T) {
	e := newTestServer(t)

	request(e, http.MethodGet, "/v1/user/detail", "")
	rec := request(e, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `nengtul_auth_gate_rejections_total{reason="missing_token"} 1`)
}

func TestLoginIsRateLimited(t *testing.T) {
	e := newTestServer(t)

	first := request(e, http.MethodPost, "/v1/user/login", `{"email":"bad"}`)
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := request(e, http.MethodPost, "/v1/user/login", `{"email":"bad"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRefreshIsRateLimited(t *testing.T) {
	e := newTestServer(t)

	first := request(e, http.MethodPost, "/v1/user/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, first.Code)

	second := request(e, http.MethodPost, "/v1/user/refresh", "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestConfigureLogging(t *testing.T) {
	assert.NoError(t, configureLogging(&config.Config{Log: config.LogConfig{Level: "debug", Format: "json"}}))
	assert.Error(t, configureLogging(&config.Config{Log: config.LogConfig{Level: "loud"}}))
	assert.Error(t, configureLogging(&config.Config{Log: config.LogConfig{Level: "info", Format: "xml"}}))
}
