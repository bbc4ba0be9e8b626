package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ledgerline/portal-iam/internal/infra/config"
	httproutes "github.com/ledgerline/portal-iam/internal/transport/http/routes"
	"github.com/ledgerline/portal-iam/internal/usecase"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger, _ := zap.NewDevelopment()
	cfg := &config.AppConfig{App: config.AppSettings{Env: "test"}}

	return httproutes.Register(httproutes.Dependencies{
		Config: cfg,
		Logger: logger,
		Services: httproutes.ServiceSet{
			Credentials: &usecase.CredentialService{},
			Invoices:    &usecase.InvoiceService{},
		},
	})
}

func TestHealthEndpoint(t *testing.T) {
	r := testRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := testRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestProtectedRoutesRequireAuthorization(t *testing.T) {
	r := testRouter()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/auth/validate-token"},
		{http.MethodGet, "/api/v1/invoices"},
		{http.MethodPost, "/api/v1/users"},
		{http.MethodPut, "/api/v1/users/user-1"},
		{http.MethodPost, "/api/v1/users/user-1/invite"},
	}

	for _, p := range paths {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(p.method, p.path, nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 without bearer token, got %d", p.method, p.path, w.Code)
		}
	}
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	r := testRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty login body, got %d", w.Code)
	}
}
