package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/grocerymart-backend/internal/dashboard"
	product "github.com/angelmondragon/grocerymart-backend/internal/products"
	pkgAuth "github.com/angelmondragon/grocerymart-backend/pkg/auth"
	"github.com/angelmondragon/grocerymart-backend/pkg/auth/session"
	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/redis"
	"github.com/angelmondragon/grocerymart-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessions struct{}

func (stubSessions) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubProducts struct {
	product.Service
	listCalls int
}

func (s *stubProducts) List(ctx context.Context, query product.ListQuery) (*product.ListResult, error) {
	s.listCalls++
	return &product.ListResult{Items: []product.ProductDTO{}, Pagination: types.NewPagination(20, "")}, nil
}

type stubDashboard struct{}

func (stubDashboard) Stats(ctx context.Context) (*dashboard.Stats, error) {
	return &dashboard.Stats{}, nil
}

func testConfig(env string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: env, Port: "0"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "grocerymart", ExpirationMinutes: 30},
	}
}

func newTestRouter(t *testing.T, env string, products *stubProducts) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewFromRaw(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	return NewRouter(Dependencies{
		Config:    testConfig(env),
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:        stubPinger{},
		Redis:     client,
		Sessions:  stubSessions{},
		Products:  products,
		Dashboard: stubDashboard{},
	})
}

func bearer(t *testing.T, role enums.SystemRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testConfig("dev").JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func serve(h http.Handler, method, path, auth string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	h := newTestRouter(t, "dev", &stubProducts{})

	if rec := serve(h, http.MethodGet, "/health/live", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", rec.Code)
	}
	if rec := serve(h, http.MethodGet, "/health/ready", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", rec.Code)
	}
	if rec := serve(h, http.MethodGet, "/metrics", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200 got %d", rec.Code)
	}
}

func TestCatalogIsPublic(t *testing.T) {
	products := &stubProducts{}
	h := newTestRouter(t, "dev", products)

	rec := serve(h, http.MethodGet, "/api/v1/products?category=Dairy", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if products.listCalls != 1 {
		t.Fatalf("expected product list to be called once, got %d", products.listCalls)
	}
}

func TestCustomerRoutesRequireToken(t *testing.T) {
	h := newTestRouter(t, "dev", &stubProducts{})

	if rec := serve(h, http.MethodGet, "/api/v1/cart", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestPlaceOrderRequiresIdempotencyKey(t *testing.T) {
	h := newTestRouter(t, "dev", &stubProducts{})

	rec := serve(h, http.MethodPost, "/api/v1/orders", bearer(t, enums.SystemRoleCustomer), `{"payment_method":"cod"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Idempotency-Key") {
		t.Fatalf("expected idempotency error, got %s", rec.Body.String())
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	h := newTestRouter(t, "dev", &stubProducts{})

	if rec := serve(h, http.MethodGet, "/api/admin/v1/dashboard/stats", bearer(t, enums.SystemRoleCustomer), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("customer: expected 403 got %d", rec.Code)
	}
	if rec := serve(h, http.MethodGet, "/api/admin/v1/dashboard/stats", bearer(t, enums.SystemRoleAdmin), ""); rec.Code != http.StatusOK {
		t.Fatalf("admin: expected 200 got %d", rec.Code)
	}
}

func TestAdminRegisterHiddenInProd(t *testing.T) {
	prod := newTestRouter(t, config.AppEnvProd, &stubProducts{})
	rec := serve(prod, http.MethodPost, "/api/admin/v1/auth/register", "", `{}`)
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("prod: expected route to be absent, got %d", rec.Code)
	}

	dev := newTestRouter(t, "dev", &stubProducts{})
	rec = serve(dev, http.MethodPost, "/api/admin/v1/auth/register", "", `{}`)
	if rec.Code == http.StatusNotFound || rec.Code == http.StatusMethodNotAllowed {
		t.Fatalf("dev: expected route to be mounted, got %d", rec.Code)
	}
}
