package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/grocerymart-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/grocerymart-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/grocerymart-backend/api/controllers/orders"
	"github.com/angelmondragon/grocerymart-backend/api/middleware"
	"github.com/angelmondragon/grocerymart-backend/internal/auth"
	"github.com/angelmondragon/grocerymart-backend/internal/cart"
	"github.com/angelmondragon/grocerymart-backend/internal/chat"
	"github.com/angelmondragon/grocerymart-backend/internal/checkout"
	"github.com/angelmondragon/grocerymart-backend/internal/dashboard"
	"github.com/angelmondragon/grocerymart-backend/internal/notifications"
	"github.com/angelmondragon/grocerymart-backend/internal/offers"
	"github.com/angelmondragon/grocerymart-backend/internal/orders"
	product "github.com/angelmondragon/grocerymart-backend/internal/products"
	"github.com/angelmondragon/grocerymart-backend/internal/reviews"
	"github.com/angelmondragon/grocerymart-backend/internal/users"
	"github.com/angelmondragon/grocerymart-backend/internal/wishlist"
	"github.com/angelmondragon/grocerymart-backend/pkg/auth/session"
	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	"github.com/angelmondragon/grocerymart-backend/pkg/db"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/redis"
)

// Dependencies is everything the HTTP surface needs. Nil services produce
// 500 responses from their handlers rather than panics.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Sessions session.AccessSessionChecker
	Metrics  http.Handler

	Auth          auth.Service
	Register      auth.RegisterService
	AdminRegister auth.RegisterService
	Users         users.Service
	Products      product.Service
	Cart          cart.Service
	Checkout      checkout.Service
	Orders        orders.Service
	Offers        offers.Service
	Wishlist      wishlist.Service
	Reviews       reviews.Service
	Chat          chat.Service
	Dashboard     dashboard.Service
	Notifications notifications.Service
}

func NewRouter(d Dependencies) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	// Interfaces stay nil without redis so the middleware turns itself off.
	var (
		limiter     redis.RateLimiter
		idempotency middleware.ResponseStore
	)
	checks := []controllers.ReadinessCheck{{Name: "database", Pinger: d.DB}}
	if d.Redis != nil {
		limiter, idempotency = d.Redis, d.Redis
		checks = append(checks, controllers.ReadinessCheck{Name: "redis", Pinger: d.Redis})
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, checks, logg))
	})

	metricsHandler := d.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(d.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, limiter, logg)).Post("/register", controllers.AuthRegister(d.Register, d.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(d.Auth, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		if !cfg.App.IsProd() {
			r.Post("/register", controllers.AdminAuthRegister(d.AdminRegister, d.Auth, logg))
		}
		r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AdminAuthLogin(d.Auth, logg))
	})

	// Catalog browsing needs no session.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(d.Products, logg))
		r.Get("/categories", controllers.ProductCategories(d.Products, logg))
		r.Get("/{productId}", controllers.GetProduct(d.Products, logg))
		r.Get("/{productId}/recommendations", controllers.ProductRecommendations(d.Products, logg))
		r.Get("/{productId}/reviews", controllers.ListProductReviews(d.Reviews, logg))
	})
	r.Get("/api/v1/offers", controllers.ListActiveOffers(d.Offers, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
		r.Use(middleware.Idempotency(idempotency, logg))

		r.Get("/users/me", controllers.UsersMe(d.Users, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(d.Cart, logg))
			r.Delete("/", cartcontrollers.CartClear(d.Cart, logg))
			r.Post("/items", cartcontrollers.CartAddItem(d.Cart, logg))
			r.Patch("/items/{itemId}", cartcontrollers.CartSetQuantity(d.Cart, logg))
			r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(d.Cart, logg))
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", controllers.WishlistList(d.Wishlist, logg))
			r.Get("/ids", controllers.WishlistIDs(d.Wishlist, logg))
			r.Put("/{productId}", controllers.WishlistAdd(d.Wishlist, logg))
			r.Delete("/{productId}", controllers.WishlistRemove(d.Wishlist, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Place(d.Checkout, logg))
			r.Get("/", ordercontrollers.List(d.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(d.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(d.Orders, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(d.Notifications, controllers.UserInbox, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(d.Notifications, controllers.UserInbox, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(d.Notifications, controllers.UserInbox, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(d.Notifications, controllers.UserInbox, logg))
		})

		r.Post("/reviews", controllers.CreateReview(d.Reviews, logg))
		r.Post("/chat", controllers.ChatReply(d.Chat, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
		r.Use(middleware.RequireRole(logg, enums.SystemRoleAdmin))
		r.Use(middleware.Idempotency(idempotency, logg))

		r.Get("/dashboard/stats", controllers.AdminDashboardStats(d.Dashboard, logg))

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateProduct(d.Products, logg))
			r.Patch("/{productId}", controllers.AdminUpdateProduct(d.Products, logg))
			r.Delete("/{productId}", controllers.AdminDeleteProduct(d.Products, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.AdminList(d.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.AdminDetail(d.Orders, logg))
			r.Patch("/{orderId}/status", ordercontrollers.AdminSetStatus(d.Orders, logg))
		})

		r.Route("/offers", func(r chi.Router) {
			r.Get("/", controllers.AdminListOffers(d.Offers, logg))
			r.Post("/", controllers.AdminCreateOffer(d.Offers, logg))
			r.Get("/{offerId}", controllers.AdminGetOffer(d.Offers, logg))
			r.Patch("/{offerId}", controllers.AdminUpdateOffer(d.Offers, logg))
			r.Delete("/{offerId}", controllers.AdminDeleteOffer(d.Offers, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(d.Notifications, controllers.AdminInbox, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(d.Notifications, controllers.AdminInbox, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(d.Notifications, controllers.AdminInbox, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(d.Notifications, controllers.AdminInbox, logg))
		})
	})

	return r
}
