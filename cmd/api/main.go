package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/grocerymart-backend/api"
	"github.com/angelmondragon/grocerymart-backend/api/routes"
	"github.com/angelmondragon/grocerymart-backend/internal/auth"
	"github.com/angelmondragon/grocerymart-backend/internal/cart"
	"github.com/angelmondragon/grocerymart-backend/internal/chat"
	"github.com/angelmondragon/grocerymart-backend/internal/checkout"
	"github.com/angelmondragon/grocerymart-backend/internal/dashboard"
	"github.com/angelmondragon/grocerymart-backend/internal/notifications"
	"github.com/angelmondragon/grocerymart-backend/internal/offers"
	"github.com/angelmondragon/grocerymart-backend/internal/orders"
	"github.com/angelmondragon/grocerymart-backend/internal/pricing"
	product "github.com/angelmondragon/grocerymart-backend/internal/products"
	"github.com/angelmondragon/grocerymart-backend/internal/reviews"
	"github.com/angelmondragon/grocerymart-backend/internal/users"
	"github.com/angelmondragon/grocerymart-backend/internal/wishlist"
	"github.com/angelmondragon/grocerymart-backend/pkg/auth/session"
	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	"github.com/angelmondragon/grocerymart-backend/pkg/db"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/metrics"
	"github.com/angelmondragon/grocerymart-backend/pkg/migrate"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox"
	"github.com/angelmondragon/grocerymart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing clients", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, sessionManager)
	if err != nil {
		logg.Error(ctx, "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := api.NewServer(addr, routes.NewRouter(*deps))
	if err := api.Serve(ctx, server, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, sessions *session.Manager) (*routes.Dependencies, error) {
	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	calc := pricing.NewCalculator(cfg.Pricing)

	userRepo := users.NewRepository(conn)
	productRepo := product.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	offerRepo := offers.NewRepository(conn)
	notificationRepo := notifications.NewRepository(conn)
	catalogCache := product.NewCache(redisClient, cfg.Catalog, logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return nil, err
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{DB: dbClient, PasswordConfig: cfg.Password})
	if err != nil {
		return nil, err
	}
	adminRegisterService, err := auth.NewAdminRegisterService(auth.RegisterServiceParams{DB: dbClient, PasswordConfig: cfg.Password, Role: enums.SystemRoleAdmin})
	if err != nil {
		return nil, err
	}
	userService, err := users.NewService(userRepo)
	if err != nil {
		return nil, err
	}

	productService, err := product.NewService(productRepo, catalogCache, logg)
	if err != nil {
		return nil, err
	}
	cartService, err := cart.NewService(cartRepo, productRepo, calc)
	if err != nil {
		return nil, err
	}
	checkoutService, err := checkout.NewService(checkout.Params{
		Tx:         dbClient,
		Carts:      cartRepo,
		Products:   productRepo,
		Offers:     offerRepo,
		Orders:     orderRepo,
		Users:      userRepo,
		Outbox:     emitter,
		Catalog:    catalogCache,
		Calculator: calc,
		Metrics:    metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer),
		Config:     cfg.Checkout,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}

	policy, err := orders.ParseStatusPolicy(cfg.Orders.StatusPolicy)
	if err != nil {
		return nil, err
	}
	var orderOpts []orders.Option
	if cfg.Checkout.DecrementStock {
		orderOpts = append(orderOpts, orders.WithStockRestore(catalogCache))
	}
	orderService, err := orders.NewService(orderRepo, dbClient, emitter, policy, logg, orderOpts...)
	if err != nil {
		return nil, err
	}
	offerService, err := offers.NewService(offerRepo, dbClient, emitter, logg)
	if err != nil {
		return nil, err
	}
	wishlistService, err := wishlist.NewService(wishlist.ServiceParams{
		WishlistRepo: wishlist.NewRepository(conn),
		ProductRepo:  productRepo,
	})
	if err != nil {
		return nil, err
	}
	reviewService, err := reviews.NewService(reviews.Params{
		Repo:     reviews.NewRepository(conn),
		Products: productRepo,
		Orders:   orderRepo,
		Users:    userRepo,
		Tx:       dbClient,
		Catalog:  catalogCache,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}
	notificationService, err := notifications.NewService(notificationRepo)
	if err != nil {
		return nil, err
	}

	// A nil *openai.Client must not reach the Completer interface.
	var completer chat.Completer
	if client := chat.NewClient(cfg.Chat); client != nil {
		completer = client
	} else {
		logg.Warn(context.Background(), "openai api key not set, chat answers with fallback")
	}
	chatService, err := chat.NewService(completer, productRepo, redisClient, cfg.Chat, logg)
	if err != nil {
		return nil, err
	}

	dashboardService, err := dashboard.NewService(dashboard.Params{
		Products:          productRepo,
		Orders:            orderRepo,
		Offers:            offerRepo,
		Notifications:     notificationService,
		LowStockThreshold: cfg.Cron.LowStockThreshold,
	})
	if err != nil {
		return nil, err
	}

	return &routes.Dependencies{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Sessions:      sessions,
		Auth:          authService,
		Register:      registerService,
		AdminRegister: adminRegisterService,
		Users:         userService,
		Products:      productService,
		Cart:          cartService,
		Checkout:      checkoutService,
		Orders:        orderService,
		Offers:        offerService,
		Wishlist:      wishlistService,
		Reviews:       reviewService,
		Chat:          chatService,
		Dashboard:     dashboardService,
		Notifications: notificationService,
	}, nil
}
