package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/epicerie-app/epicerie-backend/api/routes"
	"github.com/epicerie-app/epicerie-backend/internal/addresses"
	"github.com/epicerie-app/epicerie-backend/internal/auth"
	"github.com/epicerie-app/epicerie-backend/internal/cart"
	"github.com/epicerie-app/epicerie-backend/internal/catalog"
	"github.com/epicerie-app/epicerie-backend/internal/checkout"
	"github.com/epicerie-app/epicerie-backend/internal/favorites"
	"github.com/epicerie-app/epicerie-backend/internal/orders"
	"github.com/epicerie-app/epicerie-backend/internal/packs"
	"github.com/epicerie-app/epicerie-backend/internal/sharedorder"
	"github.com/epicerie-app/epicerie-backend/internal/users"
	"github.com/epicerie-app/epicerie-backend/pkg/auth/session"
	"github.com/epicerie-app/epicerie-backend/pkg/config"
	"github.com/epicerie-app/epicerie-backend/pkg/db"
	"github.com/epicerie-app/epicerie-backend/pkg/logger"
	"github.com/epicerie-app/epicerie-backend/pkg/metrics"
	"github.com/epicerie-app/epicerie-backend/pkg/migrate"
	"github.com/epicerie-app/epicerie-backend/pkg/redis"
	"github.com/epicerie-app/epicerie-backend/pkg/stripe"
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
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}

	gateway, err := checkout.NewStripeGateway(stripeClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway", err)
		os.Exit(1)
	}

	gdb := dbClient.DB()
	usersRepo := users.NewRepository(gdb)
	catalogRepo := catalog.NewRepository(gdb)
	cartRepo := cart.NewRepository(gdb)
	orderRepo := sharedorder.NewRepository(gdb)
	favoritesRepo := favorites.NewRepository(gdb)
	addressesRepo := addresses.NewRepository(gdb)
	historyRepo := orders.NewRepository(gdb)

	authService, err := auth.NewService(usersRepo, sessionManager, cfg.JWT, cfg.Password, cfg.Profile, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	userService, err := users.NewService(usersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	packService, err := packs.NewService(packs.NewRepository(gdb))
	if err != nil {
		logg.Error(context.Background(), "failed to create pack service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, catalogRepo, packService, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	sharedOrderService, err := sharedorder.NewService(orderRepo, cartRepo, dbClient, cfg.SharedOrder.ExpiryWindow)
	if err != nil {
		logg.Error(context.Background(), "failed to create shared order service", err)
		os.Exit(1)
	}

	favoritesService, err := favorites.NewService(favoritesRepo, cartRepo, cartService, catalogRepo, packService)
	if err != nil {
		logg.Error(context.Background(), "failed to create favorites service", err)
		os.Exit(1)
	}

	addressService, err := addresses.NewService(addressesRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create address service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(gateway, cartRepo, cartService, sharedOrderService, catalogRepo, historyRepo, dbClient, cfg.Stripe.Currency)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(historyRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			httpMetrics,
			authService,
			userService,
			catalogService,
			packService,
			cartService,
			sharedOrderService,
			favoritesService,
			addressService,
			checkoutService,
			orderService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
