package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/epicerie-app/epicerie-backend/api/controllers"
	"github.com/epicerie-app/epicerie-backend/api/middleware"
	"github.com/epicerie-app/epicerie-backend/internal/addresses"
	"github.com/epicerie-app/epicerie-backend/internal/auth"
	"github.com/epicerie-app/epicerie-backend/internal/cart"
	"github.com/epicerie-app/epicerie-backend/internal/catalog"
	checkoutsvc "github.com/epicerie-app/epicerie-backend/internal/checkout"
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
	"github.com/epicerie-app/epicerie-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionVerifier session.AccessSessionChecker,
	httpMetrics *metrics.HTTPMetrics,
	authService auth.Service,
	userService users.Service,
	catalogService catalog.Service,
	packService packs.Service,
	cartService cart.Service,
	sharedOrderService sharedorder.Service,
	favoritesService favorites.Service,
	addressService addresses.Service,
	checkoutService checkoutsvc.Service,
	orderService orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.CORS(),
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
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

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))
		r.Post("/logout", controllers.AuthLogout(authService, cfg.JWT, logg))
	})

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/categories", controllers.CategoryList(catalogService, logg))
		r.Get("/products", controllers.ProductList(catalogService, logg))
		r.Get("/products/{productId}", controllers.ProductDetail(catalogService, logg))
	})

	r.Route("/api/v1/packs", func(r chi.Router) {
		r.Get("/", controllers.PackList(packService, logg))
		r.Get("/{packId}", controllers.PackDetail(packService, logg))
		r.Post("/{packId}/expand", controllers.PackExpand(packService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionVerifier, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/v1/me", controllers.AuthMe(authService, logg))
		r.Put("/v1/me", controllers.MeUpdate(userService, logg))
		r.Get("/v1/orders", controllers.OrderList(orderService, logg))

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(cartService, logg))
			r.Post("/packs", controllers.CartAddPack(cartService, logg))
			r.Delete("/packs/{packId}", controllers.CartRemovePack(cartService, logg))
		})

		r.Route("/v1/shared-orders", func(r chi.Router) {
			r.Post("/", controllers.SharedOrderCreate(sharedOrderService, logg))
			r.Get("/", controllers.SharedOrderList(sharedOrderService, logg))
			r.Get("/{orderId}", controllers.SharedOrderDetail(sharedOrderService, logg))
			r.Post("/{orderId}/join", controllers.SharedOrderJoin(sharedOrderService, logg))
			r.Post("/{orderId}/contribute", controllers.SharedOrderContribute(sharedOrderService, logg))
			r.Get("/{orderId}/totals", controllers.SharedOrderTotals(sharedOrderService, logg))
			r.Post("/{orderId}/complete", controllers.SharedOrderComplete(sharedOrderService, logg))
		})

		r.Route("/v1/favorites", func(r chi.Router) {
			r.Post("/", controllers.FavoriteSave(favoritesService, logg))
			r.Get("/", controllers.FavoriteList(favoritesService, logg))
			r.Post("/{favoriteId}/reorder", controllers.FavoriteReorder(favoritesService, logg))
			r.Delete("/{favoriteId}", controllers.FavoriteDelete(favoritesService, logg))
		})

		r.Route("/v1/addresses", func(r chi.Router) {
			r.Post("/", controllers.AddressCreate(addressService, logg))
			r.Get("/", controllers.AddressList(addressService, logg))
			r.Get("/{addressId}", controllers.AddressDetail(addressService, logg))
			r.Put("/{addressId}", controllers.AddressUpdate(addressService, logg))
			r.Post("/{addressId}/default", controllers.AddressSetDefault(addressService, logg))
			r.Delete("/{addressId}", controllers.AddressDelete(addressService, logg))
		})

		r.Route("/v1/checkout", func(r chi.Router) {
			r.Get("/quote", controllers.CheckoutQuote(checkoutService, logg))
			r.Post("/payment-intent", controllers.CheckoutCreateIntent(checkoutService, logg))
			r.Post("/confirm", controllers.CheckoutConfirm(checkoutService, logg))
			r.Route("/shared-orders/{orderId}", func(r chi.Router) {
				r.Get("/quote", controllers.CheckoutSharedOrderQuote(checkoutService, logg))
				r.Post("/payment-intent", controllers.CheckoutSharedOrderIntent(checkoutService, logg))
				r.Post("/confirm", controllers.CheckoutSharedOrderConfirm(checkoutService, logg))
			})
		})
	})

	return r
}
