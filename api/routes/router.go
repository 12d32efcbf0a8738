package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/obinnaeke/tradelane-backend/api/controllers"
	"github.com/obinnaeke/tradelane-backend/api/middleware"
	calcsvc "github.com/obinnaeke/tradelane-backend/internal/calculations"
	cartsvc "github.com/obinnaeke/tradelane-backend/internal/cart"
	checkoutsvc "github.com/obinnaeke/tradelane-backend/internal/checkout"
	inventorysvc "github.com/obinnaeke/tradelane-backend/internal/inventory"
	limitsvc "github.com/obinnaeke/tradelane-backend/internal/limits"
	ordersvc "github.com/obinnaeke/tradelane-backend/internal/orders"
	paymentsvc "github.com/obinnaeke/tradelane-backend/internal/payments"
	plansvc "github.com/obinnaeke/tradelane-backend/internal/plans"
	subscriptionsvc "github.com/obinnaeke/tradelane-backend/internal/subscriptions"
	webhooksvc "github.com/obinnaeke/tradelane-backend/internal/webhooks"
	"github.com/obinnaeke/tradelane-backend/pkg/config"
	"github.com/obinnaeke/tradelane-backend/pkg/db"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
	"github.com/obinnaeke/tradelane-backend/pkg/metrics"
	"github.com/obinnaeke/tradelane-backend/pkg/redis"
)

// Services groups everything the router mounts.
type Services struct {
	Cart          cartsvc.Service
	Checkout      checkoutsvc.Service
	Payments      paymentsvc.Service
	Webhooks      webhooksvc.Service
	Orders        ordersvc.Service
	Inventory     inventorysvc.Service
	Plans         plansvc.Service
	Subscriptions subscriptionsvc.Service
	Limits        limitsvc.Service
	Calculations  calcsvc.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger db.Pinger,
	redisClient *redis.Client,
	httpMetrics *metrics.HTTPMetrics,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)
	if httpMetrics != nil {
		r.Use(middleware.Metrics(httpMetrics))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(dbPinger, redisClient, logg))
	})

	// Processor callbacks authenticate by signature, not bearer token.
	r.Route("/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimit("webhook", cfg.RateLimit.WebhookLimit, cfg.RateLimit.WebhookWindow, redisClient, logg))
		r.Post("/payments", controllers.PaymentWebhook(svcs.Webhooks, svcs.Payments, logg))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Use(middleware.RateLimit("write", cfg.RateLimit.WriteLimit, cfg.RateLimit.WriteWindow, redisClient, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(svcs.Cart, logg))
			r.Post("/items", controllers.CartAddItem(svcs.Cart, logg))
			r.Patch("/items/{itemID}", controllers.CartUpdateItem(svcs.Cart, logg))
			r.Delete("/items/{itemID}", controllers.CartRemoveItem(svcs.Cart, logg))
			r.Delete("/", controllers.CartClear(svcs.Cart, logg))
		})
		r.Post("/checkout", controllers.Checkout(svcs.Checkout, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.PaymentCreate(svcs.Payments, logg))
			r.Get("/", controllers.PaymentList(svcs.Payments, logg))
			r.Get("/{paymentID}", controllers.PaymentGet(svcs.Payments, logg))
			r.With(middleware.RequireRole(logg, "admin")).
				Post("/{paymentID}/refunds", controllers.PaymentRefund(svcs.Payments, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersListForBuyer(svcs.Orders, logg))
			r.Get("/sold", controllers.OrdersListForSeller(svcs.Orders, logg))
			r.Get("/{orderID}", controllers.OrderGet(svcs.Orders, logg))
			r.Patch("/{orderID}/status", controllers.OrderUpdateStatus(svcs.Orders, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Post("/adjustments", controllers.InventoryAdjust(svcs.Inventory, logg))
			r.Get("/movements", controllers.InventoryMovements(svcs.Inventory, logg))
		})

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", controllers.PlanList(svcs.Plans, logg))
			r.Get("/{slug}", controllers.PlanGet(svcs.Plans, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", controllers.SubscriptionCreate(svcs.Subscriptions, logg))
			r.Get("/current", controllers.SubscriptionCurrent(svcs.Subscriptions, logg))
			r.Post("/cancel", controllers.SubscriptionCancel(svcs.Subscriptions, logg))
			r.Post("/reactivate", controllers.SubscriptionReactivate(svcs.Subscriptions, logg))
			r.Post("/change-plan", controllers.SubscriptionChangePlan(svcs.Subscriptions, logg))
		})

		r.Get("/limits/{feature}", controllers.LimitCheck(svcs.Limits, logg))

		r.Route("/calculations", func(r chi.Router) {
			r.Post("/", controllers.CalculationRecord(svcs.Calculations, logg))
			r.Get("/", controllers.CalculationList(svcs.Calculations, logg))
		})
	})

	r.Route("/v1/maintenance", func(r chi.Router) {
		r.Use(middleware.MaintenanceSecret(cfg.Maintenance.SecretHash, logg))
		r.Post("/subscriptions/sweep", controllers.SubscriptionSweep(svcs.Subscriptions, cfg.Sweep, logg))
		r.Post("/webhook-events/prune", controllers.WebhookEventPrune(svcs.Webhooks, cfg.Retention, logg))
	})

	return r
}
