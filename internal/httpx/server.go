package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-marketplace/internal/auth"
	"github.com/ariefcatur/go-marketplace/internal/checkout"
	"github.com/ariefcatur/go-marketplace/internal/notify"
	"github.com/ariefcatur/go-marketplace/internal/orders"
	"github.com/ariefcatur/go-marketplace/internal/paging"
	"github.com/ariefcatur/go-marketplace/internal/products"
	"github.com/ariefcatur/go-marketplace/internal/reviews"
)

type ProductService interface {
	Create(ctx context.Context, p *auth.Principal, req products.CreateRequest) (products.Product, error)
	Get(ctx context.Context, id string) (products.Product, error)
	Update(ctx context.Context, p *auth.Principal, id string, req products.UpdateRequest) (products.Product, error)
	Delete(ctx context.Context, p *auth.Principal, id string) error
	List(ctx context.Context, p *auth.Principal, lp products.ListParams) (paging.Page[products.Product], error)
}

type OrderService interface {
	Place(ctx context.Context, p *auth.Principal, productID string, req orders.PlaceRequest) (orders.Order, error)
	Get(ctx context.Context, p *auth.Principal, id string) (orders.Order, error)
	List(ctx context.Context, p *auth.Principal, lp orders.ListParams) (paging.Page[orders.Order], error)
	UpdateStatus(ctx context.Context, p *auth.Principal, id string, req orders.UpdateStatusRequest) (orders.Order, error)
}

type CheckoutService interface {
	BuildSession(ctx context.Context, p *auth.Principal, req checkout.Request) (checkout.Session, error)
	HandleEvent(ctx context.Context, payload []byte, signature string) error
}

type ReviewService interface {
	Post(ctx context.Context, p *auth.Principal, productID string, req reviews.PostRequest) (reviews.Review, error)
	Update(ctx context.Context, p *auth.Principal, productID string, req reviews.UpdateRequest) (reviews.Review, error)
	Delete(ctx context.Context, p *auth.Principal, productID string) error
	List(ctx context.Context, p *auth.Principal, productID string, lp reviews.ListParams) (reviews.ListResult, error)
}

type NotificationService interface {
	List(ctx context.Context, p *auth.Principal, limit int, cursor string) (paging.Page[notify.Notification], error)
}

// Handlers groups the services behind the API. A nil Checkout leaves the
// checkout and webhook routes unmounted.
type Handlers struct {
	Products      ProductService
	Orders        OrderService
	Checkout      CheckoutService
	Reviews       ReviewService
	Notifications NotificationService
	Log           logrus.FieldLogger
}

func NewRouter(h *Handlers, sessions auth.SessionStore) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(h.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(sessions, h.Log))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.listProducts)
			r.Post("/", h.createProduct)
			if h.Checkout != nil {
				r.Post("/checkout", h.checkout)
			}
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getProduct)
				r.Patch("/", h.updateProduct)
				r.Delete("/", h.deleteProduct)
				r.Post("/orders", h.placeOrder)
				r.Get("/reviews", h.listReviews)
				r.Post("/reviews", h.postReview)
				r.Patch("/reviews", h.updateReview)
				r.Delete("/reviews", h.deleteReview)
			})
		})

		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Patch("/orders/{id}", h.updateOrder)

		r.Get("/notifications", h.listNotifications)

		if h.Checkout != nil {
			r.Post("/webhooks/stripe", h.stripeWebhook)
		}
	})
	return r
}

// requestLogger writes one structured line per request.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"latency_ms": time.Since(start).Milliseconds(),
			}).Info("request")
		})
	}
}
