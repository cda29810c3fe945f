package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-marketplace/internal/checkout"
	"github.com/ariefcatur/go-marketplace/internal/orders"
	"github.com/ariefcatur/go-marketplace/internal/products"
	"github.com/ariefcatur/go-marketplace/internal/reviews"
)

func (h *Handlers) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lp := products.ListParams{
		Sort:     q.Get("sort"),
		Cursor:   q.Get("cursor"),
		Query:    q.Get("q"),
		Owner:    q.Get("owner"),
		Resource: q.Get("resource"),
		Category: q.Get("category"),
	}
	var err error
	if lp.Limit, err = queryInt(r, "limit"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if lp.PriceGTE, err = queryInt64(r, "price_gte"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if lp.PriceLTE, err = queryInt64(r, "price_lte"); err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.Products.List(r.Context(), principal(r), lp)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) createProduct(w http.ResponseWriter, r *http.Request) {
	var req products.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Products.Create(r.Context(), principal(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handlers) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req products.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Products.Update(r.Context(), principal(r), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.Products.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// placeOrder is the buy-now path. An Idempotency-Key header makes retries
// return the first order instead of placing another.
func (h *Handlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.PlaceRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	o, err := h.Orders.Place(r.Context(), principal(r), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handlers) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	s, err := h.Checkout.BuildSession(r.Context(), principal(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lp := reviews.ListParams{Sort: q.Get("sort"), Cursor: q.Get("cursor"), Rating: q.Get("rating")}
	var err error
	if lp.Limit, err = queryInt(r, "limit"); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Reviews.List(r.Context(), principal(r), chi.URLParam(r, "id"), lp)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) postReview(w http.ResponseWriter, r *http.Request) {
	var req reviews.PostRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	rv, err := h.Reviews.Post(r.Context(), principal(r), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

func (h *Handlers) updateReview(w http.ResponseWriter, r *http.Request) {
	var req reviews.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	rv, err := h.Reviews.Update(r.Context(), principal(r), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

func (h *Handlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	if err := h.Reviews.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
