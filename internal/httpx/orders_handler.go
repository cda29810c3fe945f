package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-marketplace/internal/orders"
)

func (h *Handlers) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lp := orders.ListParams{
		Sort:     q.Get("sort"),
		Cursor:   q.Get("cursor"),
		Status:   q.Get("status"),
		Product:  q.Get("product"),
		From:     q.Get("from"),
		To:       q.Get("to"),
		Resource: q.Get("resource"),
		Seller:   q.Get("seller"),
		Customer: q.Get("customer"),
	}
	var err error
	if lp.Limit, err = queryInt(r, "limit"); err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := h.Orders.List(r.Context(), principal(r), lp)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.Orders.UpdateStatus(r.Context(), principal(r), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := h.Notifications.List(r.Context(), principal(r), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
