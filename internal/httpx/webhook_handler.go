package httpx

import (
	"io"
	"net/http"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
)

// Stripe caps event payloads well below this.
const maxWebhookBody = 64 << 10

// stripeWebhook hands the raw body to the reconciler; the signature covers
// the exact bytes, so the body is never decoded here.
func (h *Handlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.CodeInvalidRequest, err, "webhook body could not be read"))
		return
	}
	if err := h.Checkout.HandleEvent(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
