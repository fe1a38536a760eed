package chi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/storesync/webhook"
)

// postWebhook handles POST /webhooks/{provider}
func postWebhook(routers map[string]*webhook.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "provider")
		router, ok := routers[name]
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown webhook provider: %s", name))
			return
		}

		// Signatures cover these exact bytes
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		defer r.Body.Close()

		headers := make(map[string]string, len(r.Header))
		for key, values := range r.Header {
			if len(values) > 0 {
				headers[key] = values[0]
			}
		}

		res := router.Handle(r.Context(), webhook.Request{Headers: headers, RawBody: body})
		writeJSON(w, res.Status, res)
	})
}
