package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// NewServer creates an HTTP server with all routes configured.
func NewServer(port string, handler *Handler, adminAPIKey string) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      NewMux(handler, adminAPIKey),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewMux registers every route on a fresh ServeMux.
func NewMux(handler *Handler, adminAPIKey string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/cart", handler.GetCart)
	mux.HandleFunc("DELETE /api/v1/cart", handler.ClearCart)
	mux.HandleFunc("POST /api/v1/cart/items", handler.AddItem)
	mux.HandleFunc("PATCH /api/v1/cart/items/{id}", handler.UpdateItem)
	mux.HandleFunc("DELETE /api/v1/cart/items/{id}", handler.RemoveItem)

	mux.HandleFunc("POST /api/v1/checkout", handler.Checkout)
	mux.HandleFunc("GET /api/v1/checkout/state", handler.GetCheckoutState)

	mux.HandleFunc("GET /api/v1/investments", handler.ListInvestments)
	mux.HandleFunc("GET /api/v1/receipts/{id}", handler.GetReceipt)
	mux.HandleFunc("GET /api/v1/investors/leaderboard", handler.GetLeaderboard)
	mux.HandleFunc("GET /api/v1/transactions/{id}/status", handler.GetTransactionStatus)

	exportHandler := http.HandlerFunc(handler.ExportReceipts)
	if adminAPIKey != "" {
		mux.Handle("POST /api/v1/receipts/export", requireAuth(adminAPIKey, exportHandler))
	} else {
		mux.Handle("POST /api/v1/receipts/export", exportHandler)
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
