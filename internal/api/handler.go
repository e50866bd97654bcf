package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/bitcoinuniversity/invest/internal/cart"
	"github.com/bitcoinuniversity/invest/internal/checkout"
	"github.com/bitcoinuniversity/invest/internal/domain"
	"github.com/bitcoinuniversity/invest/internal/ledger"
	"github.com/bitcoinuniversity/invest/internal/relay"
	"github.com/bitcoinuniversity/invest/internal/submit"
)

// WalletHeader carries the caller's wallet address. Requests without it use the
// anonymous cart.
const WalletHeader = "X-Wallet-Address"

// Exporter pushes recent receipts to the configured spreadsheet.
type Exporter interface {
	Export(ctx context.Context) (int, error)
}

// Handler provides HTTP endpoints for the investment API.
type Handler struct {
	carts    *cart.Store
	checkout *checkout.Orchestrator
	ledger   *ledger.Service
	prober   submit.StatusProber
	exporter Exporter
}

// NewHandler creates a new API handler. prober and exporter may be nil.
func NewHandler(carts *cart.Store, orch *checkout.Orchestrator, ledgerSvc *ledger.Service, prober submit.StatusProber, exporter Exporter) *Handler {
	return &Handler{carts: carts, checkout: orch, ledger: ledgerSvc, prober: prober, exporter: exporter}
}

func identity(r *http.Request) domain.Identity {
	return domain.NormalizeIdentity(r.Header.Get(WalletHeader))
}

type cartView struct {
	Wallet      domain.Identity    `json:"wallet"`
	Items       []domain.CartItem  `json:"items"`
	TotalItems  int                `json:"totalItems"`
	TotalAmount float64            `json:"totalAmount"`
	ByCurrency  map[string]float64 `json:"byCurrency"`
}

func newCartView(id domain.Identity, items []domain.CartItem) cartView {
	if items == nil {
		items = []domain.CartItem{}
	}
	return cartView{
		Wallet:      id,
		Items:       items,
		TotalItems:  len(items),
		TotalAmount: cart.TotalAmount(items),
		ByCurrency:  cart.CurrencyBreakdown(items),
	}
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, status int) {
	id := identity(r)
	items, err := h.carts.Items(r.Context(), id)
	if err != nil {
		slog.Error("failed to load cart", "wallet", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, status, newCartView(id, items))
}

// GetCart handles GET /api/v1/cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, r, http.StatusOK)
}

type addItemRequest struct {
	TargetType  string `json:"targetType"`
	TargetID    string `json:"targetId"`
	TargetName  string `json:"targetName"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

type addItemResponse struct {
	Item  domain.CartItem `json:"item"`
	Added bool            `json:"added"`
	Cart  cartView        `json:"cart"`
}

// AddItem handles POST /api/v1/cart/items. An identical item already in the cart
// is left as is and reported with 200 instead of 201.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	targetType, err := domain.ParseTargetType(req.TargetType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := identity(r)
	item, added, err := h.carts.AddItem(r.Context(), id, cart.NewItem{
		TargetType:  targetType,
		TargetID:    req.TargetID,
		TargetName:  req.TargetName,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
	})
	if err != nil {
		slog.Error("failed to add cart item", "wallet", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items, err := h.carts.Items(r.Context(), id)
	if err != nil {
		slog.Error("failed to load cart", "wallet", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, addItemResponse{Item: item, Added: added, Cart: newCartView(id, items)})
}

// UpdateItem handles PATCH /api/v1/cart/items/{id}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id := identity(r)
	itemID := r.PathValue("id")
	item, err := h.carts.UpdateItemAmount(r.Context(), id, itemID, req.Amount)
	if err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			writeError(w, http.StatusNotFound, "cart item not found")
			return
		}
		slog.Error("failed to update cart item", "wallet", id, "item", itemID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// RemoveItem handles DELETE /api/v1/cart/items/{id}. Removing an unknown id succeeds.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if err := h.carts.RemoveItem(r.Context(), id, r.PathValue("id")); err != nil {
		slog.Error("failed to remove cart item", "wallet", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeCart(w, r, http.StatusOK)
}

// ClearCart handles DELETE /api/v1/cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if err := h.carts.Clear(r.Context(), id); err != nil {
		slog.Error("failed to clear cart", "wallet", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeCart(w, r, http.StatusOK)
}

// Checkout handles POST /api/v1/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	receipt, err := h.checkout.Checkout(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, submit.ErrWalletNotConnected), errors.Is(err, checkout.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, checkout.ErrCheckoutInProgress):
			writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, new(*checkout.SubmitError)):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			slog.Error("checkout failed", "wallet", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// GetCheckoutState handles GET /api/v1/checkout/state.
func (h *Handler) GetCheckoutState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.checkout.State(identity(r)))
}

// ListInvestments handles GET /api/v1/investments.
func (h *Handler) ListInvestments(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	receipts, err := h.ledger.Investments(r.Context(), id, parseLimit(r, 50, 500))
	if err != nil {
		slog.Error("failed to list investments", "wallet", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if receipts == nil {
		receipts = []ledger.Receipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

// GetReceipt handles GET /api/v1/receipts/{id}.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid receipt id")
		return
	}
	receipt, err := h.ledger.Receipt(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "receipt not found")
			return
		}
		slog.Error("failed to get receipt", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// GetLeaderboard handles GET /api/v1/investors/leaderboard.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.ledger.Leaderboard(r.Context(), parseLimit(r, 20, 100))
	if err != nil {
		slog.Error("failed to build leaderboard", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// GetTransactionStatus handles GET /api/v1/transactions/{id}/status.
func (h *Handler) GetTransactionStatus(w http.ResponseWriter, r *http.Request) {
	queueID := r.PathValue("id")
	if h.prober == nil || submit.IsMockHash(queueID) {
		writeError(w, http.StatusNotFound, "no status for demo transactions")
		return
	}

	status, err := h.prober.TransactionStatus(r.Context(), queueID)
	if err != nil {
		var apiErr *relay.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		slog.Error("failed to probe transaction status", "queueId", queueID, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ExportReceipts handles POST /api/v1/receipts/export.
func (h *Handler) ExportReceipts(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "export not configured")
		return
	}
	n, err := h.exporter.Export(r.Context())
	if err != nil {
		slog.Error("failed to export receipts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export receipts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"exported": n})
}

func parseLimit(r *http.Request, def, maxLimit int) int {
	limit := def
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxLimit)
		}
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
