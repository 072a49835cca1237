package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.openly.dev/pointy"

	"github.com/mintex/exchange-core/backend/internal/core/ports"
	"github.com/mintex/exchange-core/backend/internal/entities"
	"github.com/mintex/exchange-core/backend/internal/usecases"
)

var _ OrderService = (*usecases.OrderService)(nil)

type OrderService interface {
	CreateOrder(ctx context.Context, req usecases.CreateOrderRequest, market entities.Market, depth []usecases.PriceLevel) (*entities.Order, error)
	Submit(ctx context.Context, orderID int64) usecases.Transition
	Cancel(ctx context.Context, orderID int64) usecases.Transition
	GetOrder(ctx context.Context, id int64) (*entities.Order, error)
	ListOrders(ctx context.Context, memberID int64, marketID string, state entities.OrderState) ([]entities.Order, error)
}

type LedgerService interface {
	Deposit(ctx context.Context, memberID int64, currency string, amount decimal.Decimal) error
	FindAccounts(ctx context.Context, memberID int64) ([]entities.Account, error)
}

type HTTPHandler struct {
	logger  *slog.Logger
	markets ports.MarketProvider
	depth   ports.DepthProvider
	orders  OrderService
	ledger  LedgerService
}

func NewHTTPHandler(logger *slog.Logger, markets ports.MarketProvider, depth ports.DepthProvider, orders OrderService, ledger LedgerService) *HTTPHandler {
	return &HTTPHandler{
		logger:  logger,
		markets: markets,
		depth:   depth,
		orders:  orders,
		ledger:  ledger,
	}
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	// Orders
	router.HandleFunc("/api/orders", h.CreateOrder).Methods("POST")
	router.HandleFunc("/api/orders", h.ListOrders).Methods("GET")
	router.HandleFunc("/api/orders/{orderId:[0-9]+}", h.GetOrder).Methods("GET")
	router.HandleFunc("/api/orders/{orderId:[0-9]+}/cancel", h.CancelOrder).Methods("POST")

	// Markets
	router.HandleFunc("/api/markets", h.GetMarkets).Methods("GET")

	// Accounts
	router.HandleFunc("/api/accounts", h.GetAccounts).Methods("GET")
	router.HandleFunc("/api/accounts/deposit", h.Deposit).Methods("POST")
}

type createOrderRequest struct {
	MemberID     int64   `json:"member_id"`
	Market       string  `json:"market"`
	Side         string  `json:"side"`
	OrdType      string  `json:"ord_type"`
	Price        *string `json:"price"`
	Volume       string  `json:"volume"`
	OriginVolume *string `json:"origin_volume"`
}

// CreateOrder persists a new pending order and immediately submits it. The
// submit outcome is advisory; the order's state field is the authoritative
// signal, so submission failures still answer 201 with the rejected order.
func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	market, err := h.markets.Get(req.Market)
	if err != nil {
		http.Error(w, "Market not found", http.StatusNotFound)
		return
	}

	intake, err := h.buildIntakeRequest(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	// A market order is estimated against the opposite side of the book.
	var depth []usecases.PriceLevel
	if intake.OrdType == entities.TypeMarket {
		depth = h.depth.Levels(market.ID, oppositeSide(intake.Side))
	}

	order, err := h.orders.CreateOrder(r.Context(), intake, market, depth)
	if err != nil {
		h.logger.Error("[Create Order] Error creating order", "error", err, "member_id", req.MemberID, "market", req.Market)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	transition := h.orders.Submit(r.Context(), order.ID)

	// Re-read for the post-submit state
	if updated, err := h.orders.GetOrder(r.Context(), order.ID); err == nil {
		order = updated
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"order":  order,
		"submit": transition.Outcome.String(),
	})
}

func (h *HTTPHandler) buildIntakeRequest(req createOrderRequest) (usecases.CreateOrderRequest, error) {
	intake := usecases.CreateOrderRequest{
		MemberID: req.MemberID,
		Side:     entities.OrderSide(req.Side),
		OrdType:  entities.OrderType(req.OrdType),
	}

	volume, err := decimal.NewFromString(req.Volume)
	if err != nil {
		return intake, errors.New("invalid volume")
	}
	intake.Volume = volume

	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil {
			return intake, errors.New("invalid price")
		}
		intake.Price = pointy.Pointer(price)
	}

	if req.OriginVolume != nil {
		origin, err := decimal.NewFromString(*req.OriginVolume)
		if err != nil {
			return intake, errors.New("invalid origin_volume")
		}
		intake.OriginVolume = pointy.Pointer(origin)
	}

	return intake, nil
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["orderId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid order id", http.StatusBadRequest)
		return
	}

	transition := h.orders.Cancel(r.Context(), orderID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"order_id": orderID,
		"cancel":   transition.Outcome.String(),
	})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["orderId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid order id", http.StatusBadRequest)
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID)
	if errors.Is(err, entities.ErrOrderNotFound) {
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	memberIDParam := r.URL.Query().Get("member_id")
	if memberIDParam == "" {
		http.Error(w, "Missing required parameters: member_id", http.StatusBadRequest)
		return
	}

	memberID, err := strconv.ParseInt(memberIDParam, 10, 64)
	if err != nil {
		http.Error(w, "Invalid member id", http.StatusBadRequest)
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), memberID,
		r.URL.Query().Get("market"),
		entities.OrderState(r.URL.Query().Get("state")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

func (h *HTTPHandler) GetMarkets(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.markets.All()); err != nil {
		h.logger.Error("Error encoding markets", "error", err)
	}
}

type depositRequest struct {
	MemberID int64  `json:"member_id"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

func (h *HTTPHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "Invalid amount", http.StatusUnprocessableEntity)
		return
	}

	if err := h.ledger.Deposit(r.Context(), req.MemberID, req.Currency, amount); err != nil {
		h.logger.Error("[Deposit] Error crediting account", "error", err, "member_id", req.MemberID)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"status": "success"})
}

func (h *HTTPHandler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	memberIDParam := r.URL.Query().Get("member_id")
	if memberIDParam == "" {
		http.Error(w, "Missing required parameters: member_id", http.StatusBadRequest)
		return
	}

	memberID, err := strconv.ParseInt(memberIDParam, 10, 64)
	if err != nil {
		http.Error(w, "Invalid member id", http.StatusBadRequest)
		return
	}

	accounts, err := h.ledger.FindAccounts(r.Context(), memberID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accounts)
}

func oppositeSide(side entities.OrderSide) entities.OrderSide {
	if side == entities.SideBid {
		return entities.SideAsk
	}
	return entities.SideBid
}
