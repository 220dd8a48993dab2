package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"exchange_go/internal/domain"
	"exchange_go/internal/infra"

	"github.com/gorilla/mux"
)

type ctxKey struct{}

// requireAccount rejects requests without a valid account header.
func requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseAccountID(r.Header.Get(AccountHeader))
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid "+AccountHeader)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func parseAccountID(v string) (uint64, bool) {
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func accountFrom(r *http.Request) uint64 {
	id, _ := r.Context().Value(ctxKey{}).(uint64)
	return id
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.orders.Profile(r.Context(), accountFrom(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, DataResponse{Data: profile})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := s.orders.ListOrders(r.Context(), accountFrom(r), domain.OrderFilter{
		Symbol: q.Get("symbol"),
		Side:   domain.Side(q.Get("side")),
		Status: domain.OrderStatus(q.Get("status")),
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	respondJSON(w, http.StatusOK, DataResponse{Data: orders})
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.orders.OrderBook(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if book == nil {
		book = []domain.Order{}
	}
	respondJSON(w, http.StatusOK, DataResponse{Data: book})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	order, err := s.orders.PlaceOrder(r.Context(), accountFrom(r), req.Symbol, req.Side, req.Price, req.Amount)
	if err != nil {
		respondOrderError(w, order, err)
		return
	}
	respondJSON(w, http.StatusCreated, DataResponse{Data: order})
}

func (s *Server) handleMatchOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}

	order, err := s.orders.MatchOrder(r.Context(), accountFrom(r), id)
	if err != nil {
		respondOrderError(w, order, err)
		return
	}
	respondJSON(w, http.StatusOK, DataResponse{Data: order})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}

	order, err := s.orders.CancelOrder(r.Context(), accountFrom(r), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, DataResponse{Data: order})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	result, err := s.orders.Trades(r.Context(), page, perPage)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, TradesResponse{
		Data: result.Trades,
		Meta: PageMeta{
			CurrentPage: result.Page,
			LastPage:    result.LastPage,
			PerPage:     result.PerPage,
			Total:       result.Total,
		},
	})
}

func (s *Server) handleTradeSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.orders.Summary(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, DataResponse{Data: summary})
}

// handleWebSocket attaches a push connection. Browsers cannot set headers on
// the upgrade request, so the account id may also come as ?account_id=.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw := r.Header.Get(AccountHeader)
	if raw == "" {
		raw = r.URL.Query().Get("account_id")
	}
	id, ok := parseAccountID(raw)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid account id")
		return
	}
	s.hub.ServeWS(w, r, id)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, infra.GlobalMetrics.Snapshot())
}

// ==============================
// Helpers
// ==============================

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInsufficientAsset):
		return http.StatusUnprocessableEntity
	case domain.IsRetriable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		slog.Error("REQUEST_FAILED", slog.Any("error", err))
		respondError(w, status, "internal error", "")
		return
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
	}
	respondError(w, status, http.StatusText(status), err.Error())
}

// respondOrderError answers 202 with the booked order when only its match
// attempt failed, and maps every other error as usual.
func respondOrderError(w http.ResponseWriter, order *domain.Order, err error) {
	var me *domain.MatchError
	if order == nil || !errors.As(err, &me) {
		respondDomainError(w, err)
		return
	}
	if me.IsRetriable() {
		w.Header().Set("Retry-After", "1")
	}
	respondJSON(w, http.StatusAccepted, PendingResponse{
		Data:    order,
		Error:   "match pending",
		Message: err.Error(),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
