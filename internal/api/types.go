package api

import (
	"exchange_go/internal/domain"
)

// API request and response types for REST endpoints

// PlaceOrderRequest is the body of POST /api/orders.
// Amounts may be sent as JSON strings or numbers.
type PlaceOrderRequest struct {
	Symbol string       `json:"symbol"`
	Side   domain.Side  `json:"side"`
	Price  domain.Units `json:"price"`
	Amount domain.Units `json:"amount"`
}

// DataResponse wraps every successful payload.
type DataResponse struct {
	Data any `json:"data"`
}

// PendingResponse is returned when an order was booked but its match attempt
// failed. The order is open and POST /api/orders/{id}/match retries it.
type PendingResponse struct {
	Data    *domain.Order `json:"data"`
	Error   string        `json:"error"`
	Message string        `json:"message,omitempty"`
}

// PageMeta describes one page of a listing.
type PageMeta struct {
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
}

// TradesResponse is the body of GET /api/trades.
type TradesResponse struct {
	Data []domain.Trade `json:"data"`
	Meta PageMeta       `json:"meta"`
}

// ErrorResponse represents an error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
