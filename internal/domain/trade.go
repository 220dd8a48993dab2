package domain

import "time"

// Trade records one full-amount match between a buy and a sell order.
// Each order can appear in at most one trade; the unique indexes enforce it.
type Trade struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	BuyOrderID  uint64    `gorm:"not null;uniqueIndex" json:"buy_order_id"`
	SellOrderID uint64    `gorm:"not null;uniqueIndex" json:"sell_order_id"`
	Symbol      string    `gorm:"size:16;not null;index" json:"symbol"`
	Price       Units     `gorm:"not null" json:"price"`
	Quantity    Units     `gorm:"not null" json:"amount"`
	USDVolume   Units     `gorm:"column:usd_volume;not null" json:"usd_volume"`
	Commission  Units     `gorm:"not null" json:"commission"`
	CreatedAt   time.Time `json:"created_at"`
}

// TradePage is one page of the trade history, newest first.
type TradePage struct {
	Trades   []Trade `json:"data"`
	Page     int     `json:"current_page"`
	PerPage  int     `json:"per_page"`
	LastPage int     `json:"last_page"`
	Total    int64   `json:"total"`
}

// TradeSummary aggregates the whole trade history.
type TradeSummary struct {
	TotalTrades     int64  `json:"total_trades"`
	TotalVolume     Units  `json:"total_volume"`
	TotalCommission Units  `json:"total_commission"`
	CommissionRate  string `json:"commission_rate"`
}
