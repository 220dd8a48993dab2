package domain

import (
	"time"
)

// Account represents a trader and the cash they hold, quoted in USD.
// Cash locked by open buy orders has already been taken out of Balance.
type Account struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128" json:"name"`
	Balance   Units     `gorm:"not null;default:0" json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AssetHolding is the quantity of one instrument held by one account,
// split into the part free for new sell orders and the part committed to open ones.
type AssetHolding struct {
	ID        uint64    `gorm:"primaryKey" json:"-"`
	AccountID uint64    `gorm:"not null;uniqueIndex:idx_holding_account_symbol" json:"account_id"`
	Symbol    string    `gorm:"size:16;not null;uniqueIndex:idx_holding_account_symbol" json:"symbol"`
	Available Units     `gorm:"not null;default:0" json:"available"`
	Locked    Units     `gorm:"not null;default:0" json:"locked"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Total returns available + locked.
func (h *AssetHolding) Total() (Units, error) {
	return h.Available.Add(h.Locked)
}

// Profile is an account together with all of its holdings.
type Profile struct {
	Account  Account        `json:"account"`
	Holdings []AssetHolding `json:"assets"`
}
