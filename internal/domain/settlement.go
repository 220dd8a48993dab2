package domain

import (
	"fmt"
	"time"
)

// Settlement is the post-commit notification for one trade. It only holds
// values copied out of the committed rows, so listeners cannot observe
// anything but what was written.
type Settlement struct {
	Trade  TradeView `json:"trade"`
	Buyer  PartyView `json:"buyer"`
	Seller PartyView `json:"seller"`
}

// TradeView is the trade part of a Settlement.
type TradeView struct {
	ID         uint64    `json:"id"`
	Symbol     string    `json:"symbol"`
	Price      Units     `json:"price"`
	Quantity   Units     `json:"quantity"`
	USDVolume  Units     `json:"usdVolume"`
	Commission Units     `json:"commission"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PartyView is one side's post-trade state.
type PartyView struct {
	AccountID uint64    `json:"accountId"`
	Balance   Units     `json:"balance"`
	Asset     AssetView `json:"asset"`
	Order     OrderView `json:"order"`
}

type AssetView struct {
	Symbol    string `json:"symbol"`
	Available Units  `json:"available"`
	Locked    Units  `json:"locked"`
}

type OrderView struct {
	ID     uint64      `json:"id"`
	Status OrderStatus `json:"status"`
}

// NewSettlement snapshots the committed rows of a match.
func NewSettlement(t *Trade,
	buyer *Account, buyerAsset *AssetHolding, buyOrder *Order,
	seller *Account, sellerAsset *AssetHolding, sellOrder *Order,
) Settlement {
	return Settlement{
		Trade: TradeView{
			ID:         t.ID,
			Symbol:     t.Symbol,
			Price:      t.Price,
			Quantity:   t.Quantity,
			USDVolume:  t.USDVolume,
			Commission: t.Commission,
			CreatedAt:  t.CreatedAt,
		},
		Buyer:  partyView(buyer, buyerAsset, buyOrder),
		Seller: partyView(seller, sellerAsset, sellOrder),
	}
}

func partyView(a *Account, h *AssetHolding, o *Order) PartyView {
	return PartyView{
		AccountID: a.ID,
		Balance:   a.Balance,
		Asset:     AssetView{Symbol: h.Symbol, Available: h.Available, Locked: h.Locked},
		Order:     OrderView{ID: o.ID, Status: o.Status},
	}
}

// AccountChannel is the private push channel of an account.
func AccountChannel(accountID uint64) string {
	return fmt.Sprintf("user.%d", accountID)
}

// Channels lists the private channels the settlement is delivered to, buyer first.
func (s Settlement) Channels() []string {
	return []string{AccountChannel(s.Buyer.AccountID), AccountChannel(s.Seller.AccountID)}
}
