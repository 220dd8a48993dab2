package engine

import (
	"fmt"

	"exchange_go/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	PolicySeller = "seller"
	PolicyBuyer  = "buyer"
)

// Quote is the price information a policy settles.
type Quote struct {
	BuyPrice  domain.Units // limit price of the buy order
	ExecPrice domain.Units // price of the resting order
	Quantity  domain.Units
	Reserved  domain.Units // cash the buy order locked at placement
}

// Amounts are the cash movements of one fill. Every field is non-negative.
type Amounts struct {
	Volume       domain.Units // trunc8(ExecPrice × Quantity)
	Commission   domain.Units // trunc8(Volume × rate)
	BuyerRefund  domain.Units // returned to the buyer out of the reservation
	BuyerDebit   domain.Units // taken from the buyer's free cash when the reservation falls short
	SellerCredit domain.Units // paid to the seller
}

// CommissionPolicy decides who bears the commission of a fill.
//
// The buyer always pays exactly what it owes at the execution price: its
// reservation is refunded down to that amount, or topped up from free cash.
// Two-party cash therefore drops by the commission and nothing else.
type CommissionPolicy interface {
	Name() string
	Rate() decimal.Decimal
	// Reserve returns the cash a buy order with the given notional locks.
	Reserve(notional domain.Units) (domain.Units, error)
	Settle(q Quote) (Amounts, error)
}

// NewCommissionPolicy returns the policy registered under name.
func NewCommissionPolicy(name string, rate decimal.Decimal) (CommissionPolicy, error) {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("commission rate %s out of [0, 1)", rate)
	}
	switch name {
	case PolicySeller, "":
		return &SellerPays{rate: rate}, nil
	case PolicyBuyer:
		return &BuyerPays{rate: rate}, nil
	default:
		return nil, fmt.Errorf("unknown commission policy %q", name)
	}
}

// volume computes the execution volume and its commission.
func volume(q Quote, rate decimal.Decimal) (vol, comm domain.Units, err error) {
	if q.ExecPrice > q.BuyPrice {
		return 0, 0, fmt.Errorf("execution price %s above buy limit %s: %w", q.ExecPrice, q.BuyPrice, domain.ErrLedgerInvariant)
	}
	if vol, err = q.ExecPrice.Mul(q.Quantity); err != nil {
		return 0, 0, err
	}
	if comm, err = vol.MulRate(rate); err != nil {
		return 0, 0, err
	}
	return vol, comm, nil
}

// charge settles what the buyer owes against its reservation.
func charge(a *Amounts, reserved, owed domain.Units) {
	if reserved >= owed {
		a.BuyerRefund = reserved - owed
	} else {
		a.BuyerDebit = owed - reserved
	}
}

// SellerPays deducts the commission from the seller's proceeds. The buyer owes
// the volume, and any price improvement comes back out of its reservation.
type SellerPays struct {
	rate decimal.Decimal
}

func (p *SellerPays) Name() string          { return PolicySeller }
func (p *SellerPays) Rate() decimal.Decimal { return p.rate }

func (p *SellerPays) Reserve(notional domain.Units) (domain.Units, error) {
	return notional, nil
}

func (p *SellerPays) Settle(q Quote) (Amounts, error) {
	vol, comm, err := volume(q, p.rate)
	if err != nil {
		return Amounts{}, err
	}

	a := Amounts{Volume: vol, Commission: comm, SellerCredit: vol - comm}
	charge(&a, q.Reserved, vol)
	return a, nil
}

// BuyerPays charges the commission to the buyer on top of the volume; the
// seller receives the full volume. Placement reserves the commission at the
// limit price, so the buyer is refunded the difference to the commission at
// the execution price.
type BuyerPays struct {
	rate decimal.Decimal
}

func (p *BuyerPays) Name() string          { return PolicyBuyer }
func (p *BuyerPays) Rate() decimal.Decimal { return p.rate }

func (p *BuyerPays) Reserve(notional domain.Units) (domain.Units, error) {
	comm, err := notional.MulRate(p.rate)
	if err != nil {
		return 0, err
	}
	return notional.Add(comm)
}

func (p *BuyerPays) Settle(q Quote) (Amounts, error) {
	vol, comm, err := volume(q, p.rate)
	if err != nil {
		return Amounts{}, err
	}
	owed, err := vol.Add(comm)
	if err != nil {
		return Amounts{}, err
	}

	a := Amounts{Volume: vol, Commission: comm, SellerCredit: vol}
	charge(&a, q.Reserved, owed)
	return a, nil
}
