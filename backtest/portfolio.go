package backtest

import (
	"errors"
)

var (
	ErrInsufficientCash     = errors.New("portfolio: insufficient cash")
	ErrInsufficientHoldings = errors.New("portfolio: insufficient holdings")
)

// Portfolio is a single-asset paper account: perfect fills at the given
// price, no fees, no slippage.
type Portfolio struct {
	cash     float64
	qty      float64
	avgPrice float64
}

func NewPortfolio(startCash float64) *Portfolio {
	return &Portfolio{cash: startCash}
}

// Buy spends price*qty of cash. Spending the whole balance may leave a
// rounding residue, which is treated as zero.
func (p *Portfolio) Buy(price, qty float64) error {
	if qty <= 0 {
		return nil
	}
	cost := price * qty
	if cost > p.cash*(1+1e-12) {
		return ErrInsufficientCash
	}
	p.cash -= cost
	if p.cash < 0 {
		p.cash = 0
	}
	// simple VWAP for avg price
	p.avgPrice = (p.avgPrice*p.qty + cost) / (p.qty + qty)
	p.qty += qty
	return nil
}

func (p *Portfolio) Sell(price, qty float64) error {
	if qty <= 0 {
		return nil
	}
	if qty > p.qty {
		return ErrInsufficientHoldings
	}
	p.cash += price * qty
	p.qty -= qty
	if p.qty == 0 {
		p.avgPrice = 0
	}
	return nil
}

func (p *Portfolio) Cash() float64 { return p.cash }

// Position returns the held quantity and its average entry price.
func (p *Portfolio) Position() (qty float64, avgPrice float64) {
	return p.qty, p.avgPrice
}

// Equity values the account at price.
func (p *Portfolio) Equity(price float64) float64 {
	return p.cash + p.qty*price
}
