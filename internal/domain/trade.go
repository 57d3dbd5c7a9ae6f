package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeRecord immutable record of an executed rebalancing.
type TradeRecord struct {
	ID   string    `json:"id"`
	Time time.Time `json:"time"`
	// Pair trading pair ticker the price was observed on.
	Pair   string `json:"pair"`
	Action Action `json:"action"`
	// Price executed price in the base currency.
	Price decimal.Decimal `json:"price"`
	// Amount quantity of the coin bought or sold.
	Amount decimal.Decimal `json:"amount"`
	// Value quantity of the base currency spent or received.
	Value decimal.Decimal `json:"value"`
}

// NewTradeRecord creates a record with a fresh id.
func NewTradeRecord(ts time.Time, pair string, action Action, price, amount, value decimal.Decimal) TradeRecord {
	return TradeRecord{
		ID:     uuid.New().String(),
		Time:   ts,
		Pair:   pair,
		Action: action,
		Price:  price,
		Amount: amount,
		Value:  value,
	}
}

// String returns a human-readable string representation.
func (t *TradeRecord) String() string {
	return fmt.Sprintf("[%s] %s %s at %s", t.Pair, t.Action.String(), t.Amount.StringFixed(6), t.Price.StringFixed(2))
}
