package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	CurrencyCoin = "COIN"
	SourceGames  = "games"
)

type Action string

const (
	WithdrawCoin  Action = "withdraw-coin"
	DepositCoin   Action = "deposit-coin"
	WithdrawMoney Action = "withdraw-money"
	DepositMoney  Action = "deposit-money"
)

// Transaction is one balance movement on the ledger.
type Transaction struct {
	UserID         int64
	Amount         decimal.Decimal
	Currency       string
	SourceType     string
	SourceID       int64
	IdempotencyKey string
}

// InsufficientFundsError means the user's coin or money balance is too low.
type InsufficientFundsError struct {
	CurrentValue decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("ledger: insufficient funds (current value %s)", e.CurrentValue.String())
}

// StatusError is any non-success ledger response that is not insufficient funds.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ledger: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Balances maps source id to currency to amount.
type Balances map[int64]map[string]decimal.Decimal

type DepositStatistics struct {
	Sums       map[string]decimal.Decimal `json:"sums"`
	UsersCount int64                      `json:"users_count"`
	LastUpdate string                     `json:"last_update"`
}
