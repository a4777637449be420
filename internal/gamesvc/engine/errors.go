package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrGameNotFound        = errors.New("game not found")
	ErrActiveLevelNotFound = errors.New("game has no level in the required state")
	ErrLevelNotActive      = errors.New("level is not active")
	ErrLevelNotCollectable = errors.New("level is not collectable")
	ErrLevelNotInactive    = errors.New("level is not inactive")
	ErrInvalidChoice       = errors.New("chosen box is out of range")

	// ErrGameExpired is a control signal: the requested operation was
	// superseded by forced expiration.
	ErrGameExpired = errors.New("game is expired")
)

// InsufficientFundsError is returned when the ledger refuses a withdrawal.
type InsufficientFundsError struct {
	Message string
	Current decimal.Decimal
	Needed  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: have %s, need %s", e.Message, e.Current.String(), e.Needed.String())
}

type LevelNotRevealableError struct {
	Remaining int
	Limit     int
	LastLevel bool
}

func (e *LevelNotRevealableError) Error() string {
	return fmt.Sprintf("cannot reveal any boxes (remaining %d, limit %d, last level %t)", e.Remaining, e.Limit, e.LastLevel)
}

// ServiceError wraps a ledger or rate provider failure other than
// insufficient funds. Callers may retry the whole operation.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
