package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotInitialized    = errors.New("database not initialized")
	ErrInvalid           = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrUserBlocked       = errors.New("user is blocked")
	ErrAlreadyDecided    = errors.New("request already processed")
	ErrAlreadyDeclared   = errors.New("result already declared")
	ErrOpenNotDeclared   = errors.New("open result not declared")
	ErrNotDeclared       = errors.New("result not declared")
	ErrRevertOrder       = errors.New("revert the close result first")
	ErrDuplicatePhone    = errors.New("phone number already registered")
	ErrDuplicateUTR      = errors.New("payment reference already submitted")
	ErrDuplicateName     = errors.New("name already exists")
	ErrBazaarInUse       = errors.New("bazaar has bets and cannot be deleted")
	ErrBazaarInactive    = errors.New("bazaar is not active")
	ErrMarketClosed      = errors.New("betting is closed for this market")
	ErrSettlementLocked  = errors.New("settlement already in progress")
	ErrPendingWithdrawal = errors.New("a withdrawal request is already pending")
)

// isUniqueViolation reports whether err is a Postgres unique_violation,
// optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
