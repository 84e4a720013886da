package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ledgerEntry describes one wallet movement and the ledger row it writes.
type ledgerEntry struct {
	UserID       string
	Delta        decimal.Decimal
	Type         TxType
	ReferenceID  string
	Note         string
	CreatedBy    string
	RequireFunds bool
}

// applyWalletChange moves the user's balance by Delta and appends the
// matching ledger row inside tx. With RequireFunds set, a change that
// would take the balance below zero fails with ErrInsufficientFunds.
func applyWalletChange(ctx context.Context, tx pgx.Tx, e ledgerEntry) (decimal.Decimal, error) {
	query := `
		UPDATE users SET balance = balance + $1::numeric, updated_at = NOW()
		WHERE id = $2
		RETURNING balance::text
	`
	if e.RequireFunds {
		query = `
			UPDATE users SET balance = balance + $1::numeric, updated_at = NOW()
			WHERE id = $2 AND balance + $1::numeric >= 0
			RETURNING balance::text
		`
	}

	var balanceStr string
	err := tx.QueryRow(ctx, query, moneyArg(e.Delta), e.UserID).Scan(&balanceStr)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, e.UserID).Scan(&exists); err != nil {
			return decimal.Zero, fmt.Errorf("failed to check user: %w", err)
		}
		if !exists {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, ErrInsufficientFunds
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}
	balance := money(balanceStr)

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, balance_after, reference_id, note, created_by)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8)
	`, uuid.NewString(), e.UserID, string(e.Type), moneyArg(e.Delta), moneyArg(balance), e.ReferenceID, e.Note, e.CreatedBy)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to insert ledger row: %w", err)
	}

	return balance, nil
}

// AdjustWallet applies an admin credit (positive amount) or debit
// (negative amount). Debits cannot take the balance below zero.
func AdjustWallet(ctx context.Context, userID string, amount decimal.Decimal, note, adminID string) (decimal.Decimal, error) {
	if amount.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: amount must be non-zero", ErrInvalid)
	}
	if amount.Exponent() < -2 {
		return decimal.Zero, fmt.Errorf("%w: amount has more than 2 decimals", ErrInvalid)
	}

	txType := TxAdminCredit
	if amount.IsNegative() {
		txType = TxAdminDebit
	}

	var balance decimal.Decimal
	err := withTx(ctx, func(tx pgx.Tx) error {
		var err error
		balance, err = applyWalletChange(ctx, tx, ledgerEntry{
			UserID:       userID,
			Delta:        amount,
			Type:         txType,
			Note:         strings.TrimSpace(note),
			CreatedBy:    adminID,
			RequireFunds: amount.IsNegative(),
		})
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}

	zap.L().Info("wallet adjusted",
		zap.String("user", userID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", balance.StringFixed(2)),
		zap.String("admin", adminID),
	)
	return balance, nil
}

// GetBalance returns a user's wallet balance
func GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if PostgresPool == nil {
		return decimal.Zero, ErrNotInitialized
	}

	var balanceStr string
	err := PostgresPool.QueryRow(ctx, `SELECT balance::text FROM users WHERE id = $1`, userID).Scan(&balanceStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return money(balanceStr), nil
}

type TransactionFilter struct {
	UserID string
	Type   TxType
	Limit  int
	Offset int
}

// ListTransactions returns ledger rows, newest first.
func ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	limit, offset := pageArgs(f.Limit, f.Offset)
	rows, err := PostgresPool.Query(ctx, `
		SELECT id, user_id, type, amount::text, balance_after::text, reference_id, note, created_by, created_at
		FROM transactions
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR type = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`, f.UserID, string(f.Type), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := []Transaction{}
	for rows.Next() {
		var t Transaction
		var txType, amount, balanceAfter string
		if err := rows.Scan(&t.ID, &t.UserID, &txType, &amount, &balanceAfter, &t.ReferenceID, &t.Note, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Type = TxType(txType)
		t.Amount = money(amount)
		t.BalanceAfter = money(balanceAfter)
		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txs, nil
}
