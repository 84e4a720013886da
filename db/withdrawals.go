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

/* =========================
   WITHDRAWALS
   Funds are held (debited) at request time. Reject refunds them,
   approve only records the payout.
========================= */

const withdrawalColumns = `w.id, w.user_id, u.name, u.phone, w.amount::text, w.method, w.account_details,
	w.status, w.admin_note, w.processed_by, w.processed_at, w.created_at`

func scanWithdrawal(row pgx.Row) (*Withdrawal, error) {
	var w Withdrawal
	var amount, status string
	if err := row.Scan(&w.ID, &w.UserID, &w.UserName, &w.UserPhone, &amount, &w.Method, &w.AccountDetails,
		&status, &w.AdminNote, &w.ProcessedBy, &w.ProcessedAt, &w.CreatedAt); err != nil {
		return nil, err
	}
	w.Amount = money(amount)
	w.Status = RequestStatus(status)
	return &w, nil
}

// RequestWithdrawal holds the amount from the user's wallet and queues the
// request for an admin. A user may have one pending request at a time.
func RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, method, accountDetails string) (*Withdrawal, error) {
	method = strings.TrimSpace(method)
	accountDetails = strings.TrimSpace(accountDetails)
	if method == "" || accountDetails == "" {
		return nil, fmt.Errorf("%w: method and account details are required", ErrInvalid)
	}
	if !amount.IsPositive() || amount.Exponent() < -2 {
		return nil, fmt.Errorf("%w: amount must be positive with at most 2 decimals", ErrInvalid)
	}

	var w *Withdrawal
	err := withTx(ctx, func(tx pgx.Tx) error {
		settings, err := loadSettings(ctx, tx)
		if err != nil {
			return err
		}
		if amount.LessThan(settings.MinWithdrawal) {
			return fmt.Errorf("%w: minimum withdrawal is %s", ErrInvalid, settings.MinWithdrawal.StringFixed(2))
		}

		var blocked bool
		err = tx.QueryRow(ctx, `SELECT blocked FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&blocked)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}
		if blocked {
			return ErrUserBlocked
		}

		var pending bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM withdrawals WHERE user_id = $1 AND status = 'pending')
		`, userID).Scan(&pending); err != nil {
			return fmt.Errorf("failed to check pending withdrawals: %w", err)
		}
		if pending {
			return ErrPendingWithdrawal
		}

		id := uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO withdrawals (id, user_id, amount, method, account_details)
			VALUES ($1, $2, $3::numeric, $4, $5)
		`, id, userID, moneyArg(amount), method, accountDetails); err != nil {
			return fmt.Errorf("failed to insert withdrawal: %w", err)
		}

		if _, err := applyWalletChange(ctx, tx, ledgerEntry{
			UserID:       userID,
			Delta:        amount.Neg(),
			Type:         TxWithdrawal,
			ReferenceID:  id,
			Note:         "Withdrawal requested via " + method,
			RequireFunds: true,
		}); err != nil {
			return err
		}

		w, err = scanWithdrawal(tx.QueryRow(ctx, `
			SELECT `+withdrawalColumns+`
			FROM withdrawals w JOIN users u ON u.id = w.user_id
			WHERE w.id = $1
		`, id))
		if err != nil {
			return fmt.Errorf("failed to reload withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infof("💸 Withdrawal %s requested by %s for %s", w.ID, userID, w.Amount.StringFixed(2))
	return w, nil
}

// DecideWithdrawal approves or rejects a pending withdrawal. A request
// that was already decided returns ErrAlreadyDecided.
func DecideWithdrawal(ctx context.Context, id string, decision RequestStatus, note, adminID string) (*Withdrawal, error) {
	if decision != RequestApproved && decision != RequestRejected {
		return nil, fmt.Errorf("%w: decision must be approved or rejected", ErrInvalid)
	}

	var w *Withdrawal
	err := withTx(ctx, func(tx pgx.Tx) error {
		var userID, status, amount string
		err := tx.QueryRow(ctx, `
			SELECT user_id, status, amount::text FROM withdrawals WHERE id = $1 FOR UPDATE
		`, id).Scan(&userID, &status, &amount)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock withdrawal: %w", err)
		}
		if RequestStatus(status) != RequestPending {
			return ErrAlreadyDecided
		}

		if _, err := tx.Exec(ctx, `
			UPDATE withdrawals SET status = $2, admin_note = $3, processed_by = $4, processed_at = NOW()
			WHERE id = $1
		`, id, string(decision), strings.TrimSpace(note), adminID); err != nil {
			return fmt.Errorf("failed to update withdrawal: %w", err)
		}

		if decision == RequestRejected {
			if _, err := applyWalletChange(ctx, tx, ledgerEntry{
				UserID:      userID,
				Delta:       money(amount),
				Type:        TxWithdrawalRefund,
				ReferenceID: id,
				Note:        "Withdrawal rejected",
				CreatedBy:   adminID,
			}); err != nil {
				return err
			}
		}

		w, err = scanWithdrawal(tx.QueryRow(ctx, `
			SELECT `+withdrawalColumns+`
			FROM withdrawals w JOIN users u ON u.id = w.user_id
			WHERE w.id = $1
		`, id))
		if err != nil {
			return fmt.Errorf("failed to reload withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("withdrawal decided",
		zap.String("id", id),
		zap.String("status", string(decision)),
		zap.String("amount", w.Amount.StringFixed(2)),
		zap.String("admin", adminID),
	)
	return w, nil
}

// ListWithdrawals filters by status and user, newest first
func ListWithdrawals(ctx context.Context, status RequestStatus, userID string, limit, offset int) ([]Withdrawal, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	limit, offset = pageArgs(limit, offset)
	rows, err := PostgresPool.Query(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawals w JOIN users u ON u.id = w.user_id
		WHERE ($1 = '' OR w.status = $1) AND ($2 = '' OR w.user_id = $2)
		ORDER BY w.created_at DESC, w.id
		LIMIT $3 OFFSET $4
	`, string(status), userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}
	defer rows.Close()

	withdrawals := []Withdrawal{}
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawals: %w", err)
	}

	return withdrawals, nil
}
