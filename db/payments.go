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
   PAYMENTS (DEPOSITS)
   A submitted payment carries the bank UTR. The wallet is credited only
   on approval.
========================= */

const paymentColumns = `p.id, p.user_id, u.name, u.phone, p.amount::text, p.method, p.utr,
	p.status, p.admin_note, p.processed_by, p.processed_at, p.created_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var amount, status string
	if err := row.Scan(&p.ID, &p.UserID, &p.UserName, &p.UserPhone, &amount, &p.Method, &p.UTR,
		&status, &p.AdminNote, &p.ProcessedBy, &p.ProcessedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Amount = money(amount)
	p.Status = RequestStatus(status)
	return &p, nil
}

// SubmitPayment records a deposit claim. The UTR is unique across all
// payments.
func SubmitPayment(ctx context.Context, userID string, amount decimal.Decimal, method, utr string) (*Payment, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	method = strings.TrimSpace(method)
	utr = strings.ToUpper(strings.TrimSpace(utr))
	if method == "" || utr == "" {
		return nil, fmt.Errorf("%w: method and UTR are required", ErrInvalid)
	}
	if !amount.IsPositive() || amount.Exponent() < -2 {
		return nil, fmt.Errorf("%w: amount must be positive with at most 2 decimals", ErrInvalid)
	}

	settings, err := loadSettings(ctx, PostgresPool)
	if err != nil {
		return nil, err
	}
	if amount.LessThan(settings.MinDeposit) {
		return nil, fmt.Errorf("%w: minimum deposit is %s", ErrInvalid, settings.MinDeposit.StringFixed(2))
	}

	user, err := GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Blocked {
		return nil, ErrUserBlocked
	}

	p := &Payment{
		ID:        uuid.NewString(),
		UserID:    userID,
		UserName:  user.Name,
		UserPhone: user.Phone,
		Amount:    amount,
		Method:    method,
		UTR:       utr,
		Status:    RequestPending,
	}
	err = PostgresPool.QueryRow(ctx, `
		INSERT INTO payments (id, user_id, amount, method, utr)
		VALUES ($1, $2, $3::numeric, $4, $5)
		RETURNING created_at
	`, p.ID, p.UserID, moneyArg(p.Amount), p.Method, p.UTR).Scan(&p.CreatedAt)
	if isUniqueViolation(err, "payments_utr_key") {
		return nil, ErrDuplicateUTR
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	zap.S().Infof("💰 Payment %s submitted by %s for %s (UTR %s)", p.ID, userID, amount.StringFixed(2), utr)
	return p, nil
}

// DecidePayment approves (crediting the wallet) or rejects a pending
// payment. Only pending payments change state.
func DecidePayment(ctx context.Context, id string, decision RequestStatus, note, adminID string) (*Payment, error) {
	if decision != RequestApproved && decision != RequestRejected {
		return nil, fmt.Errorf("%w: decision must be approved or rejected", ErrInvalid)
	}

	var p *Payment
	err := withTx(ctx, func(tx pgx.Tx) error {
		var userID, status, amount, utr string
		err := tx.QueryRow(ctx, `
			SELECT user_id, status, amount::text, utr FROM payments WHERE id = $1 FOR UPDATE
		`, id).Scan(&userID, &status, &amount, &utr)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock payment: %w", err)
		}
		if RequestStatus(status) != RequestPending {
			return ErrAlreadyDecided
		}

		if _, err := tx.Exec(ctx, `
			UPDATE payments SET status = $2, admin_note = $3, processed_by = $4, processed_at = NOW()
			WHERE id = $1
		`, id, string(decision), strings.TrimSpace(note), adminID); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		if decision == RequestApproved {
			if _, err := applyWalletChange(ctx, tx, ledgerEntry{
				UserID:      userID,
				Delta:       money(amount),
				Type:        TxDeposit,
				ReferenceID: id,
				Note:        "Deposit UTR " + utr,
				CreatedBy:   adminID,
			}); err != nil {
				return err
			}
		}

		p, err = scanPayment(tx.QueryRow(ctx, `
			SELECT `+paymentColumns+`
			FROM payments p JOIN users u ON u.id = p.user_id
			WHERE p.id = $1
		`, id))
		if err != nil {
			return fmt.Errorf("failed to reload payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("payment decided",
		zap.String("id", id),
		zap.String("status", string(decision)),
		zap.String("amount", p.Amount.StringFixed(2)),
		zap.String("admin", adminID),
	)
	return p, nil
}

// ListPayments filters by status and user, newest first
func ListPayments(ctx context.Context, status RequestStatus, userID string, limit, offset int) ([]Payment, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	limit, offset = pageArgs(limit, offset)
	rows, err := PostgresPool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments p JOIN users u ON u.id = p.user_id
		WHERE ($1 = '' OR p.status = $1) AND ($2 = '' OR p.user_id = $2)
		ORDER BY p.created_at DESC, p.id
		LIMIT $3 OFFSET $4
	`, string(status), userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}
