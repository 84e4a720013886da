package db

import (
	"time"

	"sitaraServer/game"

	"github.com/shopspring/decimal"
)

type BetStatus string

const (
	BetPending BetStatus = "pending"
	BetWon     BetStatus = "won"
	BetLost    BetStatus = "lost"
)

// RequestStatus is the lifecycle of withdrawal and payment requests.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

func (s RequestStatus) Valid() bool {
	return s == RequestPending || s == RequestApproved || s == RequestRejected
}

// TxType is the kind of a ledger row.
type TxType string

const (
	TxBet              TxType = "bet"
	TxWin              TxType = "win"
	TxWinReversal      TxType = "win_reversal"
	TxDeposit          TxType = "deposit"
	TxWithdrawal       TxType = "withdrawal"
	TxWithdrawalRefund TxType = "withdrawal_refund"
	TxAdminCredit      TxType = "admin_credit"
	TxAdminDebit       TxType = "admin_debit"
)

type Admin struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type User struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Phone        string          `json:"phone"`
	PasswordHash string          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
	Blocked      bool            `json:"blocked"`
	FCMToken     string          `json:"-"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type Bazaar struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	OpenTime       string    `json:"openTime"`  // HH:MM
	CloseTime      string    `json:"closeTime"` // HH:MM
	ClosedWeekdays []int     `json:"closedWeekdays"`
	Active         bool      `json:"active"`
	SortOrder      int       `json:"sortOrder"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Result is a bazaar's result row with the derived board values filled in.
type Result struct {
	BazaarID        string     `json:"bazaarId"`
	BazaarName      string     `json:"bazaarName"`
	Date            string     `json:"date"`
	OpenPanna       string     `json:"openPanna"`
	ClosePanna      string     `json:"closePanna"`
	OpenAnk         string     `json:"openAnk"`
	CloseAnk        string     `json:"closeAnk"`
	Jodi            string     `json:"jodi"`
	Display         string     `json:"display"`
	OpenDeclaredAt  *time.Time `json:"openDeclaredAt,omitempty"`
	CloseDeclaredAt *time.Time `json:"closeDeclaredAt,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Game returns the result halves for settlement.
func (r *Result) Game() game.Result {
	return game.Result{OpenPanna: r.OpenPanna, ClosePanna: r.ClosePanna}
}

func (r *Result) fillDerived() {
	g := r.Game()
	r.OpenAnk = g.OpenAnk()
	r.CloseAnk = g.CloseAnk()
	r.Jodi = g.Jodi()
	r.Display = g.String()
}

type Bet struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	UserName   string          `json:"userName,omitempty"`
	BazaarID   string          `json:"bazaarId"`
	BazaarName string          `json:"bazaarName"`
	Date       string          `json:"date"`
	GameType   game.GameType   `json:"gameType"`
	Session    game.Session    `json:"session"`
	SettlesOn  game.Session    `json:"settlesOn"`
	Number     string          `json:"number"`
	Amount     decimal.Decimal `json:"amount"`
	Status     BetStatus       `json:"status"`
	WinAmount  decimal.Decimal `json:"winAmount"`
	SettledAt  *time.Time      `json:"settledAt,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Transaction struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	Type         TxType          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	ReferenceID  string          `json:"referenceId"`
	Note         string          `json:"note"`
	CreatedBy    string          `json:"createdBy"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type Withdrawal struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	UserName       string          `json:"userName,omitempty"`
	UserPhone      string          `json:"userPhone,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	AccountDetails string          `json:"accountDetails"`
	Status         RequestStatus   `json:"status"`
	AdminNote      string          `json:"adminNote"`
	ProcessedBy    string          `json:"processedBy"`
	ProcessedAt    *time.Time      `json:"processedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type Payment struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	UserName    string          `json:"userName,omitempty"`
	UserPhone   string          `json:"userPhone,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	UTR         string          `json:"utr"`
	Status      RequestStatus   `json:"status"`
	AdminNote   string          `json:"adminNote"`
	ProcessedBy string          `json:"processedBy"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Notification with an empty UserID is a broadcast.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	UserID    string    `json:"userId,omitempty"`
	SentBy    string    `json:"sentBy"`
	Pushed    bool      `json:"pushed"`
	CreatedAt time.Time `json:"createdAt"`
}

type DashboardStats struct {
	TotalUsers         int             `json:"totalUsers"`
	BlockedUsers       int             `json:"blockedUsers"`
	NewUsersToday      int             `json:"newUsersToday"`
	WalletFloat        decimal.Decimal `json:"walletFloat"`
	BetsToday          int             `json:"betsToday"`
	StakeToday         decimal.Decimal `json:"stakeToday"`
	WinningsToday      decimal.Decimal `json:"winningsToday"`
	PendingWithdrawals int             `json:"pendingWithdrawals"`
	PendingWithdrawSum decimal.Decimal `json:"pendingWithdrawSum"`
	PendingPayments    int             `json:"pendingPayments"`
	ActiveBazaars      int             `json:"activeBazaars"`
	GeneratedAt        time.Time       `json:"generatedAt"`
}
