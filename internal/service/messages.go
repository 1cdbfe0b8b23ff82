package service

import (
	"time"

	"github.com/fairshare/ledger/internal/calculator"
	"github.com/fairshare/ledger/internal/models"
)

// Wire messages for LedgerService and AuthService. Amounts are decimal
// strings ("12.50"); parties are user IDs.

// SplitInput describes how to divide an expense.
type SplitInput struct {
	// Kind is one of the models.SplitKind values.
	Kind         string   `json:"kind"`
	Total        string   `json:"total"`
	Payer        string   `json:"payer"`
	Participants []string `json:"participants"`
	// Shares is required for custom_shares and optional for the full-amount kinds.
	Shares map[string]string `json:"shares,omitempty"`
}

type ShareMessage struct {
	Party  string `json:"party"`
	Amount string `json:"amount"`
}

type ExpenseMessage struct {
	ID           string         `json:"id"`
	Description  string         `json:"description"`
	Amount       string         `json:"amount"`
	Payer        string         `json:"payer"`
	Participants []string       `json:"participants"`
	Shares       []ShareMessage `json:"shares"`
	Split        string         `json:"split"`
	CreatedBy    string         `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
}

type SettlementMessage struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    string    `json:"amount"`
	Note      string    `json:"note,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type VoidMessage struct {
	ID        string    `json:"id"`
	ExpenseID string    `json:"expense_id"`
	Reason    string    `json:"reason,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateExpenseRequest struct {
	// ID is an optional client-chosen event ID. Retrying with the same ID
	// fails with AlreadyExists instead of recording the expense twice.
	ID          string     `json:"id,omitempty"`
	Description string     `json:"description"`
	Split       SplitInput `json:"split"`
	// OccurredAt defaults to the server time.
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

type CreateExpenseResponse struct {
	Expense ExpenseMessage `json:"expense"`
}

type PreviewSplitRequest struct {
	Split SplitInput `json:"split"`
}

type PreviewSplitResponse struct {
	// Shares lists the payer first, then the other participants in request order.
	Shares []ShareMessage `json:"shares"`
}

type RecordPaymentRequest struct {
	ID string `json:"id,omitempty"`
	// From defaults to the caller.
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Note   string `json:"note,omitempty"`
}

type RecordPaymentResponse struct {
	Settlement SettlementMessage `json:"settlement"`
	// Balance is the caller's balance with the other party afterwards;
	// positive means the other party owes the caller.
	Balance string `json:"balance"`
}

type VoidExpenseRequest struct {
	ID        string `json:"id,omitempty"`
	ExpenseID string `json:"expense_id"`
	Reason    string `json:"reason,omitempty"`
}

type VoidExpenseResponse struct {
	Void VoidMessage `json:"void"`
}

type GetBalanceRequest struct {
	Counterparty string `json:"counterparty"`
}

type GetBalanceResponse struct {
	Counterparty string `json:"counterparty"`
	// Amount is positive when the counterparty owes the caller.
	Amount string `json:"amount"`
}

type GetSummaryRequest struct{}

type CounterpartyBalanceMessage struct {
	Counterparty string `json:"counterparty"`
	Amount       string `json:"amount"`
}

type GetSummaryResponse struct {
	Balances    []CounterpartyBalanceMessage `json:"balances"`
	TotalOwedTo string                       `json:"total_owed_to"`
	TotalOwedBy string                       `json:"total_owed_by"`
	Net         string                       `json:"net"`
}

type SuggestSettlementsRequest struct{}

type PaymentSuggestion struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type SuggestSettlementsResponse struct {
	Payments []PaymentSuggestion `json:"payments"`
}

type ListActivityRequest struct {
	// Limit caps the number of items; zero means the default page size.
	Limit int `json:"limit,omitempty"`
}

type ActivityItem struct {
	EventID string `json:"event_id"`
	// Kind is "expense", "settlement" or "void".
	Kind    string `json:"kind"`
	Summary string `json:"summary"`
	Amount  string `json:"amount"`
	// Effect is how the event moved the caller's net position.
	Effect     string    `json:"effect"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ActivityDay struct {
	// Date is the UTC calendar day, "2006-01-02".
	Date  string         `json:"date"`
	Items []ActivityItem `json:"items"`
}

type ListActivityResponse struct {
	Days []ActivityDay `json:"days"`
}

type SearchExpensesRequest struct {
	Query string `json:"query"`
}

type SearchExpensesResponse struct {
	Expenses []ExpenseMessage `json:"expenses"`
}

type ListNotificationsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type NotificationMessage struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type ListNotificationsResponse struct {
	Notifications []NotificationMessage `json:"notifications"`
}

type RebuildBalancesRequest struct{}

type PairBalanceMessage struct {
	A      string `json:"a"`
	B      string `json:"b"`
	Amount string `json:"amount"`
}

type RebuildBalancesResponse struct {
	Events int `json:"events"`
	Pairs  int `json:"pairs"`
	// Drift lists the pairs the cache had wrong, with their correct amounts.
	Drift []PairBalanceMessage `json:"drift"`
}

type UserMessage struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type RegisterResponse struct {
	User  UserMessage `json:"user"`
	Token string      `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  UserMessage `json:"user"`
	Token string      `json:"token"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User UserMessage `json:"user"`
}

func expenseMessage(e *models.Expense) ExpenseMessage {
	return ExpenseMessage{
		ID:           e.ID,
		Description:  e.Description,
		Amount:       e.Amount.String(),
		Payer:        string(e.Payer),
		Participants: partyStrings(e.Participants),
		Shares:       orderedShares(e.Payer, e.Participants, e.Shares),
		Split:        string(e.Split),
		CreatedBy:    string(e.CreatedBy),
		CreatedAt:    e.CreatedAt,
	}
}

func settlementMessage(s *models.Settlement) SettlementMessage {
	return SettlementMessage{
		ID:        s.ID,
		From:      string(s.From),
		To:        string(s.To),
		Amount:    s.Amount.String(),
		Note:      s.Note,
		CreatedBy: string(s.CreatedBy),
		CreatedAt: s.CreatedAt,
	}
}

func voidMessage(v *models.ExpenseVoid) VoidMessage {
	return VoidMessage{
		ID:        v.ID,
		ExpenseID: v.ExpenseID,
		Reason:    v.Reason,
		CreatedBy: string(v.CreatedBy),
		CreatedAt: v.CreatedAt,
	}
}

func userMessage(u *models.User) UserMessage {
	return UserMessage{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   time.Unix(u.CreatedAt, 0).UTC(),
	}
}

func pairMessages(pairs []calculator.PairBalance) []PairBalanceMessage {
	out := make([]PairBalanceMessage, len(pairs))
	for i, p := range pairs {
		out[i] = PairBalanceMessage{A: string(p.A), B: string(p.B), Amount: p.Amount.String()}
	}
	return out
}

func partyStrings(parties []models.Party) []string {
	out := make([]string, len(parties))
	for i, p := range parties {
		out[i] = string(p)
	}
	return out
}
