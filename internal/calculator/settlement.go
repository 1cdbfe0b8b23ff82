package calculator

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fairshare/ledger/internal/models"
	"github.com/fairshare/ledger/internal/money"
)

// SettlementProcessor turns settle-up input into a Settlement and folds it
// into a Ledger. It performs no I/O; persisting the settlement and notifying
// the parties is up to the caller.
type SettlementProcessor struct {
	ledger *Ledger
	now    func() time.Time
	newID  func() string
}

// ProcessorOption configures a SettlementProcessor.
type ProcessorOption func(*SettlementProcessor)

// WithClock overrides the settlement timestamp source.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *SettlementProcessor) { p.now = now }
}

// WithIDGenerator overrides how settlement IDs are generated.
func WithIDGenerator(newID func() string) ProcessorOption {
	return func(p *SettlementProcessor) { p.newID = newID }
}

// NewSettlementProcessor creates a processor that applies settlements to ledger.
func NewSettlementProcessor(ledger *Ledger, opts ...ProcessorOption) *SettlementProcessor {
	p := &SettlementProcessor{
		ledger: ledger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PaymentRequest is raw settle-up input.
type PaymentRequest struct {
	From       models.Party
	To         models.Party
	AmountText string
	Note       string
	CreatedBy  models.Party
}

// RecordPayment records that from paid to the amount written in amountText.
func (p *SettlementProcessor) RecordPayment(from, to models.Party, amountText string) (models.Settlement, BalanceDelta, error) {
	return p.Record(PaymentRequest{From: from, To: to, AmountText: amountText, CreatedBy: from})
}

// Record validates req, builds the settlement and applies it to the ledger.
func (p *SettlementProcessor) Record(req PaymentRequest) (models.Settlement, BalanceDelta, error) {
	settlement, err := p.Prepare(req)
	if err != nil {
		return models.Settlement{}, BalanceDelta{}, err
	}

	delta, err := p.ledger.ApplySettlement(settlement)
	if err != nil {
		return models.Settlement{}, BalanceDelta{}, err
	}
	return settlement, delta, nil
}

// Prepare validates req and builds the settlement without touching any
// ledger. A processor used only for Prepare may have a nil ledger.
//
// Errors: ErrSameParty when From == To, ErrParse for unreadable amounts,
// ErrNonPositiveAmount for amounts <= 0.
func (p *SettlementProcessor) Prepare(req PaymentRequest) (models.Settlement, error) {
	if req.From == "" || req.To == "" {
		return models.Settlement{}, fmt.Errorf("%w: from and to are required", ErrInvalidEvent)
	}
	if !req.From.Valid() || !req.To.Valid() {
		return models.Settlement{}, fmt.Errorf("%w: invalid party in %q -> %q", ErrInvalidEvent, req.From, req.To)
	}
	if req.From == req.To {
		return models.Settlement{}, fmt.Errorf("%w: %q", ErrSameParty, req.From)
	}

	amount, err := money.Parse(req.AmountText)
	if err != nil {
		return models.Settlement{}, err
	}
	if !amount.IsPositive() {
		return models.Settlement{}, fmt.Errorf("%w: %s", ErrNonPositiveAmount, amount)
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = req.From
	}

	return models.Settlement{
		ID:        p.newID(),
		From:      req.From,
		To:        req.To,
		Amount:    amount,
		Note:      strings.TrimSpace(req.Note),
		CreatedBy: createdBy,
		CreatedAt: p.now(),
	}, nil
}
