// Package service exposes the ledger over connect RPC.
//
// LedgerService appends validated events to the store, keeps the balance
// cache in step with every append, and answers balance and activity queries
// for the authenticated caller. AuthService issues the tokens it requires.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/fairshare/ledger/internal/auth"
	"github.com/fairshare/ledger/internal/calculator"
	"github.com/fairshare/ledger/internal/metrics"
	"github.com/fairshare/ledger/internal/middleware"
	"github.com/fairshare/ledger/internal/models"
	"github.com/fairshare/ledger/internal/storage"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

// LedgerService implements the LedgerService RPCs.
type LedgerService struct {
	store         storage.Store
	cache         storage.BalanceCache
	notifier      Notifier
	notifications storage.NotificationStore
	users         UserDirectory
	metrics       *metrics.Metrics
	logger        *slog.Logger
	now           func() time.Time
	admins        map[models.Party]bool

	// mu serializes appends with their cache updates and with Rebuild.
	mu sync.Mutex
}

// Option configures a LedgerService.
type Option func(*LedgerService)

// WithNotifier sets where event notifications are delivered.
func WithNotifier(n Notifier) Option {
	return func(s *LedgerService) { s.notifier = n }
}

// WithNotificationStore enables ListNotifications.
func WithNotificationStore(ns storage.NotificationStore) Option {
	return func(s *LedgerService) { s.notifications = ns }
}

// WithUserDirectory resolves display names for notification text.
func WithUserDirectory(d UserDirectory) Option {
	return func(s *LedgerService) { s.users = d }
}

// WithMetrics records append and rebuild metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *LedgerService) { s.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// WithAdmins names the parties allowed to call RebuildBalances.
func WithAdmins(admins ...models.Party) Option {
	return func(s *LedgerService) {
		for _, a := range admins {
			s.admins[a] = true
		}
	}
}

// NewLedgerService creates a service over the given event log and balance cache.
func NewLedgerService(store storage.Store, cache storage.BalanceCache, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:  store,
		cache:  cache,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		admins: make(map[models.Party]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// caller returns the authenticated party or an Unauthenticated error.
func caller(ctx context.Context) (models.Party, error) {
	p := middleware.CallerParty(ctx)
	if p == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return p, nil
}

// CreateExpense resolves the split, appends the expense and updates balances.
func (s *LedgerService) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error) {
	self, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("CreateExpense request", "user_id", self, "payer", req.Msg.Split.Payer, "kind", req.Msg.Split.Kind)

	split, err := splitRequest(req.Msg.Split, self)
	if err != nil {
		return nil, s.reject("expense", err)
	}
	if !splitInvolves(split, self) {
		return nil, s.reject("expense", ErrNotInvolved)
	}

	createdAt := s.now()
	if req.Msg.OccurredAt != nil {
		createdAt = req.Msg.OccurredAt.UTC()
	}

	expense, err := calculator.NewExpense(calculator.ExpenseInput{
		ID:          req.Msg.ID,
		Description: req.Msg.Description,
		Split:       split,
		CreatedBy:   self,
		CreatedAt:   createdAt,
	})
	if err != nil {
		return nil, s.reject("expense", err)
	}
	delta, err := calculator.ExpenseDelta(expense)
	if err != nil {
		return nil, s.reject("expense", err)
	}
	s.logger.Debug("Resolved shares", "expense_id", expense.ID, "shares", fmt.Sprint(expense.Shares))

	if err := s.append(ctx, "expense", delta, func() error {
		return s.store.AppendExpense(ctx, &expense)
	}); err != nil {
		return nil, err
	}

	names := s.displayNames(ctx, self)
	s.notify(ctx, expense.ID, involvedParties(&expense, self),
		fmt.Sprintf("%s added %q (%s)", names[self], expense.Description, expense.Amount))

	return connect.NewResponse(&CreateExpenseResponse{Expense: expenseMessage(&expense)}), nil
}

// PreviewSplit resolves a split without recording anything.
func (s *LedgerService) PreviewSplit(ctx context.Context, req *connect.Request[PreviewSplitRequest]) (*connect.Response[PreviewSplitResponse], error) {
	self, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	split, err := splitRequest(req.Msg.Split, self)
	if err != nil {
		return nil, toConnectError(err)
	}
	shares, err := calculator.Resolve(split)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&PreviewSplitResponse{
		Shares: orderedShares(split.Payer, split.Participants, shares),
	}), nil
}

// RecordPayment records a settle-up payment between the caller and another party.
func (s *LedgerService) RecordPayment(ctx context.Context, req *connect.Request[RecordPaymentRequest]) (*connect.Response[RecordPaymentResponse], error) {
	self, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	from := models.Party(req.Msg.From)
	if from == "" {
		from = self
	}
	to := models.Party(req.Msg.To)
	s.logger.Info("RecordPayment request", "user_id", self, "from", from, "to", to, "amount", req.Msg.Amount)

	opts := []calculator.ProcessorOption{calculator.WithClock(s.now)}
	if req.Msg.ID != "" {
		id := req.Msg.ID
		opts = append(opts, calculator.WithIDGenerator(func() string { return id }))
	}
	settlement, err := calculator.NewSettlementProcessor(nil, opts...).Prepare(calculator.PaymentRequest{
		From:       from,
		To:         to,
		AmountText: req.Msg.Amount,
		Note:       req.Msg.Note,
		CreatedBy:  self,
	})
	if err != nil {
		return nil, s.reject("settlement", err)
	}
	if !settlement.Involves(self) {
		return nil, s.reject("settlement", ErrNotInvolved)
	}
	delta, err := calculator.SettlementDelta(settlement)
	if err != nil {
		return nil, s.reject("settlement", err)
	}

	if err := s.append(ctx, "settlement", delta, func() error {
		return s.store.AppendSettlement(ctx, &settlement)
	}); err != nil {
		return nil, err
	}

	other := settlement.To
	if other == self {
		other = settlement.From
	}
	names := s.displayNames(ctx, settlement.From, settlement.To)
	s.notify(ctx, settlement.ID, []models.Party{other},
		fmt.Sprintf("%s paid %s %s", names[settlement.From], names[settlement.To], settlement.Amount))

	balance, err := s.cache.PairBalance(ctx, self, other)
	if err != nil {
		s.logger.Error("Failed to read balance after payment", "settlement_id", settlement.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&RecordPaymentResponse{
		Settlement: settlementMessage(&settlement),
		Balance:    balance.String(),
	}), nil
}

// VoidExpense appends a void that cancels an expense the caller is part of.
func (s *LedgerService) VoidExpense(ctx context.Context, req *connect.Request[VoidExpenseRequest]) (*connect.Response[VoidExpenseResponse], error) {
	self, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("VoidExpense request", "user_id", self, "expense_id", req.Msg.ExpenseID)

	if req.Msg.ExpenseID == "" {
		return nil, s.reject("void", fmt.Errorf("%w: expense_id is required", calculator.ErrInvalidEvent))
	}
	expense, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, s.reject("void", err)
	}
	if !expense.Involves(self) {
		return nil, s.reject("void", ErrNotInvolved)
	}

	void := models.ExpenseVoid{
		ID:        req.Msg.ID,
		ExpenseID: expense.ID,
		Reason:    strings.TrimSpace(req.Msg.Reason),
		CreatedBy: self,
		CreatedAt: s.now(),
	}
	if void.ID == "" {
		void.ID = uuid.New().String()
	}
	// Replay must see the void after its expense.
	if void.CreatedAt.Before(expense.CreatedAt) {
		void.CreatedAt = expense.CreatedAt
	}

	original, err := calculator.ExpenseDelta(*expense)
	if err != nil {
		s.logger.Error("Stored expense fails validation", "expense_id", expense.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	delta := original.Neg()
	delta.EventID = void.ID

	if err := s.append(ctx, "void", delta, func() error {
		return s.store.AppendVoid(ctx, &void)
	}); err != nil {
		return nil, err
	}

	names := s.displayNames(ctx, self)
	s.notify(ctx, void.ID, involvedParties(expense, self),
		fmt.Sprintf("%s voided %q (%s)", names[self], expense.Description, expense.Amount))

	return connect.NewResponse(&VoidExpenseResponse{Void: voidMessage(&void)}), nil
}

// GetBalance returns the caller's balance with one counterparty.
func (s *LedgerService) GetBalance(ctx context.Context, req *connect.Request[GetBalanceRequest]) (*connect.Response[GetBalanceResponse], error) {
	self, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	other := models.Party(req.Msg.Counterparty)
	if other == "" {
		return nil, toConnectError(fmt.Errorf("%w: counterparty is required", calculator.ErrInvalidEvent))
	}
	if !other.Valid() {
		return nil, toConnectError(fmt.Errorf("%w: counterparty %q", calculator.ErrInvalidEvent, other))
	}
	if other == self {
		return nil, toConnectError(fmt.Errorf("%w: %q", calculator.ErrSameParty, self))
	}

	amount, err := s.cache.PairBalance(ctx, self, other)
	if err != nil {
		s.logger.Error("Failed to read pair balance", "user_id", self, "counterparty", other, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&GetBalanceResponse{
		Counterparty: string(other),
		Amount:       amount.String(),
	}), nil
}

// GetSummary returns every non-zero balance of the caller and the totals.
func (s *LedgerService) GetSummary(ctx context.Context, req *connect.Request[GetSummaryRequest]) (*connect.Response[GetSummaryResponse], error) {
	self, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	l, err := s.cachedLedger(ctx)
	if err != nil {
		return nil, err
	}

	balances := l.Balances(self)
	resp := &GetSummaryResponse{
		Balances:    make([]CounterpartyBalanceMessage, len(balances)),
		TotalOwedTo: l.TotalOwedTo(self).String(),
		TotalOwedBy: l.TotalOwedBy(self).String(),
		Net:         l.TotalOwedTo(self).Sub(l.TotalOwedBy(self)).String(),
	}
	for i, b := range balances {
		resp.Balances[i] = CounterpartyBalanceMessage{
			Counterparty: string(b.Counterparty),
			Amount:       b.Amount.String(),
		}
	}
	return connect.NewResponse(resp), nil
}

// SuggestSettlements simplifies all outstanding debts and returns the
// suggested payments the caller sends or receives.
func (s *LedgerService) SuggestSettlements(ctx context.Context, req *connect.Request[SuggestSettlementsRequest]) (*connect.Response[SuggestSettlementsResponse], error) {
	self, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	l, err := s.cachedLedger(ctx)
	if err != nil {
		return nil, err
	}

	resp := &SuggestSettlementsResponse{Payments: []PaymentSuggestion{}}
	for _, edge := range calculator.SimplifyDebts(l) {
		if edge.From != self && edge.To != self {
			continue
		}
		resp.Payments = append(resp.Payments, PaymentSuggestion{
			From:   string(edge.From),
			To:     string(edge.To),
			Amount: edge.Amount.String(),
		})
	}
	return connect.NewResponse(resp), nil
}

// ListActivity returns the caller's events newest first, grouped by UTC day.
func (s *LedgerService) ListActivity(ctx context.Context, req *connect.Request[ListActivityRequest]) (*connect.Response[ListActivityResponse], error) {
	self, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	limit := req.Msg.Limit
	switch {
	case limit <= 0:
		limit = defaultActivityLimit
	case limit > maxActivityLimit:
		limit = maxActivityLimit
	}

	events, err := s.store.ListEvents(ctx, storage.EventFilter{Party: self})
	if err != nil {
		s.logger.Error("Failed to list events", "user_id", self, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	items, err := activityItems(self, events)
	if err != nil {
		s.logger.Error("Failed to fold activity", "user_id", self, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if len(items) > limit {
		items = items[:limit]
	}

	return connect.NewResponse(&ListActivityResponse{Days: groupByDay(items)}), nil
}

// SearchExpenses finds the caller's expenses by description.
func (s *LedgerService) SearchExpenses(ctx context.Context, req *connect.Request[SearchExpensesRequest]) (*connect.Response[SearchExpensesResponse], error) {
	self, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	expenses, err := s.store.SearchExpenses(ctx, self, req.Msg.Query)
	if err != nil {
		s.logger.Error("Failed to search expenses", "user_id", self, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	resp := &SearchExpensesResponse{Expenses: make([]ExpenseMessage, len(expenses))}
	for i, e := range expenses {
		resp.Expenses[i] = expenseMessage(e)
	}
	return connect.NewResponse(resp), nil
}

// ListNotifications returns the caller's notifications, newest first.
func (s *LedgerService) ListNotifications(ctx context.Context, req *connect.Request[ListNotificationsRequest]) (*connect.Response[ListNotificationsResponse], error) {
	self, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	resp := &ListNotificationsResponse{Notifications: []NotificationMessage{}}
	if s.notifications == nil {
		return connect.NewResponse(resp), nil
	}

	list, err := s.notifications.ListNotifications(ctx, self, req.Msg.Limit)
	if err != nil {
		s.logger.Error("Failed to list notifications", "user_id", self, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	for _, n := range list {
		resp.Notifications = append(resp.Notifications, NotificationMessage{
			ID:        n.ID,
			EventID:   n.EventID,
			Message:   n.Message,
			CreatedAt: time.UnixMilli(n.CreatedAt).UTC(),
		})
	}
	return connect.NewResponse(resp), nil
}

// RebuildBalances replays the event log into the balance cache.
func (s *LedgerService) RebuildBalances(ctx context.Context, req *connect.Request[RebuildBalancesRequest]) (*connect.Response[RebuildBalancesResponse], error) {
	self, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("RebuildBalances request", "user_id", self)
	if !s.admins[self] {
		s.logger.Warn("RebuildBalances refused", "user_id", self)
		return nil, connect.NewError(connect.CodePermissionDenied, ErrNotAdmin)
	}

	report, err := s.Rebuild(ctx)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&RebuildBalancesResponse{
		Events: report.Events,
		Pairs:  len(report.Pairs),
		Drift:  pairMessages(report.Drift),
	}), nil
}

// append runs write under the service lock and then applies delta to the
// cache. A cache failure is logged but not returned: the event is durable
// and the next rebuild repairs the cache.
func (s *LedgerService) append(ctx context.Context, kind string, delta calculator.BalanceDelta, write func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := write(); err != nil {
		return s.reject(kind, err)
	}
	s.metrics.EventAppended(kind)
	s.logger.Info("Event appended", "kind", kind, "event_id", delta.EventID)

	if err := s.cache.ApplyDelta(ctx, delta); err != nil {
		s.logger.Error("Failed to update balance cache", "event_id", delta.EventID, "error", err)
	}
	return nil
}

// reject logs and counts a failed event, returning it as a connect error.
func (s *LedgerService) reject(kind string, err error) error {
	cerr := toConnectError(err)
	code := connect.CodeOf(cerr)
	s.metrics.EventRejected(kind, code.String())
	if code == connect.CodeInternal {
		s.logger.Error("Failed to record event", "kind", kind, "error", err)
	} else {
		s.logger.Warn("Event rejected", "kind", kind, "code", code, "error", err)
	}
	return cerr
}

// cachedLedger loads the balance cache into a ledger for queries.
func (s *LedgerService) cachedLedger(ctx context.Context) (*calculator.Ledger, error) {
	pairs, err := s.cache.AllPairs(ctx)
	if err != nil {
		s.logger.Error("Failed to read balance cache", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return calculator.LedgerFromPairs(pairs), nil
}

func splitInvolves(req calculator.SplitRequest, p models.Party) bool {
	if req.Payer == p {
		return true
	}
	for _, participant := range req.Participants {
		if participant == p {
			return true
		}
	}
	return false
}

// activityItems folds the party's events and describes each one, newest first.
func activityItems(party models.Party, events []models.Event) ([]ActivityItem, error) {
	l := calculator.NewLedger()
	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	models.SortEvents(sorted)

	items := make([]ActivityItem, 0, len(sorted))
	for _, ev := range sorted {
		delta, err := l.Apply(ev)
		if err != nil {
			return nil, fmt.Errorf("failed to apply event %s: %w", ev.EventID(), err)
		}

		item := ActivityItem{
			EventID:    ev.EventID(),
			Effect:     effectOn(party, delta).String(),
			OccurredAt: ev.OccurredAt(),
		}
		switch e := ev.(type) {
		case models.Expense:
			item.Kind = "expense"
			item.Summary = e.Description
			item.Amount = e.Amount.String()
		case models.Settlement:
			item.Kind = "settlement"
			item.Summary = "Payment"
			if e.Note != "" {
				item.Summary = e.Note
			}
			item.Amount = e.Amount.String()
		case models.ExpenseVoid:
			item.Kind = "void"
			expense, _ := l.Expense(e.ExpenseID)
			item.Summary = "Voided " + expense.Description
			item.Amount = expense.Amount.String()
		}
		items = append(items, item)
	}

	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

// groupByDay buckets items, already newest first, by UTC calendar day.
func groupByDay(items []ActivityItem) []ActivityDay {
	days := []ActivityDay{}
	for _, item := range items {
		date := item.OccurredAt.UTC().Format(time.DateOnly)
		if n := len(days); n > 0 && days[n-1].Date == date {
			days[n-1].Items = append(days[n-1].Items, item)
			continue
		}
		days = append(days, ActivityDay{Date: date, Items: []ActivityItem{item}})
	}
	return days
}
