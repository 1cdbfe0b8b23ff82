package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairshare/ledger/internal/calculator"
	"github.com/fairshare/ledger/internal/metrics"
	"github.com/fairshare/ledger/internal/middleware"
	"github.com/fairshare/ledger/internal/models"
	"github.com/fairshare/ledger/internal/money"
	"github.com/fairshare/ledger/internal/storage"
	"github.com/fairshare/ledger/internal/storage/sqlite"
)

const testUserHeader = "X-Test-User"

var testNow = time.Date(2024, 6, 18, 18, 0, 0, 0, time.UTC)

// testAuthInterceptor authenticates each request as the user named in the
// X-Test-User header.
func testAuthInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if user := req.Header().Get(testUserHeader); user != "" {
				ctx = middleware.WithCaller(ctx, user, user+"@example.com")
			}
			return next(ctx, req)
		}
	}
}

type testEnv struct {
	client  *LedgerServiceClient
	svc     *LedgerService
	store   *sqlite.SQLiteStore
	metrics *metrics.Metrics
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	svc := NewLedgerService(store, store.BalanceCache(),
		WithNotifier(NewStoreNotifier(store, m)),
		WithNotificationStore(store),
		WithUserDirectory(store),
		WithMetrics(m),
		WithClock(func() time.Time { return testNow }),
		WithAdmins("ops"),
	)

	path, handler := NewLedgerServiceHandler(svc, connect.WithInterceptors(testAuthInterceptor()))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testEnv{
		client:  NewLedgerServiceClient(http.DefaultClient, server.URL),
		svc:     svc,
		store:   store,
		metrics: m,
	}
}

// as builds a request authenticated as user.
func as[T any](user string, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	if user != "" {
		req.Header().Set(testUserHeader, user)
	}
	return req
}

func dinner(payer string, participants ...string) *CreateExpenseRequest {
	return &CreateExpenseRequest{
		Description: "Dinner",
		Split: SplitInput{
			Kind:         string(models.SplitPaidByPayerEqually),
			Total:        "30.00",
			Payer:        payer,
			Participants: participants,
		},
	}
}

func balance(t *testing.T, env *testEnv, user, counterparty string) string {
	t.Helper()
	resp, err := env.client.GetBalance(context.Background(), as(user, &GetBalanceRequest{Counterparty: counterparty}))
	require.NoError(t, err)
	return resp.Msg.Amount
}

func messages(resp *ListNotificationsResponse) []string {
	out := make([]string, len(resp.Notifications))
	for i, n := range resp.Notifications {
		out[i] = n.Message
	}
	return out
}

func requireCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, connect.CodeOf(err), "error: %v", err)
}

func TestCreateExpense_UpdatesBalances(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	resp, err := env.client.CreateExpense(ctx, as("alice", dinner("alice", "bob")))
	require.NoError(t, err)

	e := resp.Msg.Expense
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "30.00", e.Amount)
	assert.Equal(t, "alice", e.CreatedBy)
	assert.Equal(t, []ShareMessage{{Party: "alice", Amount: "15.00"}, {Party: "bob", Amount: "15.00"}}, e.Shares)

	assert.Equal(t, "15.00", balance(t, env, "alice", "bob"))
	assert.Equal(t, "-15.00", balance(t, env, "bob", "alice"))

	notes, err := env.client.ListNotifications(ctx, as("bob", &ListNotificationsRequest{}))
	require.NoError(t, err)
	require.Len(t, notes.Msg.Notifications, 1)
	assert.Equal(t, `alice added "Dinner" (30.00)`, notes.Msg.Notifications[0].Message)
	assert.Equal(t, e.ID, notes.Msg.Notifications[0].EventID)

	notes, err = env.client.ListNotifications(ctx, as("alice", &ListNotificationsRequest{}))
	require.NoError(t, err)
	assert.Empty(t, notes.Msg.Notifications)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.EventsAppended.WithLabelValues("expense")))
}

func TestRecordPayment_UsesDisplayNames(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	alice := models.NewUser("alice@example.com", "Alice", "hash")
	require.NoError(t, env.store.CreateUser(ctx, alice))
	bob := models.NewUser("bob@example.com", "Bob", "hash")
	require.NoError(t, env.store.CreateUser(ctx, bob))

	_, err := env.client.RecordPayment(ctx, as(alice.ID, &RecordPaymentRequest{To: bob.ID, Amount: "12.5"}))
	require.NoError(t, err)

	notes, err := env.client.ListNotifications(ctx, as(bob.ID, &ListNotificationsRequest{}))
	require.NoError(t, err)
	require.Len(t, notes.Msg.Notifications, 1)
	assert.Equal(t, "Alice paid Bob 12.50", notes.Msg.Notifications[0].Message)
}

func TestCreateExpense_Rejected(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.client.CreateExpense(ctx, as("alice", &CreateExpenseRequest{
		ID:          "exp-1",
		Description: "Taxi",
		Split:       dinner("alice", "bob").Split,
	}))
	require.NoError(t, err)

	tests := []struct {
		name string
		user string
		req  *CreateExpenseRequest
		want connect.Code
	}{
		{
			name: "unauthenticated",
			req:  dinner("alice", "bob"),
			want: connect.CodeUnauthenticated,
		},
		{
			name: "unknown kind",
			user: "alice",
			req: &CreateExpenseRequest{Description: "x", Split: SplitInput{
				Kind: "split_by_vibes", Total: "10", Payer: "alice", Participants: []string{"bob"},
			}},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "unreadable total",
			user: "alice",
			req: &CreateExpenseRequest{Description: "x", Split: SplitInput{
				Kind: string(models.SplitPaidByPayerEqually), Total: "ten", Payer: "alice", Participants: []string{"bob"},
			}},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "thousands separator in total",
			user: "alice",
			req: &CreateExpenseRequest{Description: "x", Split: SplitInput{
				Kind: string(models.SplitPaidByPayerEqually), Total: "1,000", Payer: "alice", Participants: []string{"alice", "bob"},
			}},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "control character in participant",
			user: "alice",
			req:  dinner("alice", "alice", "bob\x1fcarol"),
			want: connect.CodeInvalidArgument,
		},
		{
			name: "missing description",
			user: "alice",
			req:  &CreateExpenseRequest{Split: dinner("alice", "bob").Split},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "payer must be caller",
			user: "bob",
			req:  dinner("alice", "bob"),
			want: connect.CodeInvalidArgument,
		},
		{
			name: "custom shares off by a cent",
			user: "alice",
			req: &CreateExpenseRequest{Description: "x", Split: SplitInput{
				Kind: string(models.SplitCustomShares), Total: "10.00", Payer: "alice", Participants: []string{"alice", "bob"},
				Shares: map[string]string{"alice": "5.00", "bob": "4.99"},
			}},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "caller not involved",
			user: "mallory",
			req: &CreateExpenseRequest{Description: "x", Split: SplitInput{
				Kind: string(models.SplitCustomShares), Total: "10.00", Payer: "alice", Participants: []string{"bob"},
				Shares: map[string]string{"bob": "10.00"},
			}},
			want: connect.CodePermissionDenied,
		},
		{
			name: "duplicate id",
			user: "alice",
			req:  &CreateExpenseRequest{ID: "exp-1", Description: "Taxi", Split: dinner("alice", "bob").Split},
			want: connect.CodeAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client.CreateExpense(ctx, as(tt.user, tt.req))
			requireCode(t, err, tt.want)
		})
	}

	// Only the first expense counts.
	assert.Equal(t, "15.00", balance(t, env, "alice", "bob"))
}

func TestPreviewSplit(t *testing.T) {
	env := setupTestServer(t)

	resp, err := env.client.PreviewSplit(context.Background(), as("alice", &PreviewSplitRequest{Split: SplitInput{
		Kind:         string(models.SplitPaidByPayerEqually),
		Total:        "10.00",
		Payer:        "alice",
		Participants: []string{"bob", "carol"},
	}}))
	require.NoError(t, err)

	assert.Equal(t, []ShareMessage{
		{Party: "alice", Amount: "3.34"},
		{Party: "bob", Amount: "3.33"},
		{Party: "carol", Amount: "3.33"},
	}, resp.Msg.Shares)

	events, err := env.store.ListEvents(context.Background(), storage.EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRecordPayment(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.client.CreateExpense(ctx, as("alice", dinner("alice", "bob")))
	require.NoError(t, err)

	resp, err := env.client.RecordPayment(ctx, as("bob", &RecordPaymentRequest{To: "alice", Amount: "10.00", Note: " cash "}))
	require.NoError(t, err)
	assert.Equal(t, "bob", resp.Msg.Settlement.From)
	assert.Equal(t, "cash", resp.Msg.Settlement.Note)
	assert.Equal(t, testNow, resp.Msg.Settlement.CreatedAt)
	assert.Equal(t, "-5.00", resp.Msg.Balance)
	assert.Equal(t, "5.00", balance(t, env, "alice", "bob"))

	// Overpaying flips who owes whom.
	resp, err = env.client.RecordPayment(ctx, as("bob", &RecordPaymentRequest{To: "alice", Amount: "8"}))
	require.NoError(t, err)
	assert.Equal(t, "3.00", resp.Msg.Balance)

	notes, err := env.client.ListNotifications(ctx, as("alice", &ListNotificationsRequest{}))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob paid alice 10.00", "bob paid alice 8.00"}, messages(notes.Msg))

	notes, err = env.client.ListNotifications(ctx, as("alice", &ListNotificationsRequest{Limit: 1}))
	require.NoError(t, err)
	assert.Len(t, notes.Msg.Notifications, 1)
}

func TestRecordPayment_Rejected(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *RecordPaymentRequest
		want connect.Code
	}{
		{name: "to self", req: &RecordPaymentRequest{To: "alice", Amount: "5"}, want: connect.CodeInvalidArgument},
		{name: "zero", req: &RecordPaymentRequest{To: "bob", Amount: "0"}, want: connect.CodeInvalidArgument},
		{name: "negative", req: &RecordPaymentRequest{To: "bob", Amount: "-5"}, want: connect.CodeInvalidArgument},
		{name: "garbage", req: &RecordPaymentRequest{To: "bob", Amount: "5 dollars"}, want: connect.CodeInvalidArgument},
		{name: "missing recipient", req: &RecordPaymentRequest{Amount: "5"}, want: connect.CodeInvalidArgument},
		{name: "third parties", req: &RecordPaymentRequest{From: "carol", To: "dave", Amount: "5"}, want: connect.CodePermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client.RecordPayment(ctx, as("alice", tt.req))
			requireCode(t, err, tt.want)
		})
	}

	// Recording on behalf of the other party is allowed.
	_, err := env.client.RecordPayment(ctx, as("alice", &RecordPaymentRequest{From: "bob", To: "alice", Amount: "5"}))
	require.NoError(t, err)
	assert.Equal(t, "-5.00", balance(t, env, "alice", "bob"))

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.EventsRejected.WithLabelValues("settlement", connect.CodePermissionDenied.String())))
}

func TestVoidExpense(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	created, err := env.client.CreateExpense(ctx, as("alice", dinner("alice", "bob", "carol")))
	require.NoError(t, err)
	expenseID := created.Msg.Expense.ID
	assert.Equal(t, "10.00", balance(t, env, "alice", "carol"))

	_, err = env.client.VoidExpense(ctx, as("mallory", &VoidExpenseRequest{ExpenseID: expenseID}))
	requireCode(t, err, connect.CodePermissionDenied)

	resp, err := env.client.VoidExpense(ctx, as("bob", &VoidExpenseRequest{ExpenseID: expenseID, Reason: "wrong bill"}))
	require.NoError(t, err)
	assert.Equal(t, expenseID, resp.Msg.Void.ExpenseID)
	assert.Equal(t, "bob", resp.Msg.Void.CreatedBy)

	assert.Equal(t, "0.00", balance(t, env, "alice", "bob"))
	assert.Equal(t, "0.00", balance(t, env, "alice", "carol"))

	_, err = env.client.VoidExpense(ctx, as("alice", &VoidExpenseRequest{ExpenseID: expenseID}))
	requireCode(t, err, connect.CodeAlreadyExists)

	_, err = env.client.VoidExpense(ctx, as("alice", &VoidExpenseRequest{ExpenseID: "missing"}))
	requireCode(t, err, connect.CodeNotFound)

	_, err = env.client.VoidExpense(ctx, as("alice", &VoidExpenseRequest{}))
	requireCode(t, err, connect.CodeInvalidArgument)

	notes, err := env.client.ListNotifications(ctx, as("carol", &ListNotificationsRequest{}))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{`alice added "Dinner" (30.00)`, `bob voided "Dinner" (30.00)`}, messages(notes.Msg))
}

func TestEventIDs_SharedAcrossKinds(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	req := dinner("alice", "bob")
	req.ID = "evt-1"
	_, err := env.client.CreateExpense(ctx, as("alice", req))
	require.NoError(t, err)

	_, err = env.client.RecordPayment(ctx, as("bob", &RecordPaymentRequest{ID: "evt-1", To: "alice", Amount: "5.00"}))
	requireCode(t, err, connect.CodeAlreadyExists)

	_, err = env.client.VoidExpense(ctx, as("bob", &VoidExpenseRequest{ID: "evt-1", ExpenseID: "evt-1"}))
	requireCode(t, err, connect.CodeAlreadyExists)

	// Neither rejected event reached the cache or the log.
	assert.Equal(t, "15.00", balance(t, env, "alice", "bob"))

	report, err := env.svc.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Events)
	assert.Empty(t, report.Drift)
	assert.Equal(t, "15.00", balance(t, env, "alice", "bob"))
}

func TestGetBalance_Rejected(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.client.GetBalance(ctx, as("alice", &GetBalanceRequest{Counterparty: "alice"}))
	requireCode(t, err, connect.CodeInvalidArgument)

	_, err = env.client.GetBalance(ctx, as("alice", &GetBalanceRequest{}))
	requireCode(t, err, connect.CodeInvalidArgument)

	_, err = env.client.GetBalance(ctx, as("alice", &GetBalanceRequest{Counterparty: "bob\x1fcarol"}))
	requireCode(t, err, connect.CodeInvalidArgument)

	assert.Equal(t, "0.00", balance(t, env, "alice", "stranger"))
}

// seedTriangle leaves bob owing alice 15.00 and carol owing bob 20.00.
func seedTriangle(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()

	_, err := env.client.CreateExpense(ctx, as("alice", dinner("alice", "bob")))
	require.NoError(t, err)
	_, err = env.client.CreateExpense(ctx, as("bob", &CreateExpenseRequest{
		Description: "Concert tickets",
		Split: SplitInput{
			Kind:         string(models.SplitPayerOwedFull),
			Total:        "20.00",
			Payer:        "bob",
			Participants: []string{"carol"},
		},
	}))
	require.NoError(t, err)
}

func TestGetSummary(t *testing.T) {
	env := setupTestServer(t)
	seedTriangle(t, env)

	resp, err := env.client.GetSummary(context.Background(), as("bob", &GetSummaryRequest{}))
	require.NoError(t, err)

	assert.Equal(t, []CounterpartyBalanceMessage{
		{Counterparty: "alice", Amount: "-15.00"},
		{Counterparty: "carol", Amount: "20.00"},
	}, resp.Msg.Balances)
	assert.Equal(t, "20.00", resp.Msg.TotalOwedTo)
	assert.Equal(t, "15.00", resp.Msg.TotalOwedBy)
	assert.Equal(t, "5.00", resp.Msg.Net)

	empty, err := env.client.GetSummary(context.Background(), as("dave", &GetSummaryRequest{}))
	require.NoError(t, err)
	assert.Empty(t, empty.Msg.Balances)
	assert.Equal(t, "0.00", empty.Msg.Net)
}

func TestSuggestSettlements(t *testing.T) {
	env := setupTestServer(t)
	seedTriangle(t, env)
	ctx := context.Background()

	resp, err := env.client.SuggestSettlements(ctx, as("carol", &SuggestSettlementsRequest{}))
	require.NoError(t, err)
	assert.Equal(t, []PaymentSuggestion{
		{From: "carol", To: "alice", Amount: "15.00"},
		{From: "carol", To: "bob", Amount: "5.00"},
	}, resp.Msg.Payments)

	resp, err = env.client.SuggestSettlements(ctx, as("alice", &SuggestSettlementsRequest{}))
	require.NoError(t, err)
	assert.Equal(t, []PaymentSuggestion{{From: "carol", To: "alice", Amount: "15.00"}}, resp.Msg.Payments)

	resp, err = env.client.SuggestSettlements(ctx, as("dave", &SuggestSettlementsRequest{}))
	require.NoError(t, err)
	assert.Empty(t, resp.Msg.Payments)
}

func TestListActivity(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	yesterday := testNow.Add(-24 * time.Hour)
	req := dinner("alice", "bob")
	req.OccurredAt = &yesterday
	first, err := env.client.CreateExpense(ctx, as("alice", req))
	require.NoError(t, err)

	morning := testNow.Add(-8 * time.Hour)
	req = dinner("alice", "bob")
	req.Description = "Lunch"
	req.OccurredAt = &morning
	second, err := env.client.CreateExpense(ctx, as("alice", req))
	require.NoError(t, err)

	pay, err := env.client.RecordPayment(ctx, as("bob", &RecordPaymentRequest{To: "alice", Amount: "5"}))
	require.NoError(t, err)

	_, err = env.client.CreateExpense(ctx, as("carol", dinner("carol", "dave")))
	require.NoError(t, err)

	resp, err := env.client.ListActivity(ctx, as("alice", &ListActivityRequest{}))
	require.NoError(t, err)

	require.Len(t, resp.Msg.Days, 2)
	today := resp.Msg.Days[0]
	assert.Equal(t, "2024-06-18", today.Date)
	require.Len(t, today.Items, 2)
	assert.Equal(t, ActivityItem{
		EventID: pay.Msg.Settlement.ID, Kind: "settlement", Summary: "Payment",
		Amount: "5.00", Effect: "-5.00", OccurredAt: testNow,
	}, today.Items[0])
	assert.Equal(t, second.Msg.Expense.ID, today.Items[1].EventID)
	assert.Equal(t, "Lunch", today.Items[1].Summary)
	assert.Equal(t, "15.00", today.Items[1].Effect)

	assert.Equal(t, "2024-06-17", resp.Msg.Days[1].Date)
	require.Len(t, resp.Msg.Days[1].Items, 1)
	assert.Equal(t, first.Msg.Expense.ID, resp.Msg.Days[1].Items[0].EventID)

	resp, err = env.client.ListActivity(ctx, as("alice", &ListActivityRequest{Limit: 1}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Days, 1)
	assert.Len(t, resp.Msg.Days[0].Items, 1)
}

func TestListActivity_Void(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	created, err := env.client.CreateExpense(ctx, as("alice", dinner("alice", "bob")))
	require.NoError(t, err)
	_, err = env.client.VoidExpense(ctx, as("alice", &VoidExpenseRequest{ID: "void-1", ExpenseID: created.Msg.Expense.ID}))
	require.NoError(t, err)

	resp, err := env.client.ListActivity(ctx, as("bob", &ListActivityRequest{}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Days, 1)
	items := resp.Msg.Days[0].Items
	require.Len(t, items, 2)

	// Same timestamp as the expense, still listed after it.
	assert.Equal(t, "void", items[0].Kind)
	assert.Equal(t, "Voided Dinner", items[0].Summary)
	assert.Equal(t, "30.00", items[0].Amount)
	assert.Equal(t, "15.00", items[0].Effect)
	assert.Equal(t, "expense", items[1].Kind)
	assert.Equal(t, "-15.00", items[1].Effect)
}

func TestSearchExpenses(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.client.CreateExpense(ctx, as("alice", dinner("alice", "bob")))
	require.NoError(t, err)
	req := dinner("carol", "dave")
	req.Description = "Team dinner"
	_, err = env.client.CreateExpense(ctx, as("carol", req))
	require.NoError(t, err)

	resp, err := env.client.SearchExpenses(ctx, as("bob", &SearchExpensesRequest{Query: "DINN"}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Expenses, 1)
	assert.Equal(t, "Dinner", resp.Msg.Expenses[0].Description)

	resp, err = env.client.SearchExpenses(ctx, as("bob", &SearchExpensesRequest{Query: "taxi"}))
	require.NoError(t, err)
	assert.Empty(t, resp.Msg.Expenses)
}

func TestRebuildBalances_RepairsDrift(t *testing.T) {
	env := setupTestServer(t)
	seedTriangle(t, env)
	ctx := context.Background()

	// Corrupt the cache: wrong amount for alice/bob, phantom pair for alice/dave.
	err := env.store.BalanceCache().Replace(ctx, []calculator.PairBalance{
		{A: "alice", B: "bob", Amount: money.MustParse("1.00")},
		{A: "alice", B: "dave", Amount: money.MustParse("7.00")},
		{A: "bob", B: "carol", Amount: money.MustParse("20.00")},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "1.00", balance(t, env, "alice", "bob"))

	_, err = env.client.RebuildBalances(ctx, as("alice", &RebuildBalancesRequest{}))
	requireCode(t, err, connect.CodePermissionDenied)
	assert.Equal(t, "1.00", balance(t, env, "alice", "bob"))

	resp, err := env.client.RebuildBalances(ctx, as("ops", &RebuildBalancesRequest{}))
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Msg.Events)
	assert.Equal(t, 2, resp.Msg.Pairs)
	assert.Equal(t, []PairBalanceMessage{
		{A: "alice", B: "bob", Amount: "15.00"},
		{A: "alice", B: "dave", Amount: "0.00"},
	}, resp.Msg.Drift)

	assert.Equal(t, "15.00", balance(t, env, "alice", "bob"))
	assert.Equal(t, "0.00", balance(t, env, "alice", "dave"))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.CacheDrift))

	// A clean cache reports no drift.
	report, err := env.svc.Rebuild(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Drift)
}

func TestCacheMatchesReplay(t *testing.T) {
	env := setupTestServer(t)
	seedTriangle(t, env)
	ctx := context.Background()

	_, err := env.client.RecordPayment(ctx, as("carol", &RecordPaymentRequest{To: "bob", Amount: "7.25"}))
	require.NoError(t, err)

	cached, err := env.store.BalanceCache().AllPairs(ctx)
	require.NoError(t, err)

	events, err := env.store.ListEvents(ctx, storage.EventFilter{})
	require.NoError(t, err)
	l, err := calculator.Fold(events)
	require.NoError(t, err)

	assert.Equal(t, l.Pairs(), cached)
}
