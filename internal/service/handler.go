package service

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

const (
	// LedgerServiceName is the fully-qualified name of the ledger service.
	LedgerServiceName = "fairshare.v1.LedgerService"
	// AuthServiceName is the fully-qualified name of the account service.
	AuthServiceName = "fairshare.v1.AuthService"
)

// Procedure paths. Each is the URL path the RPC is served on.
const (
	LedgerServiceCreateExpenseProcedure      = "/fairshare.v1.LedgerService/CreateExpense"
	LedgerServicePreviewSplitProcedure       = "/fairshare.v1.LedgerService/PreviewSplit"
	LedgerServiceRecordPaymentProcedure      = "/fairshare.v1.LedgerService/RecordPayment"
	LedgerServiceVoidExpenseProcedure        = "/fairshare.v1.LedgerService/VoidExpense"
	LedgerServiceGetBalanceProcedure         = "/fairshare.v1.LedgerService/GetBalance"
	LedgerServiceGetSummaryProcedure         = "/fairshare.v1.LedgerService/GetSummary"
	LedgerServiceSuggestSettlementsProcedure = "/fairshare.v1.LedgerService/SuggestSettlements"
	LedgerServiceListActivityProcedure       = "/fairshare.v1.LedgerService/ListActivity"
	LedgerServiceSearchExpensesProcedure     = "/fairshare.v1.LedgerService/SearchExpenses"
	LedgerServiceListNotificationsProcedure  = "/fairshare.v1.LedgerService/ListNotifications"
	LedgerServiceRebuildBalancesProcedure    = "/fairshare.v1.LedgerService/RebuildBalances"

	AuthServiceRegisterProcedure       = "/fairshare.v1.AuthService/Register"
	AuthServiceLoginProcedure          = "/fairshare.v1.AuthService/Login"
	AuthServiceGetCurrentUserProcedure = "/fairshare.v1.AuthService/GetCurrentUser"
)

// NewLedgerServiceHandler builds an HTTP handler for svc. It returns the path
// prefix to mount it on.
func NewLedgerServiceHandler(svc *LedgerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(LedgerServiceCreateExpenseProcedure, connect.NewUnaryHandler(LedgerServiceCreateExpenseProcedure, svc.CreateExpense, opts...))
	mux.Handle(LedgerServicePreviewSplitProcedure, connect.NewUnaryHandler(LedgerServicePreviewSplitProcedure, svc.PreviewSplit, opts...))
	mux.Handle(LedgerServiceRecordPaymentProcedure, connect.NewUnaryHandler(LedgerServiceRecordPaymentProcedure, svc.RecordPayment, opts...))
	mux.Handle(LedgerServiceVoidExpenseProcedure, connect.NewUnaryHandler(LedgerServiceVoidExpenseProcedure, svc.VoidExpense, opts...))
	mux.Handle(LedgerServiceGetBalanceProcedure, connect.NewUnaryHandler(LedgerServiceGetBalanceProcedure, svc.GetBalance, opts...))
	mux.Handle(LedgerServiceGetSummaryProcedure, connect.NewUnaryHandler(LedgerServiceGetSummaryProcedure, svc.GetSummary, opts...))
	mux.Handle(LedgerServiceSuggestSettlementsProcedure, connect.NewUnaryHandler(LedgerServiceSuggestSettlementsProcedure, svc.SuggestSettlements, opts...))
	mux.Handle(LedgerServiceListActivityProcedure, connect.NewUnaryHandler(LedgerServiceListActivityProcedure, svc.ListActivity, opts...))
	mux.Handle(LedgerServiceSearchExpensesProcedure, connect.NewUnaryHandler(LedgerServiceSearchExpensesProcedure, svc.SearchExpenses, opts...))
	mux.Handle(LedgerServiceListNotificationsProcedure, connect.NewUnaryHandler(LedgerServiceListNotificationsProcedure, svc.ListNotifications, opts...))
	mux.Handle(LedgerServiceRebuildBalancesProcedure, connect.NewUnaryHandler(LedgerServiceRebuildBalancesProcedure, svc.RebuildBalances, opts...))
	return "/" + LedgerServiceName + "/", mux
}

// NewAuthServiceHandler builds an HTTP handler for svc. It returns the path
// prefix to mount it on.
func NewAuthServiceHandler(svc *AuthService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(AuthServiceRegisterProcedure, connect.NewUnaryHandler(AuthServiceRegisterProcedure, svc.Register, opts...))
	mux.Handle(AuthServiceLoginProcedure, connect.NewUnaryHandler(AuthServiceLoginProcedure, svc.Login, opts...))
	mux.Handle(AuthServiceGetCurrentUserProcedure, connect.NewUnaryHandler(AuthServiceGetCurrentUserProcedure, svc.GetCurrentUser, opts...))
	return "/" + AuthServiceName + "/", mux
}

// LedgerServiceClient calls a LedgerService over HTTP.
type LedgerServiceClient struct {
	createExpense      *connect.Client[CreateExpenseRequest, CreateExpenseResponse]
	previewSplit       *connect.Client[PreviewSplitRequest, PreviewSplitResponse]
	recordPayment      *connect.Client[RecordPaymentRequest, RecordPaymentResponse]
	voidExpense        *connect.Client[VoidExpenseRequest, VoidExpenseResponse]
	getBalance         *connect.Client[GetBalanceRequest, GetBalanceResponse]
	getSummary         *connect.Client[GetSummaryRequest, GetSummaryResponse]
	suggestSettlements *connect.Client[SuggestSettlementsRequest, SuggestSettlementsResponse]
	listActivity       *connect.Client[ListActivityRequest, ListActivityResponse]
	searchExpenses     *connect.Client[SearchExpensesRequest, SearchExpensesResponse]
	listNotifications  *connect.Client[ListNotificationsRequest, ListNotificationsResponse]
	rebuildBalances    *connect.Client[RebuildBalancesRequest, RebuildBalancesResponse]
}

// NewLedgerServiceClient creates a client for the service at baseURL
// (e.g. "http://localhost:8080").
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &LedgerServiceClient{
		createExpense:      connect.NewClient[CreateExpenseRequest, CreateExpenseResponse](httpClient, baseURL+LedgerServiceCreateExpenseProcedure, opts...),
		previewSplit:       connect.NewClient[PreviewSplitRequest, PreviewSplitResponse](httpClient, baseURL+LedgerServicePreviewSplitProcedure, opts...),
		recordPayment:      connect.NewClient[RecordPaymentRequest, RecordPaymentResponse](httpClient, baseURL+LedgerServiceRecordPaymentProcedure, opts...),
		voidExpense:        connect.NewClient[VoidExpenseRequest, VoidExpenseResponse](httpClient, baseURL+LedgerServiceVoidExpenseProcedure, opts...),
		getBalance:         connect.NewClient[GetBalanceRequest, GetBalanceResponse](httpClient, baseURL+LedgerServiceGetBalanceProcedure, opts...),
		getSummary:         connect.NewClient[GetSummaryRequest, GetSummaryResponse](httpClient, baseURL+LedgerServiceGetSummaryProcedure, opts...),
		suggestSettlements: connect.NewClient[SuggestSettlementsRequest, SuggestSettlementsResponse](httpClient, baseURL+LedgerServiceSuggestSettlementsProcedure, opts...),
		listActivity:       connect.NewClient[ListActivityRequest, ListActivityResponse](httpClient, baseURL+LedgerServiceListActivityProcedure, opts...),
		searchExpenses:     connect.NewClient[SearchExpensesRequest, SearchExpensesResponse](httpClient, baseURL+LedgerServiceSearchExpensesProcedure, opts...),
		listNotifications:  connect.NewClient[ListNotificationsRequest, ListNotificationsResponse](httpClient, baseURL+LedgerServiceListNotificationsProcedure, opts...),
		rebuildBalances:    connect.NewClient[RebuildBalancesRequest, RebuildBalancesResponse](httpClient, baseURL+LedgerServiceRebuildBalancesProcedure, opts...),
	}
}

func (c *LedgerServiceClient) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) PreviewSplit(ctx context.Context, req *connect.Request[PreviewSplitRequest]) (*connect.Response[PreviewSplitResponse], error) {
	return c.previewSplit.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) RecordPayment(ctx context.Context, req *connect.Request[RecordPaymentRequest]) (*connect.Response[RecordPaymentResponse], error) {
	return c.recordPayment.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) VoidExpense(ctx context.Context, req *connect.Request[VoidExpenseRequest]) (*connect.Response[VoidExpenseResponse], error) {
	return c.voidExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetBalance(ctx context.Context, req *connect.Request[GetBalanceRequest]) (*connect.Response[GetBalanceResponse], error) {
	return c.getBalance.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetSummary(ctx context.Context, req *connect.Request[GetSummaryRequest]) (*connect.Response[GetSummaryResponse], error) {
	return c.getSummary.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) SuggestSettlements(ctx context.Context, req *connect.Request[SuggestSettlementsRequest]) (*connect.Response[SuggestSettlementsResponse], error) {
	return c.suggestSettlements.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) ListActivity(ctx context.Context, req *connect.Request[ListActivityRequest]) (*connect.Response[ListActivityResponse], error) {
	return c.listActivity.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) SearchExpenses(ctx context.Context, req *connect.Request[SearchExpensesRequest]) (*connect.Response[SearchExpensesResponse], error) {
	return c.searchExpenses.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) ListNotifications(ctx context.Context, req *connect.Request[ListNotificationsRequest]) (*connect.Response[ListNotificationsResponse], error) {
	return c.listNotifications.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) RebuildBalances(ctx context.Context, req *connect.Request[RebuildBalancesRequest]) (*connect.Response[RebuildBalancesResponse], error) {
	return c.rebuildBalances.CallUnary(ctx, req)
}

// AuthServiceClient calls an AuthService over HTTP.
type AuthServiceClient struct {
	register       *connect.Client[RegisterRequest, RegisterResponse]
	login          *connect.Client[LoginRequest, LoginResponse]
	getCurrentUser *connect.Client[GetCurrentUserRequest, GetCurrentUserResponse]
}

// NewAuthServiceClient creates a client for the service at baseURL.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AuthServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &AuthServiceClient{
		register:       connect.NewClient[RegisterRequest, RegisterResponse](httpClient, baseURL+AuthServiceRegisterProcedure, opts...),
		login:          connect.NewClient[LoginRequest, LoginResponse](httpClient, baseURL+AuthServiceLoginProcedure, opts...),
		getCurrentUser: connect.NewClient[GetCurrentUserRequest, GetCurrentUserResponse](httpClient, baseURL+AuthServiceGetCurrentUserProcedure, opts...),
	}
}

func (c *AuthServiceClient) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *AuthServiceClient) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	return c.login.CallUnary(ctx, req)
}

func (c *AuthServiceClient) GetCurrentUser(ctx context.Context, req *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error) {
	return c.getCurrentUser.CallUnary(ctx, req)
}
