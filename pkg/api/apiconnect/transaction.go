package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/pocketledger/pkg/api"
)

// TransactionServiceName is the fully-qualified name of the TransactionService service.
const TransactionServiceName = "pocketledger.v1.TransactionService"

const (
	TransactionServiceAddTransactionProcedure           = "/pocketledger.v1.TransactionService/AddTransaction"
	TransactionServiceListTransactionsProcedure         = "/pocketledger.v1.TransactionService/ListTransactions"
	TransactionServiceDeleteTransactionProcedure        = "/pocketledger.v1.TransactionService/DeleteTransaction"
	TransactionServiceUpdateTransactionDetailProcedure  = "/pocketledger.v1.TransactionService/UpdateTransactionDetail"
	TransactionServiceGetBalanceProcedure               = "/pocketledger.v1.TransactionService/GetBalance"
	TransactionServiceRegularizeBalanceProcedure        = "/pocketledger.v1.TransactionService/RegularizeBalance"
	TransactionServiceReconcileDetailProcedure          = "/pocketledger.v1.TransactionService/ReconcileDetail"
	TransactionServicePreviewDetailDiscrepancyProcedure = "/pocketledger.v1.TransactionService/PreviewDetailDiscrepancy"
	TransactionServiceGetSummaryProcedure               = "/pocketledger.v1.TransactionService/GetSummary"
	TransactionServiceWatchTransactionsProcedure        = "/pocketledger.v1.TransactionService/WatchTransactions"
)

// TransactionServiceHandler is implemented by the server side of TransactionService.
type TransactionServiceHandler interface {
	AddTransaction(context.Context, *connect.Request[api.AddTransactionRequest]) (*connect.Response[api.AddTransactionResponse], error)
	ListTransactions(context.Context, *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error)
	DeleteTransaction(context.Context, *connect.Request[api.DeleteTransactionRequest]) (*connect.Response[api.DeleteTransactionResponse], error)
	UpdateTransactionDetail(context.Context, *connect.Request[api.UpdateTransactionDetailRequest]) (*connect.Response[api.UpdateTransactionDetailResponse], error)
	GetBalance(context.Context, *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error)
	RegularizeBalance(context.Context, *connect.Request[api.RegularizeBalanceRequest]) (*connect.Response[api.RegularizeBalanceResponse], error)
	ReconcileDetail(context.Context, *connect.Request[api.ReconcileDetailRequest]) (*connect.Response[api.ReconcileDetailResponse], error)
	PreviewDetailDiscrepancy(context.Context, *connect.Request[api.PreviewDetailDiscrepancyRequest]) (*connect.Response[api.PreviewDetailDiscrepancyResponse], error)
	GetSummary(context.Context, *connect.Request[api.GetSummaryRequest]) (*connect.Response[api.GetSummaryResponse], error)
	WatchTransactions(context.Context, *connect.Request[api.WatchTransactionsRequest], *connect.ServerStream[api.WatchTransactionsResponse]) error
}

// NewTransactionServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewTransactionServiceHandler(svc TransactionServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(opts, WithJSON())

	addTransaction := connect.NewUnaryHandler(TransactionServiceAddTransactionProcedure, svc.AddTransaction, opts...)
	listTransactions := connect.NewUnaryHandler(TransactionServiceListTransactionsProcedure, svc.ListTransactions, opts...)
	deleteTransaction := connect.NewUnaryHandler(TransactionServiceDeleteTransactionProcedure, svc.DeleteTransaction, opts...)
	updateTransactionDetail := connect.NewUnaryHandler(TransactionServiceUpdateTransactionDetailProcedure, svc.UpdateTransactionDetail, opts...)
	getBalance := connect.NewUnaryHandler(TransactionServiceGetBalanceProcedure, svc.GetBalance, opts...)
	regularizeBalance := connect.NewUnaryHandler(TransactionServiceRegularizeBalanceProcedure, svc.RegularizeBalance, opts...)
	reconcileDetail := connect.NewUnaryHandler(TransactionServiceReconcileDetailProcedure, svc.ReconcileDetail, opts...)
	previewDetailDiscrepancy := connect.NewUnaryHandler(TransactionServicePreviewDetailDiscrepancyProcedure, svc.PreviewDetailDiscrepancy, opts...)
	getSummary := connect.NewUnaryHandler(TransactionServiceGetSummaryProcedure, svc.GetSummary, opts...)
	watchTransactions := connect.NewServerStreamHandler(TransactionServiceWatchTransactionsProcedure, svc.WatchTransactions, opts...)

	return "/" + TransactionServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case TransactionServiceAddTransactionProcedure:
			addTransaction.ServeHTTP(w, r)
		case TransactionServiceListTransactionsProcedure:
			listTransactions.ServeHTTP(w, r)
		case TransactionServiceDeleteTransactionProcedure:
			deleteTransaction.ServeHTTP(w, r)
		case TransactionServiceUpdateTransactionDetailProcedure:
			updateTransactionDetail.ServeHTTP(w, r)
		case TransactionServiceGetBalanceProcedure:
			getBalance.ServeHTTP(w, r)
		case TransactionServiceRegularizeBalanceProcedure:
			regularizeBalance.ServeHTTP(w, r)
		case TransactionServiceReconcileDetailProcedure:
			reconcileDetail.ServeHTTP(w, r)
		case TransactionServicePreviewDetailDiscrepancyProcedure:
			previewDetailDiscrepancy.ServeHTTP(w, r)
		case TransactionServiceGetSummaryProcedure:
			getSummary.ServeHTTP(w, r)
		case TransactionServiceWatchTransactionsProcedure:
			watchTransactions.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// TransactionServiceClient is a client for TransactionService.
type TransactionServiceClient interface {
	AddTransaction(context.Context, *connect.Request[api.AddTransactionRequest]) (*connect.Response[api.AddTransactionResponse], error)
	ListTransactions(context.Context, *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error)
	DeleteTransaction(context.Context, *connect.Request[api.DeleteTransactionRequest]) (*connect.Response[api.DeleteTransactionResponse], error)
	UpdateTransactionDetail(context.Context, *connect.Request[api.UpdateTransactionDetailRequest]) (*connect.Response[api.UpdateTransactionDetailResponse], error)
	GetBalance(context.Context, *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error)
	RegularizeBalance(context.Context, *connect.Request[api.RegularizeBalanceRequest]) (*connect.Response[api.RegularizeBalanceResponse], error)
	ReconcileDetail(context.Context, *connect.Request[api.ReconcileDetailRequest]) (*connect.Response[api.ReconcileDetailResponse], error)
	PreviewDetailDiscrepancy(context.Context, *connect.Request[api.PreviewDetailDiscrepancyRequest]) (*connect.Response[api.PreviewDetailDiscrepancyResponse], error)
	GetSummary(context.Context, *connect.Request[api.GetSummaryRequest]) (*connect.Response[api.GetSummaryResponse], error)
	WatchTransactions(context.Context, *connect.Request[api.WatchTransactionsRequest]) (*connect.ServerStreamForClient[api.WatchTransactionsResponse], error)
}

// NewTransactionServiceClient constructs a client for TransactionService at baseURL.
func NewTransactionServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) TransactionServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append(opts, WithJSON())
	return &transactionServiceClient{
		addTransaction:           connect.NewClient[api.AddTransactionRequest, api.AddTransactionResponse](httpClient, baseURL+TransactionServiceAddTransactionProcedure, opts...),
		listTransactions:         connect.NewClient[api.ListTransactionsRequest, api.ListTransactionsResponse](httpClient, baseURL+TransactionServiceListTransactionsProcedure, opts...),
		deleteTransaction:        connect.NewClient[api.DeleteTransactionRequest, api.DeleteTransactionResponse](httpClient, baseURL+TransactionServiceDeleteTransactionProcedure, opts...),
		updateTransactionDetail:  connect.NewClient[api.UpdateTransactionDetailRequest, api.UpdateTransactionDetailResponse](httpClient, baseURL+TransactionServiceUpdateTransactionDetailProcedure, opts...),
		getBalance:               connect.NewClient[api.GetBalanceRequest, api.GetBalanceResponse](httpClient, baseURL+TransactionServiceGetBalanceProcedure, opts...),
		regularizeBalance:        connect.NewClient[api.RegularizeBalanceRequest, api.RegularizeBalanceResponse](httpClient, baseURL+TransactionServiceRegularizeBalanceProcedure, opts...),
		reconcileDetail:          connect.NewClient[api.ReconcileDetailRequest, api.ReconcileDetailResponse](httpClient, baseURL+TransactionServiceReconcileDetailProcedure, opts...),
		previewDetailDiscrepancy: connect.NewClient[api.PreviewDetailDiscrepancyRequest, api.PreviewDetailDiscrepancyResponse](httpClient, baseURL+TransactionServicePreviewDetailDiscrepancyProcedure, opts...),
		getSummary:               connect.NewClient[api.GetSummaryRequest, api.GetSummaryResponse](httpClient, baseURL+TransactionServiceGetSummaryProcedure, opts...),
		watchTransactions:        connect.NewClient[api.WatchTransactionsRequest, api.WatchTransactionsResponse](httpClient, baseURL+TransactionServiceWatchTransactionsProcedure, opts...),
	}
}

type transactionServiceClient struct {
	addTransaction           *connect.Client[api.AddTransactionRequest, api.AddTransactionResponse]
	listTransactions         *connect.Client[api.ListTransactionsRequest, api.ListTransactionsResponse]
	deleteTransaction        *connect.Client[api.DeleteTransactionRequest, api.DeleteTransactionResponse]
	updateTransactionDetail  *connect.Client[api.UpdateTransactionDetailRequest, api.UpdateTransactionDetailResponse]
	getBalance               *connect.Client[api.GetBalanceRequest, api.GetBalanceResponse]
	regularizeBalance        *connect.Client[api.RegularizeBalanceRequest, api.RegularizeBalanceResponse]
	reconcileDetail          *connect.Client[api.ReconcileDetailRequest, api.ReconcileDetailResponse]
	previewDetailDiscrepancy *connect.Client[api.PreviewDetailDiscrepancyRequest, api.PreviewDetailDiscrepancyResponse]
	getSummary               *connect.Client[api.GetSummaryRequest, api.GetSummaryResponse]
	watchTransactions        *connect.Client[api.WatchTransactionsRequest, api.WatchTransactionsResponse]
}

func (c *transactionServiceClient) AddTransaction(ctx context.Context, req *connect.Request[api.AddTransactionRequest]) (*connect.Response[api.AddTransactionResponse], error) {
	return c.addTransaction.CallUnary(ctx, req)
}

func (c *transactionServiceClient) ListTransactions(ctx context.Context, req *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error) {
	return c.listTransactions.CallUnary(ctx, req)
}

func (c *transactionServiceClient) DeleteTransaction(ctx context.Context, req *connect.Request[api.DeleteTransactionRequest]) (*connect.Response[api.DeleteTransactionResponse], error) {
	return c.deleteTransaction.CallUnary(ctx, req)
}

func (c *transactionServiceClient) UpdateTransactionDetail(ctx context.Context, req *connect.Request[api.UpdateTransactionDetailRequest]) (*connect.Response[api.UpdateTransactionDetailResponse], error) {
	return c.updateTransactionDetail.CallUnary(ctx, req)
}

func (c *transactionServiceClient) GetBalance(ctx context.Context, req *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error) {
	return c.getBalance.CallUnary(ctx, req)
}

func (c *transactionServiceClient) RegularizeBalance(ctx context.Context, req *connect.Request[api.RegularizeBalanceRequest]) (*connect.Response[api.RegularizeBalanceResponse], error) {
	return c.regularizeBalance.CallUnary(ctx, req)
}

func (c *transactionServiceClient) ReconcileDetail(ctx context.Context, req *connect.Request[api.ReconcileDetailRequest]) (*connect.Response[api.ReconcileDetailResponse], error) {
	return c.reconcileDetail.CallUnary(ctx, req)
}

func (c *transactionServiceClient) PreviewDetailDiscrepancy(ctx context.Context, req *connect.Request[api.PreviewDetailDiscrepancyRequest]) (*connect.Response[api.PreviewDetailDiscrepancyResponse], error) {
	return c.previewDetailDiscrepancy.CallUnary(ctx, req)
}

func (c *transactionServiceClient) GetSummary(ctx context.Context, req *connect.Request[api.GetSummaryRequest]) (*connect.Response[api.GetSummaryResponse], error) {
	return c.getSummary.CallUnary(ctx, req)
}

func (c *transactionServiceClient) WatchTransactions(ctx context.Context, req *connect.Request[api.WatchTransactionsRequest]) (*connect.ServerStreamForClient[api.WatchTransactionsResponse], error) {
	return c.watchTransactions.CallServerStream(ctx, req)
}
