package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/pocketledger/internal/auth"
	"github.com/mmynk/pocketledger/internal/ledger"
	"github.com/mmynk/pocketledger/internal/metrics"
	"github.com/mmynk/pocketledger/internal/middleware"
	"github.com/mmynk/pocketledger/internal/storage/sqlite"
	"github.com/mmynk/pocketledger/pkg/api"
	"github.com/mmynk/pocketledger/pkg/api/apiconnect"
)

type testServer struct {
	auth    apiconnect.AuthServiceClient
	txs     apiconnect.TransactionServiceClient
	metrics *metrics.Metrics
}

// setupTestServer wires both services, with the real interceptors, onto a temp SQLite database.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	l := ledger.New(store, m, logger)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store, bcrypt.MinCost)

	interceptors := connect.WithInterceptors(
		middleware.NewLoggingInterceptor(logger, m),
		middleware.NewAuthInterceptor(jwtManager, store, apiconnect.PublicProcedures...),
	)

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewAuthServiceHandler(NewAuthService(authenticator, jwtManager, store, logger), interceptors))
	mux.Handle(apiconnect.NewTransactionServiceHandler(NewTransactionService(l, m, logger), interceptors))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		l.Close()
		server.Close()
		store.Close()
	})

	return &testServer{
		auth:    apiconnect.NewAuthServiceClient(http.DefaultClient, server.URL),
		txs:     apiconnect.NewTransactionServiceClient(http.DefaultClient, server.URL),
		metrics: m,
	}
}

// register creates an account and returns its token.
func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	resp, err := s.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:       email,
		Password:    "correct horse",
		DisplayName: "Test User",
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return resp.Msg.Token
}

func authed[T any](token string, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+token)
	return req
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Fatalf("expected code %v, got %v (%v)", want, got, err)
	}
}

func TestAuthService_Flow(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()

	token := s.register(t, "Alice@Example.com")

	me, err := s.auth.GetCurrentUser(ctx, authed(token, &api.GetCurrentUserRequest{}))
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if me.Msg.User.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %q", me.Msg.User.Email)
	}
	if me.Msg.User.DisplayName != "Test User" {
		t.Errorf("expected display name from storage, got %q", me.Msg.User.DisplayName)
	}

	login, err := s.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse",
	}))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.Msg.Token == "" || login.Msg.Token == token {
		t.Error("expected a fresh token on login")
	}

	if _, err := s.auth.Logout(ctx, authed(token, &api.LogoutRequest{})); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	_, err = s.auth.GetCurrentUser(ctx, authed(token, &api.GetCurrentUserRequest{}))
	assertCode(t, err, connect.CodeUnauthenticated)
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) || connectErr.Message() != "Your session has ended. Please sign in again." {
		t.Errorf("expected signed-out message for a revoked token, got %v", err)
	}

	// Streams go through the same interceptor and carry the same message.
	stream, err := s.txs.WatchTransactions(ctx, authed(token, &api.WatchTransactionsRequest{}))
	if err == nil {
		if stream.Receive() {
			t.Error("expected no snapshot for a revoked token")
		}
		err = stream.Err()
		stream.Close()
	}
	if !errors.As(err, &connectErr) || connectErr.Message() != "Your session has ended. Please sign in again." {
		t.Errorf("expected signed-out message on the stream, got %v", err)
	}

	// The login session is independent of the one that was signed out.
	if _, err := s.auth.GetCurrentUser(ctx, authed(login.Msg.Token, &api.GetCurrentUserRequest{})); err != nil {
		t.Errorf("expected second session to stay valid, got %v", err)
	}
}

func TestAuthService_Errors(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	s.register(t, "bob@example.com")

	tests := []struct {
		name    string
		call    func() error
		code    connect.Code
		message string
	}{
		{
			name: "duplicate email",
			call: func() error {
				_, err := s.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
					Email: "BOB@example.com", Password: "long enough", DisplayName: "Bob",
				}))
				return err
			},
			code:    connect.CodeAlreadyExists,
			message: "This email is already in use.",
		},
		{
			name: "weak password",
			call: func() error {
				_, err := s.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
					Email: "carol@example.com", Password: "short", DisplayName: "Carol",
				}))
				return err
			},
			code:    connect.CodeInvalidArgument,
			message: "Password is too weak. Use at least 8 characters.",
		},
		{
			name: "wrong password",
			call: func() error {
				_, err := s.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
					Email: "bob@example.com", Password: "not the password",
				}))
				return err
			},
			code:    connect.CodeUnauthenticated,
			message: "Incorrect email or password.",
		},
		{
			name: "missing token",
			call: func() error {
				_, err := s.auth.GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{}))
				return err
			},
			code:    connect.CodeUnauthenticated,
			message: "Please sign in to continue.",
		},
		{
			name: "garbage token",
			call: func() error {
				_, err := s.auth.GetCurrentUser(ctx, authed("not-a-jwt", &api.GetCurrentUserRequest{}))
				return err
			},
			code: connect.CodeUnauthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assertCode(t, err, tt.code)
			if tt.message == "" {
				return
			}
			var connectErr *connect.Error
			if !errors.As(err, &connectErr) || connectErr.Message() != tt.message {
				t.Errorf("expected message %q, got %v", tt.message, err)
			}
		})
	}
}

func TestTransactionService_AddAndList(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	token := s.register(t, "alice@example.com")

	if _, err := s.txs.AddTransaction(ctx, authed(token, &api.AddTransactionRequest{
		Type: "income", Amount: dec("100"), Description: "Salary",
	})); err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	added, err := s.txs.AddTransaction(ctx, authed(token, &api.AddTransactionRequest{
		Type:        "expense",
		Amount:      dec("30.50"),
		Description: "Groceries",
		Detail:      []api.DetailItem{{Amount: dec("20"), Description: "Fruit"}},
	}))
	if err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}
	if added.Msg.Transaction.ID == "" || added.Msg.Transaction.CreatedAt == 0 {
		t.Error("expected ID and CreatedAt to be assigned")
	}

	list, err := s.txs.ListTransactions(ctx, authed(token, &api.ListTransactionsRequest{}))
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(list.Msg.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(list.Msg.Transactions))
	}
	if list.Msg.Transactions[0].Description != "Groceries" {
		t.Errorf("expected newest first, got %q", list.Msg.Transactions[0].Description)
	}
	if len(list.Msg.Transactions[0].Detail) != 1 {
		t.Errorf("expected detail to round-trip, got %+v", list.Msg.Transactions[0].Detail)
	}
	if !list.Msg.Balance.Equal(dec("69.50")) {
		t.Errorf("expected balance 69.50, got %s", list.Msg.Balance)
	}

	ok := testutil.ToFloat64(s.metrics.RPCRequests.WithLabelValues(apiconnect.TransactionServiceAddTransactionProcedure, "ok"))
	if ok != 2 {
		t.Errorf("expected 2 recorded AddTransaction calls, got %v", ok)
	}
}

func TestTransactionService_Validation(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	token := s.register(t, "alice@example.com")

	tests := []struct {
		name string
		req  *api.AddTransactionRequest
	}{
		{"zero amount", &api.AddTransactionRequest{Type: "income", Amount: dec("0")}},
		{"negative amount", &api.AddTransactionRequest{Type: "income", Amount: dec("-5")}},
		{"too large", &api.AddTransactionRequest{Type: "expense", Amount: dec("1000000")}},
		{"unknown type", &api.AddTransactionRequest{Type: "transfer", Amount: dec("5")}},
		{"detail without description", &api.AddTransactionRequest{
			Type:   "expense",
			Amount: dec("5"),
			Detail: []api.DetailItem{{Amount: dec("5"), Description: "  "}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.txs.AddTransaction(ctx, authed(token, tt.req))
			assertCode(t, err, connect.CodeInvalidArgument)
		})
	}
}

func TestTransactionService_OwnerScoping(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	alice := s.register(t, "alice@example.com")
	bob := s.register(t, "bob@example.com")

	added, err := s.txs.AddTransaction(ctx, authed(alice, &api.AddTransactionRequest{
		Type: "expense", Amount: dec("12"), Description: "Lunch",
	}))
	if err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}
	id := added.Msg.Transaction.ID

	_, err = s.txs.DeleteTransaction(ctx, authed(bob, &api.DeleteTransactionRequest{ID: id}))
	assertCode(t, err, connect.CodeNotFound)

	_, err = s.txs.ReconcileDetail(ctx, authed(bob, &api.ReconcileDetailRequest{ID: id}))
	assertCode(t, err, connect.CodeNotFound)

	list, err := s.txs.ListTransactions(ctx, authed(bob, &api.ListTransactionsRequest{}))
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(list.Msg.Transactions) != 0 {
		t.Errorf("expected bob to see nothing, got %d transactions", len(list.Msg.Transactions))
	}

	if _, err := s.txs.DeleteTransaction(ctx, authed(alice, &api.DeleteTransactionRequest{ID: id})); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}
}

func TestTransactionService_RegularizeBalance(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	token := s.register(t, "alice@example.com")

	if _, err := s.txs.AddTransaction(ctx, authed(token, &api.AddTransactionRequest{
		Type: "income", Amount: dec("69.50"), Description: "Start",
	})); err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}

	resp, err := s.txs.RegularizeBalance(ctx, authed(token, &api.RegularizeBalanceRequest{TargetBalance: dec("50")}))
	if err != nil {
		t.Fatalf("RegularizeBalance failed: %v", err)
	}
	tx := resp.Msg.Transaction
	if tx == nil {
		t.Fatal("expected a regularization transaction")
	}
	if tx.Type != "expense" || !tx.Amount.Equal(dec("19.50")) || !tx.IsRegularization {
		t.Errorf("unexpected regularization: %+v", tx)
	}
	if tx.Description != "negative adjustment" {
		t.Errorf("expected default description, got %q", tx.Description)
	}
	if !resp.Msg.Balance.Equal(dec("50")) {
		t.Errorf("expected balance 50, got %s", resp.Msg.Balance)
	}

	again, err := s.txs.RegularizeBalance(ctx, authed(token, &api.RegularizeBalanceRequest{TargetBalance: dec("50")}))
	if err != nil {
		t.Fatalf("RegularizeBalance failed: %v", err)
	}
	if again.Msg.Transaction != nil {
		t.Errorf("expected no transaction when balance matches, got %+v", again.Msg.Transaction)
	}
}

func TestTransactionService_Detail(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	token := s.register(t, "alice@example.com")

	preview, err := s.txs.PreviewDetailDiscrepancy(ctx, authed(token, &api.PreviewDetailDiscrepancyRequest{
		Amount: dec("30.50"),
		Detail: []api.DetailItem{{Amount: dec("30.495"), Description: "Almost"}},
	}))
	if err != nil {
		t.Fatalf("PreviewDetailDiscrepancy failed: %v", err)
	}
	if preview.Msg.Discrepancy != nil {
		t.Errorf("expected gap within tolerance to be ignored, got %+v", preview.Msg.Discrepancy)
	}

	added, err := s.txs.AddTransaction(ctx, authed(token, &api.AddTransactionRequest{
		Type:        "expense",
		Amount:      dec("30.50"),
		Description: "Groceries",
		Detail:      []api.DetailItem{{Amount: dec("20"), Description: "Fruit"}},
	}))
	if err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}
	id := added.Msg.Transaction.ID

	rec, err := s.txs.ReconcileDetail(ctx, authed(token, &api.ReconcileDetailRequest{ID: id}))
	if err != nil {
		t.Fatalf("ReconcileDetail failed: %v", err)
	}
	if rec.Msg.Added == nil || !rec.Msg.Added.Amount.Equal(dec("10.50")) || rec.Msg.Added.Description != "positive gap" {
		t.Fatalf("unexpected corrective item: %+v", rec.Msg.Added)
	}
	if len(rec.Msg.Transaction.Detail) != 2 {
		t.Errorf("expected 2 detail items after reconcile, got %d", len(rec.Msg.Transaction.Detail))
	}

	rec, err = s.txs.ReconcileDetail(ctx, authed(token, &api.ReconcileDetailRequest{ID: id}))
	if err != nil {
		t.Fatalf("ReconcileDetail failed: %v", err)
	}
	if rec.Msg.Added != nil {
		t.Errorf("expected nothing to add the second time, got %+v", rec.Msg.Added)
	}

	upd, err := s.txs.UpdateTransactionDetail(ctx, authed(token, &api.UpdateTransactionDetailRequest{ID: id}))
	if err != nil {
		t.Fatalf("UpdateTransactionDetail failed: %v", err)
	}
	if len(upd.Msg.Transaction.Detail) != 0 {
		t.Errorf("expected detail to be cleared, got %+v", upd.Msg.Transaction.Detail)
	}

	_, err = s.txs.UpdateTransactionDetail(ctx, authed(token, &api.UpdateTransactionDetailRequest{
		ID:     id,
		Detail: []api.DetailItem{{Amount: dec("0"), Description: "Nothing"}},
	}))
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestTransactionService_GetSummary(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	token := s.register(t, "alice@example.com")

	for _, req := range []*api.AddTransactionRequest{
		{Type: "income", Amount: dec("100"), Description: "Salary"},
		{Type: "expense", Amount: dec("40"), Description: "Rent"},
	} {
		if _, err := s.txs.AddTransaction(ctx, authed(token, req)); err != nil {
			t.Fatalf("AddTransaction failed: %v", err)
		}
	}

	resp, err := s.txs.GetSummary(ctx, authed(token, &api.GetSummaryRequest{Timezone: "Europe/Madrid"}))
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if resp.Msg.Count != 2 || !resp.Msg.Balance.Equal(dec("60")) {
		t.Errorf("unexpected summary: count=%d balance=%s", resp.Msg.Count, resp.Msg.Balance)
	}
	if !resp.Msg.TotalIncome.Equal(dec("100")) || !resp.Msg.TotalExpense.Equal(dec("40")) {
		t.Errorf("unexpected totals: %s / %s", resp.Msg.TotalIncome, resp.Msg.TotalExpense)
	}
	if len(resp.Msg.Months) != 1 {
		t.Errorf("expected a single month bucket, got %d", len(resp.Msg.Months))
	}

	_, err = s.txs.GetSummary(ctx, authed(token, &api.GetSummaryRequest{Timezone: "Mars/Olympus"}))
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestTransactionService_WatchTransactions(t *testing.T) {
	s := setupTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	token := s.register(t, "alice@example.com")

	stream, err := s.txs.WatchTransactions(ctx, authed(token, &api.WatchTransactionsRequest{}))
	if err != nil {
		t.Fatalf("WatchTransactions failed: %v", err)
	}
	defer stream.Close()

	if !stream.Receive() {
		t.Fatalf("expected initial snapshot, got %v", stream.Err())
	}
	if n := len(stream.Msg().Transactions); n != 0 {
		t.Fatalf("expected empty initial snapshot, got %d", n)
	}

	if _, err := s.txs.AddTransaction(ctx, authed(token, &api.AddTransactionRequest{
		Type: "income", Amount: dec("5"), Description: "Tip",
	})); err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}

	if !stream.Receive() {
		t.Fatalf("expected snapshot after write, got %v", stream.Err())
	}
	msg := stream.Msg()
	if len(msg.Transactions) != 1 || !msg.Balance.Equal(dec("5")) {
		t.Errorf("unexpected snapshot: %d transactions, balance %s", len(msg.Transactions), msg.Balance)
	}
}

func TestTransactionService_WatchRequiresAuth(t *testing.T) {
	s := setupTestServer(t)

	stream, err := s.txs.WatchTransactions(context.Background(), connect.NewRequest(&api.WatchTransactionsRequest{}))
	if err == nil {
		defer stream.Close()
		if stream.Receive() {
			t.Fatal("expected no messages without a token")
		}
		err = stream.Err()
	}
	assertCode(t, err, connect.CodeUnauthenticated)
}
