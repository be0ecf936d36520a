package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/pocketledger/internal/auth"
	"github.com/mmynk/pocketledger/internal/ledger"
	"github.com/mmynk/pocketledger/internal/middleware"
	"github.com/mmynk/pocketledger/internal/models"
	"github.com/mmynk/pocketledger/internal/service"
	"github.com/mmynk/pocketledger/internal/storage/kv"
	"github.com/mmynk/pocketledger/internal/storage/sqlite"
	"github.com/mmynk/pocketledger/pkg/api/apiconnect"
)

// setupServer runs the full server stack on a temp database and returns its URL.
func setupServer(t *testing.T) string {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := ledger.New(store, nil, logger)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store, bcrypt.MinCost)

	interceptors := connect.WithInterceptors(
		middleware.NewAuthInterceptor(jwtManager, store, apiconnect.PublicProcedures...),
	)

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewAuthServiceHandler(service.NewAuthService(authenticator, jwtManager, store, logger), interceptors))
	mux.Handle(apiconnect.NewTransactionServiceHandler(service.NewTransactionService(l, nil, logger), interceptors))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		l.Close()
		server.Close()
		store.Close()
	})
	return server.URL
}

func newKV(t *testing.T, prefix string) *kv.Store {
	t.Helper()
	store, err := kv.Open(filepath.Join(t.TempDir(), "device.db"), prefix)
	if err != nil {
		t.Fatalf("failed to open kv store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	c := New(nil, url, opts...)
	t.Cleanup(c.Close)
	return c
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// recv waits for the next auth state notification.
func recv(t *testing.T, ch <-chan *models.User) *models.User {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for auth state")
		return nil
	}
}

func TestClient_AuthLifecycle(t *testing.T) {
	url := setupServer(t)
	ctx := context.Background()
	cache := NewSessionCache(newKV(t, "app:"), 30, false)
	c := newClient(t, url, WithSessionCache(cache))

	states := make(chan *models.User, 8)
	stop := c.OnAuthStateChanged(func(u *models.User) { states <- u })
	defer stop()

	if u := recv(t, states); u != nil {
		t.Fatalf("expected signed-out initial state, got %+v", u)
	}

	user, err := c.Register(ctx, "alice@example.com", "correct horse", "Alice")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if u := recv(t, states); u == nil || u.ID != user.ID {
		t.Fatalf("expected sign-in notification, got %+v", u)
	}
	if c.CurrentUser() == nil || c.Token() == "" {
		t.Fatal("expected client to hold the session")
	}

	refreshed, err := c.RefreshUser(ctx)
	if err != nil {
		t.Fatalf("RefreshUser failed: %v", err)
	}
	if refreshed.DisplayName != "Alice" {
		t.Errorf("expected display name Alice, got %q", refreshed.DisplayName)
	}
	recv(t, states)

	cached, err := cache.Load(ctx)
	if err != nil || cached == nil {
		t.Fatalf("expected cached session, got %v, %v", cached, err)
	}
	if cached.Token != c.Token() || cached.User.Email != "alice@example.com" {
		t.Errorf("unexpected cached session: %+v", cached)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if u := recv(t, states); u != nil {
		t.Fatalf("expected sign-out notification, got %+v", u)
	}
	if cached, _ := cache.Load(ctx); cached != nil {
		t.Error("expected cache to be cleared on logout")
	}

	if _, err := c.RefreshUser(ctx); err != ErrNotSignedIn {
		t.Errorf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestClient_RestoreAndRevocation(t *testing.T) {
	url := setupServer(t)
	ctx := context.Background()
	store := newKV(t, "app:")

	first := newClient(t, url, WithSessionCache(NewSessionCache(store, 30, false)))
	if _, err := first.Register(ctx, "bob@example.com", "correct horse", "Bob"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	second := newClient(t, url, WithSessionCache(NewSessionCache(store, 30, false)))
	user, err := second.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if user == nil || user.Email != "bob@example.com" {
		t.Fatalf("expected restored user, got %+v", user)
	}
	if _, _, err := second.ListTransactions(ctx); err != nil {
		t.Fatalf("restored token should work: %v", err)
	}

	// Signing out through one client revokes the token the other one holds.
	if err := first.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	_, _, err = second.ListTransactions(ctx)
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Fatalf("expected Unauthenticated after logout, got %v", err)
	}
	if second.CurrentUser() != nil {
		t.Error("expected client to sign out after the server rejected its token")
	}
}

func TestClient_RestoreExpired(t *testing.T) {
	url := setupServer(t)
	ctx := context.Background()
	store := newKV(t, "app:")
	cache := NewSessionCache(store, 30, false)

	if err := cache.Save(ctx, "stale-token", &models.User{ID: "u1", Email: "old@example.com"}, time.Now().AddDate(0, 0, -31)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	c := newClient(t, url, WithSessionCache(cache))
	user, err := c.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if user != nil || c.Token() != "" {
		t.Errorf("expected expired session to be dropped, got %+v", user)
	}
	if cached, _ := cache.Load(ctx); cached != nil {
		t.Error("expected expired session to be cleared")
	}
}

func TestClient_Transactions(t *testing.T) {
	url := setupServer(t)
	ctx := context.Background()
	c := newClient(t, url)
	if _, err := c.Register(ctx, "carol@example.com", "correct horse", "Carol"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := c.AddTransaction(ctx, models.TransactionTypeIncome, dec("100"), "Salary", nil); err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}
	tx, err := c.AddTransaction(ctx, models.TransactionTypeExpense, dec("30"), "Dinner", []models.DetailItem{
		{Amount: dec("35"), Description: "Food"},
	})
	if err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}

	preview, err := c.PreviewDetailDiscrepancy(ctx, tx.Amount, tx.Detail)
	if err != nil {
		t.Fatalf("PreviewDetailDiscrepancy failed: %v", err)
	}
	if preview == nil || preview.Description != "negative gap" || !preview.Amount.Equal(dec("5")) {
		t.Fatalf("unexpected preview: %+v", preview)
	}

	updated, added, err := c.ReconcileDetail(ctx, tx.ID)
	if err != nil {
		t.Fatalf("ReconcileDetail failed: %v", err)
	}
	if added == nil || len(updated.Detail) != 2 {
		t.Fatalf("expected corrective item to be appended, got %+v", updated.Detail)
	}

	reg, err := c.RegularizeBalance(ctx, dec("100"), "")
	if err != nil {
		t.Fatalf("RegularizeBalance failed: %v", err)
	}
	if reg == nil || reg.Type != models.TransactionTypeIncome || !reg.Amount.Equal(dec("30")) {
		t.Fatalf("unexpected regularization: %+v", reg)
	}

	balance, err := c.Balance(ctx)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !balance.Equal(dec("100")) {
		t.Errorf("expected balance 100, got %s", balance)
	}

	summary, err := c.GetSummary(ctx, nil)
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if summary.Count != 3 || len(summary.Months) != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	if err := c.DeleteTransaction(ctx, reg.ID); err != nil {
		t.Fatalf("DeleteTransaction failed: %v", err)
	}
	txs, balance, err := c.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(txs) != 2 || !balance.Equal(dec("70")) {
		t.Errorf("expected 2 transactions and balance 70, got %d and %s", len(txs), balance)
	}
}

func TestClient_Subscribe(t *testing.T) {
	url := setupServer(t)
	ctx, cancelCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCtx()

	c := newClient(t, url)
	if _, _, err := c.Subscribe(ctx); err != ErrNotSignedIn {
		t.Fatalf("expected ErrNotSignedIn before sign-in, got %v", err)
	}
	if _, err := c.Register(ctx, "dave@example.com", "correct horse", "Dave"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	updates, cancel, err := c.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	next := func() []models.Transaction {
		t.Helper()
		select {
		case txs, ok := <-updates:
			if !ok {
				t.Fatal("subscription closed early")
			}
			return txs
		case <-ctx.Done():
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}

	if txs := next(); len(txs) != 0 {
		t.Fatalf("expected empty initial list, got %d", len(txs))
	}

	if _, err := c.AddTransaction(ctx, models.TransactionTypeExpense, dec("4.20"), "Coffee", nil); err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}
	if txs := next(); len(txs) != 1 || txs[0].Description != "Coffee" {
		t.Fatalf("unexpected snapshot after write: %+v", txs)
	}

	cancel()
	for range updates {
		// drain until the stream goroutine closes the channel
	}
}

func TestClient_SubscribeWithRevokedTokenSignsOut(t *testing.T) {
	url := setupServer(t)
	ctx, cancelCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCtx()

	owner := newClient(t, url)
	user, err := owner.Register(ctx, "frank@example.com", "correct horse", "Frank")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	cache := NewSessionCache(newKV(t, "app:"), 30, false)
	if err := cache.Save(ctx, owner.Token(), user, time.Now()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	device := newClient(t, url, WithSessionCache(cache))
	if _, err := device.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if err := owner.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	updates, cancel, err := device.Subscribe(ctx)
	if err == nil {
		defer cancel()
		for range updates {
			t.Error("expected no snapshot for a revoked token")
		}
	} else if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}

	if device.CurrentUser() != nil {
		t.Error("expected the device to sign out")
	}
	if cached, err := cache.Load(ctx); err != nil || cached != nil {
		t.Errorf("expected cached session to be cleared, got %+v (%v)", cached, err)
	}
}
