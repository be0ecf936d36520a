// Package client is the Go SDK for the pocketledger services. It keeps the signed-in
// state, attaches the bearer token to every call, persists the session through a
// SessionCache and lets callers react to sign-in and sign-out.
package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/pocketledger/internal/models"
	"github.com/mmynk/pocketledger/internal/notify"
	"github.com/mmynk/pocketledger/pkg/api"
	"github.com/mmynk/pocketledger/pkg/api/apiconnect"
)

// ErrNotSignedIn is returned by calls that need a session when there is none.
var ErrNotSignedIn = errors.New("not signed in")

// Client talks to a pocketledger server on behalf of one person.
// It is safe for concurrent use.
type Client struct {
	auth   apiconnect.AuthServiceClient
	txs    apiconnect.TransactionServiceClient
	cache  *SessionCache
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	token string
	user  *models.User

	// authHub fans auth state changes out to OnAuthStateChanged listeners.
	authHub *notify.Hub[struct{}, *models.User]
}

// Option configures a Client.
type Option func(*Client)

// WithSessionCache persists the session so Restore can pick it up on the next launch.
func WithSessionCache(cache *SessionCache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithLogger sets the logger used for background failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the server at baseURL. A nil httpClient means http.DefaultClient.
func New(httpClient connect.HTTPClient, baseURL string, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		logger:  slog.Default(),
		now:     time.Now,
		authHub: notify.NewHub[struct{}, *models.User](),
	}
	for _, opt := range opts {
		opt(c)
	}

	interceptors := connect.WithInterceptors(&bearerInterceptor{token: c.Token})
	c.auth = apiconnect.NewAuthServiceClient(httpClient, baseURL, interceptors)
	c.txs = apiconnect.NewTransactionServiceClient(httpClient, baseURL, interceptors)
	return c
}

// Close stops every auth state listener.
func (c *Client) Close() {
	c.authHub.Close()
}

// Token returns the current bearer token, empty when signed out.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// CurrentUser returns the signed-in user, or nil.
func (c *Client) CurrentUser() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Register creates an account and signs in with it.
func (c *Client) Register(ctx context.Context, email, password, displayName string) (*models.User, error) {
	resp, err := c.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	}))
	if err != nil {
		return nil, err
	}
	return c.signIn(ctx, resp.Msg.Token, resp.Msg.User.Model())
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	resp, err := c.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    email,
		Password: password,
	}))
	if err != nil {
		return nil, err
	}
	return c.signIn(ctx, resp.Msg.Token, resp.Msg.User.Model())
}

// Logout ends the session on the server and forgets it locally. The local state is
// cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	if c.Token() == "" {
		return nil
	}
	_, err := c.auth.Logout(ctx, connect.NewRequest(&api.LogoutRequest{}))
	if clearErr := c.signOut(ctx); clearErr != nil && err == nil {
		err = clearErr
	}
	if connect.CodeOf(err) == connect.CodeUnauthenticated {
		// The server had already forgotten the session.
		return nil
	}
	return err
}

// RefreshUser reloads the signed-in user's profile from the server.
func (c *Client) RefreshUser(ctx context.Context) (*models.User, error) {
	if c.Token() == "" {
		return nil, ErrNotSignedIn
	}
	resp, err := c.auth.GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{}))
	if err != nil {
		return nil, c.check(ctx, err)
	}
	user := resp.Msg.User.Model()

	c.mu.Lock()
	c.user = user
	c.mu.Unlock()
	c.authHub.Publish(struct{}{}, user)
	return user, nil
}

// Restore resumes the session saved by an earlier run. It returns nil when nothing was
// saved or the saved session expired, in which case the cache is cleared.
func (c *Client) Restore(ctx context.Context) (*models.User, error) {
	if c.cache == nil {
		return nil, nil
	}

	expired, err := c.cache.IsExpired(ctx, c.now())
	if err != nil {
		return nil, err
	}
	if expired {
		c.logger.Info("Cached session expired")
		return nil, c.cache.Clear(ctx)
	}

	session, err := c.cache.Load(ctx)
	if err != nil || session == nil {
		return nil, err
	}

	c.setState(session.Token, session.User)
	return session.User, nil
}

// OnAuthStateChanged calls fn with the current user straight away and again after every
// sign-in or sign-out (nil when signed out). Calls happen on a separate goroutine, one at a
// time. The returned func stops further calls.
func (c *Client) OnAuthStateChanged(fn func(*models.User)) func() {
	ctx, cancel := context.WithCancel(context.Background())

	// Subscribing under the lock means no change can slip between the initial state and
	// the first published one.
	c.mu.Lock()
	ch, unsubscribe := c.authHub.Subscribe(ctx, struct{}{})
	current := c.user
	c.mu.Unlock()

	go func() {
		fn(current)
		for user := range ch {
			fn(user)
		}
	}()

	return func() {
		unsubscribe()
		cancel()
	}
}

func (c *Client) signIn(ctx context.Context, token string, user *models.User) (*models.User, error) {
	c.setState(token, user)
	if c.cache != nil {
		if err := c.cache.Save(ctx, token, user, c.now()); err != nil {
			return user, err
		}
	}
	return user, nil
}

func (c *Client) signOut(ctx context.Context) error {
	c.setState("", nil)
	if c.cache != nil {
		return c.cache.Clear(ctx)
	}
	return nil
}

func (c *Client) setState(token string, user *models.User) {
	c.mu.Lock()
	c.token = token
	c.user = user
	c.authHub.Publish(struct{}{}, user)
	c.mu.Unlock()
}

// check signs out locally when the server no longer accepts the token.
func (c *Client) check(ctx context.Context, err error) error {
	if connect.CodeOf(err) != connect.CodeUnauthenticated || c.Token() == "" {
		return err
	}
	c.logger.Info("Session rejected by server, signing out", "error", err)
	if clearErr := c.signOut(ctx); clearErr != nil {
		c.logger.Warn("Failed to clear cached session", "error", clearErr)
	}
	return err
}

// bearerInterceptor attaches the current token to outgoing calls.
type bearerInterceptor struct {
	token func() string
}

func (b *bearerInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if token := b.token(); req.Spec().IsClient && token != "" {
			req.Header().Set("Authorization", "Bearer "+token)
		}
		return next(ctx, req)
	}
}

func (b *bearerInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		if token := b.token(); token != "" {
			conn.RequestHeader().Set("Authorization", "Bearer "+token)
		}
		return conn
	}
}

func (b *bearerInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
