package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/pocketledger/internal/auth"
	"github.com/mmynk/pocketledger/internal/models"
	"github.com/mmynk/pocketledger/internal/storage"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for storing the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// EmailKey is the context key for storing the authenticated user's email.
	EmailKey contextKey = "email"
	// SessionIDKey is the context key for the session (token jti) behind the request.
	SessionIDKey contextKey = "session_id"
)

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// GetEmail extracts the user email from the context.
// Returns empty string if not found.
func GetEmail(ctx context.Context) string {
	email, _ := ctx.Value(EmailKey).(string)
	return email
}

// GetSessionID extracts the session ID from the context.
func GetSessionID(ctx context.Context) string {
	sessionID, _ := ctx.Value(SessionIDKey).(string)
	return sessionID
}

// WithUser returns a context carrying an authenticated identity.
func WithUser(ctx context.Context, userID, email, sessionID string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, EmailKey, email)
	if info, ok := ctx.Value(callInfoKey).(*callInfo); ok {
		info.userID = userID
	}
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// AuthError wraps a known auth failure with the message shown to people.
func AuthError(code connect.Code, err error) *connect.Error {
	return connect.NewError(code, errors.New(auth.UserMessage(err)))
}

// SessionLookup is the part of the store the interceptor needs.
type SessionLookup interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
}

// AuthInterceptor validates bearer tokens on every procedure except the public ones.
// A token is accepted only while its session exists, is not revoked and has not expired.
type AuthInterceptor struct {
	jwtManager *auth.JWTManager
	sessions   SessionLookup
	public     map[string]bool
	now        func() time.Time
}

// NewAuthInterceptor creates an interceptor. Procedures listed in public skip authentication.
func NewAuthInterceptor(jwtManager *auth.JWTManager, sessions SessionLookup, public ...string) *AuthInterceptor {
	set := make(map[string]bool, len(public))
	for _, p := range public {
		set[p] = true
	}
	return &AuthInterceptor{
		jwtManager: jwtManager,
		sessions:   sessions,
		public:     set,
		now:        time.Now,
	}
}

// WrapUnary implements connect.Interceptor.
func (i *AuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient || i.public[req.Spec().Procedure] {
			return next(ctx, req)
		}
		ctx, err := i.authenticate(ctx, req.Header())
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

// WrapStreamingClient implements connect.Interceptor. Clients are passed through untouched.
func (i *AuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *AuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if i.public[conn.Spec().Procedure] {
			return next(ctx, conn)
		}
		ctx, err := i.authenticate(ctx, conn.RequestHeader())
		if err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

func (i *AuthInterceptor) authenticate(ctx context.Context, header http.Header) (context.Context, error) {
	// Extract Authorization header
	authHeader := header.Get("Authorization")
	if authHeader == "" {
		return ctx, AuthError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	// Parse Bearer token
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ctx, AuthError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
	}

	claims, err := i.jwtManager.Validate(parts[1])
	if err != nil {
		return ctx, AuthError(connect.CodeUnauthenticated, err)
	}

	session, err := i.sessions.GetSession(ctx, claims.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return ctx, AuthError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
	}
	if err != nil {
		return ctx, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to load session: %w", err))
	}
	if session.Revoked {
		return ctx, AuthError(connect.CodeUnauthenticated, auth.ErrRevokedToken)
	}
	if session.UserID != claims.UserID || i.now().Unix() >= session.ExpiresAt {
		return ctx, AuthError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
	}

	return WithUser(ctx, claims.UserID, claims.Email, claims.ID), nil
}
