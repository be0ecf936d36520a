package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmynk/pocketledger/internal/models"
	"github.com/mmynk/pocketledger/internal/storage/kv"
	"github.com/mmynk/pocketledger/pkg/api"
)

const (
	keyLoggedIn  = "isLoggedIn"
	keyToken     = "token"
	keyUser      = "user"
	keyLoginTime = "loginTime"
)

var sessionKeys = []string{keyLoggedIn, keyToken, keyUser, keyLoginTime}

// CachedSession is what survives between app launches.
type CachedSession struct {
	Token     string
	User      *models.User
	LoginTime time.Time
}

// SessionCache keeps the signed-in state in on-device key-value storage.
type SessionCache struct {
	store       *kv.Store
	expiry      time.Duration
	development bool
}

// NewSessionCache creates a cache whose sessions expire expiryDays after login.
// In development sessions never expire.
func NewSessionCache(store *kv.Store, expiryDays int, development bool) *SessionCache {
	return &SessionCache{
		store:       store,
		expiry:      time.Duration(expiryDays) * 24 * time.Hour,
		development: development,
	}
}

// Save records a signed-in session.
func (c *SessionCache) Save(ctx context.Context, token string, user *models.User, loginTime time.Time) error {
	err := c.store.SetMany(ctx, map[string]any{
		keyLoggedIn:  true,
		keyToken:     token,
		keyUser:      api.FromUser(user),
		keyLoginTime: loginTime.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load returns the cached session, or nil when nobody is signed in.
func (c *SessionCache) Load(ctx context.Context) (*CachedSession, error) {
	values, err := c.store.GetMany(ctx, sessionKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var loggedIn bool
	if raw, ok := values[keyLoggedIn]; ok {
		if err := json.Unmarshal(raw, &loggedIn); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", keyLoggedIn, err)
		}
	}
	if !loggedIn {
		return nil, nil
	}

	var (
		session CachedSession
		user    api.User
		loginMs int64
	)
	for key, dst := range map[string]any{keyToken: &session.Token, keyUser: &user, keyLoginTime: &loginMs} {
		raw, ok := values[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
	}
	if session.Token == "" {
		return nil, nil
	}

	session.User = user.Model()
	session.LoginTime = time.UnixMilli(loginMs)
	return &session, nil
}

// IsExpired reports whether the cached session is older than the configured number of days.
// It is always false in development and when nothing is cached.
func (c *SessionCache) IsExpired(ctx context.Context, now time.Time) (bool, error) {
	if c.development {
		return false, nil
	}

	var loginMs int64
	found, err := c.store.Get(ctx, keyLoginTime, &loginMs)
	if err != nil || !found {
		return false, err
	}
	return now.Sub(time.UnixMilli(loginMs)) > c.expiry, nil
}

// Clear forgets the cached session. Other entries under the same prefix are left alone.
func (c *SessionCache) Clear(ctx context.Context) error {
	if err := c.store.RemoveMany(ctx, sessionKeys); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
