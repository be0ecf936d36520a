package models

// Session records an issued token so it can be revoked on logout.
type Session struct {
	// ID matches the token's jti claim.
	ID string

	UserID string

	// ExpiresAt is the Unix timestamp after which the token is rejected anyway.
	ExpiresAt int64

	Revoked bool

	CreatedAt int64
}
