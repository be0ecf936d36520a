package auth

import "errors"

// userMessages are the failures worth rewording for people; everything else is shown as is.
var userMessages = []struct {
	err error
	msg string
}{
	{ErrEmailExists, "This email is already in use."},
	{ErrWeakPassword, "Password is too weak. Use at least 8 characters."},
	{ErrInvalidEmail, "Please enter a valid email address."},
	{ErrInvalidCredentials, "Incorrect email or password."},
	{ErrMissingToken, "Please sign in to continue."},
	{ErrRevokedToken, "Your session has ended. Please sign in again."},
	{ErrInvalidToken, "Your session has expired. Please sign in again."},
}

// UserMessage returns a friendly message for the known auth failures and err.Error()
// for anything else.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return err.Error()
}
