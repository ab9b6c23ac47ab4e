// Package auth holds the identity providers the session store signs users in with.
package auth

import (
	"context"
	"strings"

	"gemchat/internal/model"
)

// Provider is the authentication collaborator. Failed calls return an *Error
// whose text is what users eventually read, after mapping.
type Provider interface {
	Login(ctx context.Context, email, password string) (*model.Identity, error)
	// Register creates the account without signing it in.
	Register(ctx context.Context, email, password string) error
	SendPasswordReset(ctx context.Context, email string) error
	SignOut(ctx context.Context) error
	// CurrentIdentity returns the signed-in identity, or nil.
	CurrentIdentity() *model.Identity
}

// Provider error codes, shared by every backend.
const (
	CodeInvalidEmail    = "INVALID_EMAIL"
	CodeEmailNotFound   = "EMAIL_NOT_FOUND"
	CodeInvalidPassword = "INVALID_PASSWORD"
	CodeEmailExists     = "EMAIL_EXISTS"
	CodeWeakPassword    = "WEAK_PASSWORD"
	CodeNetwork         = "NETWORK_REQUEST_FAILED"
	CodeInvalidOobCode  = "INVALID_OOB_CODE"
	CodeExpiredOobCode  = "EXPIRED_OOB_CODE"
)

// Messages use the wording of the hosted identity SDKs.
var codeMessages = map[string]string{
	CodeInvalidEmail:    "The email address is badly formatted.",
	CodeEmailNotFound:   "There is no user record corresponding to this identifier. The user may have been deleted.",
	CodeInvalidPassword: "The password is invalid or the user does not have a password.",
	CodeEmailExists:     "The email address is already in use by another account.",
	CodeWeakPassword:    "Password should be at least 6 characters",
	CodeNetwork:         "A network error (such as timeout, interrupted connection or unreachable host) has occurred.",
	CodeInvalidOobCode:  "The action code is invalid. This can happen if the code is malformed, expired, or has already been used.",
	CodeExpiredOobCode:  "The action code has expired.",
}

// Error is a provider failure.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// newError builds an Error for code with its standard message.
func newError(code string) *Error {
	msg, ok := codeMessages[code]
	if !ok {
		msg = code
	}
	return &Error{Code: code, Message: msg}
}

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 6

// MaskEmail keeps logs free of full addresses: "ayse@example.com" -> "ay****@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email[:min(2, len(email))] + "****"
	}
	return email[:min(2, at)] + "****" + email[at:]
}
