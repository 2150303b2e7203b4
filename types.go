package accounts

import (
	"context"
	"fmt"
)

// Logger is the minimal logging surface the package needs. Any structured
// logger can be adapted to it.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated account
type Identity interface {
	ID() string
	Username() string
	Email() string
}

// Config holds account endpoint options
type Config interface {
	GetSigningKey() string
	GetDomain() string
	GetSiteName() string
	GetProtocol() string
	GetFromEmail() string
	GetActivationURL() string
	GetPasswordResetConfirmURL() string
	GetSendActivationEmail() bool
	GetLoginAfterRegistration() bool
	GetLoginAfterActivation() bool
	GetSetPasswordRetype() bool
	GetPasswordResetConfirmRetype() bool
	GetSetUsernameRetype() bool
	GetOneTimeTokenTTL() int
}

// IdentityProvider ensure we have a store to verify account credentials
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
