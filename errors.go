package accounts

import (
	"github.com/goliatone/go-errors"
)

// Text codes surfaced to API clients alongside the HTTP status.
const (
	TextCodeTokenExpired   = "TOKEN_EXPIRED"
	TextCodeTokenInvalid   = "TOKEN_INVALID"
	TextCodeInactive       = "ACCOUNT_INACTIVE"
	TextCodeUsernameTaken  = "USERNAME_TAKEN"
	TextCodeEmailTaken     = "EMAIL_TAKEN"
	TextCodeBadCredentials = "BAD_CREDENTIALS"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeBadCredentials)

// ErrMismatchedHashAndPassword is returned when credentials do not match.
// It is indistinguishable from a missing identity on purpose.
var ErrMismatchedHashAndPassword = errors.New("invalid credentials provided", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeBadCredentials)

// ErrAccountInactive is returned when an inactive account tries to authenticate
var ErrAccountInactive = errors.New("account is not active", errors.CategoryAuthz).
	WithCode(errors.CodeForbidden).
	WithTextCode(TextCodeInactive)

// ErrTooManyLoginAttempts is returned once the cool down window engages
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode("TOO_MANY_ATTEMPTS")

// ErrTokenExpired is returned for stale activation or reset tokens
var ErrTokenExpired = errors.New("token has expired", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenInvalid is returned for tokens that fail signature or state checks
var ErrTokenInvalid = errors.New("invalid token", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeTokenInvalid)

// ErrNoEmptyString guards hashing and uid encoding entry points
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// ErrMissingCredential is returned by the auth middleware when the
// Authorization header is absent or malformed
var ErrMissingCredential = errors.New("missing or malformed authorization header", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// HTTPStatus maps an error to the response status code. Rich errors carry
// their own code, everything else is treated as an internal failure.
func HTTPStatus(err error) int {
	if err == nil {
		return 200
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Code > 0 {
		return richErr.Code
	}

	return 500
}
