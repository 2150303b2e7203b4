package accounts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenPurpose scopes a one time token to a single operation
type TokenPurpose = string

const (
	// PurposeActivate marks account activation tokens
	PurposeActivate TokenPurpose = "activate"
	// PurposePasswordReset marks password reset tokens
	PurposePasswordReset TokenPurpose = "password-reset"
)

// OneTimeClaims is the claim set carried by activation and reset tokens.
// The fingerprint binds the token to the user state at issue time.
type OneTimeClaims struct {
	jwt.RegisteredClaims
	Purpose     string `json:"purpose"`
	Fingerprint string `json:"fpt"`
}

// OneTimeTokenService mints and checks the short lived, state bound tokens
// that back activation and password reset links. Tokens are HS256 JWTs whose
// fingerprint claim covers the password hash and last login timestamp, so a
// password change or a login invalidates every previously issued token.
type OneTimeTokenService struct {
	signingKey []byte
	ttl        time.Duration
	logger     Logger
}

// NewOneTimeTokenService creates a new OneTimeTokenService instance
func NewOneTimeTokenService(signingKey []byte, ttlHours int, logger Logger) *OneTimeTokenService {
	if logger == nil {
		logger = defLogger{}
	}

	ttl := time.Duration(ttlHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &OneTimeTokenService{
		signingKey: signingKey,
		ttl:        ttl,
		logger:     logger,
	}
}

// Make issues a token for the given user and purpose
func (ts *OneTimeTokenService) Make(user *User, purpose TokenPurpose) (string, error) {
	if user == nil {
		return "", errors.New("user must not be nil", errors.CategoryBadInput)
	}

	now := time.Now()
	claims := &OneTimeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
		Purpose:     purpose,
		Fingerprint: userFingerprint(user),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign one time token")
	}

	return signed, nil
}

// Check validates the token signature and expiry, that it was minted for
// the given user and purpose, and that the user state has not moved on
// since issuance.
func (ts *OneTimeTokenService) Check(tokenString string, user *User, purpose TokenPurpose) error {
	if user == nil {
		return ErrTokenInvalid
	}

	token, err := jwt.ParseWithClaims(tokenString, &OneTimeClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("one time token has unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}

	claims, ok := token.Claims.(*OneTimeClaims)
	if !ok || !token.Valid {
		ts.logger.Error("one time token claims could not be decoded")
		return ErrTokenInvalid
	}

	if claims.Purpose != purpose {
		return ErrTokenInvalid
	}

	if claims.Subject != user.ID.String() {
		return ErrTokenInvalid
	}

	if claims.Fingerprint != userFingerprint(user) {
		return ErrTokenInvalid
	}

	return nil
}

// userFingerprint hashes the mutable user state a token must stay bound to.
func userFingerprint(user *User) string {
	var loggedIn int64
	if user.LoggedInAt != nil {
		loggedIn = user.LoggedInAt.Unix()
	}

	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%s:%d", user.ID, user.PasswordHash, loggedIn))
	return hex.EncodeToString(sum[:])
}
