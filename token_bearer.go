package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/goliatone/go-errors"
)

// bearerKeyLength is the number of random bytes in a token key. Hex encoded
// that yields the 40 character keys clients present back to us.
const bearerKeyLength = 20

// Recognized Authorization header schemes
var bearerSchemes = []string{"Token", "Bearer"}

// GenerateTokenKey returns a new opaque bearer key
func GenerateTokenKey() (string, error) {
	raw := make([]byte, bearerKeyLength)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate token key")
	}
	return hex.EncodeToString(raw), nil
}

// BearerTokenService turns stored auth tokens into request credentials and
// back. Issued keys live until revoked, login reuses the existing row.
type BearerTokenService struct {
	repo   RepositoryManager
	logger Logger
}

// NewBearerTokenService creates a new BearerTokenService instance
func NewBearerTokenService(repo RepositoryManager, logger Logger) *BearerTokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &BearerTokenService{
		repo:   repo,
		logger: logger,
	}
}

// IssueFor returns the user's bearer token, creating one on first login
func (s *BearerTokenService) IssueFor(ctx context.Context, user *User) (*AuthToken, error) {
	if user == nil {
		return nil, ErrIdentityNotFound
	}

	token, err := s.repo.AuthTokens().GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to issue bearer token")
	}

	return token, nil
}

// Resolve maps an Authorization header value to the owning user. The header
// may use either the Token or Bearer scheme.
func (s *BearerTokenService) Resolve(ctx context.Context, header string) (*User, error) {
	key, err := ParseAuthorizationHeader(header)
	if err != nil {
		return nil, err
	}

	token, err := s.repo.AuthTokens().GetByKey(ctx, key)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to resolve bearer token")
	}

	if token.User == nil {
		return nil, ErrIdentityNotFound
	}

	if !token.User.IsActive {
		return nil, ErrAccountInactive
	}

	return token.User, nil
}

// ParseAuthorizationHeader extracts the key from a `Token <key>` or
// `Bearer <key>` header value.
func ParseAuthorizationHeader(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingCredential
	}

	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", ErrMissingCredential
	}

	for _, scheme := range bearerSchemes {
		if strings.EqualFold(parts[0], scheme) {
			return parts[1], nil
		}
	}

	return "", ErrMissingCredential
}
