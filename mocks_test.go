package accounts_test

import (
	"context"
	"database/sql"
	"sync"

	accounts "github.com/goliatone/go-accounts"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockUsers implements accounts.Users
type MockUsers struct {
	mock.Mock
}

func userReturn(args mock.Arguments) (*accounts.User, error) {
	var user *accounts.User
	if u := args.Get(0); u != nil {
		user = u.(*accounts.User)
	}
	return user, args.Error(1)
}

func (m *MockUsers) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*accounts.User, error) {
	return userReturn(m.Called(ctx, id))
}

func (m *MockUsers) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*accounts.User, error) {
	return userReturn(m.Called(ctx, identifier))
}

func (m *MockUsers) FindActiveByEmail(ctx context.Context, email string) ([]*accounts.User, error) {
	args := m.Called(ctx, email)
	var found []*accounts.User
	if u := args.Get(0); u != nil {
		found = u.([]*accounts.User)
	}
	return found, args.Error(1)
}

func (m *MockUsers) Create(ctx context.Context, record *accounts.User, criteria ...repository.InsertCriteria) (*accounts.User, error) {
	return userReturn(m.Called(ctx, record))
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *accounts.User, criteria ...repository.InsertCriteria) (*accounts.User, error) {
	return userReturn(m.Called(ctx, tx, record))
}

func (m *MockUsers) Activate(ctx context.Context, id uuid.UUID) (*accounts.User, error) {
	return userReturn(m.Called(ctx, id))
}

func (m *MockUsers) ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*accounts.User, error) {
	return userReturn(m.Called(ctx, tx, id))
}

func (m *MockUsers) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockUsers) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return m.Called(ctx, tx, id, passwordHash).Error(0)
}

func (m *MockUsers) SetUsername(ctx context.Context, id uuid.UUID, username string) (*accounts.User, error) {
	return userReturn(m.Called(ctx, id, username))
}

func (m *MockUsers) SetUsernameTx(ctx context.Context, tx bun.IDB, id uuid.UUID, username string) (*accounts.User, error) {
	return userReturn(m.Called(ctx, tx, id, username))
}

func (m *MockUsers) TrackAttemptedLogin(ctx context.Context, user *accounts.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUsers) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *accounts.User) error {
	return m.Called(ctx, tx, user).Error(0)
}

func (m *MockUsers) TrackSuccessfulLogin(ctx context.Context, user *accounts.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUsers) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *accounts.User) error {
	return m.Called(ctx, tx, user).Error(0)
}

func (m *MockUsers) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]*accounts.User, error) {
	margs := m.Called(ctx, tx, sql, args)
	var found []*accounts.User
	if u := margs.Get(0); u != nil {
		found = u.([]*accounts.User)
	}
	return found, margs.Error(1)
}

// MockAuthTokens implements accounts.AuthTokens
type MockAuthTokens struct {
	mock.Mock
}

func tokenReturn(args mock.Arguments) (*accounts.AuthToken, error) {
	var token *accounts.AuthToken
	if t := args.Get(0); t != nil {
		token = t.(*accounts.AuthToken)
	}
	return token, args.Error(1)
}

func (m *MockAuthTokens) GetByKey(ctx context.Context, key string) (*accounts.AuthToken, error) {
	return tokenReturn(m.Called(ctx, key))
}

func (m *MockAuthTokens) GetOrCreate(ctx context.Context, userID uuid.UUID) (*accounts.AuthToken, error) {
	return tokenReturn(m.Called(ctx, userID))
}

func (m *MockAuthTokens) GetOrCreateTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*accounts.AuthToken, error) {
	return tokenReturn(m.Called(ctx, tx, userID))
}

func (m *MockAuthTokens) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

// MockRepositoryManager aggregates the mock stores. RunInTx invokes the
// callback with a zero transaction so Tx expectations can use mock.Anything.
type MockRepositoryManager struct {
	users  *MockUsers
	tokens *MockAuthTokens
}

func NewMockRepositoryManager() *MockRepositoryManager {
	return &MockRepositoryManager{
		users:  &MockUsers{},
		tokens: &MockAuthTokens{},
	}
}

func (m *MockRepositoryManager) Validate() error {
	return nil
}

func (m *MockRepositoryManager) MustValidate() {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Users() accounts.Users {
	return m.users
}

func (m *MockRepositoryManager) AuthTokens() accounts.AuthTokens {
	return m.tokens
}

// MockMailer records every message instead of delivering it
type MockMailer struct {
	mu   sync.Mutex
	sent []*accounts.EmailMessage
	err  error
}

func (m *MockMailer) Send(ctx context.Context, msg *accounts.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *MockMailer) Sent() []*accounts.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*accounts.EmailMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// testConfig implements accounts.Config with overridable fields
type testConfig struct {
	signingKey                 string
	domain                     string
	siteName                   string
	protocol                   string
	fromEmail                  string
	activationURL              string
	passwordResetConfirmURL    string
	sendActivationEmail        bool
	loginAfterRegistration     bool
	loginAfterActivation       bool
	setPasswordRetype          bool
	passwordResetConfirmRetype bool
	setUsernameRetype          bool
	tokenTTL                   int
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey:              "test-signing-key-keep-it-secret",
		domain:                  "example.com",
		siteName:                "Example",
		protocol:                "https",
		fromEmail:               "no-reply@example.com",
		activationURL:           "activate/{uid}/{token}",
		passwordResetConfirmURL: "password/reset/confirm/{uid}/{token}",
		tokenTTL:                24,
	}
}

func (c *testConfig) GetSigningKey() string { return c.signingKey }
func (c *testConfig) GetDomain() string { return c.domain }
func (c *testConfig) GetSiteName() string { return c.siteName }
func (c *testConfig) GetProtocol() string { return c.protocol }
func (c *testConfig) GetFromEmail() string { return c.fromEmail }
func (c *testConfig) GetActivationURL() string { return c.activationURL }
func (c *testConfig) GetPasswordResetConfirmURL() string { return c.passwordResetConfirmURL }
func (c *testConfig) GetSendActivationEmail() bool { return c.sendActivationEmail }
func (c *testConfig) GetLoginAfterRegistration() bool { return c.loginAfterRegistration }
func (c *testConfig) GetLoginAfterActivation() bool { return c.loginAfterActivation }
func (c *testConfig) GetSetPasswordRetype() bool { return c.setPasswordRetype }
func (c *testConfig) GetPasswordResetConfirmRetype() bool { return c.passwordResetConfirmRetype }
func (c *testConfig) GetSetUsernameRetype() bool { return c.setUsernameRetype }
func (c *testConfig) GetOneTimeTokenTTL() int { return c.tokenTTL }

func newTestUser() *accounts.User {
	hash, _ := accounts.HashPassword("super secret password")
	return &accounts.User{
		ID:           uuid.New(),
		Username:     "peperone",
		Email:        "peperone@example.com",
		PasswordHash: hash,
		IsActive:     true,
	}
}

var (
	_ accounts.Users             = (*MockUsers)(nil)
	_ accounts.AuthTokens        = (*MockAuthTokens)(nil)
	_ accounts.RepositoryManager = (*MockRepositoryManager)(nil)
	_ accounts.Mailer            = (*MockMailer)(nil)
	_ accounts.Config            = (*testConfig)(nil)
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}
