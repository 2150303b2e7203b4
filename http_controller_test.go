package accounts_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, repo *MockRepositoryManager, cfg *testConfig, opts ...accounts.AccountControllerOption) *fiber.App {
	t.Helper()

	app := fiber.New()

	base := []accounts.AccountControllerOption{
		accounts.WithRepositoryManager(repo),
		accounts.WithConfig(cfg),
		accounts.WithControllerLogger(testLogger{}),
	}

	accounts.RegisterAccountRoutes(app, append(base, opts...)...)

	return app
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestRegisterEndpoint(t *testing.T) {
	repo := NewMockRepositoryManager()
	cfg := newTestConfig()

	created := newTestUser()

	repo.users.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(created, nil).Once()

	app := newTestApp(t, repo, cfg)

	res, err := app.Test(jsonRequest("POST", "/auth/register", `{
		"email": "peperone@example.com",
		"password": "super secret password"
	}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, res.StatusCode)

	body := decodeBody(t, res)
	assert.Equal(t, created.Email, body["email"])
	assert.NotContains(t, body, "auth_token")
	assert.NotContains(t, body, "password_hash")
}

func TestRegisterEndpointValidation(t *testing.T) {
	repo := NewMockRepositoryManager()
	app := newTestApp(t, repo, newTestConfig())

	res, err := app.Test(jsonRequest("POST", "/auth/register", `{
		"email": "not-an-email",
		"password": "short"
	}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)

	body := decodeBody(t, res)
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
}

func TestLoginEndpoint(t *testing.T) {
	repo := NewMockRepositoryManager()
	cfg := newTestConfig()

	user := newTestUser()

	repo.users.On("GetByIdentifier", mock.Anything, user.Email).Return(user, nil).Once()
	repo.users.On("TrackSuccessfulLogin", mock.Anything, user).Return(nil).Once()
	repo.users.On("GetByID", mock.Anything, user.ID.String()).Return(user, nil).Once()
	repo.tokens.On("GetOrCreate", mock.Anything, user.ID).
		Return(&accounts.AuthToken{Key: "deadbeef", UserID: user.ID}, nil).Once()

	app := newTestApp(t, repo, cfg)

	res, err := app.Test(jsonRequest("POST", "/auth/login", `{
		"identifier": "peperone@example.com",
		"password": "super secret password"
	}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	body := decodeBody(t, res)
	assert.Equal(t, "deadbeef", body["auth_token"])
}

func TestLoginEndpointBadCredentials(t *testing.T) {
	repo := NewMockRepositoryManager()
	user := newTestUser()

	repo.users.On("GetByIdentifier", mock.Anything, user.Email).Return(user, nil).Once()
	repo.users.On("TrackAttemptedLogin", mock.Anything, user).Return(nil).Once()

	app := newTestApp(t, repo, newTestConfig())

	res, err := app.Test(jsonRequest("POST", "/auth/login", `{
		"identifier": "peperone@example.com",
		"password": "wrong password"
	}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)

	body := decodeBody(t, res)
	assert.Equal(t, accounts.TextCodeBadCredentials, body["text_code"])
}

func TestLoginEndpointInactiveAccount(t *testing.T) {
	repo := NewMockRepositoryManager()

	user := newTestUser()
	user.IsActive = false

	repo.users.On("GetByIdentifier", mock.Anything, user.Email).Return(user, nil).Once()

	app := newTestApp(t, repo, newTestConfig())

	res, err := app.Test(jsonRequest("POST", "/auth/login", `{
		"identifier": "peperone@example.com",
		"password": "super secret password"
	}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, res.StatusCode)
}

func TestActivateEndpoint(t *testing.T) {
	repo := NewMockRepositoryManager()
	cfg := newTestConfig()

	tokens := accounts.NewOneTimeTokenService([]byte(cfg.GetSigningKey()), 1, testLogger{})

	user := newTestUser()
	user.IsActive = false

	token, err := tokens.Make(user, accounts.PurposeActivate)
	require.NoError(t, err)

	activated := *user
	activated.IsActive = true

	repo.users.On("GetByID", mock.Anything, user.ID.String()).Return(user, nil).Once()
	repo.users.On("ActivateTx", mock.Anything, mock.Anything, user.ID).Return(&activated, nil).Once()

	app := newTestApp(t, repo, cfg)

	res, err := app.Test(jsonRequest("POST", "/auth/activate", `{
		"uid": "`+accounts.EncodeUID(user.ID)+`",
		"token": "`+token+`"
	}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}

func TestActivateEndpointBadToken(t *testing.T) {
	repo := NewMockRepositoryManager()
	cfg := newTestConfig()

	user := newTestUser()
	repo.users.On("GetByID", mock.Anything, user.ID.String()).Return(user, nil).Once()

	app := newTestApp(t, repo, cfg)

	res, err := app.Test(jsonRequest("POST", "/auth/activate", `{
		"uid": "`+accounts.EncodeUID(user.ID)+`",
		"token": "garbage"
	}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)

	body := decodeBody(t, res)
	assert.Equal(t, accounts.TextCodeTokenInvalid, body["text_code"])
}

func TestPasswordResetEndpointNeverLeaks(t *testing.T) {
	repo := NewMockRepositoryManager()
	cfg := newTestConfig()

	mailer := &MockMailer{}
	tokens := accounts.NewOneTimeTokenService([]byte(cfg.GetSigningKey()), 1, testLogger{})
	notifier := newTestNotifier(t, mailer, cfg, tokens)

	repo.users.On("FindActiveByEmail", mock.Anything, "ghost@example.com").
		Return(nil, nil).Once()

	app := newTestApp(t, repo, cfg, accounts.WithNotifier(notifier))

	res, err := app.Test(jsonRequest("POST", "/auth/password/reset", `{
		"email": "ghost@example.com"
	}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}

func TestPasswordResetConfirmEndpoint(t *testing.T) {
	repo := NewMockRepositoryManager()
	cfg := newTestConfig()

	tokens := accounts.NewOneTimeTokenService([]byte(cfg.GetSigningKey()), 1, testLogger{})

	user := newTestUser()
	token, err := tokens.Make(user, accounts.PurposePasswordReset)
	require.NoError(t, err)

	repo.users.On("GetByID", mock.Anything, user.ID.String()).Return(user, nil).Once()
	repo.users.On("SetPasswordTx", mock.Anything, mock.Anything, user.ID, mock.Anything).
		Return(nil).Once()

	app := newTestApp(t, repo, cfg)

	res, err := app.Test(jsonRequest("POST", "/auth/password/reset/confirm", `{
		"uid": "`+accounts.EncodeUID(user.ID)+`",
		"token": "`+token+`",
		"new_password": "a brand new password"
	}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	repo.users.AssertExpectations(t)
}

func TestPasswordResetConfirmRetypeMismatch(t *testing.T) {
	repo := NewMockRepositoryManager()

	cfg := newTestConfig()
	cfg.passwordResetConfirmRetype = true

	app := newTestApp(t, repo, cfg)

	res, err := app.Test(jsonRequest("POST", "/auth/password/reset/confirm", `{
		"uid": "whatever",
		"token": "whatever",
		"new_password": "a brand new password",
		"re_new_password": "a different password"
	}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)

	body := decodeBody(t, res)
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errs, "re_new_password")
}

func TestSetPasswordEndpointRequiresAuth(t *testing.T) {
	repo := NewMockRepositoryManager()
	app := newTestApp(t, repo, newTestConfig())

	res, err := app.Test(jsonRequest("POST", "/auth/password", `{
		"new_password": "a brand new password"
	}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
}

func TestSetPasswordEndpoint(t *testing.T) {
	repo := NewMockRepositoryManager()
	cfg := newTestConfig()

	user := newTestUser()
	stored := &accounts.AuthToken{Key: "deadbeef", UserID: user.ID, User: user}

	repo.tokens.On("GetByKey", mock.Anything, "deadbeef").Return(stored, nil).Once()
	repo.users.On("SetPassword", mock.Anything, user.ID, mock.Anything).Return(nil).Once()

	app := newTestApp(t, repo, cfg)

	req := jsonRequest("POST", "/auth/password", `{
		"new_password": "a brand new password"
	}`)
	req.Header.Set("Authorization", "Token deadbeef")

	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	repo.users.AssertExpectations(t)
	repo.tokens.AssertExpectations(t)
}

func TestSetUsernameEndpoint(t *testing.T) {
	repo := NewMockRepositoryManager()
	cfg := newTestConfig()

	user := newTestUser()
	stored := &accounts.AuthToken{Key: "deadbeef", UserID: user.ID, User: user}

	renamed := *user
	renamed.Username = "new-handle"

	repo.tokens.On("GetByKey", mock.Anything, "deadbeef").Return(stored, nil).Once()
	repo.users.On("SetUsername", mock.Anything, user.ID, "new-handle").
		Return(&renamed, nil).Once()

	app := newTestApp(t, repo, cfg)

	req := jsonRequest("POST", "/auth/username", `{
		"new_username": "new-handle"
	}`)
	req.Header.Set("Authorization", "Token deadbeef")

	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	repo.users.AssertExpectations(t)
}

func TestSetUsernameEndpointBadBearer(t *testing.T) {
	repo := NewMockRepositoryManager()

	repo.tokens.On("GetByKey", mock.Anything, "unknown").
		Return(nil, assert.AnError).Maybe()

	app := newTestApp(t, repo, newTestConfig())

	req := jsonRequest("POST", "/auth/username", `{
		"new_username": "new-handle"
	}`)
	req.Header.Set("Authorization", "Basic unknown")

	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
}
