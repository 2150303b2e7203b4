package accounts

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/nyaruka/phonenumbers"
)

// AccountRoutes are the endpoint paths the controller mounts
type AccountRoutes struct {
	Register             string
	Login                string
	Activate             string
	PasswordReset        string
	PasswordResetConfirm string
	SetPassword          string
	SetUsername          string
}

// AccountController exposes the account endpoints as JSON handlers
type AccountController struct {
	Debug    bool
	Logger   Logger
	Config   Config
	Repo     RepositoryManager
	Provider IdentityProvider
	Bearer   *BearerTokenService
	Tokens   *OneTimeTokenService
	Notifier *Notifier
	Routes   *AccountRoutes
}

type AccountControllerOption func(*AccountController) *AccountController

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger: defLogger{},
		Routes: &AccountRoutes{
			Register:             "/auth/register",
			Login:                "/auth/login",
			Activate:             "/auth/activate",
			PasswordReset:        "/auth/password/reset",
			PasswordResetConfirm: "/auth/password/reset/confirm",
			SetPassword:          "/auth/password",
			SetUsername:          "/auth/username",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in account controller...")
	}

	if c.Config == nil {
		panic("Missing Config in account controller...")
	}

	if c.Provider == nil {
		c.Provider = NewUserProvider(c.Repo.Users())
	}

	if c.Bearer == nil {
		c.Bearer = NewBearerTokenService(c.Repo, c.Logger)
	}

	if c.Tokens == nil {
		c.Tokens = NewOneTimeTokenService([]byte(c.Config.GetSigningKey()), c.Config.GetOneTimeTokenTTL(), c.Logger)
	}

	return c
}

func WithControllerLogger(l Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

func WithControllerDebug(debug bool) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Debug = debug
		return c
	}
}

func WithRepositoryManager(repo RepositoryManager) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Repo = repo
		return c
	}
}

func WithConfig(cfg Config) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Config = cfg
		return c
	}
}

func WithNotifier(n *Notifier) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Notifier = n
		return c
	}
}

func WithIdentityProvider(p IdentityProvider) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Provider = p
		return c
	}
}

// RegisterAccountRoutes mounts the seven account endpoints on the app
func RegisterAccountRoutes(app *fiber.App, opts ...AccountControllerOption) *AccountController {
	controller := NewAccountController(opts...)

	app.Post(controller.Routes.Register, controller.Register)
	app.Post(controller.Routes.Login, controller.Login)
	app.Post(controller.Routes.Activate, controller.Activate)
	app.Post(controller.Routes.PasswordReset, controller.PasswordReset)
	app.Post(controller.Routes.PasswordResetConfirm, controller.PasswordResetConfirm)

	protected := RequireAuth(controller.Bearer, controller.Logger)
	app.Post(controller.Routes.SetPassword, protected, controller.SetPassword)
	app.Post(controller.Routes.SetUsername, protected, controller.SetUsername)

	return controller
}

// RegistrationPayload is the register request body
type RegistrationPayload struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone_number"`
	Password  string `json:"password"`
}

// Validate will run validation rules
func (r RegistrationPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Username, validation.Length(1, 150)),
		validation.Field(&r.FirstName, validation.Length(0, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
		validation.Field(&r.Phone, validation.By(ValidateOptionalPhone)),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
	)
}

func (a *AccountController) Register(ctx *fiber.Ctx) error {
	payload := new(RegistrationPayload)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("register user parse payload: %s", err)
		return renderParseError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: %s", err)
		return renderValidationError(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= ACCOUNT REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===============================")
	}

	var res *RegisterUserResponse

	req := RegisterUserMessage{
		Username:  payload.Username,
		Email:     payload.Email,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Phone:     payload.Phone,
		Password:  payload.Password,
		OnResponse: func(resp *RegisterUserResponse) {
			res = resp
		},
	}

	handler := NewRegisterUserHandler(a.Repo, a.Config).
		WithNotifier(a.Notifier).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.UserContext(), req); err != nil {
		a.Logger.Error("register user error: %s", err)
		return renderError(ctx, err)
	}

	body := fiber.Map{
		"id":         res.User.ID,
		"username":   res.User.Username,
		"email":      res.User.Email,
		"first_name": res.User.FirstName,
		"last_name":  res.User.LastName,
		"is_active":  res.User.IsActive,
	}

	if res.AuthToken != "" {
		body["auth_token"] = res.AuthToken
	}

	return ctx.Status(fiber.StatusCreated).JSON(body)
}

// LoginPayload is the login request body
type LoginPayload struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountController) Login(ctx *fiber.Ctx) error {
	payload := new(LoginPayload)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload: %s", err)
		return renderParseError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(ctx, err)
	}

	identity, err := a.Provider.VerifyIdentity(ctx.UserContext(), payload.Identifier, payload.Password)
	if err != nil {
		a.Logger.Error("login verify identity: %s", err)
		return renderError(ctx, err)
	}

	user, err := a.Repo.Users().GetByID(ctx.UserContext(), identity.ID())
	if err != nil {
		return renderError(ctx, err)
	}

	token, err := a.Bearer.IssueFor(ctx.UserContext(), user)
	if err != nil {
		return renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"auth_token": token.Key})
}

// ActivationPayload carries the uid and token from the emailed link
type ActivationPayload struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

// Validate will run validation rules
func (r ActivationPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UID, validation.Required),
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AccountController) Activate(ctx *fiber.Ctx) error {
	payload := new(ActivationPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return renderParseError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(ctx, err)
	}

	var res *ActivateAccountResponse

	req := ActivateAccountMessage{
		UID:   payload.UID,
		Token: payload.Token,
		OnResponse: func(resp *ActivateAccountResponse) {
			res = resp
		},
	}

	handler := NewActivateAccountHandler(a.Repo, a.Tokens, a.Config)

	if err := handler.Execute(ctx.UserContext(), req); err != nil {
		a.Logger.Error("account activation error: %s", err)
		return renderError(ctx, err)
	}

	if res.AuthToken != "" {
		return ctx.JSON(fiber.Map{"auth_token": res.AuthToken})
	}

	return ctx.JSON(fiber.Map{})
}

// PasswordResetPayload holds the address we mail the reset link to
type PasswordResetPayload struct {
	Email string `json:"email"`
}

// Validate will run validation rules
func (r PasswordResetPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AccountController) PasswordReset(ctx *fiber.Ctx) error {
	payload := new(PasswordResetPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return renderParseError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(ctx, err)
	}

	req := InitializePasswordResetMessage{Email: payload.Email}

	handler := NewInitializePasswordResetHandler(a.Repo, a.Notifier).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.UserContext(), req); err != nil {
		a.Logger.Error("password reset error: %s", err)
		return renderError(ctx, err)
	}

	// same response whether or not the address matched anything
	return ctx.JSON(fiber.Map{})
}

// PasswordResetConfirmPayload finalizes a reset using the emailed uid/token
type PasswordResetConfirmPayload struct {
	UID           string `json:"uid"`
	Token         string `json:"token"`
	NewPassword   string `json:"new_password"`
	ReNewPassword string `json:"re_new_password"`
}

// Validate will run validation rules
func (r PasswordResetConfirmPayload) Validate(retype bool) error {
	fields := []*validation.FieldRules{
		validation.Field(&r.UID, validation.Required),
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(10, 100)),
	}

	if retype {
		fields = append(fields, validation.Field(
			&r.ReNewPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword)),
		))
	}

	return validation.ValidateStruct(&r, fields...)
}

func (a *AccountController) PasswordResetConfirm(ctx *fiber.Ctx) error {
	payload := new(PasswordResetConfirmPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return renderParseError(ctx, err)
	}

	if err := payload.Validate(a.Config.GetPasswordResetConfirmRetype()); err != nil {
		return renderValidationError(ctx, err)
	}

	req := FinalizePasswordResetMessage{
		UID:      payload.UID,
		Token:    payload.Token,
		Password: payload.NewPassword,
	}

	handler := NewFinalizePasswordResetHandler(a.Repo, a.Tokens).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.UserContext(), req); err != nil {
		a.Logger.Error("password reset confirm error: %s", err)
		return renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{})
}

// SetPasswordPayload changes the authenticated user's password
type SetPasswordPayload struct {
	NewPassword   string `json:"new_password"`
	ReNewPassword string `json:"re_new_password"`
}

// Validate will run validation rules
func (r SetPasswordPayload) Validate(retype bool) error {
	fields := []*validation.FieldRules{
		validation.Field(&r.NewPassword, validation.Required, validation.Length(10, 100)),
	}

	if retype {
		fields = append(fields, validation.Field(
			&r.ReNewPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword)),
		))
	}

	return validation.ValidateStruct(&r, fields...)
}

func (a *AccountController) SetPassword(ctx *fiber.Ctx) error {
	user, err := CurrentUser(ctx)
	if err != nil {
		return renderError(ctx, err)
	}

	payload := new(SetPasswordPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return renderParseError(ctx, err)
	}

	if err := payload.Validate(a.Config.GetSetPasswordRetype()); err != nil {
		return renderValidationError(ctx, err)
	}

	req := SetPasswordMessage{
		UserID:   user.ID,
		Password: payload.NewPassword,
	}

	if err := NewSetPasswordHandler(a.Repo).Execute(ctx.UserContext(), req); err != nil {
		a.Logger.Error("set password error: %s", err)
		return renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{})
}

// SetUsernamePayload changes the authenticated user's username
type SetUsernamePayload struct {
	NewUsername   string `json:"new_username"`
	ReNewUsername string `json:"re_new_username"`
}

// Validate will run validation rules
func (r SetUsernamePayload) Validate(retype bool) error {
	fields := []*validation.FieldRules{
		validation.Field(&r.NewUsername, validation.Required, validation.Length(1, 150)),
	}

	if retype {
		fields = append(fields, validation.Field(
			&r.ReNewUsername,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewUsername)),
		))
	}

	return validation.ValidateStruct(&r, fields...)
}

func (a *AccountController) SetUsername(ctx *fiber.Ctx) error {
	user, err := CurrentUser(ctx)
	if err != nil {
		return renderError(ctx, err)
	}

	payload := new(SetUsernamePayload)

	if err := ctx.BodyParser(payload); err != nil {
		return renderParseError(ctx, err)
	}

	if err := payload.Validate(a.Config.GetSetUsernameRetype()); err != nil {
		return renderValidationError(ctx, err)
	}

	req := SetUsernameMessage{
		UserID:   user.ID,
		Username: payload.NewUsername,
	}

	if err := NewSetUsernameHandler(a.Repo).Execute(ctx.UserContext(), req); err != nil {
		a.Logger.Error("set username error: %s", err)
		return renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return fmt.Errorf("values must match")
		}
		return nil
	}
}

// ValidateOptionalPhone accepts an empty value or a parseable number
func ValidateOptionalPhone(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, "US")
	if err != nil {
		return fmt.Errorf("must be a valid phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return fmt.Errorf("must be a valid phone number")
	}

	return nil
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field to message map for JSON responses
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	var verrs validation.Errors
	if goerrors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	if err != nil {
		out["detail"] = err.Error()
	}

	return out
}

func renderParseError(ctx *fiber.Ctx, err error) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"errors": map[string]string{"body": "failed to parse request body"},
	})
}

func renderValidationError(ctx *fiber.Ctx, err error) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"errors": FormatValidationErrorToMap(err),
	})
}

func renderError(ctx *fiber.Ctx, err error) error {
	status := HTTPStatus(err)

	body := fiber.Map{"error": err.Error()}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		body["error"] = richErr.Message
		if richErr.TextCode != "" {
			body["text_code"] = richErr.TextCode
		}
	}

	if status >= 500 {
		body["error"] = "internal server error"
		delete(body, "text_code")
	}

	return ctx.Status(status).JSON(body)
}
