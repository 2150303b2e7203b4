package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Phone      string `json:"phone_number"`
	Password   string `json:"password"`
	UseHashid  bool
	OnResponse func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User      *User
	AuthToken string
}

type RegisterUserHandler struct {
	repo     RepositoryManager
	config   Config
	notifier *Notifier
	logger   Logger
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(repo RepositoryManager, cfg Config) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:   repo,
		config: cfg,
		logger: defLogger{},
	}
}

// WithNotifier sets the notifier that sends the activation email.
func (h *RegisterUserHandler) WithNotifier(n *Notifier) *RegisterUserHandler {
	h.notifier = n
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
	resp := &RegisterUserResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.Phone = event.Phone
		user.FirstName = event.FirstName
		user.LastName = event.LastName
		user.Username = getUsername(event.Username, event.Email)
		// accounts self activate unless we gate them behind an email link
		user.IsActive = !h.config.GetSendActivationEmail()

		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user").
				WithCode(goerrors.CodeConflict).
				WithTextCode(TextCodeEmailTaken)
		}

		if h.config.GetLoginAfterRegistration() {
			token, err := h.repo.AuthTokens().GetOrCreateTx(ctx, tx, user.ID)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue token after registration")
			}
			resp.AuthToken = token.Key
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if h.config.GetSendActivationEmail() && h.notifier != nil {
		// delivery is best effort, the account exists either way
		go func() {
			if err := h.notifier.SendActivationEmail(context.WithoutCancel(ctx), user); err != nil {
				h.logger.Error("failed to send activation email to %s: %s", user.ID, err)
			}
		}()
	}

	resp.User = user
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
