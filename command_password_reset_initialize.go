package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	// Recipients is how many reset emails were queued. Zero is still a
	// success, the endpoint must not leak which addresses exist.
	Recipients int
}

type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	notifier *Notifier
	logger   Logger
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager, notifier *Notifier) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		notifier: notifier,
		logger:   defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	users, err := h.repo.Users().FindActiveByEmail(ctx, event.Email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up users for password reset")
	}

	for _, user := range users {
		user := user
		resp.Recipients++

		// delivery is best effort and must not block the response
		go func() {
			if err := h.notifier.SendPasswordResetEmail(context.WithoutCancel(ctx), user); err != nil {
				h.logger.Error("failed to send password reset email to %s: %s", user.ID, err)
			}
		}()
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
