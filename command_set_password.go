package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type SetPasswordMessage struct {
	UserID   uuid.UUID `json:"-"`
	Password string    `json:"new_password"`
}

func (p SetPasswordMessage) Type() string { return "user.set_password" }

type SetPasswordHandler struct {
	repo RepositoryManager
}

// NewSetPasswordHandler creates a handler with sane defaults.
func NewSetPasswordHandler(repo RepositoryManager) *SetPasswordHandler {
	return &SetPasswordHandler{repo: repo}
}

func (h *SetPasswordHandler) Execute(ctx context.Context, event SetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password change")
	default:
		return h.execute(ctx, event)
	}
}

func (h *SetPasswordHandler) execute(ctx context.Context, event SetPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	passwordHash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	if err := h.repo.Users().SetPassword(ctx, event.UserID, passwordHash); err != nil {
		if goerrors.IsNotFound(err) {
			return ErrIdentityNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
	}

	return nil
}
