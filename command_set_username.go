package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type SetUsernameMessage struct {
	UserID     uuid.UUID `json:"-"`
	Username   string    `json:"new_username"`
	OnResponse func(resp *SetUsernameResponse)
}

func (p SetUsernameMessage) Type() string { return "user.set_username" }

type SetUsernameResponse struct {
	User *User
}

type SetUsernameHandler struct {
	repo RepositoryManager
}

// NewSetUsernameHandler creates a handler with sane defaults.
func NewSetUsernameHandler(repo RepositoryManager) *SetUsernameHandler {
	return &SetUsernameHandler{repo: repo}
}

func (h *SetUsernameHandler) Execute(ctx context.Context, event SetUsernameMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during username change")
	default:
		return h.execute(ctx, event)
	}
}

func (h *SetUsernameHandler) execute(ctx context.Context, event SetUsernameMessage) error {
	resp := &SetUsernameResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().SetUsername(ctx, event.UserID, event.Username)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrIdentityNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryConflict, "could not change username").
			WithCode(goerrors.CodeConflict).
			WithTextCode(TextCodeUsernameTaken)
	}

	resp.User = user
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
