package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ActivateAccountMessage struct {
	UID        string `json:"uid"`
	Token      string `json:"token"`
	OnResponse func(resp *ActivateAccountResponse)
}

func (e ActivateAccountMessage) Type() string { return "user.activate" }

type ActivateAccountResponse struct {
	User      *User
	AuthToken string
}

type ActivateAccountHandler struct {
	repo   RepositoryManager
	tokens *OneTimeTokenService
	config Config
}

// NewActivateAccountHandler creates a handler with sane defaults.
func NewActivateAccountHandler(repo RepositoryManager, tokens *OneTimeTokenService, cfg Config) *ActivateAccountHandler {
	return &ActivateAccountHandler{
		repo:   repo,
		tokens: tokens,
		config: cfg,
	}
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account activation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) error {
	resp := &ActivateAccountResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	id, err := DecodeUID(event.UID)
	if err != nil {
		return err
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByID(ctx, id.String())
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for activation")
		}

		if err := h.tokens.Check(event.Token, user, PurposeActivate); err != nil {
			return err
		}

		if user, err = h.repo.Users().ActivateTx(ctx, tx, user.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate user")
		}

		if h.config.GetLoginAfterActivation() {
			token, err := h.repo.AuthTokens().GetOrCreateTx(ctx, tx, user.ID)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue token after activation")
			}
			resp.AuthToken = token.Key
		}

		resp.User = user
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account activation failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
