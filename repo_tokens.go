package accounts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuthTokens stores the bearer credentials handed out on login. Keys are
// the primary key, which keeps lookups on the hot auth path a single fetch.
type AuthTokens interface {
	GetByKey(ctx context.Context, key string) (*AuthToken, error)
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*AuthToken, error)
	GetOrCreateTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*AuthToken, error)
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
}

type authTokens struct {
	db *bun.DB
}

var _ AuthTokens = (*authTokens)(nil)

// NewAuthTokensRepository builds the bearer token store
func NewAuthTokensRepository(db *bun.DB) AuthTokens {
	return &authTokens{db: db}
}

func (a *authTokens) GetByKey(ctx context.Context, key string) (*AuthToken, error) {
	record := &AuthToken{}

	err := a.db.NewSelect().
		Model(record).
		Relation("User").
		Where("?TableAlias.key = ?", key).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"key": maskTokenKey(key),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *authTokens) GetOrCreate(ctx context.Context, userID uuid.UUID) (*AuthToken, error) {
	return a.GetOrCreateTx(ctx, a.db, userID)
}

func (a *authTokens) GetOrCreateTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*AuthToken, error) {
	record := &AuthToken{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID.String()).
		Limit(1).
		Scan(ctx)

	if err == nil {
		return record, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	key, err := GenerateTokenKey()
	if err != nil {
		return nil, err
	}

	record = &AuthToken{
		Key:    key,
		UserID: userID,
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (a *authTokens) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := a.db.NewDelete().
		Model((*AuthToken)(nil)).
		Where("user_id = ?", userID.String()).
		Exec(ctx)

	return err
}

// maskTokenKey keeps full credentials out of error metadata and logs
func maskTokenKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
