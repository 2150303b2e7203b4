package accounts

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var SetUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"updated_at" = current_timestamp
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var ActivateUserSQL = `UPDATE "users" AS "usr"
SET
	"is_active" = TRUE,
	"updated_at" = current_timestamp
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var SetUsernameSQL = `UPDATE "users" AS "usr"
SET
	"username" = ?,
	"updated_at" = current_timestamp
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// Users is the store behind every account operation
type Users interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	FindActiveByEmail(ctx context.Context, email string) ([]*User, error)

	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	Activate(ctx context.Context, id uuid.UUID) (*User, error)
	ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)

	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	SetUsername(ctx context.Context, id uuid.UUID, username string) (*User, error)
	SetUsernameTx(ctx context.Context, tx bun.IDB, id uuid.UUID, username string) (*User, error)

	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error

	RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var _ Users = (*users)(nil)

// NewUsersRepository builds the Users store on top of the generic repository
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

type identifierOption struct {
	column string
	value  string
}

// resolveUserIdentifier maps a free form identifier to lookup columns. An
// email address tries the email column first, a uuid the id column, and
// everything falls back to username.
func resolveUserIdentifier(identifier string) []identifierOption {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil
	}

	var options []identifierOption

	if _, err := mail.ParseAddress(identifier); err == nil {
		options = append(options, identifierOption{column: "email", value: strings.ToLower(identifier)})
	}

	if _, err := uuid.Parse(identifier); err == nil {
		options = append(options, identifierOption{column: "id", value: identifier})
	}

	options = append(options, identifierOption{column: "username", value: identifier})

	return options
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.getByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *users) getByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	options := resolveUserIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &User{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) FindActiveByEmail(ctx context.Context, email string) ([]*User, error) {
	var records []*User

	err := a.db.NewSelect().
		Model(&records).
		Where("LOWER(?TableAlias.email) = LOWER(?)", strings.TrimSpace(email)).
		Where("?TableAlias.is_active = TRUE").
		Where("?TableAlias.password_hash <> ''").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) Activate(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.ActivateTx(ctx, a.db, id)
}

func (a *users) ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, ActivateUserSQL, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return res[0], nil
}

func (a *users) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.SetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, SetUserPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) SetUsername(ctx context.Context, id uuid.UUID, username string) (*User, error) {
	return a.SetUsernameTx(ctx, a.db, id, username)
}

func (a *users) SetUsernameTx(ctx context.Context, tx bun.IDB, id uuid.UUID, username string) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, SetUsernameSQL, username, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return res[0], nil
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, user)
}

func (a *users) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"login_attempts" = "login_attempts" + 1,
			"login_attempt_at" = ?
		WHERE "usr"."id" = ?`,
		time.Now(), user.ID.String(),
	).Exec(ctx)

	return err
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user)
}

func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"login_attempts" = 0,
			"login_attempt_at" = NULL,
			"loggedin_at" = ?
		WHERE "usr"."id" = ?`,
		time.Now(), user.ID.String(),
	).Exec(ctx)

	return err
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	record.Email = strings.ToLower(strings.TrimSpace(record.Email))

	if record.Username == "" {
		record.Username = record.Email
	}
}
