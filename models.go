package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account model. Users start out inactive when activation
// emails are enabled and become active through the emailed uid/token link.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName      string     `bun:"first_name" json:"first_name,omitempty"`
	LastName       string     `bun:"last_name" json:"last_name,omitempty"`
	Phone          string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	IsActive       bool       `bun:"is_active" json:"is_active"`
	LoginAttempts  int        `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"-"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// HasUsablePassword reports whether the user can authenticate with a
// password. Accounts provisioned without credentials carry an empty hash
// and are excluded from password reset emails.
func (u *User) HasUsablePassword() bool {
	return u != nil && u.PasswordHash != ""
}

// AuthToken is the opaque bearer credential returned on login. One token
// per user, reused across logins until revoked.
type AuthToken struct {
	bun.BaseModel `bun:"table:auth_tokens,alias:tok"`
	Key           string     `bun:"key,pk" json:"auth_token"`
	UserID        uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"-"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"-"`
}
