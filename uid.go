package accounts

import (
	"encoding/base64"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// EncodeUID converts a user primary key into the URL safe component used
// in activation and password reset links.
func EncodeUID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

// DecodeUID is the inverse of EncodeUID. Anything that does not decode to
// a valid uuid is rejected as a validation error, not an internal one.
func DecodeUID(uid string) (uuid.UUID, error) {
	if uid == "" {
		return uuid.Nil, ErrNoEmptyString
	}

	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CategoryValidation, "invalid uid encoding").
			WithCode(errors.CodeBadRequest).
			WithTextCode(TextCodeTokenInvalid)
	}

	id, err := uuid.Parse(string(raw))
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CategoryValidation, "uid is not a valid identifier").
			WithCode(errors.CodeBadRequest).
			WithTextCode(TextCodeTokenInvalid)
	}

	return id, nil
}
