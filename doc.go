// Package accounts provides JSON account endpoints (registration, login,
// activation, password reset and change, username change) backed by Bun
// repositories and opaque bearer tokens.
//
// Account lifecycle:
//   - Users register through RegisterAccountRoutes. When activation emails
//     are enabled the account starts inactive and is flipped active by the
//     uid/token link mailed to the user.
//   - Login verifies credentials through an IdentityProvider with attempt
//     throttling and hands back the user's bearer token, creating one on
//     first login.
//
// One-time links:
//   - OneTimeTokenService mints short-lived tokens bound to the user's
//     current state (password hash and last login). Changing either
//     invalidates outstanding activation and reset links, which makes the
//     tokens effectively single use.
//   - EncodeUID and DecodeUID translate between user ids and the URL-safe
//     uid segment carried next to the token in emailed links.
//
// Email:
//   - Notifier renders subject and body from django templates (embedded
//     defaults under data/emails, overridable) and delivers through the
//     Mailer interface. Delivery is best-effort and asynchronous.
package accounts
