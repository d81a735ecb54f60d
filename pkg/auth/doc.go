// Package auth resolves the caller of an arena request.
//
// Authenticators vote Yes (identity found), No (credentials present but
// invalid) or Abstain (credentials of a kind they do not handle). The
// chain stops on the first non-abstaining vote and falls back to a
// configured default when every authenticator abstains.
//
// The HTTP middleware places the resolved identity into the request
// context and scopes storage to the identity's subject, so a user only
// ever sees threads they own.
package auth
