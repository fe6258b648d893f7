// Package session owns the signed-in user of the CLI.
//
// A Coordinator is constructed once per process and shared by every command.
// It drives the credentials pair in the token store through login,
// registration, Google sign-in, logout and startup restore, and keeps the
// in-memory User in step with it:
//
//	Unauthenticated -> Restoring -> Authenticated
//	Authenticated -> Unauthenticated   (logout, or the profile can no longer be fetched)
//	Unauthenticated -> Authenticated   (login, register, Google sign-in)
//
// Overlapping logins are not serialized; the last one to finish wins.
package session
