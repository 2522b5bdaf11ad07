// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrAlreadyRated indicates that a rating row already exists
// for a (post, user) pair, while ErrNotFound signals that the requested
// row does not exist or is not visible to the caller.
package repository

import "errors"

// ErrNotFound is returned when a requested user, post, session, contact
// or rating does not exist. Handlers should translate this into an
// HTTP 404 response (401 in authentication flows, where revealing the
// difference between a bad token and a missing user is undesirable).
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when signup is attempted with an email
// address that already has an account. Handlers should translate this
// into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrAlreadyRated is returned when a user submits a second rating for
// the same post. The uniqueness is enforced by the database key on
// (post_id, user_id), so two concurrent submissions still produce
// exactly one row and one ErrAlreadyRated. Handlers map this to 409.
var ErrAlreadyRated = errors.New("post already rated")

// ErrAlreadyFollowing is returned when a user tries to follow someone
// they already follow. Handlers map this to 409.
var ErrAlreadyFollowing = errors.New("already following")

// ErrTagExists is returned when a phone or email is added to a contact
// under a tag that contact already uses. The uniqueness is enforced by
// the database key on (contact_id, tag). Handlers map this to 409.
var ErrTagExists = errors.New("tag already used for this contact")
