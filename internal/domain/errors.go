// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist (or belongs to another site).
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict.
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates invalid input. The message after the prefix is user-facing.
var ErrValidation = errors.New("validation")

// ErrUnavailable indicates the identity or the document store is not ready.
var ErrUnavailable = errors.New("unavailable")

// ErrUnauthenticated indicates that an identity is required.
var ErrUnauthenticated = errors.New("authentication required")

// ErrForbidden indicates the identity may not perform the action.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidTransition indicates a service request status change that is not a forward step.
var ErrInvalidTransition = errors.New("invalid status transition")
