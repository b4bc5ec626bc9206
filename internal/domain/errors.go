// Package domain holds the types and sentinel errors shared across torque's
// storage, lifecycle, and HTTP layers.
package domain

import "errors"

var (
	// ErrNotFound is returned when a non-task lookup, such as an API key by
	// short token, matches no row. Task lookups return ErrTaskNotFound.
	ErrNotFound = errors.New("resource not found")

	// ErrTaskNotFound is returned when a task lookup by ID matches no row.
	ErrTaskNotFound = errors.New("task not found")

	// ErrConflict is returned by a conditional update whose expected
	// retry_count no longer matches the stored row: another acquirer won
	// the race, or the task already moved on.
	ErrConflict = errors.New("task state changed concurrently")

	// ErrInvalidURL is returned when an enqueue request's url field fails
	// validation.
	ErrInvalidURL = errors.New("you must provide a valid web hook URL")

	// ErrInvalidTimeout is returned when an enqueue request's timeout field
	// fails validation.
	ErrInvalidTimeout = errors.New("you must provide a valid integer timeout")

	// ErrUnauthorized is returned when an API key fails validation or a
	// request reaches a handler without an authenticated application. A
	// task owned by another application is reported as ErrTaskNotFound.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidAPIKeyFormat is returned when an API key string does not
	// parse into its five dash-separated parts.
	ErrInvalidAPIKeyFormat = errors.New("invalid API key format")

	// ErrApplicationNotFound is returned when no active application matches
	// a given API key value.
	ErrApplicationNotFound = errors.New("application not found")
)
