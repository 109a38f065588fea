// Package errs defines the error taxonomy shared by the domain packages.
// Guard violations fail fast and carry one of these sentinels; the gateway
// maps them to HTTP responses. Resource insufficiency is deliberately not an
// error — it is modeled as the FAILED issue state.
package errs

import "errors"

var (
	// ErrAccessDenied means the actor lacks authority over the target entity.
	ErrAccessDenied = errors.New("access denied")

	// ErrOccupiedUser means the user already holds an incompatible role.
	ErrOccupiedUser = errors.New("user already has a role")

	// ErrDuplicatedInfo is a uniqueness violation on a named catalog entry.
	ErrDuplicatedInfo = errors.New("duplicated info")

	// ErrBusyResource means the entity is in active use and cannot be
	// removed or decremented.
	ErrBusyResource = errors.New("resource is busy")

	// ErrResourceNotFound means the referenced catalog entity does not exist.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrIllegalOperationInState is a lifecycle guard violation.
	ErrIllegalOperationInState = errors.New("illegal operation in current state")

	// ErrInvalidArgument is a structurally invalid request.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrWeakPassword is a credential policy violation.
	ErrWeakPassword = errors.New("password is too weak")
)
