package identity

import (
	"errors"
	"fmt"
)

//go:generate go run github.com/dmarkham/enumer -type Cause -trimprefix Cause -transform kebab -output cause.gen.go

// Cause tells apart the reasons an authentication can fail.
type Cause int

const (
	// CausePolicy means the policy rejected the request.
	CausePolicy Cause = iota
	// CauseNoToken means the request carried no identity token.
	CauseNoToken
	// CauseLookup means no user could be found for the token.
	CauseLookup
)

var (
	// ErrResourceAcquisition is matched by errors from a failed pool checkout.
	ErrResourceAcquisition = errors.New("resource acquisition failed")

	// ErrAuthentication is matched by every AuthError.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNoToken is the underlying error of a CauseNoToken failure.
	ErrNoToken = errors.New("no identity token in request")

	// ErrCommit is matched by every CommitError.
	ErrCommit = errors.New("identity commit failed")

	// ErrMissingContext is the panic value of Identity.Get when no Context
	// has been installed for the request.
	ErrMissingContext = errors.New("identity: no identity context installed for request")
)

// AcquireError wraps a pool checkout failure.
type AcquireError struct {
	Err error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("%s: %v", ErrResourceAcquisition, e.Err)
}

func (e *AcquireError) Unwrap() []error {
	return []error{ErrResourceAcquisition, e.Err}
}

// AuthError is an authentication failure with its cause.
type AuthError struct {
	Cause Cause
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrAuthentication, e.Cause, e.Err)
}

func (e *AuthError) Unwrap() []error {
	return []error{ErrAuthentication, e.Err}
}

// CommitError wraps a Policy.Commit failure.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s: %v", ErrCommit, e.Err)
}

func (e *CommitError) Unwrap() []error {
	return []error{ErrCommit, e.Err}
}
