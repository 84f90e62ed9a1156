package auth

import (
	"errors"
	"fmt"
)

// Outcomes of access-control operations. All of them are recoverable and
// reported to the caller; none of them indicates an infrastructure problem.
var (
	// ErrAuthFailure covers unknown identifiers, wrong passwords and inactive
	// accounts alike so that callers cannot enumerate accounts.
	ErrAuthFailure      = errors.New("invalid username or password")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("username or email already exists")
	ErrNotFound         = errors.New("not found")
	ErrInvalidInvite    = errors.New("invalid or expired invite code")
	ErrInvalidInput     = errors.New("invalid input")
)

// InviteReason says why an invite could not be validated or redeemed
type InviteReason string

const (
	InviteNotFound    InviteReason = "not_found"
	InviteExpired     InviteReason = "expired"
	InviteAlreadyUsed InviteReason = "already_used"
)

// InviteError is an invalid-invite outcome carrying its reason.
// errors.Is(err, ErrInvalidInvite) holds for every reason.
type InviteError struct {
	Reason InviteReason
}

func (e *InviteError) Error() string {
	switch e.Reason {
	case InviteNotFound:
		return "invite not found"
	case InviteExpired:
		return "invite expired"
	case InviteAlreadyUsed:
		return "invite already used"
	default:
		return ErrInvalidInvite.Error()
	}
}

// Is matches ErrInvalidInvite
func (e *InviteError) Is(target error) bool {
	return target == ErrInvalidInvite
}

// NewInviteError returns an invalid-invite error for reason
func NewInviteError(reason InviteReason) error {
	return &InviteError{Reason: reason}
}

// InviteReasonOf extracts the reason from an invite error, or "" if err is not one
func InviteReasonOf(err error) InviteReason {
	var ie *InviteError
	if errors.As(err, &ie) {
		return ie.Reason
	}
	return ""
}

// StorageError wraps a failure of the underlying store (lost connection,
// driver error, unexpected constraint). It never matches a taxonomy sentinel.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as an infrastructure failure of op
func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err is an infrastructure failure
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// InvalidInputf returns an ErrInvalidInput with detail
func InvalidInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
