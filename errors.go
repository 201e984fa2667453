package groupcomm

import "github.com/pkg/errors"

// ErrorKind classifies failures so the caller can pick between retry and abort.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// ProtocolViolation: an operation was invoked outside its lifecycle state.
	ProtocolViolation
	// CapacityViolation: registration would exceed the declared task count.
	CapacityViolation
	// MembershipError: duplicate or unknown task/operator identifiers.
	MembershipError
	// IncompleteState: configuration requested before all members joined.
	// This is the only kind worth retrying.
	IncompleteState
	// ConfigurationError: invalid operator spec, group parameters or bindings.
	ConfigurationError
)

func (k ErrorKind) String() string {
	switch k {
	case ProtocolViolation:
		return "ProtocolViolation"
	case CapacityViolation:
		return "CapacityViolation"
	case MembershipError:
		return "MembershipError"
	case IncompleteState:
		return "IncompleteState"
	case ConfigurationError:
		return "ConfigurationError"
	default:
		return "Unknown"
	}
}

// Error is a classified failure. The sentinels below are *Error values and
// are wrapped with context by the code that returns them, so compare with
// errors.Is and classify with KindOf.
type Error struct {
	Kind ErrorKind
	msg  string
}

// NewError returns a classified error with the given message.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

var (
	ErrGroupSealed    = NewError(ProtocolViolation, "group is sealed")
	ErrGroupNotSealed = NewError(ProtocolViolation, "group is not sealed")

	ErrCapacityExceeded = NewError(CapacityViolation, "group capacity exceeded")

	ErrDuplicateMember   = NewError(MembershipError, "task is already a member")
	ErrNotMember         = NewError(MembershipError, "task is not a member")
	ErrUnknownTask       = NewError(MembershipError, "task was never added to the group")
	ErrEmptyTaskID       = NewError(MembershipError, "task id is empty")
	ErrDuplicateOperator = NewError(MembershipError, "operator name already used in group")
	ErrDuplicateGroup    = NewError(MembershipError, "group name already used by driver")

	ErrIncompleteGroup = NewError(IncompleteState, "not all tasks have been added to the group")

	ErrInvalidSpec = NewError(ConfigurationError, "invalid operator spec")
	ErrInvalidArg  = NewError(ConfigurationError, "invalid argument")
)

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether the failed call may succeed later without any
// change on the caller's side.
func IsRetryable(err error) bool {
	return KindOf(err) == IncompleteState
}
