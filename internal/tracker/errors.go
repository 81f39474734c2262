package tracker

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure. The kind is the contract with the
// transport layer; the message text is display-only.
type Kind int

const (
	KindValidation Kind = iota // missing or invalid input
	KindNotFound               // unknown task/status/user/role id
	KindPolicy                 // role-incompatible assignment or illegal transition
	KindPermission             // caller role insufficient for the operation
	KindConflict               // uniqueness violation, cyclic graph
)

// Error is a classified operation failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Validationf builds a validation error.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Policyf builds a policy-violation error.
func Policyf(format string, args ...any) error {
	return &Error{Kind: KindPolicy, Message: fmt.Sprintf(format, args...)}
}

// Permissionf builds a permission-denied error.
func Permissionf(format string, args ...any) error {
	return &Error{Kind: KindPermission, Message: fmt.Sprintf(format, args...)}
}

// Conflictf builds a conflict error.
func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from err. Unclassified errors report ok=false.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindNotFound
}
