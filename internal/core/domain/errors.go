package domain

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Code is a categorical error code. Every failure surfaced by the engine
// belongs to exactly one category; nothing is retried internally.
type Code struct {
	Code uint16
	Name string
}

var (
	NotAuthorized       = Code{1, "NotAuthorized"}
	NotOwner            = Code{2, "NotOwner"}
	NotFound            = Code{3, "NotFound"}
	AssetAlreadyExists  = Code{4, "AssetAlreadyExists"}
	DoubleConsumption   = Code{5, "DoubleConsumption"}
	NotYetEnforced      = Code{6, "NotYetEnforced"}
	Expired             = Code{7, "Expired"}
	NotLiquid           = Code{8, "NotLiquid"}
	AmountMismatch      = Code{9, "AmountMismatch"}
	EnforcementMismatch = Code{10, "EnforcementMismatch"}
	ExpirationMismatch  = Code{11, "ExpirationMismatch"}
	InsufficientFunds   = Code{12, "InsufficientFunds"}
	NonPositiveAmount   = Code{13, "NonPositiveAmount"}
	InvalidWindow       = Code{14, "InvalidWindow"}
	NotRechargeable     = Code{15, "NotRechargeable"}
	UtilityNotProvided  = Code{16, "UtilityNotProvided"}
	EntryExpired        = Code{17, "EntryExpired"}
	AlreadyResolved     = Code{18, "AlreadyResolved"}
	// Conflict marks a store-level commit rejection caused by a concurrent
	// transaction touching the same keys. Retrying is the caller's call.
	Conflict        = Code{19, "Conflict"}
	EntryNotExpired = Code{20, "EntryNotExpired"}
)

func (c Code) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Code)
}

// New creates a new categorical error with the given message.
func (c Code) New(msg string, args ...any) *Error {
	return &Error{code: c, cause: fmt.Errorf(msg, args...)}
}

// Wrap creates a new categorical error with the given cause.
func (c Code) Wrap(cause error) *Error {
	return &Error{code: c, cause: cause}
}

type Error struct {
	code  Code
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.code.Name, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Code() uint16 {
	return e.code.Code
}

func (e *Error) CodeName() string {
	return e.code.Name
}

func (e *Error) Log() *log.Entry {
	return log.WithError(e.cause).WithField("code", e.code.String())
}

// Is reports whether err carries the given categorical code.
func Is(err error, c Code) bool {
	var domErr *Error
	if !errors.As(err, &domErr) {
		return false
	}
	return domErr.code == c
}
