package errors

import (
	"fmt"

	stderr "github.com/pkg/errors"

	"github.com/oasislabs/signing-gateway/log"
)

// Err is the error type returned by the engine's public operations.
// Every Err can be logged as structured fields
type Err interface {
	Error() string
	log.Loggable
}

var (
	ErrInternal = ErrorCode{
		category: InternalError,
		code:     1000,
		desc:     "Internal Error. Please check the status of the service.",
	}

	ErrDecryptionFailed = ErrorCode{
		category: InternalError,
		code:     1001,
		desc:     "Failed to decrypt sealed message.",
	}

	ErrSignFailed = ErrorCode{
		category: InternalError,
		code:     1002,
		desc:     "Failed to sign transaction digest.",
	}

	ErrBroadcastFailed = ErrorCode{
		category: InternalError,
		code:     1003,
		desc: "Failed to broadcast signed transaction. The transaction may or may " +
			"not have been included in the chain.",
	}

	ErrDeliveryFailed = ErrorCode{
		category: InternalError,
		code:     1004,
		desc:     "Failed to deliver callback to the requester.",
	}

	ErrUnrecognizedScheme = ErrorCode{
		category: InputError,
		code:     2001,
		desc:     "Signing request uses a scheme that is not allowed.",
	}

	ErrMalformedRequest = ErrorCode{
		category: InputError,
		code:     2002,
		desc:     "Signing request payload is malformed.",
	}

	ErrMissingAbi = ErrorCode{
		category: InputError,
		code:     2003,
		desc:     "Contract interface required by the request is not available.",
	}

	ErrDisallowedAction = ErrorCode{
		category: PolicyViolation,
		code:     2004,
		desc:     "Signing request contains an action that is never allowed.",
	}

	ErrChainMismatch = ErrorCode{
		category: InputError,
		code:     2005,
		desc:     "Signing request targets a different chain than the active signer.",
	}

	ErrNoActiveSession = ErrorCode{
		category: StateConflict,
		code:     4001,
		desc:     "No active session exists for the request.",
	}

	ErrNoPendingRequest = ErrorCode{
		category: StateConflict,
		code:     4002,
		desc:     "There is no signing request awaiting approval.",
	}

	ErrRequestSuperseded = ErrorCode{
		category: StateConflict,
		code:     4003,
		desc:     "Signing request was cancelled or replaced before completion.",
	}
)

// Category defines error categories that logically group them.
type Category string

const (
	// InternalError refers to errors raised by the engine or by one
	// of its collaborators while executing an action
	InternalError Category = "InternalError"

	// InputError refers to errors caused by a signing request that is
	// incorrect, malformed or that cannot be resolved
	InputError Category = "InputError"

	// PolicyViolation refers to requests that are well formed but that
	// the engine refuses to ever sign
	PolicyViolation Category = "PolicyViolation"

	// StateConflict refers to operations that are not valid in the
	// current state of the engine
	StateConflict Category = "StateConflict"
)

// Error is the implementation of an error for this package. It contains
// an instance of an ErrorCode which provides information about the error
// and a cause which might be nil if there's no underlying cause for
// the error
type Error struct {
	Cause     error
	ErrorCode ErrorCode
}

// Error is the implementation of error for Error
func (e Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%d] %s: %s",
			e.ErrorCode.Code(), e.ErrorCode.Category(), e.ErrorCode.Desc())
	}

	return fmt.Sprintf("[%d] %s: %s: %s",
		e.ErrorCode.Code(), e.ErrorCode.Category(), e.ErrorCode.Desc(), e.Cause)
}

// Unwrap returns the underlying cause
func (e Error) Unwrap() error {
	return e.Cause
}

// Log implementation of log.Loggable
func (e Error) Log(fields log.Fields) {
	fields.Add("err", e.ErrorCode.Desc())
	fields.Add("errorCode", e.ErrorCode.Code())

	if e.Cause != nil {
		fields.Add("cause", e.Cause.Error())
	}
}

// New creates a new instance of an error
func New(errorCode ErrorCode, cause error) Error {
	return Error{Cause: cause, ErrorCode: errorCode}
}

// Newf creates a new instance of an error whose cause is built from
// the format and arguments
func Newf(errorCode ErrorCode, format string, args ...interface{}) Error {
	return Error{Cause: stderr.Errorf(format, args...), ErrorCode: errorCode}
}

// Is returns true if err, or any error it wraps, carries the
// provided error code
func Is(err error, errorCode ErrorCode) bool {
	var e Error
	if !stderr.As(err, &e) {
		return false
	}

	return e.ErrorCode.code == errorCode.code
}

// Code returns the ErrorCode carried by err. Errors that were not
// created by this package are reported as ErrInternal
func Code(err error) ErrorCode {
	var e Error
	if !stderr.As(err, &e) {
		return ErrInternal
	}

	return e.ErrorCode
}

// ErrorCode holds the necessary information to uniquely identify an error
type ErrorCode struct {
	// category is the type of the error
	category Category

	// code is a unique identifier for the error that can be used to identify
	// the particular type of error encountered
	code int

	// desc is a human readable description of the error that occurred
	desc string
}

// Category getter for category
func (e ErrorCode) Category() Category {
	return e.category
}

// Code getter for code
func (e ErrorCode) Code() int {
	return e.code
}

// Desc getter for desc
func (e ErrorCode) Desc() string {
	return e.desc
}
