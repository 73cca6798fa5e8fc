package store

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a store failure
type ErrorKind string

const (
	// KindConnection means the store could not be reached or failed
	// unexpectedly
	KindConnection ErrorKind = "connection"
	// KindAuth means the store rejected the supplied credential
	KindAuth ErrorKind = "auth"
	// KindSchema means the response did not match the expected table schema
	KindSchema ErrorKind = "schema"
)

// Error represents a classified failure from the remote store. Connection,
// auth and schema failures abort a whole pipeline invocation; per-field
// parse problems never surface here, coercion degrades them to missing.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = fmt.Sprintf("store %s failure", e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a store error anywhere in err's chain, or the
// empty string for non-store errors.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsConnection reports whether err is a connection failure.
func IsConnection(err error) bool {
	return KindOf(err) == KindConnection
}

// IsAuth reports whether err is a credential rejection.
func IsAuth(err error) bool {
	return KindOf(err) == KindAuth
}

// IsSchema reports whether err is a schema mismatch.
func IsSchema(err error) bool {
	return KindOf(err) == KindSchema
}

func connectionError(msg string, err error) *Error {
	return &Error{Kind: KindConnection, Msg: msg, Err: err}
}

func authError(msg string, err error) *Error {
	return &Error{Kind: KindAuth, Msg: msg, Err: err}
}

func schemaError(msg string, err error) *Error {
	return &Error{Kind: KindSchema, Msg: msg, Err: err}
}
