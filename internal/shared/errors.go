package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so handlers can map them to responses
// without inspecting module internals.
type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION"
	KindConflict   ErrorKind = "CONFLICT"
	KindBusiness   ErrorKind = "BUSINESS"
	KindNotFound   ErrorKind = "NOT_FOUND"
	KindPermission ErrorKind = "PERMISSION"
	KindTransient  ErrorKind = "TRANSIENT"
	KindInternal   ErrorKind = "INTERNAL"
)

// Error is the kind-tagged error carried across module boundaries.
// Meta holds the offending values for business errors (quantities, balances)
// so callers can display them.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Meta    map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on code so sentinel errors built with the same code compare equal.
func (e *Error) Is(target error) bool {
	var te *Error
	if !errors.As(target, &te) {
		return false
	}
	return te.Code != "" && te.Code == e.Code
}

// E builds a kind-tagged error.
func E(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// WithMeta returns a copy carrying extra context values.
func (e *Error) WithMeta(meta map[string]any) *Error {
	clone := *e
	clone.Meta = meta
	return &clone
}

// Wrap keeps the kind and code while recording the underlying cause.
func (e *Error) Wrap(err error) *Error {
	clone := *e
	clone.Err = err
	return &clone
}

// KindOf extracts the kind, defaulting to internal for unknown errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf extracts the machine-readable code, empty when untagged.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// MetaOf extracts attached context values.
func MetaOf(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Meta
	}
	return nil
}

// UserSafeMessage returns a message suitable for end users. Internal and
// transient failures are masked.
func UserSafeMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindInternal:
			return "operación fallida, intente nuevamente"
		case KindTransient:
			return "operación temporalmente fallida"
		default:
			return e.Message
		}
	}
	return "operación fallida, intente nuevamente"
}
