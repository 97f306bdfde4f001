// Package fault defines the typed errors that cross the process boundary.
// Every error carries a stable code so the issuing side can re-throw the
// same taxonomy the executing side raised.
package fault

import (
	"errors"
	"fmt"
)

// Error codes carried on the wire.
const (
	CodeVersionMismatch  = "COMPONENT_CLIENT_VERSION_DOES_NOT_MATCH_COMPONENT_SERVER_VERSION"
	CodeAccessDenied     = "ACCESS_DENIED"
	CodeNotFound         = "NOT_FOUND"
	CodeValidation       = "VALIDATION_ERROR"
	CodeUnsetAttribute   = "UNSET_ATTRIBUTE"
	CodeUnknownAttribute = "UNKNOWN_ATTRIBUTE"
	CodeDeserialization  = "DESERIALIZATION_ERROR"
)

// Error is a code-carrying error. Codes survive serialization; messages are
// informational only.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates an Error with the given code and formatted message.
func New(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// VersionMismatch reports a protocol version incompatibility.
func VersionMismatch(client, server int) *Error {
	return New(CodeVersionMismatch, "client version %d does not match server version %d", client, server)
}

// AccessDenied reports an operation whose exposure flag is absent.
func AccessDenied(component, property, operation string) *Error {
	return New(CodeAccessDenied, "%s.%s is not exposed for %s", component, property, operation)
}

// NotFound reports a missing record.
func NotFound(component, id string) *Error {
	return New(CodeNotFound, "%s %q not found", component, id)
}

// Validation reports an attribute value rejected by a declared validator.
func Validation(attribute, rule, message string) *Error {
	return New(CodeValidation, "%s: %s (%s)", attribute, message, rule)
}

// UnsetAttribute reports a read of an attribute that was never loaded.
func UnsetAttribute(component, attribute string) *Error {
	return New(CodeUnsetAttribute, "attribute %s.%s is not set", component, attribute)
}

// UnknownAttribute reports a reference to an undeclared attribute.
func UnknownAttribute(component, attribute string) *Error {
	return New(CodeUnknownAttribute, "component %s has no attribute %q", component, attribute)
}

// Deserialization reports a malformed or unrecognized transport payload.
func Deserialization(format string, args ...any) *Error {
	return New(CodeDeserialization, format, args...)
}

// CodeOf returns the code of err, or "" if err carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}

// IsNotFound reports whether err is a missing-record error.
func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }

// IsAccessDenied reports whether err is an exposure rejection.
func IsAccessDenied(err error) bool { return HasCode(err, CodeAccessDenied) }

// IsVersionMismatch reports whether err is a protocol incompatibility.
func IsVersionMismatch(err error) bool { return HasCode(err, CodeVersionMismatch) }

// IsValidation reports whether err is a validator rejection.
func IsValidation(err error) bool { return HasCode(err, CodeValidation) }

// IsUnsetAttribute reports whether err is a read of an unloaded attribute.
func IsUnsetAttribute(err error) bool { return HasCode(err, CodeUnsetAttribute) }

// IsDeserialization reports whether err is a malformed-payload error.
func IsDeserialization(err error) bool { return HasCode(err, CodeDeserialization) }
