// Package apperr defines the typed error taxonomy shared by every layer.
// Each error carries a stable numeric code and a human-readable message;
// the server boundary maps kinds to HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for boundary mapping.
type Kind int

const (
	KindUncategorized Kind = iota
	KindNotFound
	KindAuthentication
	KindAuthorization
	KindConflict
	KindValidation
)

// Stable numeric codes. The 1xxx range covers general domain errors, 2xxx
// task-management errors, 3xxx storage integrity reclassifications.
const (
	CodeValidation         = 1001
	CodeInvalidCredentials = 1003
	CodeOrgNameExists      = 1004
	CodeOrgNotFound        = 1005
	CodeUserNotFound       = 1006
	CodeAuthFailed         = 1007
	CodeAuthzFailed        = 1008
	CodeNotFound           = 1009
	CodeUncategorized      = 1999

	CodeTaskNotFound         = 2001
	CodeTaskAccessDenied     = 2002
	CodeAssigneeNotInProject = 2003
	CodeInvalidTransition    = 2004
	CodeInvalidDueDate       = 2005
	CodeProjectNotFound      = 2006
	CodeProjectNameExists    = 2007
	CodeUserAlreadyInProject = 2008
	CodeUserNotInProject     = 2009
	CodeCommentNotFound      = 2010
	CodeAttachmentNotFound   = 2011
	CodeInvalidFileType      = 2012
	CodeFileTooLarge         = 2013
	CodeTooManyAttachments   = 2014
	CodeNotificationNotFound = 2015

	CodeForeignKeyViolation = 3001
	CodeUniqueViolation     = 3002
	CodeIntegrityError      = 3999
)

// Error is the single domain error type. Compare with errors.As plus Code,
// or with the Is* helpers below.
type Error struct {
	Kind    Kind
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

// New builds an error with an explicit kind, code and message.
func New(kind Kind, code int, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFound(code int, format string, args ...any) *Error {
	return New(KindNotFound, code, format, args...)
}

func Authentication(format string, args ...any) *Error {
	return New(KindAuthentication, CodeAuthFailed, format, args...)
}

func Authorization(format string, args ...any) *Error {
	return New(KindAuthorization, CodeAuthzFailed, format, args...)
}

func Conflict(code int, format string, args ...any) *Error {
	return New(KindConflict, code, format, args...)
}

func Validation(code int, format string, args ...any) *Error {
	return New(KindValidation, code, format, args...)
}

func Uncategorized(format string, args ...any) *Error {
	return New(KindUncategorized, CodeUncategorized, format, args...)
}

// KindOf returns the kind of err, or KindUncategorized for foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUncategorized
}

// CodeOf returns the stable numeric code of err, or CodeUncategorized.
func CodeOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUncategorized
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code int) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}

func IsNotFound(err error) bool      { return KindOf(err) == KindNotFound }
func IsAuthorization(err error) bool { return KindOf(err) == KindAuthorization }
func IsValidation(err error) bool    { return KindOf(err) == KindValidation }
func IsConflict(err error) bool      { return KindOf(err) == KindConflict }
