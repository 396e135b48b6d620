// Package apperrors defines the error taxonomy shared by services and handlers.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindForbidden
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

type Code string

const (
	CodeMissingFields          Code = "MissingFields"
	CodeMissingPatientIdentity Code = "MissingPatientIdentity"
	CodeInvalidStatus          Code = "InvalidStatus"
	CodeInvalidRole            Code = "InvalidRole"
	CodeWeakPassword           Code = "WeakPassword"
	CodeTooManyFiles           Code = "TooManyFiles"
	CodeInvalidRequest         Code = "InvalidRequest"
	CodeDuplicateEmail         Code = "DuplicateEmail"
	CodeSlotUnavailable        Code = "SlotUnavailable"
	CodeSlotTaken              Code = "SlotTaken"
	CodeInvalidTransition      Code = "InvalidTransition"
	CodeInvalidToken           Code = "InvalidToken"
	CodeInvalidEmail           Code = "InvalidEmail"
	CodeInvalidPassword        Code = "InvalidPassword"
	CodeUnauthorized           Code = "Unauthorized"
	CodeForbidden              Code = "Forbidden"
	CodeUserNotFound           Code = "UserNotFound"
	CodeDoctorNotFound         Code = "DoctorNotFound"
	CodeConsultationNotFound   Code = "ConsultationNotFound"
	CodeInternal               Code = "Internal"
)

var codeKinds = map[Code]Kind{
	CodeMissingFields:          KindValidation,
	CodeMissingPatientIdentity: KindValidation,
	CodeInvalidStatus:          KindValidation,
	CodeInvalidRole:            KindValidation,
	CodeWeakPassword:           KindValidation,
	CodeTooManyFiles:           KindValidation,
	CodeInvalidRequest:         KindValidation,
	CodeDuplicateEmail:         KindConflict,
	CodeSlotUnavailable:        KindConflict,
	CodeSlotTaken:              KindConflict,
	CodeInvalidTransition:      KindConflict,
	CodeInvalidToken:           KindAuth,
	CodeInvalidEmail:           KindAuth,
	CodeInvalidPassword:        KindAuth,
	CodeUnauthorized:           KindAuth,
	CodeForbidden:              KindForbidden,
	CodeUserNotFound:           KindNotFound,
	CodeDoctorNotFound:         KindNotFound,
	CodeConsultationNotFound:   KindNotFound,
	CodeInternal:               KindInternal,
}

// Error is a domain error carrying enough detail for the caller to act.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(code Code, message string) *Error {
	return &Error{Kind: codeKinds[code], Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Kind: codeKinds[code], Code: code, Message: message, Err: err}
}

// Internal wraps a storage or collaborator failure.
func Internal(message string, err error) *Error {
	return Wrap(CodeInternal, message, err)
}

// KindOf returns KindInternal for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

var (
	ErrMissingFields          = New(CodeMissingFields, "required fields are missing")
	ErrMissingPatientIdentity = New(CodeMissingPatientIdentity, "patient ID is required")
	ErrInvalidStatus          = New(CodeInvalidStatus, "invalid status value")
	ErrInvalidRole            = New(CodeInvalidRole, "invalid role")
	ErrWeakPassword           = New(CodeWeakPassword, "password must be between 8 and 72 bytes")
	ErrTooManyFiles           = New(CodeTooManyFiles, "too many files attached")
	ErrDuplicateEmail         = New(CodeDuplicateEmail, "email is already registered")
	ErrSlotUnavailable        = New(CodeSlotUnavailable, "slot not available")
	ErrSlotTaken              = New(CodeSlotTaken, "slot is already booked")
	ErrInvalidTransition      = New(CodeInvalidTransition, "status transition not allowed")
	ErrInvalidToken           = New(CodeInvalidToken, "invalid or expired token")
	ErrInvalidEmail           = New(CodeInvalidEmail, "invalid email")
	ErrInvalidPassword        = New(CodeInvalidPassword, "invalid password")
	ErrUnauthorized           = New(CodeUnauthorized, "authorization required")
	ErrForbidden              = New(CodeForbidden, "permission denied")
	ErrUserNotFound           = New(CodeUserNotFound, "user not found")
	ErrDoctorNotFound         = New(CodeDoctorNotFound, "doctor not found")
	ErrConsultationNotFound   = New(CodeConsultationNotFound, "consultation not found")
)
