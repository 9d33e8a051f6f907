package domain

import (
	"errors"
	"net/http"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindPermission
	KindNotFound
	KindConflict
	KindInvariant
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvariant:
		return "invariant"
	}
	return "unknown"
}

// HTTPStatus maps an error kind onto the REST status code.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation, KindInvariant:
		return http.StatusBadRequest
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Error is a classified failure that the transport layer can render.
// Two errors match under errors.Is when kind and code are equal.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func NewValidationError(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// NewFieldErrors wraps per-field validation messages.
func NewFieldErrors(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: "Validation failed", Fields: fields}
}

func NewPermissionError(code, message string) *Error {
	return &Error{Kind: KindPermission, Code: code, Message: message}
}

func NewNotFoundError(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

var (
	ErrValidation        = &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: "Validation failed"}
	ErrInvalidAddressing = NewValidationError("INVALID_ADDRESSING", "Exactly one of receiverId or groupId is required")
	ErrEmptyMessage      = NewValidationError("EMPTY_MESSAGE", "Message content or attachment is required")
	ErrSelfMessage       = NewValidationError("SELF_MESSAGE", "Cannot send a private message to yourself")
	ErrReplyOutside      = NewValidationError("REPLY_OUTSIDE_THREAD", "Reply target belongs to another conversation")
	ErrSelfRoleChange    = NewValidationError("SELF_ROLE_CHANGE", "Admins cannot change their own role")
	ErrSelfTransfer      = NewValidationError("SELF_TRANSFER", "Cannot transfer admin rights to yourself")
	ErrInvalidRole       = NewValidationError("INVALID_ROLE", "Role must be ADMIN or MEMBER")
	ErrEmptyUpdate       = NewValidationError("EMPTY_UPDATE", "At least one of name, description or avatar is required")

	ErrNotMember = NewPermissionError("NOT_MEMBER", "You are not a member of this group")
	ErrNotAdmin  = NewPermissionError("NOT_ADMIN", "Only group admins can perform this action")
	ErrNotSender = NewPermissionError("NOT_SENDER", "Only the message sender can perform this action")

	ErrMessageNotFound = NewNotFoundError("MESSAGE_NOT_FOUND", "Message not found")
	ErrGroupNotFound   = NewNotFoundError("GROUP_NOT_FOUND", "Group not found")
	ErrMemberNotFound  = NewNotFoundError("MEMBER_NOT_FOUND", "User is not an active member of this group")
	ErrUserNotFound    = NewNotFoundError("USER_NOT_FOUND", "User not found")
	ErrReplyNotFound   = NewNotFoundError("REPLY_NOT_FOUND", "Reply target not found")

	ErrAlreadyMember = &Error{Kind: KindConflict, Code: "ALREADY_MEMBER", Message: "User is already a member of this group"}

	ErrSoleAdmin = &Error{Kind: KindInvariant, Code: "SOLE_ADMIN", Message: "Group must keep at least one admin"}
)

// AsError unwraps err into a classified *Error, if it is one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
