package tickets

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how it is reported.
type Kind int

const (
	// KindInternal is a store failure or unexpected error.
	KindInternal Kind = iota

	// KindValidation is bad or missing input.
	KindValidation

	// KindNotFound is an unknown guild or ticket.
	KindNotFound

	// KindPermission is a caller lacking a required capability.
	KindPermission

	// KindPrecondition is a state that refuses the operation.
	KindPrecondition

	// KindExternal is a failed channel provider call.
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission"
	case KindPrecondition:
		return "precondition"
	case KindExternal:
		return "external"
	default:
		return "internal"
	}
}

// Code is a stable identifier of an error.
type Code string

const (
	CodeNotInGuild            Code = "NotInGuild"
	CodeNotConfigured         Code = "NotConfigured"
	CodeDisabled              Code = "Disabled"
	CodeInvalidTicketType     Code = "InvalidTicketType"
	CodeTicketTypeDisabled    Code = "TicketTypeDisabled"
	CodeNoCategory            Code = "NoCategory"
	CodeTooManyOpenTickets    Code = "TooManyOpenTickets"
	CodeCategoryMissing       Code = "CategoryMissing"
	CodeNotATicket            Code = "NotATicket"
	CodeForbidden             Code = "Forbidden"
	CodeAlreadyClosed         Code = "AlreadyClosed"
	CodeAlreadyPresent        Code = "AlreadyPresent"
	CodeNotPresent            Code = "NotPresent"
	CodeCannotRemoveCreator   Code = "CannotRemoveCreator"
	CodeCannotRemoveBot       Code = "CannotRemoveBot"
	CodeAdministratorRequired Code = "AdministratorRequired"
	CodeInvalidChannel        Code = "InvalidChannel"
	CodeExternal              Code = "ExternalServiceError"
	CodeInternal              Code = "InternalError"
)

// GenericMessage is shown to users in place of external and internal failures.
const GenericMessage = "Something went wrong. Please try again or contact an administrator."

// Error is a ticket operation failure.
type Error struct {
	Kind Kind
	Code Code

	// Message is safe to show to the user.
	Message string

	// Err is the underlying cause, if any. It is never shown to the user.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotInGuild = &Error{
		Kind:    KindPrecondition,
		Code:    CodeNotInGuild,
		Message: "Tickets can only be used inside a server.",
	}
	ErrNotConfigured = &Error{
		Kind:    KindPrecondition,
		Code:    CodeNotConfigured,
		Message: "The ticket system is not configured on this server. An administrator must run `/setup`.",
	}
	ErrDisabled = &Error{
		Kind:    KindPrecondition,
		Code:    CodeDisabled,
		Message: "Ticket creation is currently disabled on this server.",
	}
	ErrInvalidTicketType = &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidTicketType,
		Message: "That ticket type does not exist.",
	}
	ErrTicketTypeDisabled = &Error{
		Kind:    KindPrecondition,
		Code:    CodeTicketTypeDisabled,
		Message: "That ticket type is not enabled on this server.",
	}
	ErrNoCategory = &Error{
		Kind:    KindPrecondition,
		Code:    CodeNoCategory,
		Message: "No ticket category has been configured. An administrator must run `/setup`.",
	}
	ErrTooManyOpenTickets = &Error{
		Kind:    KindPrecondition,
		Code:    CodeTooManyOpenTickets,
		Message: fmt.Sprintf("You already have %d open tickets. Please close one before opening another.", MaxOpenTickets),
	}
	ErrCategoryMissing = &Error{
		Kind:    KindPrecondition,
		Code:    CodeCategoryMissing,
		Message: "The configured ticket category no longer exists. An administrator must run `/setup`.",
	}
	ErrNotATicket = &Error{
		Kind:    KindNotFound,
		Code:    CodeNotATicket,
		Message: "This channel is not a ticket.",
	}
	ErrForbidden = &Error{
		Kind:    KindPermission,
		Code:    CodeForbidden,
		Message: "You do not have permission to manage this ticket.",
	}
	ErrAlreadyClosed = &Error{
		Kind:    KindPrecondition,
		Code:    CodeAlreadyClosed,
		Message: "This ticket is already closed.",
	}
	ErrAlreadyPresent = &Error{
		Kind:    KindPrecondition,
		Code:    CodeAlreadyPresent,
		Message: "That user already has access to this ticket.",
	}
	ErrNotPresent = &Error{
		Kind:    KindPrecondition,
		Code:    CodeNotPresent,
		Message: "That user does not have access to this ticket.",
	}
	ErrCannotRemoveCreator = &Error{
		Kind:    KindPrecondition,
		Code:    CodeCannotRemoveCreator,
		Message: "You cannot remove the ticket's creator.",
	}
	ErrCannotRemoveBot = &Error{
		Kind:    KindPrecondition,
		Code:    CodeCannotRemoveBot,
		Message: "The bot needs access to this ticket to manage it.",
	}
	ErrAdministratorRequired = &Error{
		Kind:    KindPermission,
		Code:    CodeAdministratorRequired,
		Message: "You must be an administrator to use this command.",
	}
	ErrInvalidChannel = &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidChannel,
		Message: "Please choose a valid channel.",
	}
)

// withMessage returns a copy of base with a more specific user message.
func withMessage(base *Error, format string, args ...any) *Error {
	e := *base
	e.Message = fmt.Sprintf(format, args...)
	return &e
}

func externalError(err error) *Error {
	return &Error{
		Kind:    KindExternal,
		Code:    CodeExternal,
		Message: GenericMessage,
		Err:     err,
	}
}

func internalError(err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    CodeInternal,
		Message: GenericMessage,
		Err:     err,
	}
}

// KindOf returns the kind of err. Errors that are not an *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserMessage returns the text to show a user for err. The cause of external
// and internal errors is never included.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return GenericMessage
	}
	switch e.Kind {
	case KindExternal, KindInternal:
		return GenericMessage
	default:
		return e.Message
	}
}
