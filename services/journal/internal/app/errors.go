package app

import "errors"

var (
	// ErrInvalidInput wraps every validation failure; the wrapped message is
	// safe to show to clients.
	ErrInvalidInput = errors.New("invalid input")

	ErrUnauthorized = errors.New("authentication required")
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// This message is intended to be shown to end users and should not enable account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")
	ErrForbidden          = errors.New("not allowed to access this resource")

	ErrEntryNotFound        = errors.New("journal entry not found")
	ErrConversationNotFound = errors.New("conversation not found for this entry")
	ErrTagNotFound          = errors.New("tag not found")
	ErrPromptNotFound       = errors.New("no prompt available")

	ErrEntryExists        = errors.New("a journal entry already exists for this date")
	ErrConversationExists = errors.New("a conversation already exists for this entry")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrMessageLimit       = errors.New("conversation message limit reached")

	// ErrUpstream marks a failed AI call on an interactive path. Clients may retry.
	ErrUpstream = errors.New("AI service unavailable, please retry")

	ErrExportDisabled = errors.New("export is not configured")
)
