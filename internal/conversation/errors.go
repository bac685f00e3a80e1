package conversation

import "errors"

var (
	// ErrConversationNotFound is returned when a conversation id does not exist.
	ErrConversationNotFound = errors.New("conversation: not found")

	// ErrUpstreamUnavailable wraps failures of the directory, the LLM, or the
	// notification gateway.
	ErrUpstreamUnavailable = errors.New("conversation: upstream unavailable")

	// ErrMalformedArguments marks a tool call whose arguments did not parse or validate.
	ErrMalformedArguments = errors.New("conversation: malformed function arguments")

	// ErrUnknownFunction marks a tool call naming a function we do not implement.
	ErrUnknownFunction = errors.New("conversation: unknown function")

	// ErrInvalidPhone is returned when a phone number has no digits.
	ErrInvalidPhone = errors.New("conversation: phone number must contain digits")

	// ErrEmptyMessage is returned when a user turn has no text.
	ErrEmptyMessage = errors.New("conversation: message must not be empty")

	// ErrActiveConversationExists is returned when inserting a second ACTIVE
	// conversation for a phone number.
	ErrActiveConversationExists = errors.New("conversation: active conversation already exists")
)
