package chat

import "errors"

// Connect-time failures. Each closes the connection with no partial state.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidIntegration   = errors.New("invalid integration")
)
