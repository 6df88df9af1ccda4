package entity

import "errors"

// Expected conditions reported by the chat managers. These are results, not
// failures: handlers map them to protocol ERROR frames or HTTP statuses
// without tearing the connection down.
var (
	ErrSessionNotFound = errors.New("chat session not found")
	ErrSessionEnded    = errors.New("chat session already ended")
	ErrNoSession       = errors.New("no resolvable chat session for sender")
	ErrEmptyContent    = errors.New("message content is empty")
	ErrAssistDisabled  = errors.New("assist service is not enabled")
)
