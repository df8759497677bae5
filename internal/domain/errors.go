package domain

import "errors"

// Sentinel errors callers branch on.
var (
	// ErrConversationNotFound is returned when a conversation id does not
	// resolve to a stored conversation.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrDuplicateSource is returned when a source name is already taken
	// within a conversation. Names are deletion keys, so they must be
	// unique per conversation.
	ErrDuplicateSource = errors.New("source name already exists in conversation")

	// ErrUnknownModel is returned when a chat turn names a model id that
	// is not in the registry.
	ErrUnknownModel = errors.New("unknown model id")
)
