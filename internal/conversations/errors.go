package conversations

import (
	"errors"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotMember            = errors.New("user is not a member of the conversation")
	ErrSelfConversation     = errors.New("conversation with yourself is not allowed")
)
