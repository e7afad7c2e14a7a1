package usecase

import "errors"

var (
	// Forbidden
	ErrNotParticipant      = errors.New("you are not a participant of this chat")
	ErrNotRecipient        = errors.New("only the recipient can respond to this request")
	ErrMessagingNotAllowed = errors.New("recipient does not accept messages from you")

	// Conflict
	ErrRequestResolved = errors.New("request has already been responded to")

	// Validation
	ErrInvalidParticipants = errors.New("invalid participant list")
	ErrGroupNameRequired   = errors.New("group name is required")
	ErrNotGroupRoom        = errors.New("operation only valid on group chats")
	ErrInvalidMessageType  = errors.New("invalid message type")
	ErrInvalidDecision     = errors.New("decision must be approved or denied")
	ErrInvalidEventType    = errors.New("unknown event type")
	ErrEmptyContent        = errors.New("message content is required")
)
