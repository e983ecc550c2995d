package relay

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/courierchat/internal/identity"
)

// Wire event names. Inbound names are what clients send; outbound names are
// what the relay emits.
const (
	EventAuthenticate   = "authenticate"
	EventSendMessage    = "send_message"
	EventAuthSuccess    = "auth_success"
	EventAuthError      = "auth_error"
	EventReceiveMessage = "receive_message"
	EventError          = "error_message"
)

// Error codes carried by error_message frames.
const (
	CodeUnauthenticated  = "unauthenticated"
	CodeAuthFailed       = "auth_failed"
	CodeRecipientOffline = "recipient_offline"
	CodePersistence      = "persistence_error"
	CodeRateLimited      = "rate_limited"
	CodeSessionActive    = "session_active"
	CodeBadRequest       = "bad_request"
)

// InboundFrame is any client-to-server event.
type InboundFrame struct {
	Type    string `json:"type"`
	Token   string `json:"token,omitempty"`
	To      string `json:"to,omitempty"`
	Content string `json:"content,omitempty"`
}

// AuthSuccessFrame carries the public claims of a verified identity.
type AuthSuccessFrame struct {
	Type string            `json:"type"`
	User identity.Identity `json:"user"`
}

// AuthErrorFrame reports a rejected authenticate attempt.
type AuthErrorFrame struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ReceiveMessageFrame is delivered to the recipient of a send.
type ReceiveMessageFrame struct {
	Type           string            `json:"type"`
	From           identity.Identity `json:"from"`
	Content        string            `json:"content"`
	ConversationID string            `json:"conversation_id"`
	SentAt         time.Time         `json:"sent_at"`
}

// ErrorFrame reports a failed send back on the originating connection.
type ErrorFrame struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// NewAuthSuccess builds the auth_success frame for id.
func NewAuthSuccess(id identity.Identity) AuthSuccessFrame {
	return AuthSuccessFrame{Type: EventAuthSuccess, User: id}
}

// NewAuthError builds the auth_error frame.
func NewAuthError(reason string) AuthErrorFrame {
	return AuthErrorFrame{Type: EventAuthError, Reason: reason}
}

// NewError maps an engine error to the error_message frame for the sender.
func NewError(err error) ErrorFrame {
	return ErrorFrame{Type: EventError, Code: ErrorCode(err), Reason: err.Error()}
}

// ErrorCode translates the engine's error taxonomy to a wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, identity.ErrInvalidCredential):
		return CodeAuthFailed
	case errors.Is(err, ErrRecipientOffline):
		return CodeRecipientOffline
	case errors.Is(err, ErrPersistence):
		return CodePersistence
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrSessionActive):
		return CodeSessionActive
	default:
		return CodeBadRequest
	}
}

func marshalFrame(v interface{}) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		// Frames are plain structs; marshalling cannot fail at runtime.
		return []byte(`{"type":"error_message","code":"internal","reason":"encode failure"}`)
	}
	return payload
}
