package relay

import "errors"

// Engine error taxonomy. Every user-facing failure maps onto one of these;
// ErrorCode in events.go turns them into wire codes.
var (
	// ErrUnauthenticated: a send was attempted before the session bound an
	// identity. Recoverable, nothing mutated.
	ErrUnauthenticated = errors.New("session is not authenticated")

	// ErrRecipientOffline: the recipient has no live session. The message is
	// not persisted; this relay is delivery-or-nothing, not store-and-forward.
	ErrRecipientOffline = errors.New("recipient is not connected")

	// ErrPersistence: the conversation store failed. Nothing was delivered.
	ErrPersistence = errors.New("persistence failure")

	// ErrRateLimited: the per-session send limiter rejected the operation.
	ErrRateLimited = errors.New("send rate limit exceeded")

	// ErrSessionActive: under the reject duplicate policy, the identity
	// already has a live session.
	ErrSessionActive = errors.New("identity already has an active session")

	// ErrEmptyRecipient: send_message without a recipient key.
	ErrEmptyRecipient = errors.New("recipient is required")

	// ErrAlreadyAuthenticated: a session authenticates at most once. Rebinding
	// a live session to another identity would strand its old directory entry.
	ErrAlreadyAuthenticated = errors.New("session is already authenticated")
)
