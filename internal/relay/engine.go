package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/courierchat/internal/identity"
	"github.com/courierchat/internal/presence"
	"github.com/courierchat/internal/store"
)

// CredentialVerifier validates a bearer token. Implemented by
// identity.Verifier; the engine calls it exactly once per authenticate
// attempt and never retries on its own.
type CredentialVerifier interface {
	Verify(token string) (identity.Identity, error)
}

// ConversationStore is the slice of the store the engine needs on the send
// path.
type ConversationStore interface {
	FindOrCreateConversation(ctx context.Context, a, b string) (*store.Conversation, error)
	AppendMessage(ctx context.Context, conversationID, sender, content string) (*store.Message, error)
}

// Engine orchestrates authenticate → locate recipient → persist → deliver
// for every connection. It owns the presence directory; there is no
// process-wide singleton.
type Engine struct {
	directory   *presence.Directory[*Session]
	verifier    CredentialVerifier
	store       ConversationStore
	sendTimeout time.Duration
	log         zerolog.Logger
}

// NewEngine wires the engine's collaborators together. sendTimeout bounds
// each persistence round-trip so a hung store cannot wedge a session forever.
func NewEngine(dir *presence.Directory[*Session], verifier CredentialVerifier, st ConversationStore, sendTimeout time.Duration, log zerolog.Logger) *Engine {
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	return &Engine{
		directory:   dir,
		verifier:    verifier,
		store:       st,
		sendTimeout: sendTimeout,
		log:         log,
	}
}

// Directory exposes the presence directory for liveness reporting.
func (e *Engine) Directory() *presence.Directory[*Session] {
	return e.directory
}

// Authenticate verifies the credential and, on success, binds the identity
// to this session in the presence directory. A failed verification leaves
// every piece of state untouched. A session authenticates at most once;
// a second attempt fails with ErrAlreadyAuthenticated no matter what token
// it carries.
func (e *Engine) Authenticate(sess *Session, token string) (identity.Identity, error) {
	ident, err := e.verifier.Verify(token)
	if err != nil {
		e.log.Debug().Str("session_id", sess.ID).Err(err).Msg("authentication rejected")
		return identity.Identity{}, err
	}

	// The directory entry must never outlive its connection: bind only after
	// verification completed and only while the session is still open.
	if err := sess.bindIdentity(ident); err != nil {
		if errors.Is(err, ErrAlreadyAuthenticated) {
			return identity.Identity{}, err
		}
		return identity.Identity{}, fmt.Errorf("%w: %v", identity.ErrInvalidCredential, err)
	}

	previous, replaced, err := e.directory.Bind(ident.Key(), sess)
	if err != nil {
		// Reject policy: the identity keeps its first session and this one
		// drops back to the Connected state.
		sess.clearIdentity()
		return identity.Identity{}, fmt.Errorf("%w: %s", ErrSessionActive, ident.Key())
	}

	if replaced {
		// Last bind wins; evict the older session outside the directory lock.
		// This runs before the self-closed check below so the evicted session
		// is closed on every path, including a disconnect racing the bind.
		e.log.Info().
			Str("user", ident.Key()).
			Str("old_session", previous.ID).
			Str("new_session", sess.ID).
			Msg("replacing existing session")
		previous.Close(4001, "session replaced")
	}

	if sess.State() == StateClosed {
		// Disconnect raced the bind and its conditional unbind may already
		// have run. Remove our own entry so no directory entry outlives the
		// connection.
		e.directory.Unbind(ident.Key(), sess)
		return identity.Identity{}, fmt.Errorf("%w: session closed", identity.ErrInvalidCredential)
	}

	e.log.Info().Str("session_id", sess.ID).Str("user", ident.Key()).Msg("session authenticated")
	return ident, nil
}

// SendMessage routes one point-to-point message: resolve the recipient in
// the presence directory, persist through the store, then deliver to the
// recipient's live session. Persistence failures abort before anything is
// emitted to the recipient.
func (e *Engine) SendMessage(ctx context.Context, sess *Session, recipientKey, content string) (*store.Message, error) {
	sender, ok := sess.Identity()
	if !ok {
		return nil, ErrUnauthenticated
	}
	if recipientKey == "" {
		return nil, ErrEmptyRecipient
	}
	if !sess.AllowSend() {
		return nil, ErrRateLimited
	}

	recipient, online := e.directory.Lookup(recipientKey)
	if !online {
		// Delivery-or-nothing: no conversation, no message row.
		return nil, fmt.Errorf("%w: %s", ErrRecipientOffline, recipientKey)
	}

	ctx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	defer cancel()

	conv, err := e.store.FindOrCreateConversation(ctx, sender.Key(), recipientKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	msg, err := e.store.AppendMessage(ctx, conv.ID, sender.Key(), content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	payload := marshalFrame(ReceiveMessageFrame{
		Type:           EventReceiveMessage,
		From:           sender,
		Content:        msg.Content,
		ConversationID: conv.ID,
		SentAt:         msg.CreatedAt,
	})
	if err := recipient.Send(payload); err != nil {
		// The recipient vanished between lookup and delivery. The message is
		// already durable; the send itself still succeeded.
		e.log.Debug().
			Str("user", recipientKey).
			Str("conversation_id", conv.ID).
			Err(err).
			Msg("recipient session closed before delivery")
	}

	e.log.Debug().
		Str("from", sender.Key()).
		Str("to", recipientKey).
		Str("conversation_id", conv.ID).
		Int64("seq", msg.Seq).
		Msg("message routed")
	return msg, nil
}

// Disconnect tears the session down. The directory entry is removed only if
// it still points at this session, so a stale disconnect can never evict a
// newer bind for the same identity. Idempotent.
func (e *Engine) Disconnect(sess *Session) {
	if ident, ok := sess.Identity(); ok {
		if removed := e.directory.Unbind(ident.Key(), sess); removed {
			e.log.Info().Str("session_id", sess.ID).Str("user", ident.Key()).Msg("session unbound")
		}
	}
	sess.Close(websocket.CloseNormalClosure, "session closed")
}
