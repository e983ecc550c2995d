package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courierchat/internal/retry"
)

// ErrSameParticipant is returned when both sides of a conversation would be
// the same identity.
var ErrSameParticipant = errors.New("conversation requires two distinct participants")

// ErrEmptyContent is returned for messages with no text after trimming.
var ErrEmptyContent = errors.New("message content is empty")

// Postgres is the pgx-backed conversation store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps pool in a store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// FindOrCreateConversation resolves the conversation for the unordered pair
// (a, b), creating it on first contact. The unique index on the normalized
// pair makes this idempotent: when two senders race, one INSERT wins and the
// loser re-reads the winner's row.
func (s *Postgres) FindOrCreateConversation(ctx context.Context, a, b string) (*Conversation, error) {
	if a == b {
		return nil, ErrSameParticipant
	}
	pa, pb := NormalizePair(a, b)

	conv, err := s.findConversation(ctx, pa, pb)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	err = retry.Do(ctx, retry.StoreConfig(), func() error {
		c := &Conversation{ParticipantA: pa, ParticipantB: pb}
		scanErr := s.pool.QueryRow(ctx, `
			INSERT INTO conversations (participant_a, participant_b)
			VALUES ($1, $2)
			ON CONFLICT (participant_a, participant_b) DO NOTHING
			RETURNING id::text, created_at
		`, pa, pb).Scan(&c.ID, &c.CreatedAt)
		if scanErr == nil {
			conv = c
			return nil
		}
		if !errors.Is(scanErr, pgx.ErrNoRows) {
			return scanErr
		}
		// A concurrent creator won the unique-index race; read its row.
		existing, findErr := s.findConversation(ctx, pa, pb)
		if findErr != nil {
			return findErr
		}
		conv = existing
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// AppendMessage persists one message and moves the conversation's
// most-recent-message pointer in the same transaction. Nothing is visible
// to readers until both writes commit.
func (s *Postgres) AppendMessage(ctx context.Context, conversationID, sender, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	msg := &Message{ConversationID: conversationID, Sender: sender, Content: content}
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender, content)
		VALUES ($1::uuid, $2, $3)
		RETURNING id::text, seq, created_at
	`, conversationID, sender, content).Scan(&msg.ID, &msg.Seq, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations SET last_message_id = $1::uuid WHERE id = $2::uuid
	`, msg.ID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("update last message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return msg, nil
}

// ConversationsFor lists the conversations key participates in, most recent
// activity first, with the denormalized last message joined in.
func (s *Postgres) ConversationsFor(ctx context.Context, key string) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id::text, c.participant_a, c.participant_b, c.last_message_id::text, c.created_at,
		       m.id::text, m.seq, m.conversation_id::text, m.sender, m.content, m.created_at
		FROM conversations c
		LEFT JOIN messages m ON m.id = c.last_message_id
		WHERE c.participant_a = $1 OR c.participant_b = $1
		ORDER BY COALESCE(m.created_at, c.created_at) DESC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var mID, mConvID, mSender, mContent *string
		var mSeq *int64
		var mCreatedAt *time.Time
		if err := rows.Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.LastMessageID, &c.CreatedAt,
			&mID, &mSeq, &mConvID, &mSender, &mContent, &mCreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if mID != nil {
			c.LastMessage = &Message{
				ID:             *mID,
				Seq:            *mSeq,
				ConversationID: *mConvID,
				Sender:         *mSender,
				Content:        *mContent,
				CreatedAt:      *mCreatedAt,
			}
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// Messages returns up to limit messages of a conversation, newest first.
// beforeSeq > 0 pages backwards through history.
func (s *Postgres) Messages(ctx context.Context, conversationID string, limit int, beforeSeq int64) ([]Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if beforeSeq <= 0 {
		beforeSeq = int64(^uint64(0) >> 1)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, seq, conversation_id::text, sender, content, created_at
		FROM messages
		WHERE conversation_id = $1::uuid AND seq < $2
		ORDER BY seq DESC
		LIMIT $3
	`, conversationID, beforeSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Seq, &m.ConversationID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Conversation loads a single conversation by id.
func (s *Postgres) Conversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, participant_a, participant_b, last_message_id::text, created_at
		FROM conversations
		WHERE id = $1::uuid
	`, id).Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.LastMessageID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Postgres) findConversation(ctx context.Context, pa, pb string) (*Conversation, error) {
	var c Conversation
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, participant_a, participant_b, last_message_id::text, created_at
		FROM conversations
		WHERE participant_a = $1 AND participant_b = $2
	`, pa, pb).Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.LastMessageID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
