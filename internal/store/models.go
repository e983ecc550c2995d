// Package store persists conversations and their append-only message logs.
package store

import (
	"time"
)

// Conversation is the durable record for an unordered pair of identities.
// Participants are stored normalized: ParticipantA sorts before ParticipantB,
// so one pair maps to exactly one row.
type Conversation struct {
	ID            string    `json:"id"`
	ParticipantA  string    `json:"participant_a"`
	ParticipantB  string    `json:"participant_b"`
	LastMessageID *string   `json:"last_message_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessage   *Message  `json:"last_message,omitempty"`
}

// HasParticipant reports whether key is one of the two participants.
func (c *Conversation) HasParticipant(key string) bool {
	return c.ParticipantA == key || c.ParticipantB == key
}

// PeerOf returns the other participant for key. The second return value is
// false when key is not a participant at all.
func (c *Conversation) PeerOf(key string) (string, bool) {
	switch key {
	case c.ParticipantA:
		return c.ParticipantB, true
	case c.ParticipantB:
		return c.ParticipantA, true
	}
	return "", false
}

// Message is one immutable entry in a conversation's log. ID, Seq and
// CreatedAt are assigned by the store at persistence time; Seq gives a total
// order across all messages.
type Message struct {
	ID             string    `json:"id"`
	Seq            int64     `json:"seq"`
	ConversationID string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// NormalizePair orders two identity keys the way conversations store them.
func NormalizePair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
