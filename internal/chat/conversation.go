// Package chat keeps the question/answer transcript with the assistant and
// talks to the remote chat endpoint.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FallbackReply replaces the assistant's answer when the exchange fails.
const FallbackReply = "Sorry, there was an error processing your question."

var (
	// ErrEmptyQuestion is returned by Begin for blank input. Callers treat it as a no-op.
	ErrEmptyQuestion = errors.New("empty question")
	// ErrTurnInFlight is returned by Begin while a previous turn is unanswered.
	ErrTurnInFlight = errors.New("chat turn already in flight")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is an immutable transcript entry.
type Message struct {
	Role Role
	Text string
}

// Turn is one pending question.
type Turn struct {
	ID       uuid.UUID
	Question string
}

// Asker answers a single question.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Conversation is an append-only transcript with at most one pending turn.
// It is not safe for concurrent use.
type Conversation struct {
	messages []Message
	pending  *Turn
}

func NewConversation() *Conversation {
	return &Conversation{}
}

// Begin appends the user's question to the transcript and opens a turn.
// Blank questions and questions asked while a turn is pending leave the
// transcript untouched.
func (c *Conversation) Begin(question string) (*Turn, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if c.pending != nil {
		return nil, ErrTurnInFlight
	}
	turn := &Turn{ID: uuid.New(), Question: question}
	c.messages = append(c.messages, Message{Role: RoleUser, Text: question})
	c.pending = turn
	return turn, nil
}

// Complete closes turn with the assistant's reply, or with FallbackReply when
// err is set. A turn that is no longer pending (the conversation was reset)
// is discarded and ok is false.
func (c *Conversation) Complete(turn *Turn, reply string, err error) (msg Message, ok bool) {
	if turn == nil || c.pending == nil || c.pending.ID != turn.ID {
		return Message{}, false
	}
	c.pending = nil

	if err != nil {
		log.Warn().Err(err).Str("turn", turn.ID.String()).Msg("chat turn failed, using fallback reply")
		reply = FallbackReply
	}
	msg = Message{Role: RoleAssistant, Text: reply}
	c.messages = append(c.messages, msg)
	return msg, true
}

// Pending reports whether a turn is awaiting its reply.
func (c *Conversation) Pending() bool {
	return c.pending != nil
}

// Messages returns a copy of the transcript in insertion order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int {
	return len(c.messages)
}

// Reset empties the transcript and abandons any pending turn.
func (c *Conversation) Reset() {
	c.messages = nil
	c.pending = nil
}

// Send runs one full turn synchronously. It returns ok=false without
// contacting asker when Begin refuses the question.
func Send(ctx context.Context, c *Conversation, asker Asker, question string) (Message, bool) {
	turn, err := c.Begin(question)
	if err != nil {
		return Message{}, false
	}
	reply, err := asker.Ask(ctx, turn.Question)
	return c.Complete(turn, reply, err)
}
