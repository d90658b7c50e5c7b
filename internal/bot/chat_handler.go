package bot

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/raine/skinalyzer-bot/internal/chat"
)

// maxTranscriptLen keeps /transcript under Telegram's 4096 character limit.
const maxTranscriptLen = 4000

// ChatHandler handles free-text questions for the assistant.
type ChatHandler struct {
	maxTranscriptLen int
}

// NewChatHandler creates a new chat handler.
func NewChatHandler() *ChatHandler {
	return &ChatHandler{maxTranscriptLen: maxTranscriptLen}
}

// HandleQuestion records the question and asks the assistant in the
// background. Blank questions are ignored.
func (h *ChatHandler) HandleQuestion(session *UserSession, text string) {
	turn, err := session.workflow.BeginChat(text)
	switch {
	case errors.Is(err, chat.ErrEmptyQuestion):
		return
	case errors.Is(err, chat.ErrTurnInFlight):
		session.reply(MsgChatBusy)
		return
	case err != nil:
		session.replyWithError(err)
		return
	}

	go h.runTurn(session, turn)
}

func (h *ChatHandler) runTurn(session *UserSession, turn *chat.Turn) {
	typingCtx, stopTyping := context.WithCancel(session.ctx)
	go session.startTypingLoop(typingCtx)

	reply, err := session.workflow.RunChat(session.ctx, turn)
	stopTyping()

	session.Send(SessionMessage{
		Type: msgTypeChatComplete,
		Ctx:  context.Background(),
		ChatOutcome: &ChatOutcome{
			Turn:  turn,
			Reply: reply,
			Err:   err,
		},
	})
}

// HandleChatComplete appends the reply and sends it. Replies for turns
// abandoned by /reset are dropped.
func (h *ChatHandler) HandleChatComplete(session *UserSession, outcome *ChatOutcome) {
	msg, ok := session.workflow.CompleteChat(outcome.Turn, outcome.Reply, outcome.Err)
	if !ok {
		log.Info().Int64("userId", session.userId).Msg("dropping reply for abandoned chat turn")
		return
	}
	session.replyPlain(msg.Text)
}

// HandleTranscriptCommand sends the conversation so far.
func (h *ChatHandler) HandleTranscriptCommand(session *UserSession) {
	messages := session.workflow.Transcript()
	if len(messages) == 0 {
		session.reply(MsgTranscriptEmpty)
		return
	}
	session.replyPlain(formatTranscript(messages, h.maxTranscriptLen))
}

// formatTranscript renders messages oldest first. When the text would exceed
// limit, the oldest entries are left out.
func formatTranscript(messages []chat.Message, limit int) string {
	var entries []string
	total := 0
	for i := len(messages) - 1; i >= 0; i-- {
		speaker := MsgTranscriptYou
		if messages[i].Role == chat.RoleAssistant {
			speaker = MsgTranscriptBot
		}
		entry := speaker + ": " + messages[i].Text
		if total+len(entry)+2 > limit && len(entries) > 0 {
			break
		}
		entries = append(entries, entry)
		total += len(entry) + 2
	}

	// Collected newest first
	slices.Reverse(entries)
	text := strings.Join(entries, "\n\n")
	if len(text) > limit {
		// A single oversized entry, cut without splitting a rune
		text = strings.ToValidUTF8(text[:limit], "")
	}
	return text
}
