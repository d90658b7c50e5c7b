package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/raine/skinalyzer-bot/internal/workflow"
)

// Callback data of inline buttons.
const (
	CallbackAnalyze = "scan:analyze"
	CallbackRetry   = "scan:retry"
	CallbackHelp    = "help:open"
)

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// WorkflowFactory creates the workflow of a new user session.
type WorkflowFactory func() *workflow.Coordinator

// Bot is the main Telegram bot handler.
type Bot struct {
	tg          BotAPI
	state       BotState
	newWorkflow WorkflowFactory

	// Handlers
	scanHandler *ScanHandler
	chatHandler *ChatHandler
}

// NewBot creates a new Bot instance.
func NewBot(tg BotAPI, newWorkflow WorkflowFactory, downloader *ImageDownloader) *Bot {
	bot := &Bot{
		tg:          tg,
		newWorkflow: newWorkflow,
	}

	bot.state = bot.NewBotState()
	bot.scanHandler = NewScanHandler(tg, downloader)
	bot.chatHandler = NewChatHandler()

	return bot
}

// HandleUpdate is the main message router.
// It dispatches messages to the appropriate session worker for sequential processing.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, false)
}

// handleUpdateSync is like HandleUpdate but waits for message processing to complete.
func (b *Bot) handleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, true)
}

// dispatchUpdate routes updates to the appropriate session worker.
// If sync is true, it waits for message processing to complete.
func (b *Bot) dispatchUpdate(ctx context.Context, update tgbotapi.Update, sync bool) {
	var userId int64

	if update.CallbackQuery != nil && update.CallbackQuery.From != nil {
		userId = update.CallbackQuery.From.ID
	} else if update.Message != nil && update.Message.From != nil {
		userId = update.Message.From.ID
	} else {
		return
	}

	session, err := b.state.getUserSession(userId)
	if err != nil {
		log.Error().Err(err).Send()
		return
	}

	send := func(msg SessionMessage) {
		if sync {
			session.SendSync(msg)
		} else {
			session.Send(msg)
		}
	}

	if update.CallbackQuery != nil {
		send(SessionMessage{
			Type:          msgTypeCallback,
			Ctx:           ctx,
			CallbackQuery: update.CallbackQuery,
		})
		return
	}

	message := update.Message
	log.Info().Int64("userId", userId).Str("text", message.Text).Str("caption", message.Caption).Msg("got message")

	switch {
	case len(message.Photo) > 0:
		send(SessionMessage{Type: msgTypePhoto, Ctx: ctx, Message: message})
	case message.Document != nil:
		send(SessionMessage{Type: msgTypeDocument, Ctx: ctx, Message: message})
	default:
		send(SessionMessage{Type: msgTypeText, Ctx: ctx, Message: message})
	}
}

// HandleSessionMessage implements MessageHandler interface.
// This is called by the session worker goroutine for sequential processing.
func (b *Bot) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	switch msg.Type {
	case msgTypeCallback:
		b.handleCallbackQuery(ctx, session, msg.CallbackQuery)
	case msgTypePhoto:
		b.scanHandler.HandlePhoto(ctx, session, msg.Message)
	case msgTypeDocument:
		b.scanHandler.HandleDocument(ctx, session, msg.Message)
	case msgTypeText:
		b.handleTextMessage(ctx, session, msg.Message)
	case msgTypeAnalysisComplete:
		b.scanHandler.HandleAnalysisComplete(session, msg.AnalysisOutcome)
	case msgTypeChatComplete:
		b.chatHandler.HandleChatComplete(session, msg.ChatOutcome)
	}
}

// handleTextMessage processes text messages.
// Anything that is not a command is a question for the chat assistant.
func (b *Bot) handleTextMessage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	text := strings.TrimSpace(message.Text)
	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, session, text)
		return
	}
	if text == "" {
		// Stickers, voice notes and the like
		session.reply(MsgUnknownCommand)
		return
	}
	b.chatHandler.HandleQuestion(session, text)
}

// handleCommand processes bot commands.
func (b *Bot) handleCommand(ctx context.Context, session *UserSession, text string) {
	command, _ := parseCommand(text)
	switch command {
	case "/start":
		msg := tgbotapi.NewMessage(session.userId, formatReplyText(MsgStart))
		msg.ParseMode = tgbotapi.ModeMarkdown
		msg.ReplyMarkup = helpKeyboard()
		session.replyWithMessage(msg)
	case "/help":
		session.reply(MsgHelp)
	case "/analyze":
		b.scanHandler.StartAnalysis(session)
	case "/transcript":
		b.chatHandler.HandleTranscriptCommand(session)
	case "/reset":
		session.reset()
		session.reply(MsgResetDone)
	default:
		session.reply(MsgUnknownCommand)
	}
}

// handleCallbackQuery handles inline keyboard button presses.
func (b *Bot) handleCallbackQuery(ctx context.Context, session *UserSession, query *tgbotapi.CallbackQuery) {
	// Answer the callback to remove the loading state
	callback := tgbotapi.NewCallback(query.ID, "")
	b.tg.Request(callback)

	if strings.HasPrefix(query.Data, "scan:") {
		b.scanHandler.HandleCallback(session, query)
	} else if query.Data == CallbackHelp {
		session.reply(MsgHelp)
	} else {
		log.Warn().Str("data", query.Data).Msg("unknown callback data")
	}
}

func helpKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(BtnHelp, CallbackHelp)),
	)
}

func analyzeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(BtnAnalyze, CallbackAnalyze),
			tgbotapi.NewInlineKeyboardButtonData(BtnHelp, CallbackHelp),
		),
	)
}

func retryKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(BtnRetry, CallbackRetry)),
	)
}
