package bot

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/raine/skinalyzer-bot/internal/analysis"
	"github.com/raine/skinalyzer-bot/internal/intake"
	"github.com/raine/skinalyzer-bot/internal/presenter"
	"github.com/raine/skinalyzer-bot/internal/workflow"
)

// ScanHandler handles image uploads and the analysis of the staged image.
type ScanHandler struct {
	tg         BotAPI
	downloader *ImageDownloader
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(tg BotAPI, downloader *ImageDownloader) *ScanHandler {
	return &ScanHandler{
		tg:         tg,
		downloader: downloader,
	}
}

// HandlePhoto stages a compressed Telegram photo.
func (h *ScanHandler) HandlePhoto(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	if h.rejectAlbum(session, message) {
		return
	}

	// Telegram sends several sizes, the last one is the largest
	photo := message.Photo[len(message.Photo)-1]
	data, err := h.downloader.DownloadFromTelegramFileID(ctx, h.tg.GetFileDirectURL, photo.FileID)
	if err != nil {
		h.replyDownloadError(session, err)
		return
	}

	h.stage(session, intake.File{
		Name:     photo.FileUniqueID + ".jpg",
		MimeType: "image/jpeg",
		Data:     data,
	})
}

// HandleDocument stages an image sent as a file. Non-image documents are
// rejected without downloading them.
func (h *ScanHandler) HandleDocument(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	if h.rejectAlbum(session, message) {
		return
	}

	doc := message.Document
	mimeType := doc.MimeType
	if mimeType == "" {
		mimeType = intake.MimeTypeFromName(doc.FileName)
	}
	file := intake.File{Name: doc.FileName, MimeType: mimeType}

	if intake.IsSupported(mimeType) {
		data, err := h.downloader.DownloadFromTelegramFileID(ctx, h.tg.GetFileDirectURL, doc.FileID)
		if err != nil {
			h.replyDownloadError(session, err)
			return
		}
		file.Data = data
	}

	h.stage(session, file)
}

// rejectAlbum answers the first photo of an album and ignores the rest.
func (h *ScanHandler) rejectAlbum(session *UserSession, message *tgbotapi.Message) bool {
	if message.MediaGroupID == "" {
		return false
	}
	if session.lastMediaGroupID != message.MediaGroupID {
		session.lastMediaGroupID = message.MediaGroupID
		session.reply(MsgSingleImageOnly)
	}
	return true
}

func (h *ScanHandler) replyDownloadError(session *UserSession, err error) {
	log.Warn().Err(err).Int64("userId", session.userId).Msg("image download failed")
	if errors.Is(err, ErrImageTooLarge) {
		session.reply(MsgFileTooLarge)
		return
	}
	session.reply(MsgDownloadFailed)
}

func (h *ScanHandler) stage(session *UserSession, file intake.File) {
	if _, err := session.workflow.Stage(file); err != nil {
		log.Info().Err(err).Int64("userId", session.userId).Str("mimeType", file.MimeType).Msg("image rejected")
		switch {
		case errors.Is(err, intake.ErrUnsupportedType):
			session.reply(MsgUnsupportedType)
		case errors.Is(err, intake.ErrEmptyFile):
			session.reply(MsgEmptyFile)
		case errors.Is(err, intake.ErrFileTooLarge):
			session.reply(MsgFileTooLarge)
		default:
			session.replyWithError(err)
		}
		return
	}

	// The analyze button stays hidden until an orphaned analysis returns
	if !session.workflow.CanAnalyze() {
		h.sendPreview(session, MsgImageStagedBusy, nil)
		return
	}
	markup := analyzeKeyboard()
	h.sendPreview(session, MsgImageStaged, &markup)
}

// sendPreview shows the staged image preview with caption. Falls back to a
// text message when the preview is missing or Telegram rejects it.
func (h *ScanHandler) sendPreview(session *UserSession, caption string, markup *tgbotapi.InlineKeyboardMarkup) {
	if preview, ok := session.workflow.Preview(); ok {
		_, err := session.replyWithPhoto(preview, caption, markup)
		if err == nil {
			return
		}
		log.Warn().Err(err).Int64("userId", session.userId).Msg("failed to send preview, falling back to text")
	}

	msg := tgbotapi.NewMessage(session.userId, caption)
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	session.replyWithMessage(msg)
}

// HandleCallback handles the analyze and retry buttons.
func (h *ScanHandler) HandleCallback(session *UserSession, query *tgbotapi.CallbackQuery) {
	switch query.Data {
	case CallbackAnalyze, CallbackRetry:
		// Remove the button so it cannot be pressed twice
		if query.Message != nil {
			edit := tgbotapi.NewEditMessageReplyMarkup(
				query.Message.Chat.ID,
				query.Message.MessageID,
				tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
			)
			h.tg.Request(edit)
		}
		h.StartAnalysis(session)
	default:
		log.Warn().Str("data", query.Data).Msg("unknown scan callback")
	}
}

// StartAnalysis submits the staged image in the background. The outcome is
// posted back to the session worker as an analysis_complete message.
func (h *ScanHandler) StartAnalysis(session *UserSession) {
	ticket, err := session.workflow.BeginAnalysis()
	switch {
	case errors.Is(err, analysis.ErrNoImage):
		session.reply(MsgNoImage)
		return
	case errors.Is(err, analysis.ErrAlreadyInFlight):
		session.reply(MsgAnalysisInFlight)
		return
	case err != nil:
		session.replyWithError(err)
		return
	}

	session.reply(MsgAnalyzing)
	go h.runAnalysis(session, ticket)
}

func (h *ScanHandler) runAnalysis(session *UserSession, ticket *workflow.AnalysisTicket) {
	typingCtx, stopTyping := context.WithCancel(session.ctx)
	go session.startTypingLoop(typingCtx)

	result, err := session.workflow.RunAnalysis(session.ctx, ticket)
	stopTyping()

	session.Send(SessionMessage{
		Type: msgTypeAnalysisComplete,
		Ctx:  context.Background(),
		AnalysisOutcome: &AnalysisOutcome{
			Ticket: ticket,
			Result: result,
			Err:    err,
		},
	})
}

// HandleAnalysisComplete applies an analysis outcome and shows the result,
// or the failure notice with a retry button. Outcomes for an image that is
// no longer staged are dropped; if a newer image is waiting, the analyze
// button is offered for it.
func (h *ScanHandler) HandleAnalysisComplete(session *UserSession, outcome *AnalysisOutcome) {
	if !session.workflow.CompleteAnalysis(outcome.Ticket, outcome.Result, outcome.Err) {
		if session.workflow.Phase() == workflow.PhaseStaged && session.workflow.CanAnalyze() {
			msg := tgbotapi.NewMessage(session.userId, MsgAnalysisReady)
			msg.ReplyMarkup = analyzeKeyboard()
			session.replyWithMessage(msg)
		}
		return
	}

	if outcome.Err != nil {
		msg := tgbotapi.NewMessage(session.userId, MsgAnalysisFailed)
		msg.ReplyMarkup = retryKeyboard()
		session.replyWithMessage(msg)
		return
	}

	model := session.workflow.Display()
	if model == nil {
		return
	}
	caption := formatReplyText(MsgAnalysisComplete, model.Label, presenter.FormatPercent(model.Confidence))
	h.sendPreview(session, caption, nil)
	session.replyPlain(presenter.Render(model))
}
