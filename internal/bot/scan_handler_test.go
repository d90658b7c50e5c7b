package bot

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raine/skinalyzer-bot/internal/analysis"
	"github.com/raine/skinalyzer-bot/internal/workflow"
)

const acneResponse = `{
	"disease": "Acne",
	"confidence": 87.3,
	"probabilities": {"Acne": 87.3, "Eczema": 8.1, "Fungal Infection": 3.1, "Healthy": 1.5},
	"tips": "Keep the area clean and avoid picking."
}`

func analyzeHandler(t *testing.T, status func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		code := status()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if code == http.StatusOK {
			io.WriteString(w, acneResponse)
		} else {
			io.WriteString(w, `{"error":"model unavailable"}`)
		}
	}
}

func alwaysOK() int { return http.StatusOK }

func TestPhoto_StagesAndShowsPreview(t *testing.T) {
	env := setup(t, nil)
	env.tg.On("Send", mock.MatchedBy(func(p tgbotapi.PhotoConfig) bool {
		return p.Caption == MsgImageStaged && assert.ObjectsAreEqual(analyzeKeyboard(), p.ReplyMarkup)
	})).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), photoUpdate(""))

	env.tg.AssertExpectations(t)
	env.tg.AssertCalled(t, "GetFileDirectURL", "large")
	snap := env.session.workflow.Snapshot()
	assert.Equal(t, workflow.PhaseStaged, snap.Phase)
	require.NotNil(t, snap.Image)
	assert.Equal(t, "image/jpeg", snap.Image.MimeType)
}

func TestPhoto_PreviewRejectedFallsBackToText(t *testing.T) {
	env := setup(t, nil)
	env.tg.On("Send", mock.AnythingOfType("tgbotapi.PhotoConfig")).
		Return(tgbotapi.Message{}, assert.AnError).Once()
	env.tg.On("Send", mock.MatchedBy(func(msg tgbotapi.MessageConfig) bool {
		return msg.Text == MsgImageStaged && msg.ReplyMarkup != nil
	})).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), photoUpdate(""))

	env.tg.AssertExpectations(t)
}

func TestDocument_UnsupportedTypeNotDownloaded(t *testing.T) {
	env := setup(t, nil)
	env.tg.On("Send", makeMessage(testUserID, MsgUnsupportedType)).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), documentUpdate("report.pdf", "application/pdf"))

	env.tg.AssertExpectations(t)
	env.tg.AssertNotCalled(t, "GetFileDirectURL", mock.Anything)
	assert.Equal(t, workflow.PhaseNoImage, env.session.workflow.Phase())
}

func TestDocument_ImageByExtension(t *testing.T) {
	env := setup(t, nil)
	env.tg.On("Send", photoWithCaption(MsgImageStaged)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), documentUpdate("rash.png", ""))

	env.tg.AssertExpectations(t)
	snap := env.session.workflow.Snapshot()
	require.NotNil(t, snap.Image)
	assert.Equal(t, "rash.png", snap.Image.FileName)
	assert.Equal(t, "image/png", snap.Image.MimeType)
}

func TestAlbum_AnsweredOnce(t *testing.T) {
	env := setup(t, nil)
	env.tg.On("Send", makeMessage(testUserID, MsgSingleImageOnly)).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), photoUpdate("album-1"))
	env.bot.handleUpdateSync(context.Background(), photoUpdate("album-1"))

	env.tg.AssertExpectations(t)
	env.tg.AssertNumberOfCalls(t, "Send", 1)
	assert.Equal(t, workflow.PhaseNoImage, env.session.workflow.Phase())
}

func TestAnalyze_WithoutImage(t *testing.T) {
	env := setup(t, nil)
	env.tg.On("Send", makeMessage(testUserID, MsgNoImage)).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), textUpdate("/analyze"))

	env.tg.AssertExpectations(t)
}

func TestAnalyze_ShowsResult(t *testing.T) {
	var calls int32
	env := setup(t, analyzeHandler(t, func() int {
		atomic.AddInt32(&calls, 1)
		return http.StatusOK
	}))
	env.tg.On("Send", photoWithCaption(MsgImageStaged)).Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", makeMessage(testUserID, MsgAnalyzing)).Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", photoWithCaption("Analysis Complete! Detected: Acne with 87.3% confidence")).
		Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", mock.MatchedBy(func(msg tgbotapi.MessageConfig) bool {
		return msg.ParseMode == "" &&
			strings.HasPrefix(msg.Text, "Acne\nConfidence: 87.3%") &&
			strings.Contains(msg.Text, "Fungal Infection 3.1%") &&
			strings.Contains(msg.Text, "Keep the area clean")
	})).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), photoUpdate(""))
	env.bot.handleUpdateSync(context.Background(), callbackUpdate(CallbackAnalyze))
	waitForWorker(t, env.session, func() bool {
		return env.session.workflow.Phase() == workflow.PhaseAnalyzed
	})

	env.tg.AssertExpectations(t)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAnalyze_FailureThenRetry(t *testing.T) {
	var calls int32
	env := setup(t, analyzeHandler(t, func() int {
		if atomic.AddInt32(&calls, 1) == 1 {
			return http.StatusServiceUnavailable
		}
		return http.StatusOK
	}))
	env.tg.On("Send", photoWithCaption(MsgImageStaged)).Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", makeMessage(testUserID, MsgAnalyzing)).Return(tgbotapi.Message{}, nil).Twice()
	env.tg.On("Send", mock.MatchedBy(func(msg tgbotapi.MessageConfig) bool {
		return msg.Text == MsgAnalysisFailed && assert.ObjectsAreEqual(retryKeyboard(), msg.ReplyMarkup)
	})).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), photoUpdate(""))
	env.bot.handleUpdateSync(context.Background(), callbackUpdate(CallbackAnalyze))
	waitForWorker(t, env.session, func() bool {
		return env.session.workflow.Phase() == workflow.PhaseAnalysisErrored
	})
	assert.Nil(t, env.session.workflow.Display())

	env.tg.On("Send", photoWithCaption("Analysis Complete! Detected: Acne with 87.3% confidence")).
		Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", mock.AnythingOfType("tgbotapi.MessageConfig")).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), callbackUpdate(CallbackRetry))
	waitForWorker(t, env.session, func() bool {
		return env.session.workflow.Phase() == workflow.PhaseAnalyzed
	})

	env.tg.AssertExpectations(t)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAnalyze_InFlightRefused(t *testing.T) {
	env := setup(t, nil)
	env.tg.On("Send", photoWithCaption(MsgImageStaged)).Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", makeMessage(testUserID, MsgAnalysisInFlight)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), photoUpdate(""))
	_, err := env.session.workflow.BeginAnalysis()
	require.NoError(t, err)

	env.bot.handleUpdateSync(context.Background(), textUpdate("/analyze"))

	env.tg.AssertExpectations(t)
}

func TestAnalysisComplete_StaleOutcomeDropped(t *testing.T) {
	env := setup(t, nil)
	env.tg.On("Send", photoWithCaption(MsgImageStaged)).Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", mock.MatchedBy(func(p tgbotapi.PhotoConfig) bool {
		return p.Caption == MsgImageStagedBusy && p.ReplyMarkup == nil
	})).Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", makeMessage(testUserID, MsgAnalysisInFlight)).Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", mock.MatchedBy(func(msg tgbotapi.MessageConfig) bool {
		return msg.Text == MsgAnalysisReady && assert.ObjectsAreEqual(analyzeKeyboard(), msg.ReplyMarkup)
	})).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), photoUpdate(""))
	ticket, err := env.session.workflow.BeginAnalysis()
	require.NoError(t, err)

	// A newer image replaces the one being analyzed
	env.bot.handleUpdateSync(context.Background(), photoUpdate(""))

	// The first call has not returned, so a second one is refused
	env.bot.handleUpdateSync(context.Background(), textUpdate("/analyze"))
	assert.True(t, env.session.workflow.AnalysisRunning())

	env.session.SendSync(SessionMessage{
		Type: msgTypeAnalysisComplete,
		Ctx:  context.Background(),
		AnalysisOutcome: &AnalysisOutcome{
			Ticket: ticket,
			Result: &analysis.Result{Label: "Acne", ConfidencePercent: 90, Probabilities: analysis.Probabilities{{Class: "Acne", Percent: 90}}},
		},
	})

	env.tg.AssertExpectations(t)
	env.tg.AssertNumberOfCalls(t, "Send", 4)
	assert.Equal(t, workflow.PhaseStaged, env.session.workflow.Phase())
	assert.Nil(t, env.session.workflow.Result())
	assert.True(t, env.session.workflow.CanAnalyze())
}

func TestAnalysisComplete_AfterResetSendsNothing(t *testing.T) {
	env := setup(t, nil)
	env.tg.On("Send", photoWithCaption(MsgImageStaged)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), photoUpdate(""))
	ticket, err := env.session.workflow.BeginAnalysis()
	require.NoError(t, err)
	env.session.workflow.Reset()

	env.session.SendSync(SessionMessage{
		Type:            msgTypeAnalysisComplete,
		Ctx:             context.Background(),
		AnalysisOutcome: &AnalysisOutcome{Ticket: ticket, Err: assert.AnError},
	})

	env.tg.AssertExpectations(t)
	env.tg.AssertNumberOfCalls(t, "Send", 1)
	assert.False(t, env.session.workflow.AnalysisRunning())
}
