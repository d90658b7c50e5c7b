// Package workflow sequences image intake, analysis and chat for one user.
//
// The Coordinator is the only writer of workflow state. Remote calls are
// split into Begin/Run/Complete steps so a caller can run the network part
// on another goroutine and hand the outcome back later. Complete steps check
// the request token, so a result that arrives after the user staged another
// image is dropped instead of overwriting the newer state.
package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/raine/skinalyzer-bot/internal/analysis"
	"github.com/raine/skinalyzer-bot/internal/chat"
	"github.com/raine/skinalyzer-bot/internal/intake"
	"github.com/raine/skinalyzer-bot/internal/metrics"
	"github.com/raine/skinalyzer-bot/internal/presenter"
)

// ErrSuperseded is returned by Analyze when the image changed while the
// request was in flight and its result was discarded.
var ErrSuperseded = errors.New("analysis superseded by a newer image")

// Analyzer submits a staged image for analysis.
type Analyzer interface {
	Analyze(ctx context.Context, img *intake.StagedImage) (*analysis.Result, error)
}

// AnalysisTicket identifies one in-flight analysis request.
type AnalysisTicket struct {
	Token   uuid.UUID
	Image   *intake.StagedImage
	Started time.Time
}

// Coordinator owns the workflow record of one user.
type Coordinator struct {
	mu sync.Mutex

	intake   *intake.Intake
	analyzer Analyzer
	asker    chat.Asker

	phase    Phase
	analysis RequestState[*analysis.Result]
	// pending is the ticket whose outcome will be applied.
	pending *AnalysisTicket
	// running is the ticket whose remote call has not returned yet. It
	// outlives pending when the request is orphaned by Stage or Reset.
	running *AnalysisTicket

	conversation *chat.Conversation
	chat         RequestState[chat.Message]
}

// New creates a coordinator in PhaseNoImage.
func New(in *intake.Intake, analyzer Analyzer, asker chat.Asker) *Coordinator {
	return &Coordinator{
		intake:       in,
		analyzer:     analyzer,
		asker:        asker,
		phase:        PhaseNoImage,
		analysis:     idle[*analysis.Result](),
		conversation: chat.NewConversation(),
		chat:         idle[chat.Message](),
	}
}

// --- Image intake ---

// Stage validates f and makes it the staged image. Any previous result or
// error is cleared and a pending analysis is orphaned: its outcome will be
// discarded, but no new analysis starts until it returns. The transcript is
// kept. On error the record is unchanged.
func (c *Coordinator) Stage(f intake.File) (*intake.StagedImage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, err := c.intake.Stage(f)
	if err != nil {
		metrics.ObserveIntake(metrics.IntakeRejected)
		return nil, err
	}
	metrics.ObserveIntake(metrics.IntakeAccepted)

	if c.pending != nil {
		log.Info().Str("token", c.pending.Token.String()).Msg("new image staged while analysis pending, its result will be discarded")
	}
	c.pending = nil
	c.analysis = idle[*analysis.Result]()
	c.phase = PhaseStaged
	return img, nil
}

// --- Analysis ---

// BeginAnalysis moves the workflow to PhaseAnalyzing and returns the ticket
// for the request. It fails with analysis.ErrNoImage when nothing is staged
// and analysis.ErrAlreadyInFlight while any analysis call, orphaned or not,
// has not completed.
func (c *Coordinator) BeginAnalysis() (*AnalysisTicket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.phase == PhaseAnalyzing || c.running != nil:
		return nil, analysis.ErrAlreadyInFlight
	case !c.phase.CanAnalyze() || c.intake.Current() == nil:
		return nil, analysis.ErrNoImage
	}

	ticket := &AnalysisTicket{
		Token:   uuid.New(),
		Image:   c.intake.Current(),
		Started: time.Now(),
	}
	c.pending = ticket
	c.running = ticket
	c.phase = PhaseAnalyzing
	c.analysis = pending[*analysis.Result]()

	log.Info().Str("token", ticket.Token.String()).Str("imageId", ticket.Image.ID).Msg("analysis started")
	return ticket, nil
}

// RunAnalysis performs the remote call for ticket. It does not touch the
// workflow record and is safe to call from any goroutine.
func (c *Coordinator) RunAnalysis(ctx context.Context, ticket *AnalysisTicket) (*analysis.Result, error) {
	return c.analyzer.Analyze(ctx, ticket.Image)
}

// CompleteAnalysis applies the outcome of ticket. It returns false and
// leaves the record unchanged when ticket is no longer the pending request;
// an orphaned ticket still releases the analyze trigger.
func (c *Coordinator) CompleteAnalysis(ticket *AnalysisTicket, result *analysis.Result, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	took := time.Since(ticket.Started)
	if c.running != nil && c.running.Token == ticket.Token {
		c.running = nil
	}
	if c.phase != PhaseAnalyzing || c.pending == nil || c.pending.Token != ticket.Token {
		log.Info().Str("token", ticket.Token.String()).Str("phase", c.phase.String()).Msg("discarding stale analysis result")
		metrics.ObserveAnalysis(metrics.AnalysisDiscarded, took)
		return false
	}
	c.pending = nil

	if err != nil {
		c.phase = PhaseAnalysisErrored
		c.analysis = failed[*analysis.Result](err)
		metrics.ObserveAnalysis(metrics.AnalysisFailed, took)
		log.Warn().Err(err).Str("token", ticket.Token.String()).Msg("analysis failed")
		return true
	}

	c.phase = PhaseAnalyzed
	c.analysis = succeeded(result)
	metrics.ObserveAnalysis(metrics.AnalysisSucceeded, took)
	return true
}

// Analyze runs a full analysis of the staged image synchronously.
func (c *Coordinator) Analyze(ctx context.Context) (*analysis.Result, error) {
	ticket, err := c.BeginAnalysis()
	if err != nil {
		return nil, err
	}
	result, err := c.RunAnalysis(ctx, ticket)
	if !c.CompleteAnalysis(ticket, result, err) {
		return nil, ErrSuperseded
	}
	return result, err
}

// --- Chat ---

// BeginChat appends the question to the transcript and opens a chat turn.
// Blank questions (chat.ErrEmptyQuestion) and questions asked while a turn
// is pending (chat.ErrTurnInFlight) change nothing.
func (c *Coordinator) BeginChat(question string) (*chat.Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	turn, err := c.conversation.Begin(question)
	if err != nil {
		return nil, err
	}
	c.chat = pending[chat.Message]()
	return turn, nil
}

// RunChat asks the remote assistant. It does not touch the workflow record.
func (c *Coordinator) RunChat(ctx context.Context, turn *chat.Turn) (string, error) {
	return c.asker.Ask(ctx, turn.Question)
}

// CompleteChat appends the reply for turn, or the fallback reply when err is
// set. ok is false when the turn was abandoned by Reset.
func (c *Coordinator) CompleteChat(turn *chat.Turn, reply string, err error) (chat.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg, ok := c.conversation.Complete(turn, reply, err)
	if !ok {
		return msg, false
	}
	if err != nil {
		c.chat = failed[chat.Message](err)
		metrics.ObserveChatTurn(metrics.ChatFallback)
	} else {
		c.chat = succeeded(msg)
		metrics.ObserveChatTurn(metrics.ChatAnswered)
	}
	return msg, true
}

// Ask runs one chat turn synchronously. ok is false when the question was
// refused by BeginChat.
func (c *Coordinator) Ask(ctx context.Context, question string) (chat.Message, bool) {
	turn, err := c.BeginChat(question)
	if err != nil {
		return chat.Message{}, false
	}
	reply, err := c.RunChat(ctx, turn)
	return c.CompleteChat(turn, reply, err)
}

// --- Reset and accessors ---

// Reset returns to PhaseNoImage, releases the staged image and clears the
// transcript. Pending requests are orphaned; a running analysis call keeps
// blocking new ones until it returns.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.intake.Clear()
	c.phase = PhaseNoImage
	c.pending = nil
	c.analysis = idle[*analysis.Result]()
	c.conversation.Reset()
	c.chat = idle[chat.Message]()
}

func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// CanAnalyze reports whether the analyze trigger is enabled.
func (c *Coordinator) CanAnalyze() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase.CanAnalyze() && c.running == nil
}

// AnalysisRunning reports whether an analysis call has not returned yet,
// including one whose outcome will be discarded.
func (c *Coordinator) AnalysisRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running != nil
}

// ChatPending reports whether a chat turn awaits its reply.
func (c *Coordinator) ChatPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversation.Pending()
}

// Result returns the current analysis result, or nil.
func (c *Coordinator) Result() *analysis.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseAnalyzed {
		return nil
	}
	return c.analysis.Payload
}

// Display returns the display model of the current result, or nil.
func (c *Coordinator) Display() *presenter.DisplayModel {
	return presenter.Present(c.Result())
}

// Preview returns the preview bytes of the staged image.
func (c *Coordinator) Preview() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intake.PreviewOf(c.intake.Current())
}

// Transcript returns a copy of the chat transcript.
func (c *Coordinator) Transcript() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversation.Messages()
}

// Snapshot returns a copy of the whole record.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Phase:      c.phase,
		Image:      c.intake.Current(),
		Analysis:   c.analysis,
		Chat:       c.chat,
		Transcript: c.conversation.Messages(),
	}
}
