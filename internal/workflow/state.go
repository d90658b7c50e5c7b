package workflow

import (
	"github.com/raine/skinalyzer-bot/internal/analysis"
	"github.com/raine/skinalyzer-bot/internal/chat"
	"github.com/raine/skinalyzer-bot/internal/intake"
)

// Phase is the scan workflow state. Chat state is tracked separately.
type Phase string

const (
	PhaseNoImage         Phase = "no_image"
	PhaseStaged          Phase = "staged"
	PhaseAnalyzing       Phase = "analyzing"
	PhaseAnalyzed        Phase = "analyzed"
	PhaseAnalysisErrored Phase = "analysis_errored"
)

func (p Phase) String() string {
	return string(p)
}

// CanAnalyze reports whether the analyze trigger is enabled in p.
// Re-analysis of the same image is allowed after success or failure.
func (p Phase) CanAnalyze() bool {
	switch p {
	case PhaseStaged, PhaseAnalyzed, PhaseAnalysisErrored:
		return true
	}
	return false
}

// Status is the lifecycle of one remote request.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// RequestState tracks one subsystem's request. Payload is set only when
// Succeeded, Err only when Failed.
type RequestState[T any] struct {
	Status  Status
	Payload T
	Err     error
}

func idle[T any]() RequestState[T] {
	return RequestState[T]{Status: StatusIdle}
}

func pending[T any]() RequestState[T] {
	return RequestState[T]{Status: StatusPending}
}

func succeeded[T any](payload T) RequestState[T] {
	return RequestState[T]{Status: StatusSucceeded, Payload: payload}
}

func failed[T any](err error) RequestState[T] {
	return RequestState[T]{Status: StatusFailed, Err: err}
}

// Snapshot is a read-only copy of the coordinator's record.
type Snapshot struct {
	Phase      Phase
	Image      *intake.StagedImage
	Analysis   RequestState[*analysis.Result]
	Chat       RequestState[chat.Message]
	Transcript []chat.Message
}
