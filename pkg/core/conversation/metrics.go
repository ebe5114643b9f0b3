package conversation

import "time"

// TurnOutcome labels how a processing attempt ended.
type TurnOutcome string

const (
	TurnAnswered       TurnOutcome = "answered"
	TurnEmptyRecording TurnOutcome = "empty_recording"
	TurnSlowResponse   TurnOutcome = "slow_response"
	TurnSubmitError    TurnOutcome = "submit_error"
	TurnCaptureError   TurnOutcome = "capture_error"
)

// Metrics receives controller observations. Implementations must not block.
type Metrics interface {
	ObserveSessionStart(err error)
	ObserveSessionEnd()
	ObserveTurn(outcome TurnOutcome, submitDuration time.Duration)
	ObserveWatchdog(kind ErrorKind)
	ObserveTransition(from, to State)
	ObserveSummary(err error)
}

type nopMetrics struct{}

func (nopMetrics) ObserveSessionStart(error) {}
func (nopMetrics) ObserveSessionEnd() {}
func (nopMetrics) ObserveTurn(TurnOutcome, time.Duration) {}
func (nopMetrics) ObserveWatchdog(ErrorKind) {}
func (nopMetrics) ObserveTransition(State, State) {}
func (nopMetrics) ObserveSummary(error) {}
