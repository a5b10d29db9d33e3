package orchestrator

// EventType classifies progress events.
type EventType string

const (
	EventStep     EventType = "step"     // pipeline entered a new step
	EventChunk    EventType = "chunk"    // incremental LLM output
	EventComplete EventType = "complete" // pipeline finished
	EventError    EventType = "error"    // pipeline failed
)

// Pipeline steps, in order of appearance.
const (
	StepAnalyzing  = "analyzing"
	StepGenerating = "generating"
	StepValidating = "validating"
	StepRepairing  = "repairing"
	StepDone       = "done"
)

// Event is one progress notification. Events are delivered synchronously
// on the calling goroutine, in order.
type Event struct {
	Type    EventType
	Step    string
	Message string
	Chunk   string
	Err     error
}

// EventFunc receives progress events. May be nil.
type EventFunc func(Event)

func (f EventFunc) step(step, message string) {
	if f != nil {
		f(Event{Type: EventStep, Step: step, Message: message})
	}
}

func (f EventFunc) chunk(step, chunk string) {
	if f != nil {
		f(Event{Type: EventChunk, Step: step, Chunk: chunk})
	}
}

func (f EventFunc) complete(message string) {
	if f != nil {
		f(Event{Type: EventComplete, Step: StepDone, Message: message})
	}
}

func (f EventFunc) fail(step string, err error) {
	if f != nil {
		f(Event{Type: EventError, Step: step, Err: err})
	}
}
