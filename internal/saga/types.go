package saga

import (
	"context"
	"time"
)

// Stage is the position of a saga run in its lifecycle. Between the start and
// end stages a run is in the stage named after its last completed step.
type Stage string

const (
	StageReceived  Stage = "received"
	StageResponded Stage = "responded"
	StageFailed    Stage = "failed"
)

// StepState represents the state of an individual step
type StepState string

const (
	StepStatePending   StepState = "pending"
	StepStateRunning   StepState = "running"
	StepStateCompleted StepState = "completed"
	StepStateFailed    StepState = "failed"
	StepStateReleased  StepState = "released"
)

// SagaID uniquely identifies a saga run
type SagaID string

// StepID uniquely identifies a step within a saga. It doubles as the stage
// the run reaches once the step completes.
type StepID string

// SagaData holds the shared data for a saga execution
type SagaData map[string]interface{}

// StepResult represents the result of a step execution
type StepResult struct {
	Data  interface{}
	Error error
}

// Step represents a single step in a saga. Release undoes whatever Execute
// acquired and is called for every completed step once the run is over,
// whether it succeeded or not.
type Step interface {
	ID() StepID
	Execute(ctx context.Context, data SagaData) StepResult
	Release(ctx context.Context, data SagaData) error
}

// SagaDefinition defines the steps and flow of a saga
type SagaDefinition interface {
	ID() string
	Steps() []Step
	Timeout() time.Duration
}

// SagaInstance is the record of a single run
type SagaInstance struct {
	ID          SagaID          `json:"id"`
	Definition  string          `json:"definition"`
	Stage       Stage           `json:"stage"`
	Data        SagaData        `json:"-"`
	Steps       []StepExecution `json:"steps"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// StepExecution represents the execution state of a step
type StepExecution struct {
	ID          StepID     `json:"id"`
	State       StepState  `json:"state"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}
