package ingest

import (
	"context"
	"errors"
	"fmt"
)

// State is one step of paper ingestion.
type State string

const (
	StateFetching          State = "fetching"
	StateExtracting        State = "extracting"
	StateEnriching         State = "enriching"
	StateGraphUpserting    State = "graph_upserting"
	StateEmbedding         State = "embedding"
	StateVectorUpserting   State = "vector_upserting"
	StateBackfillTriggered State = "backfill_triggered"
	StateDone              State = "done"
)

// States lists every state in execution order.
var States = []State{
	StateFetching,
	StateExtracting,
	StateEnriching,
	StateGraphUpserting,
	StateEmbedding,
	StateVectorUpserting,
	StateBackfillTriggered,
	StateDone,
}

var ErrUnknownPaper = errors.New("paper not found by metadata lookup")

// StepError wraps a failure of a mandatory step with the state it happened in.
type StepError struct {
	PaperID string
	State   State
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("ingest %s: %s: %v", e.PaperID, e.State, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func stepErr(paperID string, s State, err error) error {
	return &StepError{PaperID: paperID, State: s, Err: err}
}

type stateHookKey struct{}

// WithStateHook attaches fn to ctx. Process calls it on every state it
// enters, after the pipeline-wide OnState hook.
func WithStateHook(ctx context.Context, fn func(paperID string, s State)) context.Context {
	return context.WithValue(ctx, stateHookKey{}, fn)
}

func stateHook(ctx context.Context) func(string, State) {
	fn, _ := ctx.Value(stateHookKey{}).(func(string, State))
	return fn
}
