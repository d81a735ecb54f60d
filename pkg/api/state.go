package api

import "fmt"

// RunState is the lifecycle position of one chat orchestration run.
type RunState string

const (
	RunAuthorizing     RunState = "authorizing"
	RunThreadResolving RunState = "thread_resolving"
	RunModelAssigning  RunState = "model_assigning"
	RunFanout          RunState = "fanout"
	RunStreaming       RunState = "streaming"
	RunFinalizing      RunState = "finalizing"
	RunClosed          RunState = "closed"
	RunErrored         RunState = "errored"
)

var runTransitions = map[RunState][]RunState{
	"":                 {RunAuthorizing},
	RunAuthorizing:     {RunThreadResolving, RunErrored},
	RunThreadResolving: {RunModelAssigning, RunFanout, RunErrored},
	RunModelAssigning:  {RunFanout, RunErrored},
	RunFanout:          {RunStreaming, RunErrored},
	RunStreaming:       {RunFinalizing, RunErrored},
	RunFinalizing:      {RunClosed, RunErrored},
}

// ValidateRunTransition checks whether a run may move from one state to
// another. An empty "from" state is the initial state. Closed and Errored are
// terminal.
func ValidateRunTransition(from, to RunState) *APIError {
	for _, s := range runTransitions[from] {
		if s == to {
			return nil
		}
	}
	return NewServerError(fmt.Sprintf("invalid run transition from %q to %q", from, to))
}
