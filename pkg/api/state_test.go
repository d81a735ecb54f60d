package api

import (
	"strings"
	"testing"
)

func TestValidateRunTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    RunState
		to      RunState
		wantErr bool
	}{
		// Valid transitions
		{name: "initial to authorizing", from: "", to: RunAuthorizing},
		{name: "existing thread skips assigning", from: RunThreadResolving, to: RunFanout},
		{name: "missing thread assigns", from: RunThreadResolving, to: RunModelAssigning},
		{name: "assigning to fanout", from: RunModelAssigning, to: RunFanout},
		{name: "streaming to finalizing", from: RunStreaming, to: RunFinalizing},
		{name: "finalizing to closed", from: RunFinalizing, to: RunClosed},
		{name: "authorizing fails", from: RunAuthorizing, to: RunErrored},

		// Invalid transitions
		{name: "initial skips authorizing", from: "", to: RunFanout, wantErr: true},
		{name: "closed is terminal", from: RunClosed, to: RunStreaming, wantErr: true},
		{name: "errored is terminal", from: RunErrored, to: RunClosed, wantErr: true},
		{name: "fanout to closed skips streaming", from: RunFanout, to: RunClosed, wantErr: true},
		{name: "streaming backwards", from: RunStreaming, to: RunFanout, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRunTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateRunTransition(%q, %q) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Message, string(tt.to)) {
				t.Errorf("error message %q does not name target state", err.Message)
			}
		})
	}
}
