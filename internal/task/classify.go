package task

import (
	"bytes"

	"github.com/PAXECT-Interface/paxect-harness/internal/result"
)

var errorMarker = []byte("error")

// Outcome is what the runner observed about one finished child.
type Outcome struct {
	StartErr  error
	TimedOut  bool
	Cancelled error
	ExitCode  int
	Stderr    []byte
}

// Classify maps an outcome to a status. Checks run in order: launch
// failure, timeout, cancellation, then exit code. With strict set, a zero
// exit still counts as FAIL when stderr mentions "error" in any case; any
// legitimate log line containing that word is a false positive.
func Classify(o Outcome, strict bool) result.Status {
	switch {
	case o.StartErr != nil:
		return result.ErrorStatus(o.StartErr)
	case o.TimedOut:
		return result.StatusTimeout
	case o.Cancelled != nil:
		return result.ErrorStatus(o.Cancelled)
	case o.ExitCode != 0:
		return result.StatusFail
	case strict && bytes.Contains(bytes.ToLower(o.Stderr), errorMarker):
		return result.StatusFail
	default:
		return result.StatusOK
	}
}
