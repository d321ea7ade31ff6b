package pipeline

import (
	"fmt"

	"github.com/OFF-rtk/sentinel-auditor/internal/trace"
)

// StageError is a failure that halted one run, tagged with the stage it
// happened in. Panics inside a stage surface as a StageError too.
type StageError struct {
	Stage trace.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
