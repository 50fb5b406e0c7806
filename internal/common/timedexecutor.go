package common

import (
	"time"
)

// Give the timed executor a task and an initial delay.
// Call the execute function from time to time.
// If the function gets called when the delay has elapsed, the task
// runs and returns the delay until its next run. If not, the call
// does nothing
type TimedExecutor struct {
	stopwatch Stopwatch
	task      func() time.Duration
}

// Create a timed executor provided an initial delay and a task
func NewTimedExecutor(delay time.Duration, task func() time.Duration) TimedExecutor {
	te := TimedExecutor{NewStopwatch(delay), task}
	te.stopwatch.Start()
	return te
}

// Execute the task if its delay has elapsed, else do nothing
func (te *TimedExecutor) Execute() {
	if stopped, _ := te.stopwatch.Stopped(); stopped {
		te.stopwatch.Timeout = te.task()
		te.stopwatch.Start()
	}
}
