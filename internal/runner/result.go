package runner

import "time"

// Outcome names the variant of a [Result]. It is used as a metric and span
// attribute, so values are stable lowercase identifiers.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeFailure    Outcome = "failure"
	OutcomeTimedOut   Outcome = "timed_out"
	OutcomeSpawnError Outcome = "spawn_error"
)

// Result is the outcome of one [Execute] call. Exactly one of [Success],
// [Failure], [TimedOut] or [SpawnError] is produced per invocation.
//
// Use a type switch to inspect the variant:
//
//	switch r := res.(type) {
//	case runner.Success:
//	    fmt.Print(r.Stdout)
//	case runner.Failure:
//	    fmt.Printf("exit %d: %s", r.ExitCode, r.Stderr)
//	}
type Result interface {
	// Outcome reports which variant this is.
	Outcome() Outcome

	isResult()
}

// Success is returned when the process exited with code 0 before the timeout.
// Stderr is not part of the result; it is only logged.
type Success struct {
	Stdout string
}

// Failure is returned when the process exited with a nonzero code before the
// timeout. ExitCode is -1 when the process was terminated by a signal that
// was not sent by the timeout.
type Failure struct {
	ExitCode int
	Stderr   string
}

// TimedOut is returned when the process was still running when the timeout
// elapsed and had to be killed. Any output gathered so far is discarded.
type TimedOut struct {
	// After is the timeout that elapsed.
	After time.Duration
}

// SpawnError is returned when the process could not be started at all, e.g.
// the executable is missing, not executable, or the working directory does
// not exist.
type SpawnError struct {
	Message string
}

func (Success) Outcome() Outcome    { return OutcomeSuccess }
func (Failure) Outcome() Outcome    { return OutcomeFailure }
func (TimedOut) Outcome() Outcome   { return OutcomeTimedOut }
func (SpawnError) Outcome() Outcome { return OutcomeSpawnError }

func (Success) isResult()    {}
func (Failure) isResult()    {}
func (TimedOut) isResult()   {}
func (SpawnError) isResult() {}
