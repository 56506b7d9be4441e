package domain

import "time"

// Outcome is the final recorded result of one punch run. It is created once
// per run and never mutated afterwards.
type Outcome struct {
	RunID        string
	Success      bool
	Action       Action
	Timestamp    time.Time
	Message      string
	ServerSignal string // raw text of the remote signal that decided the result, if any
	Simulation   bool
	FailedStep   string // name of the first failing step, empty on success
	Screenshots  []string
}

// Result returns a short word for metrics and log labels.
func (o Outcome) Result() string {
	switch {
	case o.Success && o.Simulation:
		return "simulated"
	case o.Success:
		return "success"
	default:
		return "failure"
	}
}
