package aggregate

import "time"

// Hooks receives engine observability events.
type Hooks interface {
	ObserveOperation(op, status string, dur time.Duration)
	IncRetry(op string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncRetry(string)                                {}
