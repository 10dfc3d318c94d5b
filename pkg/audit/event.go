// Package audit journals configuration transformations to a JSON-lines
// file, so execute-mode changes stay attributable after the fact.
package audit

import "time"

// Event is one journaled operation outcome.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	User        string    `json:"user"`
	Config      string    `json:"config"`
	Operation   string    `json:"operation"`
	Kind        string    `json:"kind,omitempty"`
	Object      string    `json:"object,omitempty"`
	Context     string    `json:"context,omitempty"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ExecuteMode bool      `json:"execute_mode"`
	DryRun      bool      `json:"dry_run"`
}

// NewEvent starts an event for one CLI operation.
func NewEvent(user, config, operation string) *Event {
	return &Event{
		Timestamp: time.Now(),
		User:      user,
		Config:    config,
		Operation: operation,
	}
}

// WithKind sets the object kind.
func (e *Event) WithKind(kind string) *Event {
	e.Kind = kind
	return e
}

// WithObject sets the object name.
func (e *Event) WithObject(name string) *Event {
	e.Object = name
	return e
}

// WithContext sets the configuration context.
func (e *Event) WithContext(ctx string) *Event {
	e.Context = ctx
	return e
}

// WithSuccess marks the event as successful.
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed.
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithExecuteMode records whether the run wrote its changes (-x) or was
// a dry run.
func (e *Event) WithExecuteMode(execute bool) *Event {
	e.ExecuteMode = execute
	e.DryRun = !execute
	return e
}
