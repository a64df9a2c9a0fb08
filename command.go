package stave

import (
	"context"
	"fmt"
)

// Command represents an intent to change or inspect state in the system.
// Both commands and queries travel through the same typed registry; a
// query is simply a command whose handler only reads.
type Command interface {
	// CommandType returns the type identifier for this command (e.g., "AddMidiNote").
	CommandType() string

	// Validate checks if the command is valid.
	// Returns nil if valid, or an error describing validation failures.
	// Validation runs before the store is touched.
	Validate() error
}

// AggregateCommand is a command that targets a specific aggregate.
type AggregateCommand interface {
	Command

	// AggregateID returns the ID of the aggregate this command targets.
	// Returns empty string for commands that create new aggregates.
	AggregateID() string
}

// CommandBase provides a default partial implementation of Command.
// Embed this struct in your command types to get common functionality.
type CommandBase struct {
	// CommandID is an optional unique identifier for this command instance.
	CommandID string `json:"commandId,omitempty"`

	// CorrelationID links related commands and events.
	CorrelationID string `json:"correlationId,omitempty"`

	// CausationID identifies the event or command that caused this command.
	CausationID string `json:"causationId,omitempty"`

	// Metadata contains arbitrary key-value pairs for application-specific data.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// WithCommandID returns a copy of CommandBase with the command ID set.
func (c CommandBase) WithCommandID(id string) CommandBase {
	c.CommandID = id
	return c
}

// WithCorrelationID returns a copy of CommandBase with the correlation ID set.
func (c CommandBase) WithCorrelationID(id string) CommandBase {
	c.CorrelationID = id
	return c
}

// WithCausationID returns a copy of CommandBase with the causation ID set.
func (c CommandBase) WithCausationID(id string) CommandBase {
	c.CausationID = id
	return c
}

// GetCommandID returns the command ID.
func (c CommandBase) GetCommandID() string {
	return c.CommandID
}

// GetCorrelationID returns the correlation ID.
func (c CommandBase) GetCorrelationID() string {
	return c.CorrelationID
}

// GetCausationID returns the causation ID.
func (c CommandBase) GetCausationID() string {
	return c.CausationID
}

// CommandResult is the result envelope of command execution.
// Every result exposes a success flag; failures carry a human-readable
// error and zero event counts.
type CommandResult struct {
	// Success indicates whether the command executed successfully.
	Success bool

	// AggregateID is the ID of the aggregate affected by the command.
	// For create commands, this is the ID of the newly created aggregate.
	AggregateID string

	// Version is the new version of the aggregate after command execution.
	Version int64

	// EventsGenerated is the number of events persisted by this command.
	EventsGenerated int

	// UndoableRecorded is the number of undo-eligible events registered
	// with the undo service for this command.
	UndoableRecorded int

	// Data contains any additional result payload (query results,
	// applied events, status structs).
	Data interface{}

	// Error contains the error if the command failed.
	Error error
}

// NewSuccessResult creates a successful CommandResult.
func NewSuccessResult(aggregateID string, version int64) CommandResult {
	return CommandResult{
		Success:     true,
		AggregateID: aggregateID,
		Version:     version,
	}
}

// NewSuccessResultWithData creates a successful CommandResult with additional data.
func NewSuccessResultWithData(aggregateID string, version int64, data interface{}) CommandResult {
	return CommandResult{
		Success:     true,
		AggregateID: aggregateID,
		Version:     version,
		Data:        data,
	}
}

// NewErrorResult creates a failed CommandResult.
// Failed commands report zero events generated and zero undoables recorded.
func NewErrorResult(err error) CommandResult {
	return CommandResult{
		Success: false,
		Error:   err,
	}
}

// WithCounts returns a copy of the result with event counts set.
func (r CommandResult) WithCounts(eventsGenerated, undoableRecorded int) CommandResult {
	r.EventsGenerated = eventsGenerated
	r.UndoableRecorded = undoableRecorded
	return r
}

// IsSuccess returns true if the command executed successfully.
func (r CommandResult) IsSuccess() bool {
	return r.Success && r.Error == nil
}

// IsError returns true if the command failed.
func (r CommandResult) IsError() bool {
	return !r.Success || r.Error != nil
}

// ErrorMessage returns the human-readable error string, or "" on success.
func (r CommandResult) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Error()
}

// Validator provides command validation functionality.
type Validator interface {
	// Validate validates a command and returns validation errors.
	Validate(cmd Command) error
}

// ValidatorFunc is a function that implements Validator.
type ValidatorFunc func(cmd Command) error

// Validate implements Validator.
func (f ValidatorFunc) Validate(cmd Command) error {
	return f(cmd)
}

// ValidationError represents a command validation failure.
type ValidationError struct {
	// CommandType is the type of command that failed validation.
	CommandType string

	// Field is the field that failed validation (optional).
	Field string

	// Message describes the validation failure.
	Message string

	// Cause is the underlying error (optional).
	Cause error
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("stave: validation failed for command %q field %q: %s",
			e.CommandType, e.Field, e.Message)
	}
	return fmt.Sprintf("stave: validation failed for command %q: %s",
		e.CommandType, e.Message)
}

// Is reports whether this error matches the target error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Unwrap returns the underlying cause for errors.Unwrap().
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new ValidationError.
func NewValidationError(cmdType, field, message string) *ValidationError {
	return &ValidationError{
		CommandType: cmdType,
		Field:       field,
		Message:     message,
	}
}

// NewValidationErrorWithCause creates a new ValidationError with an underlying cause.
func NewValidationErrorWithCause(cmdType, field, message string, cause error) *ValidationError {
	return &ValidationError{
		CommandType: cmdType,
		Field:       field,
		Message:     message,
		Cause:       cause,
	}
}

// CommandContext carries command execution context through the middleware chain.
type CommandContext struct {
	// Context is the standard Go context.
	Context context.Context

	// Command is the command being executed.
	Command Command

	// Result is the command execution result (set by handler).
	Result CommandResult

	// Metadata contains additional context data that can be set by middleware.
	Metadata map[string]interface{}
}

// NewCommandContext creates a new CommandContext.
func NewCommandContext(ctx context.Context, cmd Command) *CommandContext {
	return &CommandContext{
		Context:  ctx,
		Command:  cmd,
		Metadata: make(map[string]interface{}),
	}
}

// Set stores a value in the context metadata.
func (c *CommandContext) Set(key string, value interface{}) {
	c.Metadata[key] = value
}

// Get retrieves a value from the context metadata.
func (c *CommandContext) Get(key string) (interface{}, bool) {
	v, ok := c.Metadata[key]
	return v, ok
}

// SetResult sets the command execution result.
func (c *CommandContext) SetResult(result CommandResult) {
	c.Result = result
}
