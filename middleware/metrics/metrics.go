// Package metrics provides Prometheus metrics integration for stave.
//
// It covers the dispatch and storage paths of the event-sourced core:
// command execution, event store operations, and undo/redo activity.
//
// Basic usage:
//
//	m := metrics.New()
//	m.MustRegister()
//
//	bus := stave.NewCommandBus()
//	bus.Use(m.CommandMiddleware())
//
//	store := stave.New(m.WrapEventStore(memory.NewAdapter()))
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/soundside/stave"
	"github.com/soundside/stave/adapters"
)

// Default metric labels.
const (
	LabelCommandType = "command_type"
	LabelEventType   = "event_type"
	LabelOperation   = "operation"
	LabelStatus      = "status"
	LabelErrorType   = "error_type"
	LabelService     = "service"
	LabelStack       = "stack"
)

// Status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation values.
const (
	OperationAppend        = "append"
	OperationLoad          = "load"
	OperationLoadToVersion = "load_to_version"
	OperationUndo          = "undo"
	OperationRedo          = "redo"
)

// Metrics holds all Prometheus metrics for stave.
type Metrics struct {
	namespace   string
	subsystem   string
	serviceName string

	// Command metrics
	commandsTotal    *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	commandsInFlight *prometheus.GaugeVec

	// Event store metrics
	eventStoreOperationsTotal   *prometheus.CounterVec
	eventStoreOperationDuration *prometheus.HistogramVec
	eventsAppendedTotal         *prometheus.CounterVec
	eventsLoadedTotal           *prometheus.CounterVec

	// Undo/redo metrics
	undoOperationsTotal *prometheus.CounterVec
	undoStackDepth      *prometheus.GaugeVec

	// Error metrics
	errorsTotal *prometheus.CounterVec
}

// MetricsOption configures Metrics.
type MetricsOption func(*Metrics)

// WithNamespace sets the Prometheus namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(m *Metrics) {
		m.namespace = namespace
	}
}

// WithSubsystem sets the Prometheus subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(m *Metrics) {
		m.subsystem = subsystem
	}
}

// WithMetricsServiceName sets the service name label.
func WithMetricsServiceName(name string) MetricsOption {
	return func(m *Metrics) {
		m.serviceName = name
	}
}

// New creates a new Metrics instance with default settings.
func New(opts ...MetricsOption) *Metrics {
	m := &Metrics{
		namespace:   "stave",
		subsystem:   "",
		serviceName: "unknown",
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initMetrics()
	return m
}

func (m *Metrics) initMetrics() {
	m.commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "commands_total",
			Help:      "Total number of commands processed.",
		},
		[]string{LabelService, LabelCommandType, LabelStatus},
	)

	m.commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "command_duration_seconds",
			Help:      "Duration of command processing in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelService, LabelCommandType},
	)

	m.commandsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "commands_in_flight",
			Help:      "Number of commands currently being processed.",
		},
		[]string{LabelService, LabelCommandType},
	)

	m.eventStoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "eventstore_operations_total",
			Help:      "Total number of event store operations.",
		},
		[]string{LabelService, LabelOperation, LabelStatus},
	)

	m.eventStoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "eventstore_operation_duration_seconds",
			Help:      "Duration of event store operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelService, LabelOperation},
	)

	m.eventsAppendedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_appended_total",
			Help:      "Total number of events appended to streams.",
		},
		[]string{LabelService, LabelEventType},
	)

	m.eventsLoadedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_loaded_total",
			Help:      "Total number of events loaded from streams.",
		},
		[]string{LabelService},
	)

	m.undoOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "undo_operations_total",
			Help:      "Total number of undo and redo operations.",
		},
		[]string{LabelService, LabelOperation, LabelStatus},
	)

	m.undoStackDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "undo_stack_depth",
			Help:      "Current depth of undo and redo stacks per stream.",
		},
		[]string{LabelService, LabelStack},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors by type.",
		},
		[]string{LabelService, LabelErrorType},
	)
}

// Collectors returns all Prometheus collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.commandsTotal,
		m.commandDuration,
		m.commandsInFlight,
		m.eventStoreOperationsTotal,
		m.eventStoreOperationDuration,
		m.eventsAppendedTotal,
		m.eventsLoadedTotal,
		m.undoOperationsTotal,
		m.undoStackDepth,
		m.errorsTotal,
	}
}

// MustRegister registers all collectors with the default registry.
// Panics if registration fails.
func (m *Metrics) MustRegister() {
	prometheus.MustRegister(m.Collectors()...)
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(registry prometheus.Registerer) error {
	for _, collector := range m.Collectors() {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// CommandMiddleware returns middleware that records command metrics.
func (m *Metrics) CommandMiddleware() stave.Middleware {
	return func(next stave.MiddlewareFunc) stave.MiddlewareFunc {
		return func(ctx context.Context, cmd stave.Command) (stave.CommandResult, error) {
			cmdType := cmd.CommandType()

			m.commandsInFlight.WithLabelValues(m.serviceName, cmdType).Inc()
			defer m.commandsInFlight.WithLabelValues(m.serviceName, cmdType).Dec()

			start := time.Now()
			result, err := next(ctx, cmd)
			duration := time.Since(start)

			m.commandDuration.WithLabelValues(m.serviceName, cmdType).Observe(duration.Seconds())

			status := StatusSuccess
			if err != nil || result.IsError() {
				status = StatusError
				m.recordError(err, result)
			}

			m.commandsTotal.WithLabelValues(m.serviceName, cmdType, status).Inc()

			return result, err
		}
	}
}

// RecordUndoOperation records a single undo or redo outcome.
func (m *Metrics) RecordUndoOperation(operation string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
		m.errorsTotal.WithLabelValues(m.serviceName, errorTypeName(err)).Inc()
	}
	m.undoOperationsTotal.WithLabelValues(m.serviceName, operation, status).Inc()
}

// RecordStackDepth records the current undo/redo stack depths.
func (m *Metrics) RecordStackDepth(status stave.UndoStatus) {
	m.undoStackDepth.WithLabelValues(m.serviceName, "undo").Set(float64(status.UndoDepth))
	m.undoStackDepth.WithLabelValues(m.serviceName, "redo").Set(float64(status.RedoDepth))
}

// RecordError records a custom error.
func (m *Metrics) RecordError(errorType string) {
	m.errorsTotal.WithLabelValues(m.serviceName, errorType).Inc()
}

func (m *Metrics) recordError(err error, result stave.CommandResult) {
	errorType := "unknown"
	if err != nil {
		errorType = errorTypeName(err)
	} else if result.Error != nil {
		errorType = errorTypeName(result.Error)
	}
	m.errorsTotal.WithLabelValues(m.serviceName, errorType).Inc()
}

// errorTypeName extracts the error type name based on sentinel errors.
func errorTypeName(err error) string {
	if err == nil {
		return "none"
	}

	switch {
	case errors.Is(err, stave.ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, stave.ErrStreamNotFound):
		return "stream_not_found"
	case errors.Is(err, stave.ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, stave.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, stave.ErrNothingToUndo):
		return "nothing_to_undo"
	case errors.Is(err, stave.ErrNothingToRedo):
		return "nothing_to_redo"
	case errors.Is(err, stave.ErrNotUndoable):
		return "not_undoable"
	case errors.Is(err, stave.ErrHandlerNotFound):
		return "handler_not_found"
	case errors.Is(err, stave.ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, stave.ErrHandlerPanicked):
		return "handler_panicked"
	case errors.Is(err, stave.ErrSerializationFailed):
		return "serialization_failed"
	case errors.Is(err, stave.ErrEventTypeNotRegistered):
		return "event_type_not_registered"
	case errors.Is(err, stave.ErrNilAggregate):
		return "nil_aggregate"
	case errors.Is(err, stave.ErrNilCommand):
		return "nil_command"
	case errors.Is(err, adapters.ErrEmptyStreamID):
		return "empty_stream_id"
	case errors.Is(err, adapters.ErrNoEvents):
		return "no_events"
	case errors.Is(err, adapters.ErrInvalidVersion):
		return "invalid_version"
	case errors.Is(err, adapters.ErrAdapterClosed):
		return "adapter_closed"
	default:
		return "unknown"
	}
}

// EventStoreMiddleware wraps an EventStoreAdapter with metrics.
type EventStoreMiddleware struct {
	adapter adapters.EventStoreAdapter
	metrics *Metrics
}

var _ adapters.EventStoreAdapter = (*EventStoreMiddleware)(nil)

// WrapEventStore wraps an adapter with metrics collection.
func (m *Metrics) WrapEventStore(adapter adapters.EventStoreAdapter) *EventStoreMiddleware {
	return &EventStoreMiddleware{
		adapter: adapter,
		metrics: m,
	}
}

// Append stores events with metrics.
func (em *EventStoreMiddleware) Append(ctx context.Context, streamID string, events []adapters.EventRecord, expectedVersion int64) ([]adapters.StoredEvent, error) {
	start := time.Now()
	stored, err := em.adapter.Append(ctx, streamID, events, expectedVersion)
	duration := time.Since(start)

	em.metrics.eventStoreOperationDuration.WithLabelValues(em.metrics.serviceName, OperationAppend).Observe(duration.Seconds())

	status := StatusSuccess
	if err != nil {
		status = StatusError
		em.metrics.errorsTotal.WithLabelValues(em.metrics.serviceName, errorTypeName(err)).Inc()
	} else {
		for _, e := range events {
			em.metrics.eventsAppendedTotal.WithLabelValues(em.metrics.serviceName, e.Type).Inc()
		}
	}

	em.metrics.eventStoreOperationsTotal.WithLabelValues(em.metrics.serviceName, OperationAppend, status).Inc()

	return stored, err
}

// Load retrieves events with metrics.
func (em *EventStoreMiddleware) Load(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	start := time.Now()
	events, err := em.adapter.Load(ctx, streamID, fromVersion)
	duration := time.Since(start)

	em.metrics.eventStoreOperationDuration.WithLabelValues(em.metrics.serviceName, OperationLoad).Observe(duration.Seconds())

	status := StatusSuccess
	if err != nil {
		status = StatusError
		em.metrics.errorsTotal.WithLabelValues(em.metrics.serviceName, errorTypeName(err)).Inc()
	} else {
		em.metrics.eventsLoadedTotal.WithLabelValues(em.metrics.serviceName).Add(float64(len(events)))
	}

	em.metrics.eventStoreOperationsTotal.WithLabelValues(em.metrics.serviceName, OperationLoad, status).Inc()

	return events, err
}

// LoadToVersion retrieves events up to a version with metrics.
func (em *EventStoreMiddleware) LoadToVersion(ctx context.Context, streamID string, toVersion int64) ([]adapters.StoredEvent, error) {
	start := time.Now()
	events, err := em.adapter.LoadToVersion(ctx, streamID, toVersion)
	duration := time.Since(start)

	em.metrics.eventStoreOperationDuration.WithLabelValues(em.metrics.serviceName, OperationLoadToVersion).Observe(duration.Seconds())

	status := StatusSuccess
	if err != nil {
		status = StatusError
		em.metrics.errorsTotal.WithLabelValues(em.metrics.serviceName, errorTypeName(err)).Inc()
	} else {
		em.metrics.eventsLoadedTotal.WithLabelValues(em.metrics.serviceName).Add(float64(len(events)))
	}

	em.metrics.eventStoreOperationsTotal.WithLabelValues(em.metrics.serviceName, OperationLoadToVersion, status).Inc()

	return events, err
}

// GetStreamInfo returns stream metadata with metrics.
func (em *EventStoreMiddleware) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	start := time.Now()
	info, err := em.adapter.GetStreamInfo(ctx, streamID)
	duration := time.Since(start)

	em.metrics.eventStoreOperationDuration.WithLabelValues(em.metrics.serviceName, "get_stream_info").Observe(duration.Seconds())

	status := StatusSuccess
	if err != nil {
		status = StatusError
	}

	em.metrics.eventStoreOperationsTotal.WithLabelValues(em.metrics.serviceName, "get_stream_info", status).Inc()

	return info, err
}

// GetLastPosition returns the last global position with metrics.
func (em *EventStoreMiddleware) GetLastPosition(ctx context.Context) (uint64, error) {
	start := time.Now()
	pos, err := em.adapter.GetLastPosition(ctx)
	duration := time.Since(start)

	em.metrics.eventStoreOperationDuration.WithLabelValues(em.metrics.serviceName, "get_last_position").Observe(duration.Seconds())

	status := StatusSuccess
	if err != nil {
		status = StatusError
	}

	em.metrics.eventStoreOperationsTotal.WithLabelValues(em.metrics.serviceName, "get_last_position", status).Inc()

	return pos, err
}

// Initialize initializes the underlying adapter.
func (em *EventStoreMiddleware) Initialize(ctx context.Context) error {
	return em.adapter.Initialize(ctx)
}

// Close closes the underlying adapter.
func (em *EventStoreMiddleware) Close() error {
	return em.adapter.Close()
}

// Getters for testing

// CommandsTotal returns the commands counter.
func (m *Metrics) CommandsTotal() *prometheus.CounterVec {
	return m.commandsTotal
}

// CommandDuration returns the command duration histogram.
func (m *Metrics) CommandDuration() *prometheus.HistogramVec {
	return m.commandDuration
}

// CommandsInFlight returns the in-flight commands gauge.
func (m *Metrics) CommandsInFlight() *prometheus.GaugeVec {
	return m.commandsInFlight
}

// EventStoreOperationsTotal returns the event store operations counter.
func (m *Metrics) EventStoreOperationsTotal() *prometheus.CounterVec {
	return m.eventStoreOperationsTotal
}

// EventsAppendedTotal returns the events appended counter.
func (m *Metrics) EventsAppendedTotal() *prometheus.CounterVec {
	return m.eventsAppendedTotal
}

// EventsLoadedTotal returns the events loaded counter.
func (m *Metrics) EventsLoadedTotal() *prometheus.CounterVec {
	return m.eventsLoadedTotal
}

// UndoOperationsTotal returns the undo operations counter.
func (m *Metrics) UndoOperationsTotal() *prometheus.CounterVec {
	return m.undoOperationsTotal
}

// UndoStackDepth returns the stack depth gauge.
func (m *Metrics) UndoStackDepth() *prometheus.GaugeVec {
	return m.undoStackDepth
}

// ErrorsTotal returns the errors counter.
func (m *Metrics) ErrorsTotal() *prometheus.CounterVec {
	return m.errorsTotal
}
