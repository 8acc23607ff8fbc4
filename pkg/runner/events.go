package runner

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/chili-ocx/pepper/pkg/logger"
	"github.com/chili-ocx/pepper/pkg/skills"
	"github.com/chili-ocx/pepper/pkg/telemetry"
)

// StepState is the lifecycle state of a step within a run
type StepState string

const (
	StepPending   StepState = "pending"
	StepRunning   StepState = "running"
	StepSucceeded StepState = "succeeded"
	StepFailed    StepState = "failed"
	StepHalted    StepState = "halted"
)

// EventKind distinguishes the diagnostic events emitted during a run
type EventKind string

const (
	EventRunStarted  EventKind = "run_started"
	EventStepState   EventKind = "step_state"
	EventWarning     EventKind = "warning"
	EventRunFinished EventKind = "run_finished"
)

// Event is a single diagnostic emitted by the runner
type Event struct {
	Kind    EventKind
	RunID   string
	Skill   string
	Step    string
	Type    skills.StepType
	State   StepState
	Message string
	Err     error
	Time    time.Time
}

// EventSink receives diagnostic events. Implementations must not block the
// run for long; events are delivered synchronously.
type EventSink interface {
	Emit(ctx context.Context, event Event)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(ctx context.Context, event Event)

// Emit implements EventSink
func (f EventSinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// LogSink writes events to the context logger
type LogSink struct{}

// Emit implements EventSink
func (LogSink) Emit(ctx context.Context, event Event) {
	log := logger.G(ctx).WithFields(logrus.Fields{
		"run_id": event.RunID,
		"skill":  event.Skill,
	})
	if event.Step != "" {
		log = log.WithFields(logrus.Fields{"step": event.Step, "type": event.Type})
	}
	if event.Err != nil {
		log = log.WithError(event.Err)
	}

	switch event.Kind {
	case EventWarning:
		log.Warn(event.Message)
	case EventStepState:
		switch event.State {
		case StepFailed:
			log.Error("step failed")
		case StepHalted:
			log.WithField("proposal", event.Message).Info("step halted awaiting confirmation")
		case StepSucceeded:
			log.Info("step succeeded")
		default:
			log.Debugf("step %s", event.State)
		}
	case EventRunStarted:
		log.Debug("run started")
	case EventRunFinished:
		if event.Err != nil {
			log.Error("run failed")
			return
		}
		log.Info("run finished")
	}
}

// TraceSink records events on the active span
type TraceSink struct{}

// Emit implements EventSink
func (TraceSink) Emit(ctx context.Context, event Event) {
	attrs := []attribute.KeyValue{attribute.String("run.id", event.RunID)}
	if event.Step != "" {
		attrs = append(attrs, attribute.String("step.name", event.Step))
	}
	if event.State != "" {
		attrs = append(attrs, attribute.String("step.state", string(event.State)))
	}
	if event.Message != "" {
		attrs = append(attrs, attribute.String("message", event.Message))
	}
	telemetry.AddEvent(ctx, "pepper."+string(event.Kind), attrs...)
}

// MultiSink fans events out to several sinks in order
type MultiSink []EventSink

// Emit implements EventSink
func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, sink := range m {
		sink.Emit(ctx, event)
	}
}
