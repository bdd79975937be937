package bb84

import (
	"time"

	"github.com/sirupsen/logrus"
)

// MaxEvents is the number of entries an EventLog retains.
const MaxEvents = 100

// Event severities.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// An Event is one entry in the simulation's user-facing log.
type Event struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Step    int       `json:"step"`
	Message string    `json:"message"`
}

// An EventLog is an append-only log holding the most recent MaxEvents events.
// Every append is mirrored to a structured logger.
type EventLog struct {
	events []Event
	logger *logrus.Logger
	now    func() time.Time
}

func newEventLog(logger *logrus.Logger) *EventLog {
	return &EventLog{logger: logger, now: time.Now}
}

func (l *EventLog) add(level string, step int, msg string) {
	e := Event{Time: l.now(), Level: level, Step: step, Message: msg}
	if len(l.events) >= MaxEvents {
		copy(l.events, l.events[1:])
		l.events = l.events[:MaxEvents-1]
	}
	l.events = append(l.events, e)

	entry := l.logger.WithFields(logrus.Fields{"step": step, "step_name": StepName(step)})
	switch level {
	case LevelError:
		entry.Error(msg)
	case LevelWarning:
		entry.Warn(msg)
	default:
		entry.Info(msg)
	}
}

// Events returns a copy of the retained events, oldest first.
func (l *EventLog) Events() []Event {
	return cloneSlice(l.events)
}

func (l *EventLog) clear() {
	l.events = nil
}
