package domain

import (
	"strings"
	"time"
)

// LogType is the severity of a saga log entry
type LogType string

const (
	LogTypeInfo    LogType = "INFO"
	LogTypeWarning LogType = "WARNING"
	LogTypeError   LogType = "ERROR"
)

// ParseLogType accepts a log type name in any case
func ParseLogType(value string) (LogType, bool) {
	logType := LogType(strings.ToUpper(strings.TrimSpace(value)))
	switch logType {
	case LogTypeInfo, LogTypeWarning, LogTypeError:
		return logType, true
	}
	return logType, false
}

// SagaLogPrimitives is the plain representation of a saga log entry
type SagaLogPrimitives struct {
	ID             string    `json:"id"`
	SagaInstanceID string    `json:"saga_instance_id"`
	SagaStepID     string    `json:"saga_step_id"`
	Type           LogType   `json:"type"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SagaLog is an audit entry. There is no update verb; entries are only
// created and soft-deleted.
type SagaLog struct {
	AggregateBase
	sagaInstanceID string
	sagaStepID     string
	logType        LogType
	message        string
	createdAt      time.Time
	updatedAt      time.Time
}

func NewSagaLog(id, sagaInstanceID, sagaStepID, logType, message string) (*SagaLog, error) {
	if strings.TrimSpace(id) == "" {
		return nil, Validation("saga log id is required")
	}
	if strings.TrimSpace(sagaInstanceID) == "" && strings.TrimSpace(sagaStepID) == "" {
		return nil, Validation("saga log %s must reference a saga instance or step", id)
	}
	parsed, ok := ParseLogType(logType)
	if !ok {
		return nil, Validation("unknown saga log type %q", logType)
	}
	if strings.TrimSpace(message) == "" {
		return nil, Validation("saga log message is required")
	}

	now := time.Now().UTC()
	entry := &SagaLog{
		AggregateBase:  NewAggregateBase(SagaLogAggregateType, id),
		sagaInstanceID: sagaInstanceID,
		sagaStepID:     sagaStepID,
		logType:        parsed,
		message:        message,
		createdAt:      now,
		updatedAt:      now,
	}
	entry.raise(SagaLogCreatedPayload{entry.ToPrimitives()})
	return entry, nil
}

func SagaLogFromPrimitives(p SagaLogPrimitives) *SagaLog {
	return &SagaLog{
		AggregateBase:  NewAggregateBase(SagaLogAggregateType, p.ID),
		sagaInstanceID: p.SagaInstanceID,
		sagaStepID:     p.SagaStepID,
		logType:        p.Type,
		message:        p.Message,
		createdAt:      p.CreatedAt,
		updatedAt:      p.UpdatedAt,
	}
}

func (l *SagaLog) SagaInstanceID() string { return l.sagaInstanceID }
func (l *SagaLog) SagaStepID() string     { return l.sagaStepID }
func (l *SagaLog) Type() LogType          { return l.logType }
func (l *SagaLog) Message() string        { return l.message }

func (l *SagaLog) Delete() {
	l.raise(SagaLogDeletedPayload{l.ToPrimitives()})
}

func (l *SagaLog) ToPrimitives() SagaLogPrimitives {
	return SagaLogPrimitives{
		ID:             l.GetID(),
		SagaInstanceID: l.sagaInstanceID,
		SagaStepID:     l.sagaStepID,
		Type:           l.logType,
		Message:        l.message,
		CreatedAt:      l.createdAt,
		UpdatedAt:      l.updatedAt,
	}
}
