package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state shared by saga instances and steps
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusStarted   Status = "STARTED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// ParseStatus accepts a status name in any case
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToUpper(strings.TrimSpace(value)))
	switch status {
	case StatusPending, StatusStarted, StatusRunning, StatusCompleted, StatusFailed:
		return status, true
	}
	return status, false
}

// IsTerminal reports whether no further status change is allowed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

func statusIn(status Status, allowed []Status) bool {
	for _, candidate := range allowed {
		if candidate == status {
			return true
		}
	}
	return false
}

func timestamp() *time.Time {
	now := time.Now().UTC()
	return &now
}
