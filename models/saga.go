package models

import (
	"time"

	"gorm.io/gorm"
)

// SagaInstance is the write-side saga instance row
type SagaInstance struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Name      string         `json:"name"`
	Status    string         `gorm:"index;size:16" json:"status"`
	StartDate *time.Time     `json:"start_date"`
	EndDate   *time.Time     `json:"end_date"`
	Revision  int            `gorm:"not null;default:1" json:"revision"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// SagaInstanceView is the read-side saga instance row
type SagaInstanceView struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Name      string     `gorm:"index" json:"name"`
	Status    string     `gorm:"index;size:16" json:"status"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SagaStep is the write-side saga step row. Orders are unique per instance,
// soft-deleted rows included, so an order is never reused.
type SagaStep struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	SagaInstanceID string         `gorm:"size:36;uniqueIndex:idx_saga_steps_instance_order,priority:1" json:"saga_instance_id"`
	Name           string         `json:"name"`
	Order          int            `gorm:"column:step_order;uniqueIndex:idx_saga_steps_instance_order,priority:2" json:"order"`
	Status         string         `gorm:"index;size:16" json:"status"`
	StartDate      *time.Time     `json:"start_date"`
	EndDate        *time.Time     `json:"end_date"`
	ErrorMessage   *string        `json:"error_message"`
	RetryCount     int            `json:"retry_count"`
	MaxRetries     int            `json:"max_retries"`
	Payload        []byte         `json:"payload"`
	Result         []byte         `json:"result"`
	Revision       int            `gorm:"not null;default:1" json:"revision"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// SagaStepView is the read-side saga step row
type SagaStepView struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	SagaInstanceID string     `gorm:"index;size:36" json:"saga_instance_id"`
	Name           string     `json:"name"`
	Order          int        `gorm:"column:step_order" json:"order"`
	Status         string     `gorm:"index;size:16" json:"status"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	ErrorMessage   *string    `json:"error_message"`
	RetryCount     int        `json:"retry_count"`
	MaxRetries     int        `json:"max_retries"`
	Payload        []byte     `json:"payload"`
	Result         []byte     `json:"result"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// SagaLog is the write-side saga log row
type SagaLog struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	SagaInstanceID string         `gorm:"index;size:36" json:"saga_instance_id"`
	SagaStepID     string         `gorm:"index;size:36" json:"saga_step_id"`
	Type           string         `gorm:"size:16" json:"type"`
	Message        string         `json:"message"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// SagaLogView is the read-side saga log row
type SagaLogView struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	SagaInstanceID string    `gorm:"index;size:36" json:"saga_instance_id"`
	SagaStepID     string    `gorm:"index;size:36" json:"saga_step_id"`
	Type           string    `gorm:"index;size:16" json:"type"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// All lists every table for AutoMigrate
func All() []interface{} {
	return []interface{}{
		&Event{}, &EventView{},
		&SagaInstance{}, &SagaInstanceView{},
		&SagaStep{}, &SagaStepView{},
		&SagaLog{}, &SagaLogView{},
	}
}
