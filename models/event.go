package models

import (
	"time"

	"gorm.io/gorm"
)

// Event is the append-only event store row
type Event struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	AggregateID   string         `gorm:"index;size:64" json:"aggregate_id"`
	AggregateType string         `gorm:"index;size:64" json:"aggregate_type"`
	EventType     string         `gorm:"index;size:128" json:"event_type"`
	Payload       []byte         `json:"payload"`
	Timestamp     time.Time      `gorm:"index" json:"timestamp"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// EventView is the query-side copy of an event store row
type EventView struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	AggregateID   string    `gorm:"index;size:64" json:"aggregate_id"`
	AggregateType string    `gorm:"index;size:64" json:"aggregate_type"`
	EventType     string    `gorm:"index;size:128" json:"event_type"`
	Payload       []byte    `json:"payload"`
	Timestamp     time.Time `gorm:"index" json:"timestamp"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
