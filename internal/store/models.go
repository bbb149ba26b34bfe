package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type SessionModel struct {
	ID                string `gorm:"primaryKey"`
	OwnerID           string `gorm:"not null;index"`
	Manufacturer      string `gorm:"not null"`
	Model             string `gorm:"not null"`
	Year              int    `gorm:"not null"`
	LastMessage       string
	MessageCount      int       `gorm:"not null"`
	DiagnosisComplete bool      `gorm:"not null"`
	CreatedAt         time.Time `gorm:"not null;index"`
}

type MessageModel struct {
	ID        string `gorm:"primaryKey"`
	SessionID string `gorm:"not null;index"`
	Seq       int    `gorm:"not null"`
	Role      string `gorm:"not null"`
	Content   string `gorm:"not null"`
	CarImage  string
	Products  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"not null"`
}
