package model

import "time"

// LocalRecord is one entry of a local collection, stored as its JSON payload.
type LocalRecord struct {
	Collection string    `gorm:"primaryKey;size:64"`
	ID         string    `gorm:"primaryKey;size:128"`
	Payload    []byte    `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}
