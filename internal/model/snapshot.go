package model

import (
	"time"

	"gorm.io/datatypes"
)

// DocumentSnapshot is one stored version of the document in the database
// backend. The newest row is the current document; older rows are backups.
type DocumentSnapshot struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time      `gorm:"not null;index"`
	Body      datatypes.JSON `gorm:"not null"`
}
