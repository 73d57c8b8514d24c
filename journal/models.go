package journal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TxRecord is one submitted transaction. Failed transactions are stored too
// and are overwritten if the same signed payload is resubmitted.
type TxRecord struct {
	Hash              string `gorm:"primaryKey;size:66"`
	Signer            string `gorm:"index;size:80"`
	Status            string `gorm:"index;size:16"`
	Kind              string `gorm:"index;size:40"`
	Error             string
	FailedInstruction *int
	Program           string `gorm:"size:32"`
	Instruction       string `gorm:"size:64"`
	Timestamp         int64  `gorm:"index"`
	Receipt           string `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// EventRecord is one event published by a committed transaction.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TxHash     string    `gorm:"index;size:66"`
	Seq        int
	Type       string `gorm:"index;size:64"`
	Attributes string `gorm:"type:text"`
	Timestamp  int64  `gorm:"index"`
	CreatedAt  time.Time
}

// AutoMigrate creates or updates the journal tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&TxRecord{},
		&EventRecord{},
	)
}
