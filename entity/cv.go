package entity

import (
	"time"

	"github.com/google/uuid"
)

// CVDocument is the metadata row for an uploaded CV. The document body lives in
// object storage; workers fetch it by Bucket/ObjectKey when a job runs.
type CVDocument struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID     uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`
	FileName    string    `json:"file_name" gorm:"type:varchar(512);not null"`
	Bucket      string    `json:"bucket" gorm:"type:varchar(255);not null"`
	ObjectKey   string    `json:"object_key" gorm:"type:varchar(1024);not null"`
	ContentType string    `json:"content_type" gorm:"type:varchar(255)"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;autoCreateTime"`
}

func (CVDocument) TableName() string {
	return "cv_documents"
}
