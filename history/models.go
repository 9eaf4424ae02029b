package history

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Generation records one /api/generate-videos call.
type Generation struct {
	ID                string         `gorm:"size:36;primaryKey" json:"id"`
	PageURL           string         `gorm:"size:2048" json:"page_url"`
	CharacterImageURL string         `gorm:"type:text" json:"character_image_url"`
	HostedImageURL    string         `gorm:"type:text" json:"-"`
	Prompt            string         `gorm:"type:text" json:"prompt"`
	ProductInfo       datatypes.JSON `json:"product_info,omitempty"`
	VideoURL          string         `gorm:"type:text" json:"video_url,omitempty"`
	Status            string         `gorm:"size:16;index;not null" json:"status"`
	ErrorType         string         `gorm:"size:64" json:"error_type,omitempty"`
	Error             string         `gorm:"type:text" json:"error,omitempty"`
	RequestID         string         `gorm:"size:64" json:"request_id,omitempty"`
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`
}

func (Generation) TableName() string {
	return "video_generations"
}
