package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Assessment 报名记录下的一次评分，分值 0-10，只属于所在的 Enrollment
// swagger:model Assessment
type Assessment struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	EnrollmentID string     `gorm:"type:varchar(36);not null;index" json:"enrollmentId"`
	Title        string     `gorm:"size:255;not null" json:"title"`
	Score        float64    `gorm:"not null" json:"score"`
	CreatorID    string     `gorm:"type:varchar(36)" json:"creatorId"`
	Position     int        `gorm:"not null;default:0" json:"position"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `gorm:"autoUpdateTime:false" json:"updatedAt,omitempty"`
}

func (Assessment) TableName() string {
	return "enrollment_assessments"
}

func (a *Assessment) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return
}
