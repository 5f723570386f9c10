package model

import (
	"time"

	"gorm.io/datatypes"
)

type EnrollmentStatus string

const (
	EnrollmentInProgress EnrollmentStatus = "in_progress"
	EnrollmentCompleted  EnrollmentStatus = "completed"
	EnrollmentExpired    EnrollmentStatus = "expired"
)

// Valid 判断是否为已知状态
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentInProgress, EnrollmentCompleted, EnrollmentExpired:
		return true
	}
	return false
}

// Enrollment 学生与已购课程之间的关系，本地状态的唯一来源
// swagger:model Enrollment
type Enrollment struct {
	UUIDBase
	StudentID        string                              `gorm:"type:varchar(36);not null;index:idx_enrollment_student_course,priority:1" json:"studentId"`
	CourseID         string                              `gorm:"type:varchar(64);not null;index:idx_enrollment_student_course,priority:2" json:"courseId"`
	PurchaseID       string                              `gorm:"type:varchar(64);index" json:"purchaseId"`
	SellerID         string                              `gorm:"type:varchar(36);index" json:"sellerId"`
	CourseTitle      string                              `gorm:"size:255" json:"courseTitle"`
	AccessLink       string                              `gorm:"size:1024" json:"accessLink"`
	ProgressPercent  int                                 `gorm:"not null;default:0" json:"progressPercent"`
	TotalPoints      float64                             `gorm:"not null;default:0" json:"totalPoints"`
	TimeSpentSeconds int64                               `gorm:"not null;default:0" json:"timeSpentSeconds"`
	Status           EnrollmentStatus                    `gorm:"size:20;not null;index" json:"status"`
	CompletedAt      *time.Time                          `json:"completedAt"`
	LastAccessed     *time.Time                          `json:"lastAccessed"`
	Assessments      []Assessment                        `gorm:"foreignKey:EnrollmentID" json:"assessments"`
	Metadata         datatypes.JSONType[PartnerMetadata] `json:"metadata"`
	Version          int                                 `gorm:"not null;default:1" json:"version"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

func (e *Enrollment) IsCompleted() bool {
	return e.Status == EnrollmentCompleted
}
