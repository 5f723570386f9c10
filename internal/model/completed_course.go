package model

import (
	"time"

	"gorm.io/datatypes"
)

// CompletedCourse 由已完成的报名派生出的结业记录
// EnrollmentID 非空时唯一，作为幂等键
// swagger:model CompletedCourse
type CompletedCourse struct {
	UUIDBase
	EnrollmentID    *string                             `gorm:"type:varchar(36);uniqueIndex" json:"enrollmentId,omitempty"`
	UserID          string                              `gorm:"type:varchar(36);not null;index:idx_completed_user_name_issuer,priority:1" json:"userId"`
	Name            string                              `gorm:"size:255;not null;index:idx_completed_user_name_issuer,priority:2" json:"name"`
	Issuer          string                              `gorm:"size:255;index:idx_completed_user_name_issuer,priority:3" json:"issuer"`
	IssuerID        string                              `gorm:"type:varchar(36)" json:"issuerId"`
	IssueDate       time.Time                           `json:"issueDate"`
	ExpiryDate      *time.Time                          `json:"expiryDate,omitempty"`
	Category        string                              `gorm:"size:100" json:"category"`
	Level           string                              `gorm:"size:50" json:"level"`
	Credits         float64                             `json:"credits"`
	Grade           string                              `gorm:"size:4" json:"grade"`
	Score           float64                             `json:"score"`
	Skills          datatypes.JSONType[[]string]        `json:"skills"`
	VerificationURL string                              `gorm:"size:1024" json:"verificationUrl"`
	CertificateURL  string                              `gorm:"size:1024" json:"certificateUrl"`
	Metadata        datatypes.JSONType[PartnerMetadata] `json:"metadata"`
}

func (CompletedCourse) TableName() string {
	return "completed_courses"
}
