package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SyncStatusSuccess = "success"
	SyncStatusPartial = "partial"
	SyncStatusFailed  = "failed"
)

// PartnerSource 已登记的第三方课程提供方，轮询同步的对象
// swagger:model PartnerSource
type PartnerSource struct {
	UUIDBase
	OwnerID        string                       `gorm:"type:varchar(36);uniqueIndex;not null" json:"ownerId"`
	Name           string                       `gorm:"size:255" json:"name"`
	Domain         string                       `gorm:"size:255;not null" json:"domain"`
	Active         bool                         `gorm:"not null" json:"active"`
	LastSyncAt     *time.Time                   `json:"lastSyncAt"`
	LastSyncStatus string                       `gorm:"size:20" json:"lastSyncStatus"`
	LastSyncError  string                       `gorm:"type:text" json:"lastSyncError"`
	SyncedCourses  int64                        `gorm:"not null;default:0" json:"syncedCourses"`
	CourseIDs      datatypes.JSONType[[]string] `json:"courseIds"`
}

func (PartnerSource) TableName() string {
	return "partner_sources"
}
