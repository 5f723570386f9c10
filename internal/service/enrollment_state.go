package service

import (
	"partner_hub_backend/internal/model"
	"partner_hub_backend/internal/util"
	"time"
)

// TransitionEnrollment 手动状态流转。completed 为终态，任何离开或重入都会被拒绝
func TransitionEnrollment(e *model.Enrollment, target model.EnrollmentStatus, now time.Time) error {
	if !target.Valid() {
		return util.ErrInvalidStatus
	}
	if e.IsCompleted() {
		return util.ErrEnrollmentFinalized
	}

	if target == model.EnrollmentCompleted {
		markCompleted(e, now)
		return nil
	}

	e.Status = target
	e.CompletedAt = nil
	return nil
}

// markCompleted 进入 completed：补齐完成时间，进度置 100
func markCompleted(e *model.Enrollment, at time.Time) {
	e.Status = model.EnrollmentCompleted
	if e.CompletedAt == nil {
		t := at
		e.CompletedAt = &t
	}
	e.ProgressPercent = 100
}
