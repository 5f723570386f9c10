package util

import "errors"

// 校验错误
var (
	ErrInvalidScore   = errors.New("score must be between 0 and 10")
	ErrTitleRequired  = errors.New("title is required")
	ErrInvalidStatus  = errors.New("invalid enrollment status")
	ErrInvalidPayload = errors.New("invalid payload")
)

// 权限错误
var ErrPermissionDenied = errors.New("permission denied")

// 资源不存在
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrEnrollmentNotFound    = errors.New("enrollment not found")
	ErrAssessmentNotFound    = errors.New("assessment not found")
	ErrPartnerSourceNotFound = errors.New("partner source not found")
)

// 状态冲突
var (
	ErrEnrollmentFinalized = errors.New("enrollment is completed and can no longer be modified")
	ErrConcurrentUpdate    = errors.New("enrollment was modified concurrently")
	ErrSyncInProgress      = errors.New("partner sync already in progress")
	ErrDuplicateRecord     = errors.New("record already exists")
)

// 外部调用
var ErrPartnerCall = errors.New("partner call failed")
