package repository

import (
	"context"
	"errors"
	"partner_hub_backend/internal/model"
	"partner_hub_backend/internal/util"

	"gorm.io/gorm"
)

type CompletedCourseRepository struct {
	DB *gorm.DB
}

func NewCompletedCourseRepository(db *gorm.DB) *CompletedCourseRepository {
	return &CompletedCourseRepository{DB: db}
}

// Create 插入新记录，唯一键冲突时返回 util.ErrDuplicateRecord
func (r *CompletedCourseRepository) Create(ctx context.Context, c *model.CompletedCourse) error {
	err := r.DB.WithContext(ctx).Create(c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.ErrDuplicateRecord
	}
	return err
}

func (r *CompletedCourseRepository) Update(ctx context.Context, c *model.CompletedCourse) error {
	return r.DB.WithContext(ctx).Save(c).Error
}

// FindByEnrollmentID 未找到时返回 nil, nil
func (r *CompletedCourseRepository) FindByEnrollmentID(ctx context.Context, enrollmentID string) (*model.CompletedCourse, error) {
	var c model.CompletedCourse
	err := r.DB.WithContext(ctx).Where("enrollment_id = ?", enrollmentID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByContent 按 (用户, 课程名, 颁发方) 匹配，未找到时返回 nil, nil
func (r *CompletedCourseRepository) FindByContent(ctx context.Context, userID, name, issuer string) (*model.CompletedCourse, error) {
	var c model.CompletedCourse
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND name = ? AND issuer = ?", userID, name, issuer).
		Order("created_at asc").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CompletedCourseRepository) ListByUser(ctx context.Context, userID string) ([]model.CompletedCourse, error) {
	var list []model.CompletedCourse
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("issue_date desc").Find(&list).Error
	return list, err
}

func (r *CompletedCourseRepository) CountByEnrollmentID(ctx context.Context, enrollmentID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.CompletedCourse{}).Where("enrollment_id = ?", enrollmentID).Count(&n).Error
	return n, err
}
