package repository

import (
	"context"
	"errors"
	"partner_hub_backend/internal/model"
	"partner_hub_backend/internal/util"
	"strings"

	"gorm.io/gorm"
)

// LIKE 转义，'!' 在 MySQL 与 SQLite 中都可作为单字符转义符
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

// Transaction 在同一事务内执行 fn，fn 拿到的仓库绑定事务连接
func (r *EnrollmentRepository) Transaction(ctx context.Context, fn func(tx *EnrollmentRepository) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&EnrollmentRepository{DB: tx})
	})
}

func (r *EnrollmentRepository) Create(ctx context.Context, e *model.Enrollment) error {
	if e.Version == 0 {
		e.Version = 1
	}
	return r.DB.WithContext(ctx).Create(e).Error
}

func (r *EnrollmentRepository) preloadAssessments(db *gorm.DB) *gorm.DB {
	return db.Preload("Assessments", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc, created_at asc")
	})
}

func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.preloadAssessments(r.DB.WithContext(ctx)).Where("id = ?", id).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// FindByStudentAndCourse 同一学生同一课程有多条时取最新的一条
func (r *EnrollmentRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.preloadAssessments(r.DB.WithContext(ctx)).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Order("created_at desc").
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListSyncCandidates 返回该卖家名下指向给定课程且尚未完成的报名。
// 课程既可以由 course_id 直接匹配，也可以由访问链接的路径段匹配
func (r *EnrollmentRepository) ListSyncCandidates(ctx context.Context, sellerID string, courseIDs []string) ([]model.Enrollment, error) {
	var list []model.Enrollment
	ids := make([]string, 0, len(courseIDs))
	for _, id := range courseIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if sellerID == "" || len(ids) == 0 {
		return list, nil
	}

	clauses := []string{"course_id IN ?"}
	args := []interface{}{ids}
	for _, id := range ids {
		clauses = append(clauses, "access_link LIKE ? ESCAPE '!'")
		args = append(args, "%/"+likeEscaper.Replace(id)+"%")
	}

	var rows []model.Enrollment
	err := r.DB.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Where("status <> ?", model.EnrollmentCompleted).
		Where("("+strings.Join(clauses, " OR ")+")", args...).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// LIKE 只做粗筛，路径段需要精确相等
	for _, e := range rows {
		if matchesAnyCourse(e, ids) {
			list = append(list, e)
		}
	}
	return list, nil
}

func matchesAnyCourse(e model.Enrollment, courseIDs []string) bool {
	for _, id := range courseIDs {
		if e.CourseID == id || util.AccessLinkMatchesCourse(e.AccessLink, id) {
			return true
		}
	}
	return false
}

// Update 以 version 做乐观锁写回报名的可变字段，成功后 version 自增
func (r *EnrollmentRepository) Update(ctx context.Context, e *model.Enrollment) error {
	res := r.DB.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("id = ? AND version = ?", e.ID, e.Version).
		Updates(map[string]interface{}{
			"access_link":        e.AccessLink,
			"progress_percent":   e.ProgressPercent,
			"total_points":       e.TotalPoints,
			"time_spent_seconds": e.TimeSpentSeconds,
			"status":             e.Status,
			"completed_at":       e.CompletedAt,
			"last_accessed":      e.LastAccessed,
			"metadata":           e.Metadata,
			"version":            e.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrConcurrentUpdate
	}
	e.Version++
	return nil
}

func (r *EnrollmentRepository) CreateAssessment(ctx context.Context, a *model.Assessment) error {
	return r.DB.WithContext(ctx).Create(a).Error
}

func (r *EnrollmentRepository) UpdateAssessment(ctx context.Context, a *model.Assessment) error {
	return r.DB.WithContext(ctx).
		Model(&model.Assessment{}).
		Where("id = ? AND enrollment_id = ?", a.ID, a.EnrollmentID).
		Updates(map[string]interface{}{
			"title":      a.Title,
			"score":      a.Score,
			"updated_at": a.UpdatedAt,
		}).Error
}

func (r *EnrollmentRepository) DeleteAssessment(ctx context.Context, enrollmentID, assessmentID string) error {
	return r.DB.WithContext(ctx).
		Where("id = ? AND enrollment_id = ?", assessmentID, enrollmentID).
		Delete(&model.Assessment{}).Error
}

