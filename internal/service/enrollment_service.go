package service

import (
	"context"
	"fmt"
	"partner_hub_backend/internal/model"
	"partner_hub_backend/internal/repository"
	"partner_hub_backend/internal/util"
	"partner_hub_backend/pkg/logger"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Actor 发起操作的用户
type Actor struct {
	UserID string
	Role   model.UserRole
}

// CreateEnrollmentRequest 购买完成后由订单服务调用
type CreateEnrollmentRequest struct {
	StudentID   string `json:"studentId" binding:"required"`
	CourseID    string `json:"courseId" binding:"required"`
	PurchaseID  string `json:"purchaseId" binding:"required"`
	SellerID    string `json:"sellerId" binding:"required"`
	CourseTitle string `json:"courseTitle" binding:"required"`
	BaseLink    string `json:"baseLink" binding:"required"`
}

type EnrollmentService struct {
	EnrollmentRepo *repository.EnrollmentRepository
	UserRepo       *repository.UserRepository
	Completion     *CompletionService
	Locker         EnrollmentLocker
	Notifier       Notifier
	now            func() time.Time
}

func NewEnrollmentService(
	enrollmentRepo *repository.EnrollmentRepository,
	userRepo *repository.UserRepository,
	completion *CompletionService,
	locker EnrollmentLocker,
	notifier Notifier,
) *EnrollmentService {
	return &EnrollmentService{
		EnrollmentRepo: enrollmentRepo,
		UserRepo:       userRepo,
		Completion:     completion,
		Locker:         locker,
		Notifier:       notifier,
		now:            time.Now,
	}
}

func canManage(actor Actor, e *model.Enrollment) bool {
	return actor.Role == model.Admin || (actor.UserID != "" && actor.UserID == e.SellerID)
}

func canView(actor Actor, e *model.Enrollment) bool {
	return canManage(actor, e) || (actor.UserID != "" && actor.UserID == e.StudentID)
}

func (s *EnrollmentService) CreateEnrollment(ctx context.Context, req CreateEnrollmentRequest) (*model.Enrollment, error) {
	student, err := s.UserRepo.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, util.ErrUserNotFound
	}

	e := &model.Enrollment{
		StudentID:   req.StudentID,
		CourseID:    req.CourseID,
		PurchaseID:  req.PurchaseID,
		SellerID:    req.SellerID,
		CourseTitle: strings.TrimSpace(req.CourseTitle),
		AccessLink:  util.BuildAccessLink(req.BaseLink, req.StudentID),
		Status:      model.EnrollmentInProgress,
		Version:     1,
	}
	if err := s.EnrollmentRepo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}

	logger.Log.Info("Enrollment created",
		zap.String("enrollmentId", e.ID),
		zap.String("studentId", e.StudentID),
		zap.String("courseId", e.CourseID))
	return e, nil
}

func (s *EnrollmentService) GetEnrollment(ctx context.Context, actor Actor, id string) (*model.Enrollment, error) {
	e, err := s.EnrollmentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, e) {
		return nil, util.ErrPermissionDenied
	}
	return e, nil
}

func (s *EnrollmentService) ListAssessments(ctx context.Context, actor Actor, id string) ([]model.Assessment, error) {
	e, err := s.EnrollmentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, e) {
		return nil, util.ErrPermissionDenied
	}
	return e.Assessments, nil
}

func (s *EnrollmentService) AddAssessment(ctx context.Context, actor Actor, id, title string, score float64) (*model.Enrollment, error) {
	title, err := validateAssessment(title, score)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, id, func(tx *repository.EnrollmentRepository, e *model.Enrollment) error {
		position := 0
		for _, a := range e.Assessments {
			if a.Position >= position {
				position = a.Position + 1
			}
		}

		a := model.Assessment{
			EnrollmentID: e.ID,
			Title:        title,
			Score:        score,
			CreatorID:    actor.UserID,
			Position:     position,
		}
		if err := tx.CreateAssessment(ctx, &a); err != nil {
			return fmt.Errorf("create assessment: %w", err)
		}
		e.Assessments = append(e.Assessments, a)
		ApplyScores(e)
		return nil
	})
}

func (s *EnrollmentService) UpdateAssessment(ctx context.Context, actor Actor, id, assessmentID, title string, score float64) (*model.Enrollment, error) {
	title, err := validateAssessment(title, score)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, id, func(tx *repository.EnrollmentRepository, e *model.Enrollment) error {
		idx := findAssessment(e.Assessments, assessmentID)
		if idx < 0 {
			return util.ErrAssessmentNotFound
		}

		now := s.now()
		a := &e.Assessments[idx]
		a.Title = title
		a.Score = score
		a.UpdatedAt = &now
		if err := tx.UpdateAssessment(ctx, a); err != nil {
			return fmt.Errorf("update assessment: %w", err)
		}
		ApplyScores(e)
		return nil
	})
}

func (s *EnrollmentService) RemoveAssessment(ctx context.Context, actor Actor, id, assessmentID string) (*model.Enrollment, error) {
	return s.mutate(ctx, actor, id, func(tx *repository.EnrollmentRepository, e *model.Enrollment) error {
		idx := findAssessment(e.Assessments, assessmentID)
		if idx < 0 {
			return util.ErrAssessmentNotFound
		}

		if err := tx.DeleteAssessment(ctx, e.ID, assessmentID); err != nil {
			return fmt.Errorf("delete assessment: %w", err)
		}
		e.Assessments = append(e.Assessments[:idx], e.Assessments[idx+1:]...)
		ApplyScores(e)
		return nil
	})
}

// TransitionStatus 手动修改报名状态，进入 completed 时生成结业记录并通知学生
func (s *EnrollmentService) TransitionStatus(ctx context.Context, actor Actor, id string, target model.EnrollmentStatus) (*model.Enrollment, error) {
	if !target.Valid() {
		return nil, util.ErrInvalidStatus
	}

	e, err := s.mutate(ctx, actor, id, func(tx *repository.EnrollmentRepository, e *model.Enrollment) error {
		return TransitionEnrollment(e, target, s.now())
	})
	if err != nil {
		return nil, err
	}

	if e.IsCompleted() {
		if _, created, err := s.Completion.Materialize(ctx, e, nil); err != nil {
			logger.Log.Error("Failed to materialize completed course",
				zap.String("enrollmentId", e.ID), zap.Error(err))
		} else if created {
			s.Notifier.Notify(ctx, Notification{
				Kind:         NotifyCourseCompleted,
				StudentID:    e.StudentID,
				EnrollmentID: e.ID,
				CourseTitle:  e.CourseTitle,
			})
		}
	}

	logger.Log.Info("Enrollment status changed",
		zap.String("enrollmentId", e.ID),
		zap.String("status", string(e.Status)),
		zap.String("actorId", actor.UserID))
	return e, nil
}

// mutate 加锁并在事务内执行修改，已完成的报名一律拒绝
func (s *EnrollmentService) mutate(ctx context.Context, actor Actor, id string, fn func(tx *repository.EnrollmentRepository, e *model.Enrollment) error) (*model.Enrollment, error) {
	unlock, err := s.Locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *model.Enrollment
	err = s.EnrollmentRepo.Transaction(ctx, func(tx *repository.EnrollmentRepository) error {
		e, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !canManage(actor, e) {
			return util.ErrPermissionDenied
		}
		if e.IsCompleted() {
			return util.ErrEnrollmentFinalized
		}

		if err := fn(tx, e); err != nil {
			return err
		}
		if err := tx.Update(ctx, e); err != nil {
			return err
		}
		result = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func findAssessment(list []model.Assessment, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
