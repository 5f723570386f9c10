package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"partner_hub_backend/internal/model"
	"partner_hub_backend/internal/repository"
	"partner_hub_backend/internal/util"
	"partner_hub_backend/pkg/logger"
	"partner_hub_backend/pkg/monitoring"
	"partner_hub_backend/pkg/tracing"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	EventProgressUpdated   = "progress_updated"
	EventCourseCompleted   = "course_completed"
	EventCertificateIssued = "certificate_issued"
)

// WebhookEvent 合作方推送的事件信封
type WebhookEvent struct {
	EventType       string               `json:"eventType"`
	StudentID       string               `json:"studentId"`
	CourseID        string               `json:"courseId"`
	EnrollmentID    string               `json:"enrollmentId,omitempty"`
	Data            json.RawMessage      `json:"data,omitempty"`
	CompletedCourse *CompletionOverrides `json:"completedCourse,omitempty"`
}

type progressEventData struct {
	Progress *model.ProgressPayload `json:"progress"`
}

type completedEventData struct {
	Score       *float64   `json:"score"`
	CompletedAt *time.Time `json:"completedAt"`
}

type certificateEventData struct {
	Certificate *model.CertificatePayload `json:"certificate"`
}

// ParseWebhookEvent 只校验信封本身，事件数据留给各事件处理
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook envelope: %w", err)
	}
	ev.EventType = strings.TrimSpace(ev.EventType)
	if ev.EventType == "" {
		return nil, fmt.Errorf("eventType is required: %w", util.ErrInvalidPayload)
	}
	return &ev, nil
}

type WebhookService struct {
	EnrollmentRepo *repository.EnrollmentRepository
	UserRepo       *repository.UserRepository
	Completion     *CompletionService
	Storage        *StorageService
	Locker         EnrollmentLocker
	Notifier       Notifier
	now            func() time.Time
}

func NewWebhookService(
	enrollmentRepo *repository.EnrollmentRepository,
	userRepo *repository.UserRepository,
	completion *CompletionService,
	storage *StorageService,
	locker EnrollmentLocker,
	notifier Notifier,
) *WebhookService {
	return &WebhookService{
		EnrollmentRepo: enrollmentRepo,
		UserRepo:       userRepo,
		Completion:     completion,
		Storage:        storage,
		Locker:         locker,
		Notifier:       notifier,
		now:            time.Now,
	}
}

// Handle 处理单个事件。任何错误或 panic 都在这里记录，返回值仅供调用方统计
func (s *WebhookService) Handle(ctx context.Context, ev *WebhookEvent) (err error) {
	ctx, span := tracing.Tracer.Start(ctx, "webhook."+ev.EventType)
	span.SetAttributes(
		attribute.String("event.type", ev.EventType),
		attribute.String("student.id", ev.StudentID),
		attribute.String("course.id", ev.CourseID),
	)
	defer span.End()

	fields := []zap.Field{
		zap.String("eventType", ev.EventType),
		zap.String("studentId", ev.StudentID),
		zap.String("courseId", ev.CourseID),
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling %s: %v", ev.EventType, r)
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			logger.Log.Error("Failed to handle partner webhook event", append(fields, zap.Error(err))...)
		}
		monitoring.WebhookEvents.WithLabelValues(metricEventType(ev.EventType), outcome).Inc()
	}()

	switch ev.EventType {
	case EventProgressUpdated:
		return s.handleProgressUpdated(ctx, ev)
	case EventCourseCompleted:
		return s.handleCourseCompleted(ctx, ev)
	case EventCertificateIssued:
		return s.handleCertificateIssued(ctx, ev)
	default:
		logger.Log.Warn("Unknown partner webhook event", fields...)
		return nil
	}
}

func metricEventType(eventType string) string {
	switch eventType {
	case EventProgressUpdated, EventCourseCompleted, EventCertificateIssued:
		return eventType
	}
	return "unknown"
}

// findByPair 未找到时返回 nil, nil
func (s *WebhookService) findByPair(ctx context.Context, studentID, courseID string) (*model.Enrollment, error) {
	if studentID == "" || courseID == "" {
		return nil, nil
	}
	e, err := s.EnrollmentRepo.FindByStudentAndCourse(ctx, studentID, courseID)
	if errors.Is(err, util.ErrEnrollmentNotFound) {
		return nil, nil
	}
	return e, err
}

func decodeEventData(raw json.RawMessage, v interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("decode event data: %w", err)
	}
	return nil
}

func (s *WebhookService) handleProgressUpdated(ctx context.Context, ev *WebhookEvent) error {
	found, err := s.findByPair(ctx, ev.StudentID, ev.CourseID)
	if err != nil {
		return err
	}
	if found == nil {
		logger.Log.Info("Progress update for unknown enrollment ignored",
			zap.String("studentId", ev.StudentID),
			zap.String("courseId", ev.CourseID))
		return nil
	}

	var data progressEventData
	if err := decodeEventData(ev.Data, &data); err != nil {
		return err
	}
	if data.Progress == nil {
		return nil
	}
	p := data.Progress

	_, _, err = updateLocked(ctx, s.Locker, s.EnrollmentRepo, found.ID, func(e *model.Enrollment) (bool, error) {
		// 已完成的报名进度冻结，只记录学习时长与访问时间
		if p.ProgressPercent != nil && !e.IsCompleted() {
			e.ProgressPercent = clampPercent(*p.ProgressPercent)
		}
		if p.TimeSpentSeconds != nil {
			e.TimeSpentSeconds = *p.TimeSpentSeconds
		}
		if p.LastAccessed != nil {
			e.LastAccessed = p.LastAccessed
		}

		meta := e.Metadata.Data()
		meta.Merge(model.MetadataEntry{Kind: model.MetadataProgress, Progress: p})
		e.Metadata = datatypes.NewJSONType(meta)
		return true, nil
	})
	return err
}

func (s *WebhookService) handleCourseCompleted(ctx context.Context, ev *WebhookEvent) error {
	e, err := s.findByPair(ctx, ev.StudentID, ev.CourseID)
	if err != nil {
		return err
	}
	if e == nil && model.IsValidID(ev.EnrollmentID) {
		e, err = s.EnrollmentRepo.FindByID(ctx, ev.EnrollmentID)
		if errors.Is(err, util.ErrEnrollmentNotFound) {
			e, err = nil, nil
		}
		if err != nil {
			return err
		}
	}

	studentID := ev.StudentID
	if e != nil {
		studentID = e.StudentID
	}
	var student *model.User
	if studentID != "" {
		student, err = s.UserRepo.FindByID(ctx, studentID)
		if err != nil {
			return err
		}
	}
	if student == nil {
		logger.Log.Warn("Course completion for unknown user ignored",
			zap.String("studentId", ev.StudentID),
			zap.String("enrollmentId", ev.EnrollmentID))
		return nil
	}

	if e == nil {
		if ev.CompletedCourse == nil {
			logger.Log.Info("Course completion without enrollment or payload ignored",
				zap.String("studentId", student.ID),
				zap.String("courseId", ev.CourseID))
			return nil
		}
		_, err := s.Completion.UpsertFromPayload(ctx, student.ID, nil, ev.CompletedCourse)
		return err
	}

	var data completedEventData
	if err := decodeEventData(ev.Data, &data); err != nil {
		return err
	}

	e, transitioned, err := updateLocked(ctx, s.Locker, s.EnrollmentRepo, e.ID, func(e *model.Enrollment) (bool, error) {
		if e.IsCompleted() {
			return false, nil
		}
		if data.Score != nil {
			e.TotalPoints = *data.Score
		}
		at := s.now()
		if data.CompletedAt != nil {
			at = *data.CompletedAt
		}
		markCompleted(e, at)
		return true, nil
	})
	if err != nil {
		return err
	}

	if ev.CompletedCourse != nil {
		_, err = s.Completion.UpsertFromPayload(ctx, student.ID, e, ev.CompletedCourse)
	} else {
		_, _, err = s.Completion.Materialize(ctx, e, nil)
	}
	if err != nil {
		return err
	}

	if transitioned {
		monitoring.EnrollmentsCompleted.WithLabelValues("webhook").Inc()
		logger.Log.Info("Enrollment completed by partner webhook", zap.String("enrollmentId", e.ID))
		s.Notifier.Notify(ctx, Notification{
			Kind:         NotifyCourseCompleted,
			StudentID:    e.StudentID,
			EnrollmentID: e.ID,
			CourseTitle:  e.CourseTitle,
		})
	}
	return nil
}

func (s *WebhookService) handleCertificateIssued(ctx context.Context, ev *WebhookEvent) error {
	found, err := s.findByPair(ctx, ev.StudentID, ev.CourseID)
	if err != nil {
		return err
	}
	if found == nil {
		logger.Log.Info("Certificate for unknown enrollment ignored",
			zap.String("studentId", ev.StudentID),
			zap.String("courseId", ev.CourseID))
		return nil
	}

	cert, err := parseCertificate(ev.Data)
	if err != nil {
		return err
	}

	if s.Storage != nil {
		key, archiveURL, err := s.Storage.ArchiveCertificate(ctx, found.ID, cert)
		if err != nil {
			logger.Log.Warn("Failed to archive certificate",
				zap.String("enrollmentId", found.ID), zap.Error(err))
		} else {
			cert.ArchiveKey = key
			cert.ArchiveURL = archiveURL
		}
	}

	var (
		completedNow  bool
		supersededKey string
	)
	e, _, err := updateLocked(ctx, s.Locker, s.EnrollmentRepo, found.ID, func(e *model.Enrollment) (bool, error) {
		meta := e.Metadata.Data()
		if prev := meta.Certificate; prev != nil && cert.ArchiveKey != "" && prev.ArchiveKey != cert.ArchiveKey {
			supersededKey = prev.ArchiveKey
		}
		meta.Merge(model.MetadataEntry{Kind: model.MetadataCertificate, Certificate: cert})
		e.Metadata = datatypes.NewJSONType(meta)
		if !e.IsCompleted() {
			at := s.now()
			if cert.IssuedAt != nil {
				at = *cert.IssuedAt
			}
			markCompleted(e, at)
			completedNow = true
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if completedNow {
		monitoring.EnrollmentsCompleted.WithLabelValues("webhook").Inc()
	}

	// 重新颁发时结业记录跟随新的证书地址
	overrides := &CompletionOverrides{
		CertificateURL:  firstNonEmpty(cert.ArchiveURL, cert.CertificateURL),
		VerificationURL: cert.VerificationURL,
	}
	if _, err := s.Completion.UpsertFromPayload(ctx, e.StudentID, e, overrides); err != nil {
		return err
	}

	if supersededKey != "" {
		if err := s.Storage.Delete(ctx, supersededKey); err != nil {
			logger.Log.Warn("Failed to remove superseded certificate archive",
				zap.String("enrollmentId", e.ID),
				zap.String("key", supersededKey),
				zap.Error(err))
		}
	}

	s.Notifier.Notify(ctx, Notification{
		Kind:           NotifyCertificateIssued,
		StudentID:      e.StudentID,
		EnrollmentID:   e.ID,
		CourseTitle:    e.CourseTitle,
		CertificateURL: firstNonEmpty(cert.CertificateURL, cert.ArchiveURL),
	})
	return nil
}

// parseCertificate 证书可以放在 data.certificate 下，也可以直接是 data
func parseCertificate(raw json.RawMessage) (*model.CertificatePayload, error) {
	var wrapped certificateEventData
	if err := decodeEventData(raw, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Certificate != nil {
		return wrapped.Certificate, nil
	}

	cert := &model.CertificatePayload{}
	if err := decodeEventData(raw, cert); err != nil {
		return nil, err
	}
	return cert, nil
}

// clampPercent 合作方可能上报小数进度，四舍五入后截断到 0..100
func clampPercent(p float64) int {
	r := math.Round(p)
	if math.IsNaN(r) || r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return int(r)
}
