package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"partner_hub_backend/internal/model"
	"partner_hub_backend/internal/repository"
	"partner_hub_backend/internal/util"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// CompletionOverrides 合作方提供的结业信息，空字段沿用默认值
type CompletionOverrides struct {
	Name            string          `json:"name"`
	Issuer          string          `json:"issuer"`
	IssuerID        string          `json:"issuerId"`
	IssueDate       *time.Time      `json:"issueDate"`
	ExpiryDate      *time.Time      `json:"expiryDate"`
	Category        string          `json:"category"`
	Level           string          `json:"level"`
	Credits         *float64        `json:"credits"`
	Grade           string          `json:"grade"`
	Score           *float64        `json:"score"`
	Skills          []string        `json:"skills"`
	VerificationURL string          `json:"verificationUrl"`
	CertificateURL  string          `json:"certificateUrl"`
	Metadata        json.RawMessage `json:"metadata"`
}

type CompletionService struct {
	CompletedRepo *repository.CompletedCourseRepository
	UserRepo      *repository.UserRepository
}

func NewCompletionService(completedRepo *repository.CompletedCourseRepository, userRepo *repository.UserRepository) *CompletionService {
	return &CompletionService{
		CompletedRepo: completedRepo,
		UserRepo:      userRepo,
	}
}

// Materialize 为已完成的报名生成唯一的结业记录。已存在时原样返回，created 为 false
func (s *CompletionService) Materialize(ctx context.Context, e *model.Enrollment, o *CompletionOverrides) (*model.CompletedCourse, bool, error) {
	existing, err := s.CompletedRepo.FindByEnrollmentID(ctx, e.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	issuer := e.SellerID
	seller, err := s.UserRepo.FindByID(ctx, e.SellerID)
	if err != nil {
		return nil, false, err
	}
	if seller != nil && seller.Name != "" {
		issuer = seller.Name
	}

	issueDate := time.Now()
	if e.CompletedAt != nil {
		issueDate = *e.CompletedAt
	}

	enrollmentID := e.ID
	cc := &model.CompletedCourse{
		EnrollmentID: &enrollmentID,
		UserID:       e.StudentID,
		Name:         e.CourseTitle,
		Issuer:       issuer,
		IssuerID:     e.SellerID,
		IssueDate:    issueDate,
		Score:        e.TotalPoints,
		Metadata:     datatypes.NewJSONType(e.Metadata.Data()),
	}
	if cert := e.Metadata.Data().Certificate; cert != nil {
		cc.CertificateURL = firstNonEmpty(cert.ArchiveURL, cert.CertificateURL)
		cc.VerificationURL = cert.VerificationURL
	}
	applyOverrides(cc, o)
	if cc.Grade == "" {
		cc.Grade = GradeForScore(cc.Score)
	}

	err = s.CompletedRepo.Create(ctx, cc)
	if errors.Is(err, util.ErrDuplicateRecord) {
		// 并发插入时以已落库的记录为准
		existing, ferr := s.CompletedRepo.FindByEnrollmentID(ctx, e.ID)
		if ferr != nil {
			return nil, false, ferr
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("create completed course: %w", err)
	}
	return cc, true, nil
}

// UpsertFromPayload 处理合作方推送的结业信息。
// 有关联报名时以报名 ID 定位记录，否则按 (用户, 课程名, 颁发方) 匹配
func (s *CompletionService) UpsertFromPayload(ctx context.Context, userID string, e *model.Enrollment, o *CompletionOverrides) (*model.CompletedCourse, error) {
	if o == nil {
		o = &CompletionOverrides{}
	}
	if e != nil {
		cc, created, err := s.Materialize(ctx, e, o)
		if err != nil {
			return nil, err
		}
		if created {
			return cc, nil
		}
		applyOverrides(cc, o)
		if o.Score != nil && o.Grade == "" {
			cc.Grade = GradeForScore(cc.Score)
		}
		if err := s.CompletedRepo.Update(ctx, cc); err != nil {
			return nil, fmt.Errorf("update completed course: %w", err)
		}
		return cc, nil
	}

	if strings.TrimSpace(o.Name) == "" {
		return nil, fmt.Errorf("completed course name: %w", util.ErrInvalidPayload)
	}

	cc, err := s.CompletedRepo.FindByContent(ctx, userID, o.Name, o.Issuer)
	if err != nil {
		return nil, err
	}
	if cc != nil {
		applyOverrides(cc, o)
		if o.Score != nil && o.Grade == "" {
			cc.Grade = GradeForScore(cc.Score)
		}
		if err := s.CompletedRepo.Update(ctx, cc); err != nil {
			return nil, fmt.Errorf("update completed course: %w", err)
		}
		return cc, nil
	}

	cc = &model.CompletedCourse{
		UserID:    userID,
		IssueDate: time.Now(),
	}
	applyOverrides(cc, o)
	if cc.Grade == "" {
		cc.Grade = GradeForScore(cc.Score)
	}
	if err := s.CompletedRepo.Create(ctx, cc); err != nil {
		return nil, fmt.Errorf("create completed course: %w", err)
	}
	return cc, nil
}

func (s *CompletionService) ListForUser(ctx context.Context, userID string) ([]model.CompletedCourse, error) {
	return s.CompletedRepo.ListByUser(ctx, userID)
}

func applyOverrides(cc *model.CompletedCourse, o *CompletionOverrides) {
	if o == nil {
		return
	}
	if o.Name != "" {
		cc.Name = o.Name
	}
	if o.Issuer != "" {
		cc.Issuer = o.Issuer
	}
	if o.IssuerID != "" {
		cc.IssuerID = o.IssuerID
	}
	if o.IssueDate != nil {
		cc.IssueDate = *o.IssueDate
	}
	if o.ExpiryDate != nil {
		cc.ExpiryDate = o.ExpiryDate
	}
	if o.Category != "" {
		cc.Category = o.Category
	}
	if o.Level != "" {
		cc.Level = o.Level
	}
	if o.Credits != nil {
		cc.Credits = *o.Credits
	}
	if o.Score != nil {
		cc.Score = *o.Score
	}
	if o.Grade != "" {
		cc.Grade = o.Grade
	}
	if o.Skills != nil {
		cc.Skills = datatypes.NewJSONType(o.Skills)
	}
	if o.VerificationURL != "" {
		cc.VerificationURL = o.VerificationURL
	}
	if o.CertificateURL != "" {
		cc.CertificateURL = o.CertificateURL
	}
	if len(o.Metadata) > 0 {
		meta := cc.Metadata.Data()
		meta.Merge(model.ParseMetadataEntry(o.Metadata))
		cc.Metadata = datatypes.NewJSONType(meta)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
