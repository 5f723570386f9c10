package service

import (
	"context"
	"fmt"
	"partner_hub_backend/internal/model"
	"partner_hub_backend/internal/repository"
	"partner_hub_backend/internal/util"
	"strings"

	"gorm.io/datatypes"
)

type RegisterPartnerSourceRequest struct {
	OwnerID   string   `json:"ownerId" binding:"required"`
	Name      string   `json:"name"`
	Domain    string   `json:"domain" binding:"required"`
	Active    *bool    `json:"active"`
	CourseIDs []string `json:"courseIds"`
}

type PartnerSourceService struct {
	SourceRepo *repository.PartnerSourceRepository
	UserRepo   *repository.UserRepository
}

func NewPartnerSourceService(sourceRepo *repository.PartnerSourceRepository, userRepo *repository.UserRepository) *PartnerSourceService {
	return &PartnerSourceService{SourceRepo: sourceRepo, UserRepo: userRepo}
}

// Register 登记合作方，每个卖家只能有一个
func (s *PartnerSourceService) Register(ctx context.Context, req RegisterPartnerSourceRequest) (*model.PartnerSource, error) {
	domain := strings.TrimRight(strings.TrimSpace(req.Domain), "/")
	if domain == "" {
		return nil, fmt.Errorf("domain is required: %w", util.ErrInvalidPayload)
	}

	owner, err := s.UserRepo.FindByID(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, util.ErrUserNotFound
	}

	courseIDs := make([]string, 0, len(req.CourseIDs))
	seen := make(map[string]bool, len(req.CourseIDs))
	for _, id := range req.CourseIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		courseIDs = append(courseIDs, id)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = owner.Name
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	src := &model.PartnerSource{
		OwnerID:   owner.ID,
		Name:      name,
		Domain:    domain,
		Active:    active,
		CourseIDs: datatypes.NewJSONType(courseIDs),
	}
	if err := s.SourceRepo.Create(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

func (s *PartnerSourceService) List(ctx context.Context) ([]model.PartnerSource, error) {
	return s.SourceRepo.List(ctx)
}
