package repository

import (
	"context"
	"errors"
	"partner_hub_backend/internal/model"
	"partner_hub_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type PartnerSourceRepository struct {
	DB *gorm.DB
}

func NewPartnerSourceRepository(db *gorm.DB) *PartnerSourceRepository {
	return &PartnerSourceRepository{DB: db}
}

func (r *PartnerSourceRepository) Create(ctx context.Context, s *model.PartnerSource) error {
	err := r.DB.WithContext(ctx).Create(s).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.ErrDuplicateRecord
	}
	return err
}

func (r *PartnerSourceRepository) FindByID(ctx context.Context, id string) (*model.PartnerSource, error) {
	var s model.PartnerSource
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrPartnerSourceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PartnerSourceRepository) List(ctx context.Context) ([]model.PartnerSource, error) {
	var list []model.PartnerSource
	err := r.DB.WithContext(ctx).Order("created_at asc").Find(&list).Error
	return list, err
}

func (r *PartnerSourceRepository) ListActive(ctx context.Context) ([]model.PartnerSource, error) {
	var list []model.PartnerSource
	err := r.DB.WithContext(ctx).Where("active = ?", true).Order("created_at asc").Find(&list).Error
	return list, err
}

// RecordSync 记录一次同步结果，synced 累加到 synced_courses
func (r *PartnerSourceRepository) RecordSync(ctx context.Context, id string, at time.Time, status, syncErr string, synced int) error {
	return r.DB.WithContext(ctx).
		Model(&model.PartnerSource{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_sync_at":     at,
			"last_sync_status": status,
			"last_sync_error":  syncErr,
			"synced_courses":   gorm.Expr("synced_courses + ?", synced),
		}).Error
}
