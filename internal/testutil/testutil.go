// Package testutil 提供测试用的内存数据库与数据构造函数
package testutil

import (
	"context"
	"fmt"
	"partner_hub_backend/internal/model"
	"partner_hub_backend/pkg/database"
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DB 为每个测试创建独立的内存 SQLite 数据库并完成迁移
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	name := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, tb.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("test db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func SeedUser(tb testing.TB, db *gorm.DB, role model.UserRole, name string) *model.User {
	tb.Helper()
	u := &model.User{
		Name:  name,
		Email: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:  role,
	}
	if err := db.WithContext(context.Background()).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedEnrollment(tb testing.TB, db *gorm.DB, student, seller *model.User, courseID, accessLink string) *model.Enrollment {
	tb.Helper()
	e := &model.Enrollment{
		StudentID:   student.ID,
		CourseID:    courseID,
		PurchaseID:  model.GenerateUUID(),
		SellerID:    seller.ID,
		CourseTitle: "Course " + courseID,
		AccessLink:  accessLink,
		Status:      model.EnrollmentInProgress,
		Version:     1,
	}
	if err := db.WithContext(context.Background()).Create(e).Error; err != nil {
		tb.Fatalf("seed enrollment: %v", err)
	}
	return e
}

func SeedPartnerSource(tb testing.TB, db *gorm.DB, owner *model.User, domain string, active bool, courseIDs ...string) *model.PartnerSource {
	tb.Helper()
	s := &model.PartnerSource{
		OwnerID: owner.ID,
		Name:    owner.Name,
		Domain:  domain,
		Active:  active,
	}
	s.CourseIDs = datatypes.NewJSONType(courseIDs)
	if err := db.WithContext(context.Background()).Create(s).Error; err != nil {
		tb.Fatalf("seed partner source: %v", err)
	}
	return s
}
