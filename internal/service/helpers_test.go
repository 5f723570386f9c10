package service

import (
	"context"
	"partner_hub_backend/internal/config"
	"partner_hub_backend/internal/model"
	"partner_hub_backend/internal/repository"
	"partner_hub_backend/internal/testutil"
	"sync"
	"testing"

	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, msg Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) kinds() []NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NotificationKind, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Kind)
	}
	return out
}

type testEnv struct {
	db             *gorm.DB
	enrollmentRepo *repository.EnrollmentRepository
	completedRepo  *repository.CompletedCourseRepository
	sourceRepo     *repository.PartnerSourceRepository
	userRepo       *repository.UserRepository
	locker         *LocalEnrollmentLocker
	notifier       *recordingNotifier
	completion     *CompletionService
	storage        *StorageService

	student *model.User
	seller  *model.User
	admin   *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.DB(t)

	env := &testEnv{
		db:             db,
		enrollmentRepo: repository.NewEnrollmentRepository(db),
		completedRepo:  repository.NewCompletedCourseRepository(db),
		sourceRepo:     repository.NewPartnerSourceRepository(db),
		userRepo:       repository.NewUserRepository(db),
		locker:         NewLocalEnrollmentLocker(),
		notifier:       &recordingNotifier{},
	}
	env.completion = NewCompletionService(env.completedRepo, env.userRepo)
	env.storage = NewStorageService(&config.Config{
		Storage: config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
	})

	env.student = testutil.SeedUser(t, db, model.Student, "Alice Student")
	env.seller = testutil.SeedUser(t, db, model.Seller, "Bob Seller")
	env.admin = testutil.SeedUser(t, db, model.Admin, "Carol Admin")
	return env
}

func (env *testEnv) enrollmentService() *EnrollmentService {
	return NewEnrollmentService(env.enrollmentRepo, env.userRepo, env.completion, env.locker, env.notifier)
}

func (env *testEnv) webhookService() *WebhookService {
	return NewWebhookService(env.enrollmentRepo, env.userRepo, env.completion, env.storage, env.locker, env.notifier)
}

func (env *testEnv) sellerActor() Actor {
	return Actor{UserID: env.seller.ID, Role: model.Seller}
}

func (env *testEnv) adminActor() Actor {
	return Actor{UserID: env.admin.ID, Role: model.Admin}
}

func (env *testEnv) seedEnrollment(t *testing.T, courseID string) *model.Enrollment {
	t.Helper()
	return testutil.SeedEnrollment(t, env.db, env.student, env.seller, courseID,
		"https://partner.example.com/courses/"+courseID+"?student="+env.student.ID)
}

func (env *testEnv) reload(t *testing.T, id string) *model.Enrollment {
	t.Helper()
	e, err := env.enrollmentRepo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	return e
}

func floatPtr(v float64) *float64 { return &v }
