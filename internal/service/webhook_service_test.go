package service

import (
	"context"
	"encoding/json"
	"partner_hub_backend/internal/model"
	"partner_hub_backend/internal/util"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEvent(t *testing.T, body string) *WebhookEvent {
	t.Helper()
	ev, err := ParseWebhookEvent([]byte(body))
	require.NoError(t, err)
	return ev
}

func TestParseWebhookEvent(t *testing.T) {
	_, err := ParseWebhookEvent([]byte(`{not json`))
	assert.Error(t, err)

	_, err = ParseWebhookEvent([]byte(`{"studentId":"s","courseId":"c"}`))
	assert.ErrorIs(t, err, util.ErrInvalidPayload)

	ev, err := ParseWebhookEvent([]byte(`{"eventType":" progress_updated ","studentId":"s","courseId":"c","data":{"progress":{"progressPercent":"oops"}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventProgressUpdated, ev.EventType)
}

func TestWebhook_CourseCompletedKnownPair(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webhookService()
	ctx := context.Background()
	e := env.seedEnrollment(t, "course-1")

	body := `{"eventType":"course_completed","studentId":"` + env.student.ID + `","courseId":"course-1","data":{"score":93}}`
	require.NoError(t, svc.Handle(ctx, mustEvent(t, body)))

	stored := env.reload(t, e.ID)
	assert.Equal(t, model.EnrollmentCompleted, stored.Status)
	assert.Equal(t, 100, stored.ProgressPercent)
	assert.NotNil(t, stored.CompletedAt)
	assert.InDelta(t, 93, stored.TotalPoints, 1e-9)

	n, err := env.completedRepo.CountByEnrollmentID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// 重复投递不会产生第二条记录，也不会再次通知
	require.NoError(t, svc.Handle(ctx, mustEvent(t, body)))
	n, err = env.completedRepo.CountByEnrollmentID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []NotificationKind{NotifyCourseCompleted}, env.notifier.kinds())
}

func TestWebhook_CourseCompletedByEnrollmentID(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webhookService()
	ctx := context.Background()
	e := env.seedEnrollment(t, "course-1")

	body := `{"eventType":"course_completed","studentId":"` + env.student.ID + `","courseId":"partner-side-id","enrollmentId":"` + e.ID + `",
		"completedCourse":{"name":"Partner Course","issuer":"Partner U","score":88,"skills":["go"]}}`
	require.NoError(t, svc.Handle(ctx, mustEvent(t, body)))

	assert.Equal(t, model.EnrollmentCompleted, env.reload(t, e.ID).Status)

	cc, err := env.completedRepo.FindByEnrollmentID(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, cc)
	assert.Equal(t, "Partner Course", cc.Name)
	assert.Equal(t, "Partner U", cc.Issuer)
	assert.Equal(t, "B+", cc.Grade)
	assert.Equal(t, []string{"go"}, cc.Skills.Data())

	require.NoError(t, svc.Handle(ctx, mustEvent(t, body)))
	list, err := env.completedRepo.ListByUser(ctx, env.student.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestWebhook_CourseCompletedInvalidEnrollmentID(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webhookService()
	ctx := context.Background()
	e := env.seedEnrollment(t, "course-1")

	body := `{"eventType":"course_completed","studentId":"` + env.student.ID + `","courseId":"other","enrollmentId":"not-a-uuid"}`
	require.NoError(t, svc.Handle(ctx, mustEvent(t, body)))

	assert.Equal(t, model.EnrollmentInProgress, env.reload(t, e.ID).Status)
	list, err := env.completedRepo.ListByUser(ctx, env.student.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWebhook_CourseCompletedUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webhookService()
	ctx := context.Background()
	ghost := model.GenerateUUID()

	body := `{"eventType":"course_completed","studentId":"` + ghost + `","courseId":"course-1","completedCourse":{"name":"X","issuer":"Y"}}`
	require.NoError(t, svc.Handle(ctx, mustEvent(t, body)))

	list, err := env.completedRepo.ListByUser(ctx, ghost)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWebhook_CourseCompletedPayloadOnly(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webhookService()
	ctx := context.Background()

	body := `{"eventType":"course_completed","studentId":"` + env.student.ID + `","courseId":"external","completedCourse":{"name":"External","issuer":"Partner U","score":61}}`
	require.NoError(t, svc.Handle(ctx, mustEvent(t, body)))
	require.NoError(t, svc.Handle(ctx, mustEvent(t, strings.Replace(body, `"score":61`, `"score":77`, 1))))

	list, err := env.completedRepo.ListByUser(ctx, env.student.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].EnrollmentID)
	assert.Equal(t, "C+", list[0].Grade)
}

func TestWebhook_ProgressUpdated(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webhookService()
	ctx := context.Background()
	e := env.seedEnrollment(t, "course-1")

	body := `{"eventType":"progress_updated","studentId":"` + env.student.ID + `","courseId":"course-1",
		"data":{"progress":{"progressPercent":45,"timeSpentSeconds":3600,"lastAccessed":"2024-05-01T08:00:00Z"}}}`
	require.NoError(t, svc.Handle(ctx, mustEvent(t, body)))

	stored := env.reload(t, e.ID)
	assert.Equal(t, 45, stored.ProgressPercent)
	assert.Equal(t, int64(3600), stored.TimeSpentSeconds)
	require.NotNil(t, stored.LastAccessed)
	assert.True(t, stored.LastAccessed.Equal(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)))
	require.NotNil(t, stored.Metadata.Data().Progress)

	// 缺省字段沿用原值
	partial := `{"eventType":"progress_updated","studentId":"` + env.student.ID + `","courseId":"course-1","data":{"progress":{"timeSpentSeconds":4000}}}`
	require.NoError(t, svc.Handle(ctx, mustEvent(t, partial)))
	stored = env.reload(t, e.ID)
	assert.Equal(t, 45, stored.ProgressPercent)
	assert.Equal(t, int64(4000), stored.TimeSpentSeconds)
	assert.Equal(t, model.EnrollmentInProgress, stored.Status)
}

func TestWebhook_ProgressUpdatedFractionalPercent(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webhookService()
	ctx := context.Background()
	e := env.seedEnrollment(t, "course-1")

	tests := []struct {
		percent string
		want    int
	}{
		{"45.6", 46},
		{"87.5", 88},
		{"12.4", 12},
		{"100.4", 100},
		{"-0.7", 0},
		{"150", 100},
	}
	for _, tt := range tests {
		body := `{"eventType":"progress_updated","studentId":"` + env.student.ID + `","courseId":"course-1","data":{"progress":{"progressPercent":` + tt.percent + `}}}`
		require.NoError(t, svc.Handle(ctx, mustEvent(t, body)), tt.percent)
		assert.Equal(t, tt.want, env.reload(t, e.ID).ProgressPercent, tt.percent)
	}

	stored := env.reload(t, e.ID)
	progress := stored.Metadata.Data().Progress
	require.NotNil(t, progress)
	require.NotNil(t, progress.ProgressPercent)
	assert.InDelta(t, 150, *progress.ProgressPercent, 1e-9)
	assert.Equal(t, model.EnrollmentInProgress, stored.Status)
}

func TestWebhook_ProgressUpdatedUnknownPairIsNoop(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webhookService()
	ctx := context.Background()
	e := env.seedEnrollment(t, "course-1")

	body := `{"eventType":"progress_updated","studentId":"` + env.student.ID + `","courseId":"unknown-course","data":{"progress":{"progressPercent":99}}}`
	require.NoError(t, svc.Handle(ctx, mustEvent(t, body)))

	stored := env.reload(t, e.ID)
	assert.Zero(t, stored.ProgressPercent)
	assert.Equal(t, 1, stored.Version)
}

func TestWebhook_ProgressUpdatedOnCompletedKeepsScores(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webhookService()
	ctx := context.Background()
	e := completeForTest(t, env, env.seedEnrollment(t, "course-1"), 50)

	body := `{"eventType":"progress_updated","studentId":"` + env.student.ID + `","courseId":"course-1","data":{"progress":{"progressPercent":10,"timeSpentSeconds":99}}}`
	require.NoError(t, svc.Handle(ctx, mustEvent(t, body)))

	stored := env.reload(t, e.ID)
	assert.Equal(t, 100, stored.ProgressPercent)
	assert.Equal(t, model.EnrollmentCompleted, stored.Status)
	assert.Equal(t, int64(99), stored.TimeSpentSeconds)
}

func TestWebhook_MalformedEventDataIsIsolated(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webhookService()
	ctx := context.Background()
	e := env.seedEnrollment(t, "course-1")

	body := `{"eventType":"progress_updated","studentId":"` + env.student.ID + `","courseId":"course-1","data":{"progress":{"progressPercent":"high"}}}`
	err := svc.Handle(ctx, mustEvent(t, body))
	assert.Error(t, err)
	assert.Equal(t, 1, env.reload(t, e.ID).Version)
}

func TestWebhook_CertificateIssued(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webhookService()
	ctx := context.Background()
	e := env.seedEnrollment(t, "course-1")

	body := `{"eventType":"certificate_issued","studentId":"` + env.student.ID + `","courseId":"course-1",
		"data":{"certificate":{"certificateId":"cert-42","certificateUrl":"https://partner.example.com/cert/42","verificationUrl":"https://partner.example.com/verify/42"}}}`
	require.NoError(t, svc.Handle(ctx, mustEvent(t, body)))

	stored := env.reload(t, e.ID)
	assert.Equal(t, model.EnrollmentCompleted, stored.Status)
	assert.Equal(t, 100, stored.ProgressPercent)

	cert := stored.Metadata.Data().Certificate
	require.NotNil(t, cert)
	assert.Equal(t, "cert-42", cert.CertificateID)
	assert.Equal(t, "/uploads/certificates/"+e.ID+"/cert-42.json", cert.ArchiveURL)

	cc, err := env.completedRepo.FindByEnrollmentID(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, cc)
	assert.Equal(t, "https://partner.example.com/verify/42", cc.VerificationURL)

	assert.Equal(t, []NotificationKind{NotifyCertificateIssued}, env.notifier.kinds())
}

func TestWebhook_CertificateReissueReplacesArchive(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webhookService()
	ctx := context.Background()
	e := env.seedEnrollment(t, "course-1")
	root := env.storage.Provider.(*LocalStorageProvider).Config.LocalPath

	issue := func(certID string) {
		body := `{"eventType":"certificate_issued","studentId":"` + env.student.ID + `","courseId":"course-1",
			"data":{"certificate":{"certificateId":"` + certID + `","verificationUrl":"https://partner.example.com/verify/` + certID + `"}}}`
		require.NoError(t, svc.Handle(ctx, mustEvent(t, body)))
	}
	archived := func(certID string) string {
		return filepath.Join(root, "certificates", e.ID, certID+".json")
	}

	issue("cert-1")
	require.FileExists(t, archived("cert-1"))

	// 同一证书重复投递覆盖原文件，不删除
	issue("cert-1")
	require.FileExists(t, archived("cert-1"))

	issue("cert-2")
	assert.FileExists(t, archived("cert-2"))
	assert.NoFileExists(t, archived("cert-1"))

	cert := env.reload(t, e.ID).Metadata.Data().Certificate
	require.NotNil(t, cert)
	assert.Equal(t, "cert-2", cert.CertificateID)
	assert.Equal(t, "certificates/"+e.ID+"/cert-2.json", cert.ArchiveKey)

	cc, err := env.completedRepo.FindByEnrollmentID(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, cc)
	assert.Equal(t, "/uploads/certificates/"+e.ID+"/cert-2.json", cc.CertificateURL)
	assert.Equal(t, "https://partner.example.com/verify/cert-2", cc.VerificationURL)

	n, err := env.completedRepo.CountByEnrollmentID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestWebhook_UnknownEventType(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webhookService()

	ev := &WebhookEvent{EventType: "refund_requested", StudentID: env.student.ID, CourseID: "course-1", Data: json.RawMessage(`{}`)}
	assert.NoError(t, svc.Handle(context.Background(), ev))
	assert.Empty(t, env.notifier.kinds())
}

type panicNotifier struct{}

func (panicNotifier) Notify(ctx context.Context, n Notification) { panic("notifier exploded") }

func TestWebhook_PanicIsRecovered(t *testing.T) {
	env := newTestEnv(t)
	svc := env.webhookService()
	svc.Notifier = panicNotifier{}
	env.seedEnrollment(t, "course-1")

	body := `{"eventType":"certificate_issued","studentId":"` + env.student.ID + `","courseId":"course-1","data":{"certificateId":"c-1"}}`
	var err error
	assert.NotPanics(t, func() {
		err = svc.Handle(context.Background(), mustEvent(t, body))
	})
	assert.ErrorContains(t, err, "panic")
}
