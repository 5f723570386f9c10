package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"partner_hub_backend/internal/model"
	"partner_hub_backend/internal/testutil"
	"partner_hub_backend/internal/util"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePartner 按报名 ID 返回预设的远端状态
type fakePartner struct {
	mu       sync.Mutex
	statuses map[string]string
	slow     map[string]bool
	failing  map[string]int
	hits     []string
	release  chan struct{}
}

func newFakePartner(t *testing.T) (*fakePartner, *httptest.Server) {
	p := &fakePartner{
		statuses: map[string]string{},
		slow:     map[string]bool{},
		failing:  map[string]int{},
		release:  make(chan struct{}),
	}
	srv := httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(func() {
		close(p.release)
		srv.Close()
	})
	return p, srv
}

func (p *fakePartner) serve(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/enrollment/")

	p.mu.Lock()
	p.hits = append(p.hits, id)
	status, slow, code := p.statuses[id], p.slow[id], p.failing[id]
	p.mu.Unlock()

	if slow {
		select {
		case <-p.release:
		case <-r.Context().Done():
		}
		return
	}
	if code != 0 {
		w.WriteHeader(code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"enrollment": map[string]interface{}{
				"status":           status,
				"completedAt":      "2024-07-01T09:30:00Z",
				"progressPercent":  100,
				"totalPoints":      42.5,
				"timeSpentSeconds": 7200,
				"lastAccessed":     "2024-07-01T09:00:00Z",
				"metadata":         map[string]interface{}{"certificateId": "remote-cert"},
			},
		},
	})
}

func (p *fakePartner) hitCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.hits)
}

func (env *testEnv) syncService(client PartnerClient) *PartnerSyncService {
	return NewPartnerSyncService(env.sourceRepo, env.enrollmentRepo, env.completion, client, env.locker, env.notifier)
}

func TestPartnerSync_CompletesAndSkips(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	partner, srv := newFakePartner(t)

	done := env.seedEnrollment(t, "course-a")
	pending := env.seedEnrollment(t, "course-a")
	unrelated := env.seedEnrollment(t, "course-z")
	partner.statuses[done.ID] = "completed"
	partner.statuses[pending.ID] = "in_progress"
	partner.statuses[unrelated.ID] = "completed"

	src := testutil.SeedPartnerSource(t, env.db, env.seller, srv.URL, true, "course-a")

	svc := env.syncService(NewPartnerClient(2 * time.Second))
	report, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Completed)
	assert.Zero(t, report.Failed)

	completed := env.reload(t, done.ID)
	assert.Equal(t, model.EnrollmentCompleted, completed.Status)
	assert.Equal(t, 100, completed.ProgressPercent)
	assert.InDelta(t, 42.5, completed.TotalPoints, 1e-9)
	assert.Equal(t, int64(7200), completed.TimeSpentSeconds)
	require.NotNil(t, completed.CompletedAt)
	assert.True(t, completed.CompletedAt.Equal(time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)))
	meta := completed.Metadata.Data()
	require.NotNil(t, meta.Sync)
	assert.Equal(t, "polling", meta.Sync.Channel)
	require.NotNil(t, meta.Certificate)
	assert.Equal(t, "remote-cert", meta.Certificate.CertificateID)

	untouched := env.reload(t, pending.ID)
	assert.Equal(t, model.EnrollmentInProgress, untouched.Status)
	assert.Equal(t, 1, untouched.Version)

	assert.Equal(t, model.EnrollmentInProgress, env.reload(t, unrelated.ID).Status)

	n, err := env.completedRepo.CountByEnrollmentID(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := env.sourceRepo.FindByID(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusSuccess, stored.LastSyncStatus)
	assert.NotNil(t, stored.LastSyncAt)
	assert.Equal(t, int64(1), stored.SyncedCourses)

	// 第二次同步时已完成的报名不再是候选
	report, err = svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Zero(t, report.Completed)
	assert.Equal(t, []NotificationKind{NotifyCourseCompleted}, env.notifier.kinds())
}

func TestPartnerSync_TimeoutDoesNotAbortTick(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	partner, srv := newFakePartner(t)

	slow := env.seedEnrollment(t, "course-a")
	broken := env.seedEnrollment(t, "course-a")
	after := env.seedEnrollment(t, "course-a")
	partner.slow[slow.ID] = true
	partner.failing[broken.ID] = http.StatusBadGateway
	partner.statuses[after.ID] = "completed"

	src := testutil.SeedPartnerSource(t, env.db, env.seller, srv.URL, true, "course-a")

	svc := env.syncService(NewPartnerClient(100 * time.Millisecond))
	report, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 3, partner.hitCount())

	stalled := env.reload(t, slow.ID)
	assert.Equal(t, model.EnrollmentInProgress, stalled.Status)
	assert.Equal(t, 1, stalled.Version)
	assert.Equal(t, model.EnrollmentInProgress, env.reload(t, broken.ID).Status)
	assert.Equal(t, model.EnrollmentCompleted, env.reload(t, after.ID).Status)

	stored, err := env.sourceRepo.FindByID(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusPartial, stored.LastSyncStatus)
	assert.NotEmpty(t, stored.LastSyncError)
}

func TestPartnerSync_SourceFailureDoesNotBlockOthers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	partner, srv := newFakePartner(t)

	otherSeller := testutil.SeedUser(t, env.db, model.Seller, "Dana Seller")
	e := env.seedEnrollment(t, "course-b")
	partner.statuses[e.ID] = "completed"

	deadEnrollment := testutil.SeedEnrollment(t, env.db, env.student, otherSeller, "course-dead",
		"https://dead-partner.example.com/courses/course-dead?student="+env.student.ID)
	dead := testutil.SeedPartnerSource(t, env.db, otherSeller, "http://127.0.0.1:1", true, "course-dead")
	live := testutil.SeedPartnerSource(t, env.db, env.seller, srv.URL, true, "course-b")
	inactiveOwner := testutil.SeedUser(t, env.db, model.Seller, "Eve Seller")
	testutil.SeedPartnerSource(t, env.db, inactiveOwner, srv.URL, false, "course-dead")

	svc := env.syncService(NewPartnerClient(time.Second))
	report, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Sources, 2)

	assert.Equal(t, model.EnrollmentCompleted, env.reload(t, e.ID).Status)
	assert.Equal(t, model.EnrollmentInProgress, env.reload(t, deadEnrollment.ID).Status)

	deadStored, err := env.sourceRepo.FindByID(ctx, dead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusFailed, deadStored.LastSyncStatus)

	liveStored, err := env.sourceRepo.FindByID(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusSuccess, liveStored.LastSyncStatus)
}

func TestPartnerSync_OnlyPollsOwnersEnrollments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	partner, srv := newFakePartner(t)

	otherSeller := testutil.SeedUser(t, env.db, model.Seller, "Frank Seller")
	foreign := testutil.SeedEnrollment(t, env.db, env.student, otherSeller, "xyz",
		"https://other-partner.example.com/course/xyz?student="+env.student.ID)
	foreignSameCourse := testutil.SeedEnrollment(t, env.db, env.student, otherSeller, "a",
		"https://other-partner.example.com/course/a?student="+env.student.ID)
	partner.statuses[foreign.ID] = "completed"
	partner.statuses[foreignSameCourse.ID] = "completed"

	own := env.seedEnrollment(t, "a")
	legacy := testutil.SeedEnrollment(t, env.db, env.student, env.seller, "legacy-id",
		"https://partner.example.com/learn/a/lesson-1?student="+env.student.ID)
	unrelated := testutil.SeedEnrollment(t, env.db, env.student, env.seller, "b",
		"https://partner.example.com/courses/ba?student="+env.student.ID)
	partner.statuses[own.ID] = "completed"
	partner.statuses[legacy.ID] = "in_progress"
	partner.statuses[unrelated.ID] = "completed"

	testutil.SeedPartnerSource(t, env.db, env.seller, srv.URL, true, "a")

	report, err := env.syncService(NewPartnerClient(2 * time.Second)).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Completed)
	assert.Zero(t, report.Failed)

	assert.ElementsMatch(t, []string{own.ID, legacy.ID}, partner.hits)
	assert.Equal(t, model.EnrollmentCompleted, env.reload(t, own.ID).Status)
	assert.Equal(t, model.EnrollmentInProgress, env.reload(t, foreign.ID).Status)
	assert.Equal(t, model.EnrollmentInProgress, env.reload(t, foreignSameCourse.ID).Status)
	assert.Equal(t, model.EnrollmentInProgress, env.reload(t, unrelated.ID).Status)
}

type blockingClient struct {
	entered chan struct{}
	release chan struct{}
}

func (c *blockingClient) FetchEnrollmentStatus(ctx context.Context, domain, enrollmentID string) (*PartnerEnrollmentStatus, error) {
	c.entered <- struct{}{}
	<-c.release
	return &PartnerEnrollmentStatus{Status: "in_progress"}, nil
}

func TestPartnerSync_OverlappingRunIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedEnrollment(t, "course-a")
	testutil.SeedPartnerSource(t, env.db, env.seller, "partner.example.com", true, "course-a")

	client := &blockingClient{entered: make(chan struct{}, 1), release: make(chan struct{})}
	svc := env.syncService(client)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.RunOnce(ctx)
		errCh <- err
	}()

	<-client.entered
	assert.True(t, svc.Running())
	_, err := svc.RunOnce(ctx)
	assert.ErrorIs(t, err, util.ErrSyncInProgress)

	close(client.release)
	require.NoError(t, <-errCh)
	assert.False(t, svc.Running())
}
