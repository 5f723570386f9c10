package service

import (
	"context"
	"fmt"
	"partner_hub_backend/internal/model"
	"partner_hub_backend/internal/repository"
	"partner_hub_backend/internal/util"
	"partner_hub_backend/pkg/logger"
	"partner_hub_backend/pkg/monitoring"
	"partner_hub_backend/pkg/tracing"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	remoteStatusCompleted = "completed"
	syncChannelPolling    = "polling"
)

// SyncReport 一次同步的统计
type SyncReport struct {
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
	Sources    []SourceSyncResult `json:"sources"`
	Checked    int                `json:"checked"`
	Completed  int                `json:"completed"`
	Failed     int                `json:"failed"`
}

type SourceSyncResult struct {
	SourceID  string `json:"sourceId"`
	Domain    string `json:"domain"`
	Status    string `json:"status"`
	Checked   int    `json:"checked"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

type PartnerSyncService struct {
	SourceRepo     *repository.PartnerSourceRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Completion     *CompletionService
	Client         PartnerClient
	Locker         EnrollmentLocker
	Notifier       Notifier
	running        atomic.Bool
	now            func() time.Time
}

func NewPartnerSyncService(
	sourceRepo *repository.PartnerSourceRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	completion *CompletionService,
	client PartnerClient,
	locker EnrollmentLocker,
	notifier Notifier,
) *PartnerSyncService {
	return &PartnerSyncService{
		SourceRepo:     sourceRepo,
		EnrollmentRepo: enrollmentRepo,
		Completion:     completion,
		Client:         client,
		Locker:         locker,
		Notifier:       notifier,
		now:            time.Now,
	}
}

// Running 是否有同步正在执行
func (s *PartnerSyncService) Running() bool {
	return s.running.Load()
}

// RunOnce 执行一次完整同步。上一次尚未结束时返回 util.ErrSyncInProgress，
// 读取合作方列表失败时整次同步中止
func (s *PartnerSyncService) RunOnce(ctx context.Context) (*SyncReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, util.ErrSyncInProgress
	}
	defer s.running.Store(false)

	ctx, span := tracing.Tracer.Start(ctx, "partner.sync")
	defer span.End()

	report := &SyncReport{StartedAt: s.now()}
	defer func() {
		monitoring.SyncDuration.Observe(time.Since(report.StartedAt).Seconds())
	}()

	sources, err := s.SourceRepo.ListActive(ctx)
	if err != nil {
		monitoring.SyncRuns.WithLabelValues("aborted").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("list partner sources: %w", err)
	}

	for i := range sources {
		if ctx.Err() != nil {
			break
		}
		result := s.syncSource(ctx, &sources[i])
		report.Sources = append(report.Sources, result)
		report.Checked += result.Checked
		report.Completed += result.Completed
		report.Failed += result.Failed
	}
	report.FinishedAt = s.now()

	span.SetAttributes(
		attribute.Int("sync.sources", len(sources)),
		attribute.Int("sync.checked", report.Checked),
		attribute.Int("sync.completed", report.Completed),
		attribute.Int("sync.failed", report.Failed),
	)
	monitoring.SyncRuns.WithLabelValues("finished").Inc()
	logger.Log.Info("Partner sync finished",
		zap.Int("sources", len(sources)),
		zap.Int("checked", report.Checked),
		zap.Int("completed", report.Completed),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, ctx.Err()
}

// syncSource 同步单个合作方，失败只记录在该合作方上
func (s *PartnerSyncService) syncSource(ctx context.Context, src *model.PartnerSource) (result SourceSyncResult) {
	result = SourceSyncResult{SourceID: src.ID, Domain: src.Domain}
	var lastErr error

	defer func() {
		if r := recover(); r != nil {
			lastErr = fmt.Errorf("panic: %v", r)
			result.Failed++
		}

		result.Status = sourceSyncStatus(result, lastErr)
		if lastErr != nil {
			result.Error = lastErr.Error()
			logger.Log.Warn("Partner source sync had failures",
				zap.String("sourceId", src.ID),
				zap.String("domain", src.Domain),
				zap.Int("failed", result.Failed),
				zap.Error(lastErr))
		}

		if err := s.SourceRepo.RecordSync(ctx, src.ID, s.now(), result.Status, result.Error, result.Completed); err != nil {
			logger.Log.Error("Failed to record partner sync result",
				zap.String("sourceId", src.ID), zap.Error(err))
		}
	}()

	candidates, err := s.EnrollmentRepo.ListSyncCandidates(ctx, src.OwnerID, src.CourseIDs.Data())
	if err != nil {
		lastErr = fmt.Errorf("list sync candidates: %w", err)
		result.Failed++
		return result
	}

	for i := range candidates {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		e := &candidates[i]
		result.Checked++

		completed, err := s.syncEnrollment(ctx, src, e)
		if err != nil {
			lastErr = err
			result.Failed++
			logger.Log.Warn("Partner enrollment sync failed",
				zap.String("sourceId", src.ID),
				zap.String("enrollmentId", e.ID),
				zap.Error(err))
			continue
		}
		if completed {
			result.Completed++
		}
	}
	return result
}

func sourceSyncStatus(result SourceSyncResult, lastErr error) string {
	switch {
	case lastErr == nil && result.Failed == 0:
		return model.SyncStatusSuccess
	case result.Checked > result.Failed:
		return model.SyncStatusPartial
	default:
		return model.SyncStatusFailed
	}
}

// syncEnrollment 远端报告已完成且本地未完成时执行完成流程，返回是否发生了状态变化
func (s *PartnerSyncService) syncEnrollment(ctx context.Context, src *model.PartnerSource, candidate *model.Enrollment) (bool, error) {
	remote, err := s.Client.FetchEnrollmentStatus(ctx, src.Domain, candidate.ID)
	if err != nil {
		return false, err
	}
	if remote.Status != remoteStatusCompleted || candidate.IsCompleted() {
		return false, nil
	}

	syncedAt := s.now()
	e, changed, err := updateLocked(ctx, s.Locker, s.EnrollmentRepo, candidate.ID, func(e *model.Enrollment) (bool, error) {
		if e.IsCompleted() {
			return false, nil
		}
		applyRemoteStatus(e, remote, syncedAt)
		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("complete enrollment: %w", err)
	}
	if !changed {
		return false, nil
	}

	if _, _, err := s.Completion.Materialize(ctx, e, nil); err != nil {
		return true, fmt.Errorf("materialize completed course: %w", err)
	}

	monitoring.EnrollmentsCompleted.WithLabelValues(syncChannelPolling).Inc()
	logger.Log.Info("Enrollment completed by partner sync",
		zap.String("enrollmentId", e.ID),
		zap.String("sourceId", src.ID))
	s.Notifier.Notify(ctx, Notification{
		Kind:         NotifyCourseCompleted,
		StudentID:    e.StudentID,
		EnrollmentID: e.ID,
		CourseTitle:  e.CourseTitle,
	})
	return true, nil
}

func applyRemoteStatus(e *model.Enrollment, remote *PartnerEnrollmentStatus, syncedAt time.Time) {
	if remote.ProgressPercent != nil {
		e.ProgressPercent = clampPercent(*remote.ProgressPercent)
	}
	if remote.TotalPoints != nil {
		e.TotalPoints = *remote.TotalPoints
	}
	if remote.TimeSpentSeconds != nil {
		e.TimeSpentSeconds = *remote.TimeSpentSeconds
	}
	if remote.LastAccessed != nil {
		e.LastAccessed = remote.LastAccessed
	}
	if remote.CompletedAt != nil {
		e.CompletedAt = remote.CompletedAt
	}
	markCompleted(e, syncedAt)

	meta := e.Metadata.Data()
	if len(remote.Metadata) > 0 {
		meta.Merge(model.ParseMetadataEntry(remote.Metadata))
	}
	meta.Merge(model.MetadataEntry{
		Kind: model.MetadataSync,
		Sync: &model.SyncPayload{
			Channel:      syncChannelPolling,
			SyncedAt:     syncedAt,
			RemoteStatus: remote.Status,
		},
	})
	e.Metadata = datatypes.NewJSONType(meta)
}
