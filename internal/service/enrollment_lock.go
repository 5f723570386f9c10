package service

import (
	"context"
	"errors"
	"fmt"
	"partner_hub_backend/internal/model"
	"partner_hub_backend/internal/repository"
	"partner_hub_backend/pkg/logger"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const enrollmentLockPrefix = "partner_hub:lock:enrollment:"

// EnrollmentLocker 保证同一报名同一时刻只有一个写入方
type EnrollmentLocker interface {
	Lock(ctx context.Context, enrollmentID string) (unlock func(), err error)
}

// LocalEnrollmentLocker 进程内按报名 ID 加锁
type LocalEnrollmentLocker struct {
	mu      sync.Mutex
	entries map[string]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalEnrollmentLocker() *LocalEnrollmentLocker {
	return &LocalEnrollmentLocker{entries: make(map[string]*localLock)}
}

func (l *LocalEnrollmentLocker) Lock(ctx context.Context, enrollmentID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[enrollmentID]
	if !ok {
		entry = &localLock{ch: make(chan struct{}, 1)}
		l.entries[enrollmentID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(enrollmentID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			l.release(enrollmentID, entry)
		})
	}, nil
}

func (l *LocalEnrollmentLocker) release(enrollmentID string, entry *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, enrollmentID)
	}
}

// 只删除自己持有的锁
var redisUnlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisEnrollmentLocker 基于 SETNX + TTL 的分布式锁，多实例部署时使用
type RedisEnrollmentLocker struct {
	Client        *redis.Client
	TTL           time.Duration
	RetryInterval time.Duration
}

func NewRedisEnrollmentLocker(client *redis.Client, ttl time.Duration) *RedisEnrollmentLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisEnrollmentLocker{
		Client:        client,
		TTL:           ttl,
		RetryInterval: 50 * time.Millisecond,
	}
}

func (l *RedisEnrollmentLocker) Lock(ctx context.Context, enrollmentID string) (func(), error) {
	key := enrollmentLockPrefix + enrollmentID
	token := uuid.New().String()

	for {
		ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire enrollment lock: %w", err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// 调用方的 ctx 可能已取消，释放锁使用独立的超时
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			err := redisUnlockScript.Run(releaseCtx, l.Client, []string{key}, token).Err()
			if err != nil && !errors.Is(err, redis.Nil) {
				logger.Log.Warn("Failed to release enrollment lock",
					zap.String("enrollmentId", enrollmentID), zap.Error(err))
			}
		})
	}, nil
}

// updateLocked 持有报名锁，在事务内重新读取报名并交给 fn 修改。
// fn 返回 false 时不写回
func updateLocked(ctx context.Context, locker EnrollmentLocker, repo *repository.EnrollmentRepository, id string, fn func(e *model.Enrollment) (bool, error)) (*model.Enrollment, bool, error) {
	unlock, err := locker.Lock(ctx, id)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	var (
		result  *model.Enrollment
		changed bool
	)
	err = repo.Transaction(ctx, func(tx *repository.EnrollmentRepository) error {
		e, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		result = e

		changed, err = fn(e)
		if err != nil || !changed {
			return err
		}
		return tx.Update(ctx, e)
	})
	if err != nil {
		return nil, false, err
	}
	return result, changed, nil
}
