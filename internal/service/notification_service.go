package service

import (
	"context"
	"fmt"
	"partner_hub_backend/internal/config"
	"partner_hub_backend/internal/repository"
	"partner_hub_backend/pkg/logger"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type NotificationKind string

const (
	NotifyCourseCompleted   NotificationKind = "course_completed"
	NotifyCertificateIssued NotificationKind = "certificate_issued"
)

// Notification 通知内容，投递由外部服务负责
type Notification struct {
	Kind           NotificationKind
	StudentID      string
	EnrollmentID   string
	CourseTitle    string
	CertificateURL string
}

// Notifier 通知投递，调用方不关心结果
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NoopNotifier 未配置邮件服务时使用
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, n Notification) {
	logger.Log.Debug("Notification skipped",
		zap.String("kind", string(n.Kind)),
		zap.String("enrollmentId", n.EnrollmentID))
}

// SendGridNotifier 通过 SendGrid 发送邮件，异步投递
type SendGridNotifier struct {
	Client   *sendgrid.Client
	From     *mail.Email
	UserRepo *repository.UserRepository
	Timeout  time.Duration
}

func NewNotifier(cfg *config.NotificationConfig, userRepo *repository.UserRepository) Notifier {
	if cfg.SendGridAPIKey == "" || cfg.FromEmail == "" {
		return NoopNotifier{}
	}
	return &SendGridNotifier{
		Client:   sendgrid.NewSendClient(cfg.SendGridAPIKey),
		From:     mail.NewEmail(cfg.FromName, cfg.FromEmail),
		UserRepo: userRepo,
		Timeout:  10 * time.Second,
	}
}

func (n *SendGridNotifier) Notify(ctx context.Context, msg Notification) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.Error("Notification panic", zap.Any("panic", r))
			}
		}()

		sendCtx, cancel := context.WithTimeout(context.Background(), n.Timeout)
		defer cancel()

		if err := n.send(sendCtx, msg); err != nil {
			logger.Log.Warn("Failed to send notification",
				zap.String("kind", string(msg.Kind)),
				zap.String("enrollmentId", msg.EnrollmentID),
				zap.Error(err))
		}
	}()
}

func (n *SendGridNotifier) send(ctx context.Context, msg Notification) error {
	student, err := n.UserRepo.FindByID(ctx, msg.StudentID)
	if err != nil {
		return err
	}
	if student == nil || student.Email == "" {
		return fmt.Errorf("student %s has no email", msg.StudentID)
	}

	subject, body := renderNotification(msg)
	message := mail.NewSingleEmail(n.From, subject, mail.NewEmail(student.Name, student.Email), body, "")

	resp, err := n.Client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid responded %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func renderNotification(msg Notification) (string, string) {
	switch msg.Kind {
	case NotifyCertificateIssued:
		body := fmt.Sprintf("Your certificate for %q has been issued.", msg.CourseTitle)
		if msg.CertificateURL != "" {
			body += "\n" + msg.CertificateURL
		}
		return "Your certificate is ready", body
	default:
		return "Course completed", fmt.Sprintf("Congratulations, you have completed %q.", msg.CourseTitle)
	}
}
