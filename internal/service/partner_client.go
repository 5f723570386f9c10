package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"partner_hub_backend/internal/util"
	"partner_hub_backend/pkg/monitoring"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

// PartnerEnrollmentStatus 合作方返回的报名状态
type PartnerEnrollmentStatus struct {
	Status           string          `json:"status"`
	CompletedAt      *time.Time      `json:"completedAt"`
	ProgressPercent  *float64        `json:"progressPercent"`
	TotalPoints      *float64        `json:"totalPoints"`
	TimeSpentSeconds *int64          `json:"timeSpentSeconds"`
	LastAccessed     *time.Time      `json:"lastAccessed"`
	Metadata         json.RawMessage `json:"metadata"`
}

type partnerStatusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    *struct {
		Enrollment *PartnerEnrollmentStatus `json:"enrollment"`
	} `json:"data"`
}

// PartnerCallError 合作方接口调用失败，errors.Is 可匹配 util.ErrPartnerCall
type PartnerCallError struct {
	Domain       string
	EnrollmentID string
	StatusCode   int
	Err          error
}

func (e *PartnerCallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("partner %s enrollment %s: status %d: %v", e.Domain, e.EnrollmentID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("partner %s enrollment %s: %v", e.Domain, e.EnrollmentID, e.Err)
}

func (e *PartnerCallError) Unwrap() []error {
	return []error{util.ErrPartnerCall, e.Err}
}

// PartnerClient 查询合作方的报名状态
type PartnerClient interface {
	FetchEnrollmentStatus(ctx context.Context, domain, enrollmentID string) (*PartnerEnrollmentStatus, error)
}

type RestyPartnerClient struct {
	client  *resty.Client
	timeout atomic.Int64
}

func NewPartnerClient(timeout time.Duration) *RestyPartnerClient {
	c := &RestyPartnerClient{
		client: resty.New().
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "partner-hub-sync/1.0"),
	}
	c.SetTimeout(timeout)
	return c
}

// SetTimeout 配置热更新时调整单次请求超时
func (c *RestyPartnerClient) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.timeout.Store(int64(timeout))
	}
}

func (c *RestyPartnerClient) Timeout() time.Duration {
	return time.Duration(c.timeout.Load())
}

func (c *RestyPartnerClient) FetchEnrollmentStatus(ctx context.Context, domain, enrollmentID string) (*PartnerEnrollmentStatus, error) {
	status, err := c.fetch(ctx, domain, enrollmentID)
	if err != nil {
		monitoring.PartnerCalls.WithLabelValues("error").Inc()
		return nil, err
	}
	monitoring.PartnerCalls.WithLabelValues("ok").Inc()
	return status, nil
}

func (c *RestyPartnerClient) fetch(ctx context.Context, domain, enrollmentID string) (*PartnerEnrollmentStatus, error) {
	callErr := func(code int, err error) error {
		return &PartnerCallError{Domain: domain, EnrollmentID: enrollmentID, StatusCode: code, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout())
	defer cancel()

	resp, err := c.client.R().
		SetContext(ctx).
		Get(partnerStatusURL(domain, enrollmentID))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, callErr(0, fmt.Errorf("timeout after %s", c.Timeout()))
		}
		return nil, callErr(0, err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, callErr(resp.StatusCode(), errors.New("unexpected response status"))
	}

	var body partnerStatusResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, callErr(resp.StatusCode(), fmt.Errorf("malformed body: %w", err))
	}
	if !body.Success {
		msg := body.Error
		if msg == "" {
			msg = "partner reported failure"
		}
		return nil, callErr(resp.StatusCode(), errors.New(msg))
	}
	if body.Data == nil || body.Data.Enrollment == nil {
		return nil, callErr(resp.StatusCode(), errors.New("missing enrollment in response"))
	}
	return body.Data.Enrollment, nil
}

func partnerStatusURL(domain, enrollmentID string) string {
	base := strings.TrimRight(strings.TrimSpace(domain), "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return base + "/api/enrollment/" + url.PathEscape(enrollmentID)
}
