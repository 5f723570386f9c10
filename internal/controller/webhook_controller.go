package controller

import (
	"io"
	"net/http"
	"partner_hub_backend/internal/service"
	"partner_hub_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 单个事件的请求体上限
const maxWebhookBodyBytes = 1 << 20

type WebhookController struct {
	WebhookService *service.WebhookService
}

func NewWebhookController(webhookService *service.WebhookService) *WebhookController {
	return &WebhookController{WebhookService: webhookService}
}

// WebhookResponse 合作方回调的响应
// swagger:model WebhookResponse
type WebhookResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// PartnerUpdate godoc
// @Summary 接收合作方事件
// @Description 处理 progress_updated、course_completed、certificate_issued 事件。单个事件的处理失败只记录日志，信封格式错误时返回 500
// @Tags 合作方
// @Accept json
// @Produce json
// @Param body body service.WebhookEvent true "事件信封"
// @Success 200 {object} WebhookResponse
// @Failure 500 {object} WebhookResponse
// @Router /webhooks/partner-updates [post]
func (c *WebhookController) PartnerUpdate(ctx *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, WebhookResponse{Success: false, Error: "failed to read request body"})
		return
	}

	ev, err := service.ParseWebhookEvent(body)
	if err != nil {
		logger.Log.Warn("Rejected malformed partner webhook", zap.Error(err), zap.String("clientIp", ctx.ClientIP()))
		ctx.JSON(http.StatusInternalServerError, WebhookResponse{Success: false, Error: err.Error()})
		return
	}

	// 单个事件的错误在服务内部记录，不影响响应
	_ = c.WebhookService.Handle(ctx.Request.Context(), ev)

	ctx.JSON(http.StatusOK, WebhookResponse{Success: true})
}

// Probe godoc
// @Summary 回调地址探活
// @Tags 合作方
// @Success 200
// @Router /webhooks/partner-updates [head]
func (c *WebhookController) Probe(ctx *gin.Context) {
	ctx.Header("X-Webhook-Status", "Partner webhook endpoint is available")
	ctx.Status(http.StatusOK)
}
