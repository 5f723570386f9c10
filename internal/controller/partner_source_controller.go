package controller

import (
	"partner_hub_backend/internal/service"
	"partner_hub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type PartnerSourceController struct {
	SourceService *service.PartnerSourceService
	SyncService   *service.PartnerSyncService
}

func NewPartnerSourceController(sourceService *service.PartnerSourceService, syncService *service.PartnerSyncService) *PartnerSourceController {
	return &PartnerSourceController{SourceService: sourceService, SyncService: syncService}
}

// List godoc
// @Summary 合作方列表
// @Tags 管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.PartnerSource}
// @Router /api/admin/partner-sources [get]
func (c *PartnerSourceController) List(ctx *gin.Context) {
	list, err := c.SourceService.List(ctx.Request.Context())
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// Register godoc
// @Summary 登记合作方
// @Tags 管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.RegisterPartnerSourceRequest true "合作方信息"
// @Success 201 {object} util.Response{data=model.PartnerSource}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/admin/partner-sources [post]
func (c *PartnerSourceController) Register(ctx *gin.Context) {
	var req service.RegisterPartnerSourceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	src, err := c.SourceService.Register(ctx.Request.Context(), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, src)
}

// SyncNow godoc
// @Summary 立即同步
// @Description 与定时同步互斥，正在执行时返回 409
// @Tags 管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.SyncReport}
// @Failure 409 {object} util.Response
// @Router /api/admin/partner-sources/sync [post]
func (c *PartnerSourceController) SyncNow(ctx *gin.Context) {
	report, err := c.SyncService.RunOnce(ctx.Request.Context())
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, report)
}
