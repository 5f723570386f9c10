package controller

import (
	"partner_hub_backend/internal/model"
	"partner_hub_backend/internal/service"
	"partner_hub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type EnrollmentController struct {
	EnrollmentService *service.EnrollmentService
}

func NewEnrollmentController(enrollmentService *service.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{EnrollmentService: enrollmentService}
}

// AssessmentRequest 评分请求
// swagger:model AssessmentRequest
type AssessmentRequest struct {
	Title string   `json:"title"`
	Score *float64 `json:"score" binding:"required"`
}

// StatusRequest 状态流转请求
// swagger:model StatusRequest
type StatusRequest struct {
	Status model.EnrollmentStatus `json:"status" binding:"required"`
}

// CreateEnrollment godoc
// @Summary 创建报名
// @Description 购买完成后由订单服务调用，生成带学生身份的访问链接
// @Tags 报名
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CreateEnrollmentRequest true "报名信息"
// @Success 201 {object} util.Response{data=model.Enrollment}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/enrollments [post]
func (c *EnrollmentController) CreateEnrollment(ctx *gin.Context) {
	var req service.CreateEnrollmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	e, err := c.EnrollmentService.CreateEnrollment(ctx.Request.Context(), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, e)
}

// GetEnrollment godoc
// @Summary 报名详情
// @Tags 报名
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "报名ID"
// @Success 200 {object} util.Response{data=model.Enrollment}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/enrollments/{id} [get]
func (c *EnrollmentController) GetEnrollment(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	e, err := c.EnrollmentService.GetEnrollment(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, e)
}

// ListAssessments godoc
// @Summary 评分列表
// @Tags 报名
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "报名ID"
// @Success 200 {object} util.Response{data=[]model.Assessment}
// @Router /api/enrollments/{id}/assessments [get]
func (c *EnrollmentController) ListAssessments(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	list, err := c.EnrollmentService.ListAssessments(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// AddAssessment godoc
// @Summary 添加评分
// @Description 分值 0-10，已完成的报名不可修改
// @Tags 报名
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "报名ID"
// @Param body body AssessmentRequest true "评分"
// @Success 201 {object} util.Response{data=model.Enrollment}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/enrollments/{id}/assessments [post]
func (c *EnrollmentController) AddAssessment(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req AssessmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	e, err := c.EnrollmentService.AddAssessment(ctx.Request.Context(), actor, ctx.Param("id"), req.Title, *req.Score)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, e)
}

// UpdateAssessment godoc
// @Summary 修改评分
// @Tags 报名
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "报名ID"
// @Param aid path string true "评分ID"
// @Param body body AssessmentRequest true "评分"
// @Success 200 {object} util.Response{data=model.Enrollment}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/enrollments/{id}/assessments/{aid} [put]
func (c *EnrollmentController) UpdateAssessment(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req AssessmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	e, err := c.EnrollmentService.UpdateAssessment(ctx.Request.Context(), actor, ctx.Param("id"), ctx.Param("aid"), req.Title, *req.Score)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, e)
}

// RemoveAssessment godoc
// @Summary 删除评分
// @Tags 报名
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "报名ID"
// @Param aid path string true "评分ID"
// @Success 200 {object} util.Response{data=model.Enrollment}
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/enrollments/{id}/assessments/{aid} [delete]
func (c *EnrollmentController) RemoveAssessment(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	e, err := c.EnrollmentService.RemoveAssessment(ctx.Request.Context(), actor, ctx.Param("id"), ctx.Param("aid"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, e)
}

// TransitionStatus godoc
// @Summary 修改报名状态
// @Description completed 为终态，之后的任何修改都会返回 409
// @Tags 报名
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "报名ID"
// @Param body body StatusRequest true "目标状态"
// @Success 200 {object} util.Response{data=model.Enrollment}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/enrollments/{id}/status [patch]
func (c *EnrollmentController) TransitionStatus(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req StatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	e, err := c.EnrollmentService.TransitionStatus(ctx.Request.Context(), actor, ctx.Param("id"), req.Status)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, e)
}
