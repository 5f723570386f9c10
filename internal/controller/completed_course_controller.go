package controller

import (
	"partner_hub_backend/internal/service"
	"partner_hub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CompletedCourseController struct {
	CompletionService *service.CompletionService
}

func NewCompletedCourseController(completionService *service.CompletionService) *CompletedCourseController {
	return &CompletedCourseController{CompletionService: completionService}
}

// ListMine godoc
// @Summary 我的结业课程
// @Tags 结业
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.CompletedCourse}
// @Router /api/completed-courses [get]
func (c *CompletedCourseController) ListMine(ctx *gin.Context) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	list, err := c.CompletionService.ListForUser(ctx.Request.Context(), actor.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, list)
}
