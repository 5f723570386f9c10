package controller

import (
	"partner_hub_backend/internal/service"
	"partner_hub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// actorFromContext 从认证信息中取出当前用户
func actorFromContext(ctx *gin.Context) (service.Actor, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		return service.Actor{}, false
	}
	return service.Actor{UserID: claims.UserID, Role: claims.Role}, true
}
