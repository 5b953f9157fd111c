package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/ndrop/internal/api/middleware"
	"github.com/d60-Lab/ndrop/internal/service"
	"github.com/d60-Lab/ndrop/pkg/response"
)

// RunMatching 触发批量匹配（管理员）
// @Summary 运行批量匹配
// @Tags 匹配
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "活动ID"
// @Param request body service.MatchingConfig false "匹配配置（可省略）"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/admin/events/{event_id}/matching/run [post]
func (h *Handler) RunMatching(c *gin.Context) {
	var cfg *service.MatchingConfig
	if c.Request.ContentLength > 0 {
		cfg = &service.MatchingConfig{}
		if err := c.ShouldBindJSON(cfg); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	res, err := h.matchingSvc.Run(c.Request.Context(), c.Param("event_id"), middleware.CurrentUserID(c), cfg)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// LatestMatchingBatch 最新批次全部推荐（管理员）
// @Summary 最新匹配批次
// @Tags 匹配
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "活动ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/events/{event_id}/matching [get]
func (h *Handler) LatestMatchingBatch(c *gin.Context) {
	recs, err := h.matchingSvc.LatestBatch(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, recs)
}

// MyRecommendations 当前用户在该活动的最新推荐
// @Summary 我的推荐
// @Tags 匹配
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "活动ID"
// @Success 200 {object} response.Response
// @Router /api/v1/events/{event_id}/recommendations [get]
func (h *Handler) MyRecommendations(c *gin.Context) {
	recs, err := h.matchingSvc.LatestForUser(c.Request.Context(), c.Param("event_id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, recs)
}
